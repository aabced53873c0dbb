package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hearth-chat/gateway/internal/app"
	"github.com/hearth-chat/gateway/internal/config"
	"github.com/hearth-chat/gateway/internal/core"
	"github.com/hearth-chat/gateway/internal/domain"
	"github.com/hearth-chat/gateway/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller owns the websocket endpoint: it authenticates the
// handshake, upgrades the connection and runs the pumps.
type Controller struct {
	gateway *app.Gateway
	cfg     *config.Config
	limiter *EventRateLimiter
}

func NewController(gateway *app.Gateway, cfg *config.Config) *Controller {
	return &Controller{
		gateway: gateway,
		cfg:     cfg,
		limiter: NewEventRateLimiter(50, 10*time.Second),
	}
}

// HandleWS verifies the identity token before upgrading; a bad token
// refuses the handshake and no room operation is ever possible.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	token := c.Query("token")
	userID, err := ctl.gateway.Authenticate(token)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.ws").Msg("handshake refused")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}

	wsc, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("upgrade failed")
		return
	}

	id := core.ConnID(uuid.NewString())
	conn := newWsConn(wsc, ctl.cfg.SendBuffer)
	ctl.gateway.Connect(id, userID, conn)
	log.Info().Str("module", "adapters.ws").Str("conn", string(id)).Str("user", string(userID)).Msg("connection established")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, id, userID, conn)
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, id core.ConnID, userID domain.UserID, c *wsConn) {
	defer func() {
		cancel()
		c.Close()
		if ctl.gateway.Disconnect(id) {
			// Last connection for this user; their rate window goes too.
			ctl.limiter.Forget(userID)
		}
		log.Info().Str("module", "adapters.ws").Str("conn", string(id)).Msg("readPump closed")
	}()

	c.conn.SetReadLimit(ctl.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.cfg.PingPeriod + 10*time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.cfg.PingPeriod + 10*time.Second))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "adapters.ws").Str("conn", string(id)).Msg("read error")
				}
				return
			}
			if !ctl.limiter.Allow(userID) {
				ctl.sendRateLimited(c)
				continue
			}
			ctl.gateway.Dispatch(ctx, id, data)
		}
	}
}

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) sendRateLimited(c *wsConn) {
	frame, err := protocol.Marshal(protocol.EventError, protocol.ErrorEvent{Message: "rate limited"})
	if err != nil {
		return
	}
	_ = c.TrySend(frame)
}
