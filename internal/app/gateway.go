package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hearth-chat/gateway/internal/core"
	"github.com/hearth-chat/gateway/internal/domain"
	"github.com/hearth-chat/gateway/internal/protocol"
	"github.com/hearth-chat/gateway/internal/store"
)

// Gateway ties the realtime core together: it authenticates handshakes,
// owns the connect/disconnect cascade and dispatches decoded client
// events to the chat pipeline and the voice broker.
type Gateway struct {
	registry *core.Registry
	router   *core.Router
	presence *core.Presence
	fanout   *Fanout
	chat     *Chat
	voice    *Voice
	verifier store.IdentityVerifier
}

func NewGateway(
	registry *core.Registry,
	router *core.Router,
	presence *core.Presence,
	verifier store.IdentityVerifier,
	messages store.MessageStore,
	users store.UserDirectory,
	policy Policy,
) *Gateway {
	fanout := NewFanout(registry, router, policy)
	return &Gateway{
		registry: registry,
		router:   router,
		presence: presence,
		fanout:   fanout,
		chat:     NewChat(registry, router, fanout, messages, users),
		voice:    NewVoice(registry, router, fanout),
		verifier: verifier,
	}
}

// Fanout exposes the delivery path so a cross-instance bridge can be
// attached and can feed remote frames back in.
func (g *Gateway) Fanout() *Fanout { return g.fanout }

// Authenticate resolves the identity token presented at handshake.
// Called by the transport before the connection is upgraded.
func (g *Gateway) Authenticate(token string) (domain.UserID, error) {
	if token == "" {
		return "", fmt.Errorf("%w: missing token", domain.ErrAuthentication)
	}
	return g.verifier.VerifyIdentity(token)
}

// Connect binds the authenticated identity to the new connection and
// fires the global ONLINE transition if this is the user's first one.
func (g *Gateway) Connect(id core.ConnID, userID domain.UserID, conn core.Conn) {
	g.registry.Register(id, userID, conn)
	if g.presence.OnConnect(userID) {
		g.broadcastStatus(userID, domain.StatusOnline)
	}
}

// Disconnect runs the cleanup cascade as a single logical unit: every
// room membership is removed, remaining voice peers are told, the
// identity binding is dropped and presence is re-evaluated. Reports
// whether this was the user's last connection, so the transport can
// release its own per-user state.
func (g *Gateway) Disconnect(id core.ConnID) bool {
	userID, ok := g.registry.Lookup(id)
	if !ok {
		return false
	}

	for _, key := range g.router.LeaveAll(id) {
		if !key.IsVoice() {
			continue
		}
		left, err := protocol.Marshal(protocol.EventVoiceUserLeft, protocol.VoicePeer{
			VoiceChannelID: key.ChannelID(),
			UserID:         userID,
			ConnectionID:   string(id),
		})
		if err != nil {
			continue
		}
		g.fanout.Room(key, left)
	}

	g.registry.Unregister(id)
	offline := g.presence.OnDisconnect(userID)
	if offline {
		g.broadcastStatus(userID, domain.StatusOffline)
	}
	log.Info().Str("module", "app.gateway").Str("conn", string(id)).Str("user", string(userID)).Msg("disconnect cleanup done")
	return offline
}

// Dispatch decodes one inbound event and routes it. Failures are
// reported back to the originating connection only; one client's error
// never disturbs another client's room state.
func (g *Gateway) Dispatch(ctx context.Context, id core.ConnID, raw []byte) {
	env, err := protocol.Decode(raw)
	if err != nil {
		g.sendError(id, err)
		return
	}
	if err := g.dispatch(ctx, id, env); err != nil {
		log.Debug().Err(err).Str("module", "app.gateway").Str("conn", string(id)).Str("event", env.Type).Msg("event rejected")
		g.sendError(id, err)
	}
}

func (g *Gateway) dispatch(ctx context.Context, id core.ConnID, env protocol.Envelope) error {
	switch env.Type {
	case protocol.EventChannelJoin:
		var p protocol.ChannelRef
		if err := env.Bind(&p); err != nil {
			return err
		}
		g.router.Join(domain.ChannelRoom(p.ChannelID), id)
		return nil

	case protocol.EventChannelLeave:
		var p protocol.ChannelRef
		if err := env.Bind(&p); err != nil {
			return err
		}
		g.router.Leave(domain.ChannelRoom(p.ChannelID), id)
		return nil

	case protocol.EventMessageSend:
		var p protocol.SendMessage
		if err := env.Bind(&p); err != nil {
			return err
		}
		return g.chat.Send(ctx, id, p)

	case protocol.EventMessageEdit:
		var p protocol.EditMessage
		if err := env.Bind(&p); err != nil {
			return err
		}
		return g.chat.Edit(ctx, id, p)

	case protocol.EventMessageDelete:
		var p protocol.DeleteMessage
		if err := env.Bind(&p); err != nil {
			return err
		}
		return g.chat.Delete(ctx, id, p)

	case protocol.EventTypingStart, protocol.EventTypingStop:
		var p protocol.ChannelRef
		if err := env.Bind(&p); err != nil {
			return err
		}
		return g.chat.Typing(id, p.ChannelID, env.Type == protocol.EventTypingStart)

	case protocol.EventVoiceJoin:
		var p protocol.VoiceRef
		if err := env.Bind(&p); err != nil {
			return err
		}
		return g.voice.Join(id, p.VoiceChannelID)

	case protocol.EventVoiceLeave:
		var p protocol.VoiceRef
		if err := env.Bind(&p); err != nil {
			return err
		}
		return g.voice.Leave(id, p.VoiceChannelID)

	case protocol.EventVoiceOffer:
		var p protocol.Offer
		if err := env.Bind(&p); err != nil {
			return err
		}
		return g.voice.RelayOffer(id, p)

	case protocol.EventVoiceAnswer:
		var p protocol.Answer
		if err := env.Bind(&p); err != nil {
			return err
		}
		return g.voice.RelayAnswer(id, p)

	case protocol.EventVoiceCandidate:
		var p protocol.Candidate
		if err := env.Bind(&p); err != nil {
			return err
		}
		return g.voice.RelayCandidate(id, p)

	default:
		return fmt.Errorf("%w: unknown event %q", domain.ErrValidation, env.Type)
	}
}

func (g *Gateway) broadcastStatus(userID domain.UserID, status domain.Status) {
	frame, err := protocol.Marshal(protocol.EventUserStatus, protocol.UserStatus{
		UserID: userID,
		Status: status,
	})
	if err != nil {
		return
	}
	g.fanout.Global(frame)
}

func (g *Gateway) sendError(id core.ConnID, cause error) {
	frame, err := protocol.Marshal(protocol.EventError, protocol.ErrorEvent{Message: reason(cause)})
	if err != nil {
		return
	}
	if err := g.fanout.Unicast(id, frame); err != nil {
		log.Debug().Err(err).Str("module", "app.gateway").Str("conn", string(id)).Msg("error event undeliverable")
	}
}

// reason maps an internal failure to the human-readable message carried
// by the error event, without leaking wrapped detail.
func reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrAuthorization):
		return "you do not own this resource"
	case errors.Is(err, domain.ErrNotFound):
		return "referenced resource no longer exists"
	case errors.Is(err, domain.ErrUpstream):
		return "storage is temporarily unavailable"
	case errors.Is(err, domain.ErrValidation):
		return err.Error()
	case errors.Is(err, domain.ErrAuthentication):
		return "not authenticated"
	default:
		return "internal error"
	}
}
