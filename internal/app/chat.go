package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hearth-chat/gateway/internal/core"
	"github.com/hearth-chat/gateway/internal/domain"
	"github.com/hearth-chat/gateway/internal/protocol"
	"github.com/hearth-chat/gateway/internal/store"
)

// Chat validates and relays message events into the owning channel
// room. Persistence and broadcast either both happen or neither does.
type Chat struct {
	registry *core.Registry
	router   *core.Router
	fanout   *Fanout
	messages store.MessageStore
	users    store.UserDirectory
}

func NewChat(registry *core.Registry, router *core.Router, fanout *Fanout, messages store.MessageStore, users store.UserDirectory) *Chat {
	return &Chat{registry: registry, router: router, fanout: fanout, messages: messages, users: users}
}

// Send stamps the message with the connection's bound identity, a
// fresh id and a server timestamp, persists it, then broadcasts
// message:new to the channel room, sender included.
func (c *Chat) Send(ctx context.Context, id core.ConnID, p protocol.SendMessage) error {
	userID, ok := c.registry.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: unknown connection", domain.ErrAuthentication)
	}

	msg := domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		ChannelID: p.ChannelID,
		AuthorID:  userID,
		Content:   p.Content,
		ReplyToID: p.ReplyToID,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.messages.SaveMessage(ctx, msg); err != nil {
		return err
	}

	frame, err := protocol.Marshal(protocol.EventMessageNew, protocol.MessageEvent{
		Message: msg,
		Author:  c.author(ctx, userID),
	})
	if err != nil {
		return err
	}
	c.fanout.Room(domain.ChannelRoom(p.ChannelID), frame)
	return nil
}

// Edit requires the caller to be the stored message's author. On
// mismatch nothing is broadcast.
func (c *Chat) Edit(ctx context.Context, id core.ConnID, p protocol.EditMessage) error {
	userID, ok := c.registry.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: unknown connection", domain.ErrAuthentication)
	}
	msg, err := c.messages.GetMessage(ctx, domain.MessageID(p.MessageID))
	if err != nil {
		return err
	}
	if msg.AuthorID != userID {
		return fmt.Errorf("%w: message %s", domain.ErrAuthorization, p.MessageID)
	}
	if err := c.messages.UpdateMessage(ctx, msg.ID, p.Content); err != nil {
		return err
	}

	msg.Content = p.Content
	msg.Edited = true
	frame, err := protocol.Marshal(protocol.EventMessageUpdated, protocol.MessageEvent{
		Message: msg,
		Author:  c.author(ctx, userID),
	})
	if err != nil {
		return err
	}
	c.fanout.Room(domain.ChannelRoom(msg.ChannelID), frame)
	return nil
}

// Delete applies the same authorship check as Edit.
func (c *Chat) Delete(ctx context.Context, id core.ConnID, p protocol.DeleteMessage) error {
	userID, ok := c.registry.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: unknown connection", domain.ErrAuthentication)
	}
	msg, err := c.messages.GetMessage(ctx, domain.MessageID(p.MessageID))
	if err != nil {
		return err
	}
	if msg.AuthorID != userID {
		return fmt.Errorf("%w: message %s", domain.ErrAuthorization, p.MessageID)
	}
	if err := c.messages.DeleteMessage(ctx, msg.ID); err != nil {
		return err
	}

	frame, err := protocol.Marshal(protocol.EventMessageDeleted, protocol.MessageDeleted{
		MessageID: p.MessageID,
		ChannelID: msg.ChannelID,
	})
	if err != nil {
		return err
	}
	c.fanout.Room(domain.ChannelRoom(msg.ChannelID), frame)
	return nil
}

// Typing is a pure ephemeral broadcast excluding the sender. Nothing
// is persisted; the only requirement is channel membership.
func (c *Chat) Typing(id core.ConnID, channelID string, start bool) error {
	userID, ok := c.registry.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: unknown connection", domain.ErrAuthentication)
	}
	key := domain.ChannelRoom(channelID)
	if !c.router.IsMember(key, id) {
		return fmt.Errorf("%w: not a member of channel %s", domain.ErrAuthorization, channelID)
	}

	event := protocol.EventTypingStart
	if !start {
		event = protocol.EventTypingStop
	}
	frame, err := protocol.Marshal(event, protocol.TypingEvent{UserID: userID, ChannelID: channelID})
	if err != nil {
		return err
	}
	c.fanout.Room(key, frame, id)
	return nil
}

// author resolves the public profile for relayed events. Directory
// failures degrade to an id-only summary instead of failing the send.
func (c *Chat) author(ctx context.Context, userID domain.UserID) domain.UserSummary {
	summary, err := c.users.FetchUserSummary(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.chat").Str("user", string(userID)).Msg("user summary unavailable")
		return domain.UserSummary{ID: userID}
	}
	return summary
}
