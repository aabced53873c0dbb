// Package protocol defines the wire contract with clients: one named
// constant and one fixed payload schema per event. Unknown or
// malformed payloads are rejected, never passed through.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pion/webrtc/v4"

	"github.com/hearth-chat/gateway/internal/domain"
)

// Client-to-server events.
const (
	EventChannelJoin   = "channel:join"
	EventChannelLeave  = "channel:leave"
	EventMessageSend   = "message:send"
	EventMessageEdit   = "message:edit"
	EventMessageDelete = "message:delete"
	EventTypingStart   = "typing:start"
	EventTypingStop    = "typing:stop"
	EventVoiceJoin     = "voice:join"
	EventVoiceLeave    = "voice:leave"
)

// Server-to-client events.
const (
	EventMessageNew        = "message:new"
	EventMessageUpdated    = "message:updated"
	EventMessageDeleted    = "message:deleted"
	EventVoiceParticipants = "voice:participants"
	EventVoiceUserJoined   = "voice:user-joined"
	EventVoiceUserLeft     = "voice:user-left"
	EventUserStatus        = "user:status"
	EventError             = "error"
)

// Bidirectional signaling events, relayed peer to peer as unicast.
const (
	EventVoiceOffer     = "voice:offer"
	EventVoiceAnswer    = "voice:answer"
	EventVoiceCandidate = "voice:ice-candidate"
)

var validate = validator.New()

// Envelope frames every event on the wire.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode parses the outer envelope. The payload stays raw until the
// dispatcher knows which schema applies.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing event type", domain.ErrValidation)
	}
	return env, nil
}

// Bind unmarshals the envelope payload into the event's schema and
// validates it.
func (e Envelope) Bind(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: %s: empty payload", domain.ErrValidation, e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrValidation, e.Type, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrValidation, e.Type, err)
	}
	return nil
}

// Marshal encodes an outbound event as a ready-to-send frame.
func Marshal(eventType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: eventType, Data: data})
}

// Inbound payloads.

type ChannelRef struct {
	ChannelID string `json:"channelId" validate:"required"`
}

type VoiceRef struct {
	VoiceChannelID string `json:"voiceChannelId" validate:"required"`
}

type SendMessage struct {
	ChannelID string `json:"channelId" validate:"required"`
	Content   string `json:"content" validate:"required,max=4000"`
	ReplyToID string `json:"replyToId,omitempty"`
}

type EditMessage struct {
	MessageID string `json:"messageId" validate:"required"`
	Content   string `json:"content" validate:"required,max=4000"`
}

type DeleteMessage struct {
	MessageID string `json:"messageId" validate:"required"`
}

// Offer and Answer carry a complete session description; the gateway
// relays it opaquely and never inspects the SDP body.
type Offer struct {
	To          string                    `json:"to" validate:"required"`
	Description webrtc.SessionDescription `json:"description" validate:"required"`
}

type Answer struct {
	To          string                    `json:"to" validate:"required"`
	Description webrtc.SessionDescription `json:"description" validate:"required"`
}

type Candidate struct {
	To        string                  `json:"to" validate:"required"`
	Candidate webrtc.ICECandidateInit `json:"candidate" validate:"required"`
}

// Outbound payloads.

type MessageEvent struct {
	domain.Message
	Author domain.UserSummary `json:"author"`
}

type MessageDeleted struct {
	MessageID string `json:"messageId"`
	ChannelID string `json:"channelId"`
}

type TypingEvent struct {
	UserID    domain.UserID `json:"userId"`
	ChannelID string        `json:"channelId"`
}

type VoiceParticipant struct {
	UserID       domain.UserID `json:"userId"`
	ConnectionID string        `json:"connectionId"`
}

type VoiceParticipants struct {
	VoiceChannelID string             `json:"voiceChannelId"`
	Participants   []VoiceParticipant `json:"participants"`
}

type VoicePeer struct {
	VoiceChannelID string        `json:"voiceChannelId"`
	UserID         domain.UserID `json:"userId"`
	ConnectionID   string        `json:"connectionId"`
}

// SignalOffer and friends are the relayed envelopes, stamped with the
// sender's connection id so the recipient can address its reply.
type SignalOffer struct {
	From        string                    `json:"from"`
	Description webrtc.SessionDescription `json:"description"`
}

type SignalAnswer struct {
	From        string                    `json:"from"`
	Description webrtc.SessionDescription `json:"description"`
}

type SignalCandidate struct {
	From      string                  `json:"from"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type UserStatus struct {
	UserID domain.UserID `json:"userId"`
	Status domain.Status `json:"status"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}
