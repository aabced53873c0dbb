package app

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hearth-chat/gateway/internal/core"
	"github.com/hearth-chat/gateway/internal/domain"
	"github.com/hearth-chat/gateway/internal/protocol"
)

// Voice coordinates WebRTC session setup for the members of a voice
// room. It relays opaque descriptions and candidates between peer
// pairs and never touches media.
//
// The join asymmetry makes the new peer the initiator: it gets the
// pre-join participant list and dials offers to everyone on it, while
// existing members just learn the newcomer exists and wait. That keeps
// the common two-party case free of offer glare.
type Voice struct {
	registry *core.Registry
	router   *core.Router
	fanout   *Fanout
}

func NewVoice(registry *core.Registry, router *core.Router, fanout *Fanout) *Voice {
	return &Voice{registry: registry, router: router, fanout: fanout}
}

// Join adds the connection to the voice room, seeds it with the
// existing participants and announces it to them.
func (v *Voice) Join(id core.ConnID, voiceChannelID string) error {
	userID, ok := v.registry.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: unknown connection", domain.ErrAuthentication)
	}
	key := domain.VoiceRoom(voiceChannelID)
	existing := v.router.Join(key, id)

	participants := make([]protocol.VoiceParticipant, 0, len(existing))
	for _, member := range existing {
		memberUser, ok := v.registry.Lookup(member)
		if !ok {
			continue
		}
		participants = append(participants, protocol.VoiceParticipant{
			UserID:       memberUser,
			ConnectionID: string(member),
		})
	}

	seed, err := protocol.Marshal(protocol.EventVoiceParticipants, protocol.VoiceParticipants{
		VoiceChannelID: voiceChannelID,
		Participants:   participants,
	})
	if err != nil {
		return err
	}
	if err := v.fanout.Unicast(id, seed); err != nil {
		log.Warn().Err(err).Str("module", "app.voice").Str("conn", string(id)).Msg("participant seed dropped")
	}

	joined, err := protocol.Marshal(protocol.EventVoiceUserJoined, protocol.VoicePeer{
		VoiceChannelID: voiceChannelID,
		UserID:         userID,
		ConnectionID:   string(id),
	})
	if err != nil {
		return err
	}
	v.fanout.Room(key, joined, id)
	log.Info().Str("module", "app.voice").Str("conn", string(id)).Str("room", string(key)).Int("peers", len(participants)).Msg("voice join")
	return nil
}

// Leave withdraws the connection and tells the remaining members.
func (v *Voice) Leave(id core.ConnID, voiceChannelID string) error {
	userID, ok := v.registry.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: unknown connection", domain.ErrAuthentication)
	}
	key := domain.VoiceRoom(voiceChannelID)
	v.router.Leave(key, id)

	left, err := protocol.Marshal(protocol.EventVoiceUserLeft, protocol.VoicePeer{
		VoiceChannelID: voiceChannelID,
		UserID:         userID,
		ConnectionID:   string(id),
	})
	if err != nil {
		return err
	}
	v.fanout.Room(key, left)
	log.Info().Str("module", "app.voice").Str("conn", string(id)).Str("room", string(key)).Msg("voice leave")
	return nil
}

func (v *Voice) RelayOffer(id core.ConnID, p protocol.Offer) error {
	return v.relay(id, core.ConnID(p.To), protocol.EventVoiceOffer, protocol.SignalOffer{
		From:        string(id),
		Description: p.Description,
	})
}

func (v *Voice) RelayAnswer(id core.ConnID, p protocol.Answer) error {
	return v.relay(id, core.ConnID(p.To), protocol.EventVoiceAnswer, protocol.SignalAnswer{
		From:        string(id),
		Description: p.Description,
	})
}

func (v *Voice) RelayCandidate(id core.ConnID, p protocol.Candidate) error {
	return v.relay(id, core.ConnID(p.To), protocol.EventVoiceCandidate, protocol.SignalCandidate{
		From:      string(id),
		Candidate: p.Candidate,
	})
}

// relay unicasts a signaling envelope to one peer. Targets outside the
// sender's voice room are rejected; an unreachable target is logged
// and swallowed, since the peer may simply have disconnected already.
func (v *Voice) relay(from, to core.ConnID, event string, payload any) error {
	if !v.router.SharesRoom(from, to, true) {
		return fmt.Errorf("%w: target is not in your voice room", domain.ErrValidation)
	}
	frame, err := protocol.Marshal(event, payload)
	if err != nil {
		return err
	}
	if err := v.fanout.Unicast(to, frame); err != nil {
		log.Warn().Err(err).Str("module", "app.voice").Str("from", string(from)).Str("to", string(to)).Str("event", event).Msg("signal dropped")
		return nil
	}
	log.Debug().Str("module", "app.voice").Str("from", string(from)).Str("to", string(to)).Str("event", event).Msg("signal relayed")
	return nil
}
