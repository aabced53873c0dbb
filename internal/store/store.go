// Package store holds the external collaborator contracts the gateway
// consumes. The realtime core only ever sees these interfaces.
package store

import (
	"context"

	"github.com/hearth-chat/gateway/internal/domain"
)

// MessageStore persists chat messages. Failures surface to the sending
// connection only; the gateway never retries.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg domain.Message) error
	GetMessage(ctx context.Context, id domain.MessageID) (domain.Message, error)
	UpdateMessage(ctx context.Context, id domain.MessageID, content string) error
	DeleteMessage(ctx context.Context, id domain.MessageID) error
}

// IdentityVerifier resolves the identity token presented once at
// handshake. A failure here refuses the connection.
type IdentityVerifier interface {
	VerifyIdentity(token string) (domain.UserID, error)
}

// UserDirectory resolves public profiles for relayed events.
type UserDirectory interface {
	FetchUserSummary(ctx context.Context, id domain.UserID) (domain.UserSummary, error)
}
