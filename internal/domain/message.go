package domain

import "time"

type MessageID string

// Message is the chat event payload. The gateway stamps identity and
// relays it; persistence belongs to the store collaborator.
type Message struct {
	ID        MessageID `json:"id"`
	ChannelID string    `json:"channelId"`
	AuthorID  UserID    `json:"authorId"`
	Content   string    `json:"content"`
	ReplyToID string    `json:"replyToId,omitempty"`
	Edited    bool      `json:"edited"`
	CreatedAt time.Time `json:"createdAt"`
}
