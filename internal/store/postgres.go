package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/hearth-chat/gateway/internal/domain"
)

// Postgres implements MessageStore and UserDirectory on a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Info().Str("module", "store.postgres").Msg("connected")
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) SaveMessage(ctx context.Context, msg domain.Message) error {
	const q = `
		INSERT INTO messages (id, channel_id, author_id, content, reply_to_id, edited, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)`
	_, err := p.pool.Exec(ctx, q,
		string(msg.ID), msg.ChannelID, string(msg.AuthorID),
		msg.Content, msg.ReplyToID, msg.Edited, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: save message: %v", domain.ErrUpstream, err)
	}
	return nil
}

func (p *Postgres) GetMessage(ctx context.Context, id domain.MessageID) (domain.Message, error) {
	const q = `
		SELECT id, channel_id, author_id, content, COALESCE(reply_to_id, ''), edited, created_at
		FROM messages WHERE id = $1`
	var msg domain.Message
	err := p.pool.QueryRow(ctx, q, string(id)).Scan(
		&msg.ID, &msg.ChannelID, &msg.AuthorID,
		&msg.Content, &msg.ReplyToID, &msg.Edited, &msg.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, fmt.Errorf("%w: message %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: get message: %v", domain.ErrUpstream, err)
	}
	return msg, nil
}

func (p *Postgres) UpdateMessage(ctx context.Context, id domain.MessageID, content string) error {
	const q = `UPDATE messages SET content = $2, edited = TRUE WHERE id = $1`
	tag, err := p.pool.Exec(ctx, q, string(id), content)
	if err != nil {
		return fmt.Errorf("%w: update message: %v", domain.ErrUpstream, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: message %s", domain.ErrNotFound, id)
	}
	return nil
}

func (p *Postgres) DeleteMessage(ctx context.Context, id domain.MessageID) error {
	const q = `DELETE FROM messages WHERE id = $1`
	tag, err := p.pool.Exec(ctx, q, string(id))
	if err != nil {
		return fmt.Errorf("%w: delete message: %v", domain.ErrUpstream, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: message %s", domain.ErrNotFound, id)
	}
	return nil
}

func (p *Postgres) FetchUserSummary(ctx context.Context, id domain.UserID) (domain.UserSummary, error) {
	const q = `
		SELECT id, username, COALESCE(display_name, ''), COALESCE(avatar, '')
		FROM users WHERE id = $1`
	var u domain.UserSummary
	err := p.pool.QueryRow(ctx, q, string(id)).Scan(&u.ID, &u.Username, &u.DisplayName, &u.Avatar)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserSummary{}, fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.UserSummary{}, fmt.Errorf("%w: fetch user: %v", domain.ErrUpstream, err)
	}
	return u, nil
}
