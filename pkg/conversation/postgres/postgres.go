// Package postgres implements the conversation store on PostgreSQL for
// multi-instance deployments.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/flightdeskco/flightdesk/pkg/conversation"
	"github.com/flightdeskco/flightdesk/pkg/llm"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	user_id     TEXT PRIMARY KEY,
	messages    JSONB NOT NULL,
	ttl_seconds BIGINT NOT NULL,
	expires_at  TIMESTAMPTZ
);
`

// Driver implements conversation.Store on a PostgreSQL database.
type Driver struct {
	db *sql.DB
}

// NewDriver connects to the database at dsn and ensures the schema
// exists.
func NewDriver(ctx context.Context, dsn string) (*Driver, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

func (d *Driver) Get(ctx context.Context, userID string) ([]llm.Message, error) {
	var (
		raw       []byte
		expiresAt sql.NullTime
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT messages, expires_at FROM conversations WHERE user_id = $1`, userID).
		Scan(&raw, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, conversation.ErrNotFound{UserID: userID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	if expiresAt.Valid && time.Now().After(expiresAt.Time) {
		_, _ = d.db.ExecContext(ctx, `DELETE FROM conversations WHERE user_id = $1`, userID)
		return nil, conversation.ErrNotFound{UserID: userID}
	}

	var messages []llm.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	return messages, nil
}

func (d *Driver) Put(ctx context.Context, userID string, messages []llm.Message, ttl time.Duration) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}

	var expiresAt any
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO conversations (user_id, messages, ttl_seconds, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			messages = EXCLUDED.messages,
			ttl_seconds = EXCLUDED.ttl_seconds,
			expires_at = EXCLUDED.expires_at`,
		userID, raw, int64(ttl.Seconds()), expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store conversation: %w", err)
	}
	return nil
}

func (d *Driver) Touch(ctx context.Context, userID string) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE conversations
		SET expires_at = CASE WHEN ttl_seconds > 0
			THEN NOW() + make_interval(secs => ttl_seconds)
			ELSE NULL END
		WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return conversation.ErrNotFound{UserID: userID}
	}
	return nil
}

func (d *Driver) Trim(ctx context.Context, userID string, keepLastN int) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw []byte
	err = tx.QueryRowContext(ctx,
		`SELECT messages FROM conversations WHERE user_id = $1 FOR UPDATE`, userID).
		Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return conversation.ErrNotFound{UserID: userID}
	}
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	var messages []llm.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return fmt.Errorf("failed to decode conversation: %w", err)
	}

	trimmed, err := json.Marshal(conversation.TrimMessages(messages, keepLastN))
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET messages = $1 WHERE user_id = $2`, trimmed, userID); err != nil {
		return fmt.Errorf("failed to trim conversation: %w", err)
	}

	return tx.Commit()
}

func (d *Driver) Delete(ctx context.Context, userID string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM conversations WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

func (d *Driver) Close() error { return d.db.Close() }

var _ conversation.Store = (*Driver)(nil)
