// Package sqlite implements the conversation store on SQLite. Suitable
// for single-instance deployments that need persistence across restarts.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/flightdeskco/flightdesk/pkg/conversation"
	"github.com/flightdeskco/flightdesk/pkg/llm"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	user_id     TEXT PRIMARY KEY,
	messages    TEXT NOT NULL,
	ttl_seconds INTEGER NOT NULL,
	expires_at  TIMESTAMP
);
`

// Driver implements conversation.Store on a SQLite database.
type Driver struct {
	db *sql.DB
}

// NewDriver opens (or creates) the database at path and ensures the
// schema exists.
func NewDriver(path string) (*Driver, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

func (d *Driver) Get(ctx context.Context, userID string) ([]llm.Message, error) {
	var (
		raw       string
		expiresAt sql.NullTime
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT messages, expires_at FROM conversations WHERE user_id = ?`, userID).
		Scan(&raw, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, conversation.ErrNotFound{UserID: userID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	if expiresAt.Valid && time.Now().After(expiresAt.Time) {
		_, _ = d.db.ExecContext(ctx, `DELETE FROM conversations WHERE user_id = ?`, userID)
		return nil, conversation.ErrNotFound{UserID: userID}
	}

	var messages []llm.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	return messages, nil
}

func (d *Driver) Put(ctx context.Context, userID string, messages []llm.Message, ttl time.Duration) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO conversations (user_id, messages, ttl_seconds, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			messages = excluded.messages,
			ttl_seconds = excluded.ttl_seconds,
			expires_at = excluded.expires_at`,
		userID, string(raw), int64(ttl.Seconds()), expiry(ttl))
	if err != nil {
		return fmt.Errorf("failed to store conversation: %w", err)
	}
	return nil
}

func (d *Driver) Touch(ctx context.Context, userID string) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE conversations
		SET expires_at = CASE WHEN ttl_seconds > 0
			THEN DATETIME('now', '+' || ttl_seconds || ' seconds')
			ELSE NULL END
		WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return conversation.ErrNotFound{UserID: userID}
	}
	return nil
}

func (d *Driver) Trim(ctx context.Context, userID string, keepLastN int) error {
	messages, err := d.Get(ctx, userID)
	if err != nil {
		return err
	}

	trimmed := conversation.TrimMessages(messages, keepLastN)
	raw, err := json.Marshal(trimmed)
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}

	_, err = d.db.ExecContext(ctx,
		`UPDATE conversations SET messages = ? WHERE user_id = ?`, string(raw), userID)
	if err != nil {
		return fmt.Errorf("failed to trim conversation: %w", err)
	}
	return nil
}

func (d *Driver) Delete(ctx context.Context, userID string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM conversations WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

func (d *Driver) Close() error { return d.db.Close() }

func expiry(ttl time.Duration) any {
	if ttl <= 0 {
		return nil
	}
	return time.Now().Add(ttl)
}

var _ conversation.Store = (*Driver)(nil)
