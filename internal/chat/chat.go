// Package chat persists chat exchanges per plot and session.
package chat

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Message is one prompt and the reply it got.
type Message struct {
	ID        int64     `json:"id"`
	PlotID    string    `json:"plot_id"`
	SessionID string    `json:"session_id"`
	Prompt    string    `json:"prompt"`
	Reply     string    `json:"reply"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository is a database-backed chat log.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// Save appends a message.
func (r *Repository) Save(ctx context.Context, m *Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.CreatedAt = m.CreatedAt.UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_log (plot_id, session_id, prompt, reply, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.PlotID, m.SessionID, m.Prompt, m.Reply, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save chat message: %w", err)
	}
	m.ID, _ = res.LastInsertId()
	return nil
}

// Recent returns the last limit messages of a session in chronological order.
func (r *Repository) Recent(ctx context.Context, plotID, sessionID string, limit int) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, plot_id, session_id, prompt, reply, created_at FROM (
			SELECT * FROM chat_log WHERE plot_id = ? AND session_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, plotID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.PlotID, &m.SessionID, &m.Prompt, &m.Reply, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
