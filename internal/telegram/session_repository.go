package telegram

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SessionRepository remembers which plot each Telegram user is talking about.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository instance
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// ActivePlot returns the user's selected plot id, or "" when none is selected.
func (sr *SessionRepository) ActivePlot(ctx context.Context, userID int64) (string, error) {
	var plotID string
	err := sr.db.QueryRowContext(ctx, `SELECT plot_id FROM telegram_sessions WHERE user_id = ?`, userID).Scan(&plotID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return plotID, err
}

// SetActivePlot selects plotID for the user.
func (sr *SessionRepository) SetActivePlot(ctx context.Context, userID int64, plotID string) error {
	_, err := sr.db.ExecContext(ctx, `INSERT INTO telegram_sessions (user_id, plot_id, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET plot_id = excluded.plot_id, updated_at = excluded.updated_at`,
		userID, plotID, time.Now().UTC())
	return err
}
