package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveActiveSession upserts the single active-session row. It is
// written once per capture, when the worker acks.
func (s *Store) SaveActiveSession(ctx context.Context, sess *ActiveSession) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if sess == nil {
		return errors.New("nil session")
	}
	return s.execWithoutResultRetry(
		ctx,
		`INSERT INTO active_session (id, target, started_at, sample_rate, channels)
         VALUES (1, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
            target = excluded.target,
            started_at = excluded.started_at,
            sample_rate = excluded.sample_rate,
            channels = excluded.channels`,
		sess.Target,
		sess.StartedAt.UTC().Format(time.RFC3339Nano),
		sess.SampleRate,
		sess.Channels,
	)
}

// LoadActiveSession returns the active-session row, or nil when no
// capture was running.
func (s *Store) LoadActiveSession(ctx context.Context) (*ActiveSession, error) {
	var (
		target     string
		startedRaw string
		sampleRate int
		channels   int
	)
	err := s.db.QueryRowContext(
		ctx,
		"SELECT target, started_at, sample_rate, channels FROM active_session WHERE id = 1",
	).Scan(&target, &startedRaw, &sampleRate, &channels)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active session: %w", err)
	}

	sess := &ActiveSession{
		Target:     target,
		SampleRate: sampleRate,
		Channels:   channels,
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		sess.StartedAt = started
	}
	return sess, nil
}

// ClearActiveSession removes the active-session row. Clearing an
// absent row is not an error.
func (s *Store) ClearActiveSession(ctx context.Context) error {
	if s.readOnly {
		return ErrReadOnly
	}
	return s.execWithoutResultRetry(ctx, "DELETE FROM active_session WHERE id = 1")
}
