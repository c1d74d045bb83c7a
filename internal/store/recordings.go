package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reel/internal/fileutil"
)

// ErrRecordingNotFound marks lookups for recordings that do not exist.
var ErrRecordingNotFound = errors.New("recording not found")

// ErrReadOnly marks writes attempted on a read-only store.
var ErrReadOnly = errors.New("store is read-only")

const recordingColumns = "id, name, created_at, duration_seconds, sample_rate, channels, container, size_bytes, compression"

// SaveRecording persists a finished capture: the payload blob is
// written to the recordings directory, then the metadata row is
// inserted. This is the single durable write of a capture session.
func (s *Store) SaveRecording(ctx context.Context, rec *Recording, payload []byte) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.Container == "" {
		rec.Container = "wav"
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.SizeBytes = int64(len(payload))

	blob := payload
	rec.Compression = CompressionNone
	if s.compress {
		rec.Compression = CompressionZstd
		blob = s.enc.EncodeAll(payload, make([]byte, 0, len(payload)/2))
	}

	payloadName := rec.ID + "." + rec.Container
	if rec.Compression == CompressionZstd {
		payloadName += ".zst"
	}
	payloadPath := filepath.Join(s.recordingsDir, payloadName)
	if err := fileutil.WriteFileAtomic(payloadPath, blob, 0o644); err != nil {
		return fmt.Errorf("write payload blob: %w", err)
	}

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO recordings (
            id, name, created_at, duration_seconds, sample_rate, channels,
            container, size_bytes, compression, payload_path
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Name,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.DurationSeconds,
		rec.SampleRate,
		rec.Channels,
		rec.Container,
		rec.SizeBytes,
		rec.Compression,
		payloadName,
	)
	if err != nil {
		_ = os.Remove(payloadPath)
		return fmt.Errorf("insert recording: %w", err)
	}
	return nil
}

// GetRecording returns the metadata row for id, or nil when absent.
func (s *Store) GetRecording(ctx context.Context, id string) (*Recording, error) {
	row := s.db.QueryRowContext(
		ctx,
		"SELECT "+recordingColumns+" FROM recordings WHERE id = ?",
		id,
	)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// ReadPayload returns the decoded payload bytes for id, transparently
// decompressing stored blobs.
func (s *Store) ReadPayload(ctx context.Context, id string) ([]byte, error) {
	var (
		payloadName string
		compression string
	)
	err := s.db.QueryRowContext(
		ctx,
		"SELECT payload_path, compression FROM recordings WHERE id = ?",
		id,
	).Scan(&payloadName, &compression)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRecordingNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("look up payload: %w", err)
	}

	blob, err := os.ReadFile(filepath.Join(s.recordingsDir, payloadName))
	if err != nil {
		return nil, fmt.Errorf("read payload blob: %w", err)
	}
	if compression == CompressionZstd {
		payload, err := s.dec.DecodeAll(blob, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress payload: %w", err)
		}
		return payload, nil
	}
	return blob, nil
}

// List returns all recordings, newest first.
func (s *Store) List(ctx context.Context) ([]*Recording, error) {
	rows, err := s.db.QueryContext(
		ctx,
		"SELECT "+recordingColumns+" FROM recordings ORDER BY created_at DESC, id",
	)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var recordings []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recordings = append(recordings, rec)
	}
	return recordings, rows.Err()
}

// Remove deletes the metadata row and payload blob for id, reporting
// whether the recording existed.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	if s.readOnly {
		return false, ErrReadOnly
	}
	var payloadName string
	err := s.db.QueryRowContext(ctx, "SELECT payload_path FROM recordings WHERE id = ?", id).Scan(&payloadName)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up recording: %w", err)
	}

	res, err := s.execWithRetry(ctx, "DELETE FROM recordings WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete recording: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if removeErr := os.Remove(filepath.Join(s.recordingsDir, payloadName)); removeErr != nil && !os.IsNotExist(removeErr) {
		return affected > 0, fmt.Errorf("remove payload blob: %w", removeErr)
	}
	return affected > 0, nil
}

// Rename updates the display name for id, reporting whether the
// recording existed.
func (s *Store) Rename(ctx context.Context, id, name string) (bool, error) {
	if s.readOnly {
		return false, ErrReadOnly
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return false, errors.New("recording name required")
	}
	res, err := s.execWithRetry(ctx, "UPDATE recordings SET name = ? WHERE id = ?", name, id)
	if err != nil {
		return false, fmt.Errorf("rename recording: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Stats summarizes the recordings table for status displays.
type Stats struct {
	Recordings int
	TotalBytes int64
}

// Summarize returns recording counts and cumulative payload size.
func (s *Store) Summarize(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(
		ctx,
		"SELECT COUNT(1), COALESCE(SUM(size_bytes), 0) FROM recordings",
	).Scan(&stats.Recordings, &stats.TotalBytes)
	if err != nil {
		return Stats{}, fmt.Errorf("summarize recordings: %w", err)
	}
	return stats, nil
}

func scanRecording(scanner interface{ Scan(dest ...any) error }) (*Recording, error) {
	var (
		id          string
		name        sql.NullString
		createdRaw  sql.NullString
		duration    sql.NullFloat64
		sampleRate  int
		channels    int
		container   sql.NullString
		sizeBytes   sql.NullInt64
		compression sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&name,
		&createdRaw,
		&duration,
		&sampleRate,
		&channels,
		&container,
		&sizeBytes,
		&compression,
	); err != nil {
		return nil, err
	}

	rec := &Recording{
		ID:              id,
		Name:            name.String,
		DurationSeconds: duration.Float64,
		SampleRate:      sampleRate,
		Channels:        channels,
		Container:       container.String,
		SizeBytes:       sizeBytes.Int64,
		Compression:     compression.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		rec.CreatedAt = created
	}
	return rec, nil
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
