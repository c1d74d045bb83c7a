package api

import (
	"context"

	"reel/internal/store"
)

// RecordingsReader abstracts store reads needed for API queries.
type RecordingsReader interface {
	List(ctx context.Context) ([]*store.Recording, error)
	GetRecording(ctx context.Context, id string) (*store.Recording, error)
	Summarize(ctx context.Context) (store.Stats, error)
}

// RecordingsService exposes read-only recording queries returning API DTOs.
type RecordingsService struct {
	store RecordingsReader
}

// NewRecordingsService constructs a RecordingsService around the provided reader.
func NewRecordingsService(store RecordingsReader) *RecordingsService {
	if store == nil {
		return nil
	}
	return &RecordingsService{store: store}
}

// List returns all recordings, newest first.
func (s *RecordingsService) List(ctx context.Context) ([]Recording, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return FromRecordings(recs), nil
}

// Describe fetches a single recording. Missing IDs return (nil, nil).
func (s *RecordingsService) Describe(ctx context.Context, id string) (*Recording, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	rec, err := s.store.GetRecording(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	dto := FromRecording(rec)
	return &dto, nil
}

// Summary returns recording counts and cumulative payload size.
func (s *RecordingsService) Summary(ctx context.Context) (StoreSummary, error) {
	if s == nil || s.store == nil {
		return StoreSummary{}, nil
	}
	stats, err := s.store.Summarize(ctx)
	if err != nil {
		return StoreSummary{}, err
	}
	return StoreSummary{Recordings: stats.Recordings, TotalBytes: stats.TotalBytes}, nil
}
