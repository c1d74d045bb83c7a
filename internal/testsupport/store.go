package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"reel/internal/config"
	"reel/internal/store"
)

// NewRecordingID returns a fresh recording identifier.
func NewRecordingID(t testing.TB) string {
	t.Helper()
	return uuid.NewString()
}

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SaveRecording persists a synthetic recording for tests and returns its row.
func SaveRecording(t testing.TB, st *store.Store, name string, payload []byte, sampleRate, channels int) *store.Recording {
	t.Helper()

	rec := &store.Recording{
		ID:         NewRecordingID(t),
		Name:       name,
		CreatedAt:  time.Now().UTC(),
		SampleRate: sampleRate,
		Channels:   channels,
		Container:  "wav",
	}
	if err := st.SaveRecording(context.Background(), rec, payload); err != nil {
		t.Fatalf("store.SaveRecording: %v", err)
	}
	return rec
}
