package store_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reel/internal/store"
	"reel/internal/testsupport"
)

func TestSaveAndReadRecording(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	payload := testsupport.SineWAV(t, 440, 0.25, 8000, 1)
	rec := &store.Recording{
		ID:              testsupport.NewRecordingID(t),
		Name:            "morning take",
		CreatedAt:       time.Now().UTC(),
		DurationSeconds: 0.25,
		SampleRate:      8000,
		Channels:        1,
		Container:       "wav",
	}
	if err := st.SaveRecording(ctx, rec, payload); err != nil {
		t.Fatalf("SaveRecording failed: %v", err)
	}
	if rec.SizeBytes != int64(len(payload)) {
		t.Fatalf("expected size %d, got %d", len(payload), rec.SizeBytes)
	}
	if rec.Compression != store.CompressionZstd {
		t.Fatalf("expected zstd compression by default, got %q", rec.Compression)
	}

	fetched, err := st.GetRecording(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecording failed: %v", err)
	}
	if fetched == nil || fetched.Name != "morning take" {
		t.Fatalf("unexpected fetched recording: %#v", fetched)
	}
	if fetched.SampleRate != 8000 || fetched.Channels != 1 {
		t.Fatalf("format not round-tripped: %#v", fetched)
	}

	got, err := st.ReadPayload(ctx, rec.ID)
	if err != nil {
		t.Fatalf("ReadPayload failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch after compression round-trip: %d vs %d bytes", len(got), len(payload))
	}
}

func TestSaveRecordingUncompressed(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithUncompressedPayloads())
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	payload := testsupport.SineWAV(t, 220, 0.1, 8000, 1)
	rec := testsupport.SaveRecording(t, st, "raw take", payload, 8000, 1)
	if rec.Compression != store.CompressionNone {
		t.Fatalf("expected no compression, got %q", rec.Compression)
	}

	// The blob on disk is the payload verbatim.
	blob, err := os.ReadFile(filepath.Join(cfg.Paths.RecordingsDir, rec.ID+".wav"))
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if !bytes.Equal(blob, payload) {
		t.Fatal("expected uncompressed blob to equal payload")
	}

	got, err := st.ReadPayload(ctx, rec.ID)
	if err != nil {
		t.Fatalf("ReadPayload failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("payload mismatch")
	}
}

func TestGetRecordingMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	rec, err := st.GetRecording(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("GetRecording failed: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil for missing recording, got %#v", rec)
	}

	if _, err := st.ReadPayload(context.Background(), "no-such-id"); !errors.Is(err, store.ErrRecordingNotFound) {
		t.Fatalf("expected ErrRecordingNotFound, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	payload := testsupport.SineWAV(t, 440, 0.05, 8000, 1)
	older := &store.Recording{
		ID:         testsupport.NewRecordingID(t),
		Name:       "older",
		CreatedAt:  time.Now().UTC().Add(-time.Hour),
		SampleRate: 8000,
		Channels:   1,
	}
	newer := &store.Recording{
		ID:         testsupport.NewRecordingID(t),
		Name:       "newer",
		CreatedAt:  time.Now().UTC(),
		SampleRate: 8000,
		Channels:   1,
	}
	if err := st.SaveRecording(ctx, older, payload); err != nil {
		t.Fatalf("SaveRecording failed: %v", err)
	}
	if err := st.SaveRecording(ctx, newer, payload); err != nil {
		t.Fatalf("SaveRecording failed: %v", err)
	}

	recordings, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(recordings) != 2 {
		t.Fatalf("expected 2 recordings, got %d", len(recordings))
	}
	if recordings[0].Name != "newer" || recordings[1].Name != "older" {
		t.Fatalf("expected newest first, got %s then %s", recordings[0].Name, recordings[1].Name)
	}
}

func TestRemoveDeletesRowAndBlob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	payload := testsupport.SineWAV(t, 440, 0.05, 8000, 1)
	rec := testsupport.SaveRecording(t, st, "doomed", payload, 8000, 1)

	blobPath := filepath.Join(cfg.Paths.RecordingsDir, rec.ID+".wav.zst")
	if _, err := os.Stat(blobPath); err != nil {
		t.Fatalf("expected payload blob on disk: %v", err)
	}

	removed, err := st.Remove(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !removed {
		t.Fatal("expected Remove to report the recording existed")
	}
	if _, err := os.Stat(blobPath); !os.IsNotExist(err) {
		t.Fatalf("expected blob removed, stat err=%v", err)
	}

	removed, err = st.Remove(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if removed {
		t.Fatal("expected second Remove to report missing")
	}
}

func TestRename(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	payload := testsupport.SineWAV(t, 440, 0.05, 8000, 1)
	rec := testsupport.SaveRecording(t, st, "draft", payload, 8000, 1)

	renamed, err := st.Rename(ctx, rec.ID, "final mix")
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if !renamed {
		t.Fatal("expected Rename to report the recording existed")
	}

	fetched, err := st.GetRecording(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecording failed: %v", err)
	}
	if fetched.Name != "final mix" {
		t.Fatalf("expected renamed recording, got %q", fetched.Name)
	}

	if renamed, _ := st.Rename(ctx, "no-such-id", "x"); renamed {
		t.Fatal("expected Rename of missing recording to report false")
	}
	if _, err := st.Rename(ctx, rec.ID, "   "); err == nil {
		t.Fatal("expected error for blank name")
	}
}

func TestActiveSessionRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	loaded, err := st.LoadActiveSession(ctx)
	if err != nil {
		t.Fatalf("LoadActiveSession failed: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected no active session, got %#v", loaded)
	}

	startedAt := time.Now().UTC().Truncate(time.Millisecond)
	sess := &store.ActiveSession{
		Target:     "alsa_output.monitor",
		StartedAt:  startedAt,
		SampleRate: 48000,
		Channels:   2,
	}
	if err := st.SaveActiveSession(ctx, sess); err != nil {
		t.Fatalf("SaveActiveSession failed: %v", err)
	}

	// Saving again overwrites the single row.
	sess.Target = "bluez_sink.monitor"
	if err := st.SaveActiveSession(ctx, sess); err != nil {
		t.Fatalf("SaveActiveSession overwrite failed: %v", err)
	}

	loaded, err = st.LoadActiveSession(ctx)
	if err != nil {
		t.Fatalf("LoadActiveSession failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected active session row")
	}
	if loaded.Target != "bluez_sink.monitor" || loaded.SampleRate != 48000 || loaded.Channels != 2 {
		t.Fatalf("unexpected session row: %#v", loaded)
	}
	if !loaded.StartedAt.Equal(startedAt) {
		t.Fatalf("started_at not round-tripped: %v vs %v", loaded.StartedAt, startedAt)
	}

	if err := st.ClearActiveSession(ctx); err != nil {
		t.Fatalf("ClearActiveSession failed: %v", err)
	}
	loaded, err = st.LoadActiveSession(ctx)
	if err != nil {
		t.Fatalf("LoadActiveSession failed: %v", err)
	}
	if loaded != nil {
		t.Fatal("expected session row cleared")
	}

	// Clearing an absent row succeeds.
	if err := st.ClearActiveSession(ctx); err != nil {
		t.Fatalf("ClearActiveSession on empty table failed: %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	payload := testsupport.SineWAV(t, 440, 0.05, 8000, 1)
	rec := testsupport.SaveRecording(t, st, "persistent", payload, 8000, 1)
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	st2, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open (reopen): %v", err)
	}
	defer st2.Close()

	fetched, err := st2.GetRecording(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetRecording failed: %v", err)
	}
	if fetched == nil || fetched.Name != "persistent" {
		t.Fatalf("expected recording to survive reopen, got %#v", fetched)
	}
}

func TestOpenReadOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	payload := testsupport.SineWAV(t, 440, 0.05, 8000, 1)
	rec := testsupport.SaveRecording(t, st, "shared", payload, 8000, 1)

	ro, err := store.OpenReadOnly(cfg)
	if err != nil {
		t.Fatalf("store.OpenReadOnly: %v", err)
	}
	defer ro.Close()

	recordings, err := ro.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(recordings) != 1 || recordings[0].ID != rec.ID {
		t.Fatalf("unexpected read-only listing: %#v", recordings)
	}

	got, err := ro.ReadPayload(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("ReadPayload failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("payload mismatch through read-only store")
	}

	// The writable handle keeps working alongside the read-only one.
	if err := st.SaveRecording(context.Background(), &store.Recording{ID: "x", SampleRate: 8000, Channels: 1}, payload); err != nil {
		t.Fatalf("SaveRecording alongside read-only handle failed: %v", err)
	}
	if _, err := ro.Rename(context.Background(), rec.ID, "nope"); !errors.Is(err, store.ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if err := ro.SaveActiveSession(context.Background(), &store.ActiveSession{Target: "t"}); !errors.Is(err, store.ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestOpenReadOnlyMissingDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	// No store.Open has run, so the database file does not exist.
	if _, err := store.OpenReadOnly(cfg); err == nil {
		t.Fatal("expected error when database file is missing")
	}
}

func TestSummarize(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	payload := testsupport.SineWAV(t, 440, 0.05, 8000, 1)
	testsupport.SaveRecording(t, st, "one", payload, 8000, 1)
	testsupport.SaveRecording(t, st, "two", payload, 8000, 1)

	stats, err := st.Summarize(context.Background())
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if stats.Recordings != 2 {
		t.Fatalf("expected 2 recordings, got %d", stats.Recordings)
	}
	if stats.TotalBytes != int64(2*len(payload)) {
		t.Fatalf("expected %d total bytes, got %d", 2*len(payload), stats.TotalBytes)
	}
}
