package api

import (
	"testing"
	"time"

	"reel/internal/capture"
	"reel/internal/deps"
	"reel/internal/store"
)

func TestFromRecordingFormatsTimestamp(t *testing.T) {
	rec := &store.Recording{
		ID:              "rec-1",
		Name:            "morning take",
		CreatedAt:       time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		DurationSeconds: 12.5,
		SampleRate:      48000,
		Channels:        2,
		Container:       "wav",
		SizeBytes:       2400044,
		Compression:     store.CompressionZstd,
	}

	dto := FromRecording(rec)
	if dto.CreatedAt != "2026-03-01T10:30:00.000Z" {
		t.Fatalf("CreatedAt = %q, want 2026-03-01T10:30:00.000Z", dto.CreatedAt)
	}
	if dto.Name != "morning take" || dto.DurationSeconds != 12.5 {
		t.Fatalf("unexpected DTO: %#v", dto)
	}
	if dto.SizeBytes != 2400044 {
		t.Fatalf("SizeBytes = %d, want 2400044", dto.SizeBytes)
	}
}

func TestFromRecordingZeroValues(t *testing.T) {
	if dto := FromRecording(nil); dto != (Recording{}) {
		t.Fatalf("expected empty DTO for nil record, got %#v", dto)
	}
	dto := FromRecording(&store.Recording{ID: "rec-2"})
	if dto.CreatedAt != "" {
		t.Fatalf("expected empty CreatedAt for zero time, got %q", dto.CreatedAt)
	}
}

func TestFromStateSnapshot(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	state := FromStateSnapshot(capture.StateSnapshot{
		Capturing:        true,
		HasBufferedAudio: true,
		Target:           "bluez_sink.monitor",
		StartedAt:        started,
		ElapsedSeconds:   4.2,
	})
	if !state.Capturing || !state.HasBufferedAudio {
		t.Fatalf("unexpected state flags: %#v", state)
	}
	if state.StartedAt != "2026-03-01T10:00:00.000Z" {
		t.Fatalf("StartedAt = %q", state.StartedAt)
	}
	if state.ElapsedSeconds != 4.2 {
		t.Fatalf("ElapsedSeconds = %v, want 4.2", state.ElapsedSeconds)
	}

	idle := FromStateSnapshot(capture.StateSnapshot{})
	if idle.Capturing || idle.StartedAt != "" {
		t.Fatalf("unexpected idle state: %#v", idle)
	}
}

func TestFromMeterFrame(t *testing.T) {
	frame := FromMeterFrame(capture.MeterFrame{
		Channels: 2,
		Peak:     [2]float64{0.5, 0.25},
		RMS:      [2]float64{0.4, 0.2},
		Elapsed:  1.5,
	})
	if frame.Channels != 2 || frame.Peak[1] != 0.25 || frame.ElapsedSeconds != 1.5 {
		t.Fatalf("unexpected meter frame: %#v", frame)
	}
}

func TestFromDependencyStatusesSeverity(t *testing.T) {
	statuses := FromDependencyStatuses([]deps.Status{
		{Requirement: deps.Requirement{Name: "FFmpeg"}, Available: true},
		{Requirement: deps.Requirement{Name: "FFmpeg"}, Available: false, Detail: "not found"},
		{Requirement: deps.Requirement{Name: "pactl", Optional: true}, Available: false},
	})
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	for i, want := range []string{"ok", "error", "warn"} {
		if statuses[i].Severity != want {
			t.Fatalf("statuses[%d].Severity = %q, want %q", i, statuses[i].Severity, want)
		}
	}
	if FromDependencyStatuses(nil) != nil {
		t.Fatal("expected nil output for nil input")
	}
}

func TestExportRequestToTranscodeRequest(t *testing.T) {
	req := ExportRequest{
		Container:        " MP3 ",
		SampleRate:       48000,
		Channels:         2,
		CropStartSeconds: 1.5,
	}.ToTranscodeRequest()
	if req.Container != "mp3" {
		t.Fatalf("Container = %q, want %q", req.Container, "mp3")
	}
	if req.Crop == nil || req.Crop.StartSeconds != 1.5 || req.Crop.EndSeconds != 0 {
		t.Fatalf("unexpected crop window: %#v", req.Crop)
	}

	passthrough := ExportRequest{}.ToTranscodeRequest()
	if passthrough.Container != "" || passthrough.Crop != nil {
		t.Fatalf("expected zero request, got %#v", passthrough)
	}
}
