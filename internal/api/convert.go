package api

import (
	"strings"
	"time"

	"reel/internal/capture"
	"reel/internal/deps"
	"reel/internal/store"
	"reel/internal/transcode"
)

// FromRecording converts a store record to its API representation.
func FromRecording(rec *store.Recording) Recording {
	if rec == nil {
		return Recording{}
	}
	dto := Recording{
		ID:              rec.ID,
		Name:            rec.Name,
		DurationSeconds: rec.DurationSeconds,
		SampleRate:      rec.SampleRate,
		Channels:        rec.Channels,
		Container:       rec.Container,
		SizeBytes:       rec.SizeBytes,
		Compression:     rec.Compression,
	}
	if !rec.CreatedAt.IsZero() {
		dto.CreatedAt = rec.CreatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromRecordings converts a slice of store records into API DTOs.
func FromRecordings(recs []*store.Recording) []Recording {
	if len(recs) == 0 {
		return nil
	}
	out := make([]Recording, 0, len(recs))
	for _, rec := range recs {
		out = append(out, FromRecording(rec))
	}
	return out
}

// FromStateSnapshot converts the coordinator's reconciled state to API payload.
func FromStateSnapshot(snap capture.StateSnapshot) CaptureState {
	state := CaptureState{
		Capturing:        snap.Capturing,
		HasBufferedAudio: snap.HasBufferedAudio,
		Target:           snap.Target,
		ElapsedSeconds:   snap.ElapsedSeconds,
	}
	if !snap.StartedAt.IsZero() {
		state.StartedAt = snap.StartedAt.UTC().Format(dateTimeFormat)
	}
	return state
}

// FromMeterFrame converts a live meter frame to API payload.
func FromMeterFrame(frame capture.MeterFrame) MeterFrame {
	return MeterFrame{
		Channels:       frame.Channels,
		Peak:           frame.Peak,
		RMS:            frame.RMS,
		ElapsedSeconds: frame.Elapsed,
	}
}

// FromDependencyStatuses converts dependency check results, deriving a
// severity of ok, warn, or error per entry.
func FromDependencyStatuses(statuses []deps.Status) []DependencyStatus {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]DependencyStatus, 0, len(statuses))
	for _, status := range statuses {
		severity := "ok"
		if !status.Available {
			severity = "error"
			if status.Optional {
				severity = "warn"
			}
		}
		out = append(out, DependencyStatus{
			Name:        status.Name,
			Command:     status.Command,
			Description: status.Description,
			Optional:    status.Optional,
			Available:   status.Available,
			Detail:      status.Detail,
			Severity:    severity,
		})
	}
	return out
}

// ToTranscodeRequest maps the wire request onto the engine's request
// type. A crop window is attached only when either bound is set.
func (r ExportRequest) ToTranscodeRequest() transcode.Request {
	req := transcode.Request{
		Container:  strings.ToLower(strings.TrimSpace(r.Container)),
		SampleRate: r.SampleRate,
		Channels:   r.Channels,
		BitDepth:   r.BitDepth,
		Normalize:  r.Normalize,
	}
	if r.CropStartSeconds > 0 || r.CropEndSeconds > 0 {
		req.Crop = &transcode.CropRange{
			StartSeconds: r.CropStartSeconds,
			EndSeconds:   r.CropEndSeconds,
		}
	}
	return req
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
