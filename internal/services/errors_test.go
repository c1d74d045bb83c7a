package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"reel/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "transcode", "encode", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transcode", "encode", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "capture", "start", "no marker", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker for nil input, got %v", err)
	}
}

func TestRetryable(t *testing.T) {
	contention := services.Wrap(services.ErrStreamContention, "capture", "acquire", "busy", nil)
	if !services.Retryable(contention) {
		t.Fatalf("expected stream contention to be retryable")
	}

	platform := services.Wrap(services.ErrCapturePlatform, "capture", "acquire", "denied", nil)
	if services.Retryable(platform) {
		t.Fatalf("platform errors must not be retryable")
	}

	if services.Retryable(nil) {
		t.Fatalf("nil error must not be retryable")
	}
}

func TestUserHintDistinguishesRetryFromUnavailable(t *testing.T) {
	retry := services.UserHint(services.Wrap(services.ErrAcquisitionFailed, "capture", "acquire", "exhausted", nil))
	if !strings.Contains(retry, "try again") {
		t.Fatalf("expected retry guidance, got %q", retry)
	}

	unavailable := services.UserHint(services.Wrap(services.ErrCapturePlatform, "capture", "acquire", "denied", nil))
	if strings.Contains(unavailable, "try again") {
		t.Fatalf("platform errors must not suggest retrying, got %q", unavailable)
	}
	if unavailable == "" {
		t.Fatalf("expected guidance for platform errors")
	}

	if hint := services.UserHint(errors.New("unknown")); hint != "" {
		t.Fatalf("expected no hint for unclassified errors, got %q", hint)
	}
}

func TestContextRoundTrips(t *testing.T) {
	ctx := context.Background()

	if _, ok := services.SessionIDFromContext(ctx); ok {
		t.Fatal("expected empty context to carry no session id")
	}

	ctx = services.WithSessionID(ctx, "sess-1")
	ctx = services.WithRecordingID(ctx, "rec-9")
	ctx = services.WithRequestID(ctx, "req-42")

	if id, ok := services.SessionIDFromContext(ctx); !ok || id != "sess-1" {
		t.Fatalf("session id round trip failed: %q %v", id, ok)
	}
	if id, ok := services.RecordingIDFromContext(ctx); !ok || id != "rec-9" {
		t.Fatalf("recording id round trip failed: %q %v", id, ok)
	}
	if id, ok := services.RequestIDFromContext(ctx); !ok || id != "req-42" {
		t.Fatalf("request id round trip failed: %q %v", id, ok)
	}
}
