package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reel/internal/logs"
)

func writeLog(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func TestTailLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reel.log")
	writeLog(t, path, "a\nb\nc\n")

	lines, offset, err := logs.Tail(path, 2)
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != int64(len("a\nb\nc\n")) {
		t.Fatalf("offset = %d, want end of file", offset)
	}
}

func TestTailFewerLinesThanRequested(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reel.log")
	writeLog(t, path, "only\n")

	lines, _, err := logs.Tail(path, 50)
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(lines) != 1 || lines[0] != "only" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
}

func TestTailMissingFile(t *testing.T) {
	lines, offset, err := logs.Tail(filepath.Join(t.TempDir(), "reel.log"), 10)
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(lines) != 0 || offset != 0 {
		t.Fatalf("expected empty result, got %#v at %d", lines, offset)
	}
}

func TestFollowPicksUpAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reel.log")
	writeLog(t, path, "start\n")

	_, offset, err := logs.Tail(path, 1)
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	done := make(chan struct{})
	go func(offset int64) {
		defer close(done)
		lines, _, err := logs.Follow(context.Background(), path, offset, 5*time.Second)
		if err != nil {
			t.Errorf("follow error: %v", err)
		}
		if len(lines) != 1 || lines[0] != "later" {
			t.Errorf("unexpected follow lines: %#v", lines)
		}
	}(offset)

	time.Sleep(100 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("follow did not return")
	}
}

func TestFollowRestartsAfterLogRelink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reel.log")
	writeLog(t, path, "old run line one\nold run line two\n")

	_, offset, err := logs.Tail(path, 10)
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	// A daemon restart replaces the file with a shorter fresh log.
	writeLog(t, path, "fresh\n")

	lines, next, err := logs.Follow(context.Background(), path, offset, time.Second)
	if err != nil {
		t.Fatalf("follow after relink: %v", err)
	}
	if len(lines) != 1 || lines[0] != "fresh" {
		t.Fatalf("expected the new run's line from the top, got %#v", lines)
	}
	if next != int64(len("fresh\n")) {
		t.Fatalf("offset = %d, want end of new file", next)
	}
}

func TestFollowHonorsCancellation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reel.log")
	writeLog(t, path, "quiet\n")

	_, offset, err := logs.Tail(path, 1)
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, _, err = logs.Follow(ctx, path, offset, time.Minute)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
