package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func writeStubBinary(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := writeStubBinary(t, binDir, "present")
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unconfigured", Command: "   "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatal("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatal("expected detail message for missing binary")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[2].Available {
		t.Fatal("expected unconfigured requirement to be unavailable")
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for unconfigured requirement: %s", results[2].Detail)
	}
}

func TestResolveFFmpegPathPrefersPATH(t *testing.T) {
	binDir := t.TempDir()
	stub := writeStubBinary(t, binDir, "ffmpeg")
	t.Setenv("PATH", binDir)

	if got := ResolveFFmpegPath("ffmpeg"); got != stub {
		t.Fatalf("expected resolved path %q, got %q", stub, got)
	}
	if got := ResolveFFmpegPath(""); got != stub {
		t.Fatalf("expected empty command to resolve default ffmpeg, got %q", got)
	}
}

func TestResolveFFmpegPathKeepsConfiguredWhenMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	configured := "/nonexistent/custom-ffmpeg"
	if got := ResolveFFmpegPath(configured); got != configured {
		t.Fatalf("expected configured command back, got %q", got)
	}
}
