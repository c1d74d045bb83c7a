package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reel/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDatabaseWritable_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "reel.db")
	result := CheckDatabaseWritable(path)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected database file to exist: %v", err)
	}
}

func TestCheckDatabaseWritable_Unconfigured(t *testing.T) {
	result := CheckDatabaseWritable("")
	if result.Passed {
		t.Fatal("expected failure for empty path")
	}
}

func TestCheckDatabaseWritable_ParentIsFile(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(parent, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDatabaseWritable(filepath.Join(parent, "reel.db"))
	if result.Passed {
		t.Fatal("expected failure when parent is a file")
	}
}

func writeFFmpegStub(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	script := "#!/bin/sh\ncase \"$1\" in\n-version) echo \"ffmpeg version 7.1.1\" ;;\nesac\nexit 0\n"
	if err := os.WriteFile(filepath.Join(dir, "ffmpeg"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestCheckFFmpeg_OK(t *testing.T) {
	t.Setenv("PATH", writeFFmpegStub(t))
	result := CheckFFmpeg(context.Background(), "ffmpeg")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "version 7.1.1") {
		t.Fatalf("expected version in detail, got: %s", result.Detail)
	}
}

func TestCheckFFmpeg_Missing(t *testing.T) {
	result := CheckFFmpeg(context.Background(), filepath.Join(t.TempDir(), "no-such-ffmpeg"))
	if result.Passed {
		t.Fatal("expected failure for missing binary")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())

	results := RunAll(context.Background(), cfg)
	// Three directories, database, ffmpeg.
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}

func TestCheckSystemDeps(t *testing.T) {
	t.Setenv("PATH", writeFFmpegStub(t))
	statuses := CheckSystemDeps(nil)
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].Name != "FFmpeg" || !statuses[0].Available {
		t.Fatalf("expected FFmpeg available, got %+v", statuses[0])
	}
	if statuses[1].Name != "PulseAudio CLI" || !statuses[1].Optional {
		t.Fatalf("expected optional pactl status, got %+v", statuses[1])
	}
	if statuses[1].Available {
		t.Fatal("expected pactl unavailable with stubbed PATH")
	}
}
