package ffmpeg_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"reel/internal/services/ffmpeg"
)

type stubExecutor struct {
	output    []byte
	err       error
	calls     int
	binaries  []string
	args      [][]string
	readSizes [][]int
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string, stdin io.Reader) ([]byte, error) {
	s.calls++
	s.binaries = append(s.binaries, binary)
	s.args = append(s.args, append([]string(nil), args...))
	var sizes []int
	if stdin != nil {
		buf := make([]byte, 64*1024)
		for {
			n, err := stdin.Read(buf)
			if n > 0 {
				sizes = append(sizes, n)
			}
			if err != nil {
				break
			}
		}
	}
	s.readSizes = append(s.readSizes, sizes)
	if s.err != nil {
		return nil, s.err
	}
	return s.output, nil
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := ffmpeg.New("   "); err == nil {
		t.Fatal("expected error for blank binary")
	}
}

func TestVersionParsesBanner(t *testing.T) {
	exec := &stubExecutor{output: []byte("ffmpeg version 6.1.1-3ubuntu5 Copyright (c) 2000-2023\nbuilt with gcc 13\n")}
	client, err := ffmpeg.New("ffmpeg", ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	version, err := client.Version(context.Background())
	if err != nil {
		t.Fatalf("Version returned error: %v", err)
	}
	if version != "6.1.1-3ubuntu5" {
		t.Fatalf("unexpected version %q", version)
	}
	if exec.calls != 1 || len(exec.args[0]) != 1 || exec.args[0][0] != "-version" {
		t.Fatalf("unexpected invocation: %v", exec.args)
	}
}

func TestVersionFallsBackToFirstLine(t *testing.T) {
	exec := &stubExecutor{output: []byte("custom build 42\nmore\n")}
	client, err := ffmpeg.New("ffmpeg", ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	version, err := client.Version(context.Background())
	if err != nil {
		t.Fatalf("Version returned error: %v", err)
	}
	if version != "custom build 42" {
		t.Fatalf("unexpected version %q", version)
	}
}

func TestVersionPropagatesExecutorError(t *testing.T) {
	exec := &stubExecutor{err: errors.New("missing binary")}
	client, err := ffmpeg.New("ffmpeg", ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.Version(context.Background()); err == nil {
		t.Fatal("expected executor error")
	}
}
