package transcode_test

import (
	"errors"
	"testing"

	"reel/internal/services"
	"reel/internal/transcode"
)

func TestSniffContainer(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"wav", []byte("RIFF\x24\x00\x00\x00WAVEfmt "), transcode.ContainerWAV},
		{"ogg", []byte("OggS\x00\x02rest-of-page"), transcode.ContainerOGG},
		{"mp3 id3", []byte("ID3\x04\x00tag-data"), transcode.ContainerMP3},
		{"mp3 sync", []byte{0xFF, 0xFB, 0x90, 0x00}, transcode.ContainerMP3},
	}
	for _, tc := range cases {
		got, err := transcode.SniffContainer(tc.data)
		if err != nil {
			t.Fatalf("%s: SniffContainer returned error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestSniffContainerRejectsUnknownData(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("x"), []byte("hello world"), []byte("RIFFxxxxAVI ")} {
		if _, err := transcode.SniffContainer(data); !errors.Is(err, services.ErrUnsupportedContainer) {
			t.Fatalf("expected unsupported container for %q, got %v", data, err)
		}
	}
}

func TestRequestValidate(t *testing.T) {
	cases := []struct {
		name    string
		req     transcode.Request
		wantErr error
	}{
		{"empty request", transcode.Request{}, nil},
		{"wav", transcode.Request{Container: "wav", BitDepth: 24}, nil},
		{"mp3", transcode.Request{Container: "mp3", SampleRate: 44100, Channels: 2}, nil},
		{"unknown container", transcode.Request{Container: "flac"}, services.ErrUnsupportedContainer},
		{"bad depth", transcode.Request{BitDepth: 12}, services.ErrUnsupportedBitDepth},
		{"low rate", transcode.Request{SampleRate: 4000}, services.ErrValidation},
		{"high rate", transcode.Request{SampleRate: 400000}, services.ErrValidation},
		{"surround", transcode.Request{Channels: 6}, services.ErrUnsupportedChannelLayout},
		{"negative channels", transcode.Request{Channels: -1}, services.ErrUnsupportedChannelLayout},
	}
	for _, tc := range cases {
		err := tc.req.Validate()
		if tc.wantErr == nil {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tc.name, err)
			}
			continue
		}
		if !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.wantErr)
		}
	}
}
