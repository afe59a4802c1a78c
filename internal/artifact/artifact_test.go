package artifact

import (
	"errors"
	"os"
	"testing"
)

func TestExtension(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"audio/mpeg", "mp3"},
		{"audio/mp3", "mp3"},
		{"audio/wav", "wav"},
		{"audio/x-wav", "wav"},
		{"audio/ogg", "ogg"},
		{"audio/ogg; codecs=opus", "ogg"},
		{"audio/webm", "webm"},
		{"audio/flac", "mp3"},
		{"", "mp3"},
	}

	for _, tt := range tests {
		if got := Extension(tt.mime); got != tt.want {
			t.Errorf("Extension(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}

func TestFormatLabel(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"audio/mpeg", "MP3"},
		{"audio/wav", "WAV"},
		{"audio/ogg", "OGG"},
		{"audio/webm", "Audio"},
		{"application/octet-stream", "Audio"},
	}

	for _, tt := range tests {
		if got := FormatLabel(tt.mime); got != tt.want {
			t.Errorf("FormatLabel(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}

func TestNew_DecodesTranscript(t *testing.T) {
	a := New([]byte("x"), "audio/wav", "It&#39;s fine")

	if !a.HasTranscript() {
		t.Fatal("Expected transcript")
	}
	if got := a.TranscriptLine(); got != `English: "It's fine"` {
		t.Errorf("Unexpected transcript line: %s", got)
	}

	if got := DecodeTranscript("Tom &amp; Jerry &quot;live&quot;"); got != `Tom & Jerry "live"` {
		t.Errorf("Unexpected decoding: %s", got)
	}
}

func TestNew_DefaultsMimeType(t *testing.T) {
	a := New([]byte("x"), "", "")
	if a.MimeType != DefaultMimeType {
		t.Errorf("Expected %s, got %s", DefaultMimeType, a.MimeType)
	}
	if a.HasTranscript() {
		t.Error("Expected no transcript")
	}
}

func TestFileStore_AcquireRelease(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	var changes []int
	store.OnChange(func(n int) { changes = append(changes, n) })

	h, err := store.Acquire([]byte("audio"), "audio/ogg")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if store.Live() != 1 {
		t.Errorf("Expected 1 live handle, got %d", store.Live())
	}

	data, err := os.ReadFile(h.Path)
	if err != nil || string(data) != "audio" {
		t.Errorf("Handle file content mismatch: %q, %v", data, err)
	}

	if err := store.Release(h); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if store.Live() != 0 {
		t.Errorf("Expected 0 live handles, got %d", store.Live())
	}
	if _, err := os.Stat(h.Path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected handle file removed, got %v", err)
	}

	if err := store.Release(h); !errors.Is(err, ErrHandleReleased) {
		t.Errorf("Expected ErrHandleReleased on double release, got %v", err)
	}

	if len(changes) != 2 || changes[0] != 1 || changes[1] != 0 {
		t.Errorf("Unexpected change notifications: %v", changes)
	}
}

func TestFileStore_CloseRemovesOwnedDir(t *testing.T) {
	store, err := NewFileStore("")
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if _, err := store.Acquire([]byte("a"), "audio/mpeg"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if store.Live() != 0 {
		t.Errorf("Expected no live handles after close, got %d", store.Live())
	}
	if _, err := os.Stat(store.dir); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected owned directory removed, got %v", err)
	}
}
