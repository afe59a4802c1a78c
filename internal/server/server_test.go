package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/audiolibrelab/speaktranslate/internal/audio"
	"github.com/audiolibrelab/speaktranslate/internal/session"
)

type fakeSession struct {
	snap     session.Snapshot
	startErr error
	stopErr  error
	download string
	source   string
	target   string
	closed   int
	plays    int
}

func (f *fakeSession) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.snap.State = session.StateRecording
	return nil
}

func (f *fakeSession) Stop() error {
	if f.stopErr != nil {
		return f.stopErr
	}
	f.snap.State = session.StateProcessing
	return nil
}

func (f *fakeSession) Close() { f.closed++ }

func (f *fakeSession) Play() error {
	f.plays++
	return nil
}

func (f *fakeSession) Download() (string, error)   { return f.download, nil }
func (f *fakeSession) Snapshot() session.Snapshot  { return f.snap }
func (f *fakeSession) Languages() (string, string) { return f.source, f.target }

func (f *fakeSession) SetLanguages(source, target string) error {
	if source == "" || target == "" {
		return fmt.Errorf("source and target languages are required")
	}
	f.source, f.target = source, target
	return nil
}

func decodeStatus(t *testing.T, body io.Reader) StatusResponse {
	t.Helper()
	var resp StatusResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return resp
}

func TestStatus(t *testing.T) {
	fs := &fakeSession{
		snap: session.Snapshot{
			State:             session.StateReady,
			Status:            session.StatusComplete,
			StartEnabled:      true,
			PlaybackVisible:   true,
			PlaybackSource:    "/tmp/x.mp3",
			TranscriptVisible: true,
			Transcript:        `English: "It's fine"`,
			DownloadVisible:   true,
			DownloadLabel:     "Download MP3",
		},
		source: "en",
		target: "es",
	}
	srv := httptest.NewServer(New(fs, nil, "").Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	status := decodeStatus(t, resp.Body)
	if status.State != "ready" || status.Status != session.StatusComplete {
		t.Errorf("state %q status %q", status.State, status.Status)
	}
	if status.AudioURL != "/audio" || status.DownloadLabel != "Download MP3" {
		t.Errorf("unexpected response: %+v", status)
	}
	if status.SourceLang != "en" || status.TargetLang != "es" {
		t.Errorf("languages = %s -> %s", status.SourceLang, status.TargetLang)
	}
}

func TestRecordAndStop(t *testing.T) {
	fs := &fakeSession{}
	srv := httptest.NewServer(New(fs, nil, "").Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/record", "", nil)
	if err != nil {
		t.Fatalf("POST /record: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || fs.snap.State != session.StateRecording {
		t.Errorf("record: code %d state %s", resp.StatusCode, fs.snap.State)
	}

	resp, err = http.Post(srv.URL+"/stop", "", nil)
	if err != nil {
		t.Fatalf("POST /stop: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted || fs.snap.State != session.StateProcessing {
		t.Errorf("stop: code %d state %s", resp.StatusCode, fs.snap.State)
	}
}

func TestErrorStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid state", fmt.Errorf("busy: %w", session.ErrInvalidState), http.StatusConflict},
		{"capture denied", fmt.Errorf("%w: no mic", audio.ErrCaptureAccessDenied), http.StatusForbidden},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeSession{startErr: tt.err}
			srv := httptest.NewServer(New(fs, nil, "").Handler())
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/record", "", nil)
			if err != nil {
				t.Fatalf("POST /record: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("code = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := httptest.NewServer(New(&fakeSession{}, nil, "").Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/record")
	if err != nil {
		t.Fatalf("GET /record: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("code = %d, want 405", resp.StatusCode)
	}
}

func TestLanguages(t *testing.T) {
	fs := &fakeSession{source: "en", target: "es"}
	srv := httptest.NewServer(New(fs, nil, "").Handler())
	defer srv.Close()

	resp, err := http.PostForm(srv.URL+"/languages", url.Values{"source_lang": {"de"}, "target_lang": {"fr"}})
	if err != nil {
		t.Fatalf("POST /languages: %v", err)
	}
	status := decodeStatus(t, resp.Body)
	resp.Body.Close()
	if status.SourceLang != "de" || status.TargetLang != "fr" {
		t.Errorf("languages = %s -> %s", status.SourceLang, status.TargetLang)
	}

	resp, err = http.PostForm(srv.URL+"/languages", url.Values{"source_lang": {"de"}})
	if err != nil {
		t.Fatalf("POST /languages: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing target code = %d, want 400", resp.StatusCode)
	}
}

func TestDownloadAndClose(t *testing.T) {
	fs := &fakeSession{}
	srv := httptest.NewServer(New(fs, nil, "").Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/download", "", nil)
	if err != nil {
		t.Fatalf("POST /download: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("download without artifact = %d, want 404", resp.StatusCode)
	}

	fs.download = "/home/u/Downloads/translated-audio-1.mp3"
	resp, err = http.Post(srv.URL+"/download", "", nil)
	if err != nil {
		t.Fatalf("POST /download: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "translated-audio-1.mp3") {
		t.Errorf("download body = %s", body)
	}

	resp, err = http.Post(srv.URL+"/close", "", nil)
	if err != nil {
		t.Fatalf("POST /close: %v", err)
	}
	resp.Body.Close()
	if fs.closed != 1 {
		t.Errorf("Close called %d times, want 1", fs.closed)
	}
}

func TestAudio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abc.ogg")
	if err := os.WriteFile(path, []byte("OggS"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	fs := &fakeSession{}
	srv := httptest.NewServer(New(fs, nil, "").Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/audio")
	if err != nil {
		t.Fatalf("GET /audio: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("audio without artifact = %d, want 404", resp.StatusCode)
	}

	fs.snap.PlaybackVisible = true
	fs.snap.PlaybackSource = path
	fs.snap.PlaybackMimeType = "audio/ogg"
	resp, err = http.Get(srv.URL + "/audio")
	if err != nil {
		t.Fatalf("GET /audio: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "OggS" {
		t.Errorf("audio body = %q", body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "audio/ogg") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "speaktranslate_up 1\n")
	})
	srv := httptest.NewServer(New(&fakeSession{}, metrics, "").Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "speaktranslate_up") {
		t.Errorf("metrics body = %s", body)
	}
}
