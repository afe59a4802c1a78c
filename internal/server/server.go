// Package server exposes a session over a small HTTP control API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/audiolibrelab/speaktranslate/internal/audio"
	"github.com/audiolibrelab/speaktranslate/internal/session"
)

// Session is the part of the controller the server drives.
type Session interface {
	Start(ctx context.Context) error
	Stop() error
	Close()
	Play() error
	Download() (string, error)
	Snapshot() session.Snapshot
	SetLanguages(source, target string) error
	Languages() (string, string)
}

// Server represents the web server controlling a translation session
type Server struct {
	session Session
	metrics http.Handler
	addr    string

	// request context for capture; reset when the server stops
	baseCtx context.Context
}

// StatusResponse represents the JSON response for status endpoint
type StatusResponse struct {
	State             string `json:"state"`
	Status            string `json:"status"`
	StartEnabled      bool   `json:"start_enabled"`
	StopEnabled       bool   `json:"stop_enabled"`
	PlaybackVisible   bool   `json:"playback_visible"`
	AudioURL          string `json:"audio_url,omitempty"`
	TranscriptVisible bool   `json:"transcript_visible"`
	Transcript        string `json:"transcript,omitempty"`
	DownloadVisible   bool   `json:"download_visible"`
	DownloadLabel     string `json:"download_label,omitempty"`
	SourceLang        string `json:"source_lang"`
	TargetLang        string `json:"target_lang"`
}

// New creates a new web server instance. metrics may be nil.
func New(s Session, metrics http.Handler, addr string) *Server {
	return &Server{
		session: s,
		metrics: metrics,
		addr:    addr,
		baseCtx: context.Background(),
	}
}

// Handler returns the routes of the control API
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/record", s.handleRecord)
	mux.HandleFunc("/stop", s.handleStop)
	mux.HandleFunc("/close", s.handleClose)
	mux.HandleFunc("/play", s.handlePlay)
	mux.HandleFunc("/download", s.handleDownload)
	mux.HandleFunc("/languages", s.handleLanguages)
	mux.HandleFunc("/audio", s.handleAudio)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Server shutdown", "error", err)
		}
	}()

	slog.Info("Starting speaktranslate control server",
		"address", s.addr,
		"local_url", fmt.Sprintf("http://%s%s", getLocalIP(), portOf(s.addr)))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleIndex lists the endpoints
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"endpoints": []string{
			"GET /status", "POST /record", "POST /stop", "POST /close", "POST /play",
			"POST /download", "POST /languages", "GET /audio", "GET /metrics",
		},
	})
}

// handleStatus returns the derived UI state
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	s.writeStatus(w, http.StatusOK)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	// capture outlives the request
	if err := s.session.Start(s.baseCtx); err != nil {
		s.sendErrorResponse(w, statusFor(err), fmt.Sprintf("Failed to start recording: %v", err), "operation", "record")
		return
	}
	s.writeStatus(w, http.StatusOK)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.session.Stop(); err != nil {
		s.sendErrorResponse(w, statusFor(err), fmt.Sprintf("Failed to stop recording: %v", err), "operation", "stop")
		return
	}
	s.writeStatus(w, http.StatusAccepted)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	s.session.Close()
	s.writeStatus(w, http.StatusOK)
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.session.Play(); err != nil {
		s.sendErrorResponse(w, statusFor(err), fmt.Sprintf("Failed to play: %v", err), "operation", "play")
		return
	}
	s.writeStatus(w, http.StatusOK)
}

// handleDownload saves the current translation on the server side
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	path, err := s.session.Download()
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError, fmt.Sprintf("Download failed: %v", err), "operation", "download")
		return
	}
	if path == "" {
		s.sendErrorResponse(w, http.StatusNotFound, "No translation to download", "operation", "download")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"path":    path,
	})
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Invalid form data", "error", err)
		return
	}
	if err := s.session.SetLanguages(r.FormValue("source_lang"), r.FormValue("target_lang")); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, err.Error(), "operation", "languages")
		return
	}
	s.writeStatus(w, http.StatusOK)
}

// handleAudio streams the current translation
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	snap := s.session.Snapshot()
	if !snap.PlaybackVisible || snap.PlaybackSource == "" {
		http.Error(w, "No translation loaded", http.StatusNotFound)
		return
	}

	file, err := os.Open(snap.PlaybackSource)
	if err != nil {
		// released between the snapshot and the open
		http.Error(w, "No translation loaded", http.StatusNotFound)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		http.Error(w, "Error accessing file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", snap.PlaybackMimeType)
	w.Header().Set("Cache-Control", "no-cache")

	http.ServeContent(w, r, filepath.Base(snap.PlaybackSource), info.ModTime(), file)
}

func (s *Server) writeStatus(w http.ResponseWriter, code int) {
	snap := s.session.Snapshot()
	source, target := s.session.Languages()

	response := StatusResponse{
		State:             string(snap.State),
		Status:            snap.Status,
		StartEnabled:      snap.StartEnabled,
		StopEnabled:       snap.StopEnabled,
		PlaybackVisible:   snap.PlaybackVisible,
		TranscriptVisible: snap.TranscriptVisible,
		Transcript:        snap.Transcript,
		DownloadVisible:   snap.DownloadVisible,
		DownloadLabel:     snap.DownloadLabel,
		SourceLang:        source,
		TargetLang:        target,
	}
	if snap.PlaybackVisible {
		response.AudioURL = "/audio"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   "Method not allowed",
	})
	return false
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, audio.ErrCaptureAccessDenied):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// sendErrorResponse logs the error and sends a JSON error response to the client
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   errorMsg,
	})
}

func portOf(addr string) string {
	if _, port, err := net.SplitHostPort(addr); err == nil {
		return ":" + port
	}
	return ""
}

func getLocalIP() string {
	// Try to connect to a remote address to determine local IP
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
