// Package session implements the recording, translation and playback
// lifecycle on top of a capture device, a translator and a player.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/audiolibrelab/speaktranslate/internal/artifact"
	"github.com/audiolibrelab/speaktranslate/internal/audio"
	"github.com/audiolibrelab/speaktranslate/internal/metrics"
	"github.com/audiolibrelab/speaktranslate/internal/translate"
)

// Translator submits a recording for translation.
type Translator interface {
	Translate(ctx context.Context, req *translate.Request) (*translate.Response, error)
}

// Player is the playback element.
type Player interface {
	Load(path string) error
	Play() error
	Pause()
	Clear()
}

// Options configures a controller.
type Options struct {
	SourceLang  string
	TargetLang  string
	DownloadDir string
	Autoplay    bool

	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Controller owns the session state. It is safe for concurrent use; device
// callbacks arrive on the device's goroutine.
type Controller struct {
	device     audio.Device
	translator Translator
	store      artifact.Store
	player     Player
	view       View
	opts       Options

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	snap      Snapshot
	opening   bool

	// finalizing is set once the device's finalize callback owns the recording
	finalizing bool
	recording bytes.Buffer
	current   *artifact.Artifact

	// generation changes when a pending translation must be discarded
	generation uint64
	pending    chan struct{}
}

// New creates a controller in the idle state and renders the initial view.
func New(device audio.Device, translator Translator, store artifact.Store, player Player, view View, opts Options) *Controller {
	if view == nil {
		view = NopView{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		device:     device,
		translator: translator,
		store:      store,
		player:     player,
		view:       view,
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
	}

	c.mu.Lock()
	c.snap.State = StateIdle
	c.setStatus(StatusReady)
	c.setControls(true, false)
	c.mu.Unlock()

	return c
}

// Start opens the capture device and begins recording.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.opening || (c.snap.State != StateIdle && c.snap.State != StateReady) {
		state := c.snap.State
		c.mu.Unlock()
		return fmt.Errorf("cannot start recording in %s state: %w", state, ErrInvalidState)
	}
	c.opening = true
	c.setControls(false, false)
	c.mu.Unlock()

	// Open may block on the capture permission
	err := c.device.Open(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.opening = false

	if err == nil {
		c.recording.Reset()
		c.device.OnData(c.handleData)
		c.device.OnStop(c.handleFinalize)
		err = c.device.Start()
	}
	if err != nil {
		if !errors.Is(err, audio.ErrCaptureAccessDenied) {
			err = fmt.Errorf("%w: %w", audio.ErrCaptureAccessDenied, err)
		}
		c.opts.Metrics.CaptureFailed()
		slog.Error("Failed to start recording", "error", err)
		c.snap.State = StateIdle
		c.setStatus("Error accessing microphone: " + err.Error())
		c.setControls(true, false)
		return err
	}

	c.opts.Metrics.CaptureStarted()
	c.snap.State = StateRecording
	c.setStatus(StatusRecording)
	c.setControls(false, true)
	slog.Info("Recording started", "source_lang", c.opts.SourceLang, "target_lang", c.opts.TargetLang)
	return nil
}

// Stop asks the device to finalize. Translation happens once the device
// reports the capture finished.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.snap.State != StateRecording {
		state := c.snap.State
		c.mu.Unlock()
		return fmt.Errorf("cannot stop recording in %s state: %w", state, ErrInvalidState)
	}
	c.enterProcessing()
	gen := c.generation
	pending := c.pending
	c.mu.Unlock()

	if err := c.device.Stop(); err != nil {
		err = fmt.Errorf("failed to stop recording: %w", err)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.finalizing || c.pending != pending {
			// the capture ended on its own and already owns this cycle
			slog.Warn("Stop raced with capture end", "error", err)
			return err
		}
		c.completeLocked(gen, nil, err)
		return err
	}
	return nil
}

// enterProcessing must be called with c.mu held.
func (c *Controller) enterProcessing() {
	c.snap.State = StateProcessing
	c.setStatus(StatusProcessing)
	c.setControls(false, false)
	c.pending = make(chan struct{})
	c.finalizing = false
}

func (c *Controller) handleData(f audio.Fragment) {
	if f.Size <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.State != StateRecording && c.snap.State != StateProcessing {
		return
	}
	c.recording.Write(f.Data[:f.Size])
}

func (c *Controller) handleFinalize(captureErr error) {
	c.mu.Lock()
	switch c.snap.State {
	case StateRecording:
		if captureErr != nil {
			c.opts.Metrics.CaptureFailed()
			slog.Error("Recording ended unexpectedly", "error", captureErr)
			c.recording.Reset()
			c.snap.State = StateIdle
			c.setStatus("Error during recording: " + captureErr.Error())
			c.setControls(true, false)
			c.mu.Unlock()
			return
		}
		// the device finished on its own, translate what we have
		c.enterProcessing()
	case StateProcessing:
		if c.finalizing {
			c.mu.Unlock()
			return
		}
	default:
		c.mu.Unlock()
		return
	}

	c.finalizing = true
	data := bytes.Clone(c.recording.Bytes())
	c.recording.Reset()
	gen := c.generation
	req := &translate.Request{
		Audio:      data,
		SourceLang: c.opts.SourceLang,
		TargetLang: c.opts.TargetLang,
	}
	c.mu.Unlock()

	if captureErr != nil {
		c.complete(gen, nil, fmt.Errorf("recording failed: %w", captureErr))
		return
	}

	c.opts.Metrics.CaptureAssembled(len(data))
	slog.Info("Recording assembled", "bytes", len(data))

	resp, err := c.translator.Translate(c.ctx, req)
	c.complete(gen, resp, err)
}

// complete applies a translation outcome unless it belongs to a discarded generation.
func (c *Controller) complete(gen uint64, resp *translate.Response, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completeLocked(gen, resp, err)
}

// completeLocked must be called with c.mu held.
func (c *Controller) completeLocked(gen uint64, resp *translate.Response, err error) {
	c.finalizing = false
	if pending := c.pending; pending != nil {
		c.pending = nil
		defer close(pending)
	}

	defer func() {
		c.setControls(true, false)
	}()

	if gen != c.generation {
		slog.Info("Discarding translation that arrived after close", "error", err)
		c.opts.Metrics.TranslationDiscarded()
		c.snap.State = StateIdle
		return
	}

	if err == nil {
		err = c.apply(resp)
	}
	if err != nil {
		slog.Error("Translation failed", "error", err)
		c.snap.State = StateIdle
		c.setStatus(errorStatus(err))
		return
	}

	c.snap.State = StateReady
	c.setStatus(StatusComplete)
}

// apply replaces the current artifact. Must be called with c.mu held.
func (c *Controller) apply(resp *translate.Response) error {
	art := artifact.New(resp.Audio, resp.MimeType, resp.EnglishTranslation)

	// acquire first so a local failure leaves the shown artifact alone
	h, err := c.store.Acquire(art.Audio, art.MimeType)
	if err != nil {
		return err
	}

	c.player.Pause()
	c.releaseCurrent()
	art.Handle = h
	c.current = art

	if err := c.player.Load(h.Path); err != nil {
		slog.Warn("Failed to load playback source", "path", h.Path, "error", err)
	}
	c.showPlayback(h.Path, art.MimeType)
	if c.opts.Autoplay {
		if err := c.player.Play(); err != nil {
			slog.Warn("Playback did not start", "error", err)
		}
	}

	c.showDownload("Download " + artifact.FormatLabel(art.MimeType))
	if art.HasTranscript() {
		c.showTranscript(art.TranscriptLine())
	} else {
		c.hideTranscript()
	}

	slog.Info("Translation applied", "mimetype", art.MimeType, "bytes", len(art.Audio), "transcript", art.HasTranscript())
	return nil
}

// releaseCurrent drops the current artifact's handle. Must be called with c.mu held.
func (c *Controller) releaseCurrent() {
	if c.current == nil {
		return
	}
	h := c.current.Handle
	c.current = nil
	if h.IsZero() {
		return
	}
	if err := c.store.Release(h); err != nil {
		slog.Error("Failed to release artifact handle", "id", h.ID, "error", err)
	}
}

func errorStatus(err error) string {
	var serverErr *translate.ServerError
	switch {
	case errors.Is(err, translate.ErrNetworkUnreachable):
		return StatusNetwork
	case errors.As(err, &serverErr):
		return "Translation failed: " + serverErr.Status
	default:
		return "Error during translation: " + err.Error()
	}
}

// Close stops playback and releases the current artifact. It is allowed in
// every state; a translation still in flight will be discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.player.Pause()
	c.player.Clear()
	c.releaseCurrent()
	c.hideArtifact()
	c.setStatus(StatusReady)

	switch c.snap.State {
	case StateProcessing:
		c.generation++
	case StateReady:
		c.snap.State = StateIdle
	}
}

// hideArtifact must be called with c.mu held.
func (c *Controller) hideArtifact() {
	c.snap.PlaybackVisible = false
	c.snap.PlaybackSource = ""
	c.snap.PlaybackMimeType = ""
	c.view.HidePlayback()
	c.hideTranscript()
	c.snap.DownloadVisible = false
	c.snap.DownloadLabel = ""
	c.view.HideDownload()
}

// Download writes the current artifact to the download directory and returns
// the written path. It returns "" without an artifact.
func (c *Controller) Download() (string, error) {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return "", nil
	}
	data := c.current.Audio
	mimeType := c.current.MimeType
	c.mu.Unlock()

	name := fmt.Sprintf("translated-audio-%d.%s", c.opts.Now().UnixMilli(), artifact.Extension(mimeType))
	dest := filepath.Join(c.opts.DownloadDir, name)

	if err := os.MkdirAll(c.opts.DownloadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	// the download gets its own handle, released as soon as the copy is done
	h, err := c.store.Acquire(data, mimeType)
	if err != nil {
		return "", fmt.Errorf("failed to prepare download: %w", err)
	}
	copyErr := copyFile(h.Path, dest)
	if err := c.store.Release(h); err != nil {
		slog.Error("Failed to release download handle", "id", h.ID, "error", err)
	}
	if copyErr != nil {
		return "", fmt.Errorf("failed to write %s: %w", dest, copyErr)
	}

	c.opts.Metrics.Downloaded()
	slog.Info("Translation downloaded", "path", dest, "bytes", len(data))
	return dest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Play restarts playback of the current artifact.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return fmt.Errorf("no translation to play: %w", ErrInvalidState)
	}
	return c.player.Play()
}

// SetLanguages changes the codes sent with the next recording.
func (c *Controller) SetLanguages(source, target string) error {
	if source == "" || target == "" {
		return fmt.Errorf("source and target languages are required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.SourceLang = source
	c.opts.TargetLang = target
	return nil
}

// Languages returns the current source and target codes.
func (c *Controller) Languages() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts.SourceLang, c.opts.TargetLang
}

// Snapshot returns the derived UI state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Wait blocks until no translation is outstanding.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	pending := c.pending
	c.mu.Unlock()

	if pending == nil {
		return nil
	}
	select {
	case <-pending:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown closes the session, aborts an in-flight request and releases the device.
func (c *Controller) Shutdown() error {
	c.Close()
	c.cancel()
	return c.device.Close()
}

// View helpers keep the snapshot in step with the view. Callers hold c.mu.

func (c *Controller) setStatus(text string) {
	c.snap.Status = text
	c.view.SetStatus(text)
}

func (c *Controller) setControls(start, stop bool) {
	c.snap.StartEnabled = start
	c.snap.StopEnabled = stop
	c.view.SetControls(start, stop)
}

func (c *Controller) showPlayback(source, mimeType string) {
	c.snap.PlaybackVisible = true
	c.snap.PlaybackSource = source
	c.snap.PlaybackMimeType = mimeType
	c.view.ShowPlayback(source)
}

func (c *Controller) showTranscript(text string) {
	c.snap.TranscriptVisible = true
	c.snap.Transcript = text
	c.view.ShowTranscript(text)
}

func (c *Controller) hideTranscript() {
	c.snap.TranscriptVisible = false
	c.snap.Transcript = ""
	c.view.HideTranscript()
}

func (c *Controller) showDownload(label string) {
	c.snap.DownloadVisible = true
	c.snap.DownloadLabel = label
	c.view.ShowDownload(label)
}
