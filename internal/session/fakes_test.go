package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/audiolibrelab/speaktranslate/internal/artifact"
	"github.com/audiolibrelab/speaktranslate/internal/audio"
	"github.com/audiolibrelab/speaktranslate/internal/translate"
)

type fakeDevice struct {
	mu      sync.Mutex
	openErr error
	opens   int
	starts  int
	onData  func(audio.Fragment)
	onStop  func(error)
	closed  bool

	// stopErr makes Stop fail; finalizeFirst, when set, lets the finalize
	// callback run before the failure is reported
	stopErr       error
	finalizeFirst func()
}

func (d *fakeDevice) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	return d.openErr
}

func (d *fakeDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.starts++
	return nil
}

// Stop finalizes on another goroutine, like a real device
func (d *fakeDevice) Stop() error {
	d.mu.Lock()
	fn, stopErr, finalizeFirst := d.onStop, d.stopErr, d.finalizeFirst
	d.mu.Unlock()

	if stopErr == nil {
		go fn(nil)
		return nil
	}
	if finalizeFirst != nil {
		go fn(nil)
		finalizeFirst()
	}
	return stopErr
}

func (d *fakeDevice) OnData(fn func(audio.Fragment)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onData = fn
}

func (d *fakeDevice) OnStop(fn func(error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onStop = fn
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDevice) emit(data string) {
	d.mu.Lock()
	fn := d.onData
	d.mu.Unlock()
	fn(audio.Fragment{Data: []byte(data), Size: len(data)})
}

func (d *fakeDevice) fail(err error) {
	d.mu.Lock()
	fn := d.onStop
	d.mu.Unlock()
	fn(err)
}

type fakeTranslator struct {
	mu       sync.Mutex
	requests []translate.Request
	gate     chan struct{} // when set, Translate blocks until it is closed
	started  chan struct{} // when set, receives one value per request
	reply    func(n int) (*translate.Response, error)
}

func (f *fakeTranslator) Translate(ctx context.Context, req *translate.Request) (*translate.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, *req)
	n := len(f.requests)
	gate, started := f.gate, f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.reply(n)
}

func (f *fakeTranslator) last() translate.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func okReply(mimeType, transcript string) func(int) (*translate.Response, error) {
	return func(n int) (*translate.Response, error) {
		return &translate.Response{
			Audio:              []byte{byte(n), 'o', 'k'},
			MimeType:           mimeType,
			EnglishTranslation: transcript,
		}, nil
	}
}

type fakePlayer struct {
	mu     sync.Mutex
	source string
	loads  []string
	plays  int
	pauses int
}

func (p *fakePlayer) Load(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = path
	p.loads = append(p.loads, path)
	return nil
}

func (p *fakePlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays++
	return nil
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauses++
}

func (p *fakePlayer) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = ""
}

// countingStore wraps a FileStore and counts handle traffic.
type countingStore struct {
	*artifact.FileStore

	mu          sync.Mutex
	acquires    int
	releases    int
	releaseErrs int
	acquireErr  error
}

func (s *countingStore) Acquire(data []byte, mimeType string) (artifact.Handle, error) {
	if s.acquireErr != nil {
		return artifact.Handle{}, s.acquireErr
	}
	h, err := s.FileStore.Acquire(data, mimeType)
	if err == nil {
		s.mu.Lock()
		s.acquires++
		s.mu.Unlock()
	}
	return h, err
}

func (s *countingStore) Release(h artifact.Handle) error {
	err := s.FileStore.Release(h)
	s.mu.Lock()
	defer s.mu.Unlock()
	if errors.Is(err, artifact.ErrHandleReleased) {
		s.releaseErrs++
	} else if err == nil {
		s.releases++
	}
	return err
}

type recordingView struct {
	mu       sync.Mutex
	statuses []string
}

func (v *recordingView) SetStatus(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.statuses = append(v.statuses, text)
}

func (v *recordingView) SetControls(bool, bool) {}
func (v *recordingView) ShowPlayback(string) {}
func (v *recordingView) HidePlayback() {}
func (v *recordingView) ShowTranscript(string) {}
func (v *recordingView) HideTranscript() {}
func (v *recordingView) ShowDownload(string) {}
func (v *recordingView) HideDownload() {}

type harness struct {
	ctrl       *Controller
	device     *fakeDevice
	translator *fakeTranslator
	store      *countingStore
	player     *fakePlayer
	view       *recordingView
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	fs, err := artifact.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	h := &harness{
		device:     &fakeDevice{},
		translator: &fakeTranslator{reply: okReply("audio/mpeg", "")},
		store:      &countingStore{FileStore: fs},
		player:     &fakePlayer{},
		view:       &recordingView{},
	}
	if opts.SourceLang == "" {
		opts.SourceLang = "en"
	}
	if opts.TargetLang == "" {
		opts.TargetLang = "es"
	}
	h.ctrl = New(h.device, h.translator, h.store, h.player, h.view, opts)
	t.Cleanup(func() { h.ctrl.Shutdown() })
	return h
}

// cycle records the given fragments and waits for the translation outcome.
func (h *harness) cycle(t *testing.T, fragments ...string) {
	t.Helper()
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for _, f := range fragments {
		h.device.emit(f)
	}
	if err := h.ctrl.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	h.wait(t)
}

func (h *harness) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.ctrl.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}
