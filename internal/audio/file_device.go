package audio

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// FileDevice replays an existing recording as if it were being captured
type FileDevice struct {
	path         string
	fragmentSize int

	mu       sync.Mutex
	handlers handlers
	data     []byte
	running  bool
	stopCh   chan struct{}
	stopOnce *sync.Once
}

func NewFileDevice(path string, fragmentSize int) *FileDevice {
	if fragmentSize <= 0 {
		fragmentSize = 4096
	}
	return &FileDevice{path: path, fragmentSize: fragmentSize}
}

func (d *FileDevice) OnData(fn func(Fragment)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers.onData = fn
}

func (d *FileDevice) OnStop(fn func(error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers.onStop = fn
}

func (d *FileDevice) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCaptureAccessDenied, err)
	}

	data, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCaptureAccessDenied, err)
	}

	d.mu.Lock()
	d.data = data
	d.mu.Unlock()
	return nil
}

// Start emits the whole file as fragments, then waits for Stop to finalize
func (d *FileDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.data == nil {
		return fmt.Errorf("%w: device not opened", ErrCaptureAccessDenied)
	}
	if d.running {
		return fmt.Errorf("capture already running")
	}

	d.running = true
	d.stopCh = make(chan struct{})
	d.stopOnce = &sync.Once{}
	go d.replay(d.data, d.stopCh)
	return nil
}

func (d *FileDevice) replay(data []byte, stopCh chan struct{}) {
	for off := 0; off < len(data); off += d.fragmentSize {
		end := min(off+d.fragmentSize, len(data))
		chunk := make([]byte, end-off)
		copy(chunk, data[off:end])

		d.mu.Lock()
		h := d.handlers
		d.mu.Unlock()
		h.data(Fragment{Data: chunk, Size: len(chunk)})
	}

	<-stopCh

	d.mu.Lock()
	d.running = false
	h := d.handlers
	d.mu.Unlock()
	h.stop(nil)
}

func (d *FileDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return fmt.Errorf("no capture in progress")
	}
	d.stopOnce.Do(func() { close(d.stopCh) })
	return nil
}

func (d *FileDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		d.stopOnce.Do(func() { close(d.stopCh) })
	}
	d.data = nil
	return nil
}
