package audio

import (
	"context"
	"errors"
)

// ErrCaptureAccessDenied means the microphone could not be opened: the
// capture tool is missing, the source is absent, or access was refused.
var ErrCaptureAccessDenied = errors.New("capture access denied")

// Fragment is one chunk of captured audio, delivered in capture order.
type Fragment struct {
	Data []byte
	Size int
}

// Device is a capture device. Each event has a single subscriber; registering
// a handler replaces the previous one. All OnData calls for a capture happen
// before its OnStop call.
type Device interface {
	// Open acquires the microphone. It may block until access is granted.
	Open(ctx context.Context) error
	// Start begins continuous capture.
	Start() error
	// Stop asks the device to finalize. The remaining fragments and the
	// finalize event are delivered later from the device's goroutine.
	Stop() error

	OnData(fn func(Fragment))
	OnStop(fn func(err error))

	// Close releases the device. A running capture is killed.
	Close() error
}

// handlers holds the single-subscriber callbacks shared by devices.
type handlers struct {
	onData func(Fragment)
	onStop func(error)
}

func (h *handlers) data(f Fragment) {
	if h.onData != nil && f.Size > 0 {
		h.onData(f)
	}
}

func (h *handlers) stop(err error) {
	if h.onStop != nil {
		h.onStop(err)
	}
}
