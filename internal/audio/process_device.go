package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ProcessDevice captures audio from an external command that writes WAV to stdout
type ProcessDevice struct {
	name         string
	args         []string
	env          []string
	fragmentSize int
	logWriter    io.Writer
	stopTimeout  time.Duration

	requires   []string
	lookPath   func(string) (string, error)
	probe      func(ctx context.Context) error
	afterStart func()

	mu        sync.Mutex
	handlers  handlers
	opened    bool
	cmd       *exec.Cmd
	stopping  bool
	done      chan struct{}
	stderrBuf bytes.Buffer
}

// NewProcessDevice creates a device that runs name with args for each capture
func NewProcessDevice(name string, args []string, fragmentSize int, logWriter io.Writer) *ProcessDevice {
	if logWriter == nil {
		logWriter = io.Discard
	}
	if fragmentSize <= 0 {
		fragmentSize = 4096
	}

	return &ProcessDevice{
		name:         name,
		args:         args,
		fragmentSize: fragmentSize,
		logWriter:    logWriter,
		stopTimeout:  5 * time.Second,
		requires:     []string{name},
		lookPath:     exec.LookPath,
	}
}

func (d *ProcessDevice) OnData(fn func(Fragment)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers.onData = fn
}

func (d *ProcessDevice) OnStop(fn func(error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers.onStop = fn
}

// Open checks that the capture tools and the configured source are present
func (d *ProcessDevice) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCaptureAccessDenied, err)
	}

	for _, tool := range d.requires {
		if _, err := d.lookPath(tool); err != nil {
			return fmt.Errorf("%w: %s not available: %v", ErrCaptureAccessDenied, tool, err)
		}
	}

	if d.probe != nil {
		if err := d.probe(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrCaptureAccessDenied, err)
		}
	}

	d.mu.Lock()
	d.opened = true
	d.mu.Unlock()

	slog.Debug("Capture device opened", "command", d.name)
	return nil
}

// Start launches the capture command and begins delivering fragments
func (d *ProcessDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.opened {
		return fmt.Errorf("%w: device not opened", ErrCaptureAccessDenied)
	}
	if d.cmd != nil {
		return fmt.Errorf("capture already running")
	}

	cmd := exec.Command(d.name, d.args...)
	if d.env != nil {
		cmd.Env = d.env
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	d.stderrBuf.Reset()
	cmd.Stderr = io.MultiWriter(&d.stderrBuf, d.logWriter)

	slog.Info("Starting capture", "command", d.name+" "+strings.Join(d.args, " "))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: failed to start %s: %v", ErrCaptureAccessDenied, d.name, err)
	}

	d.cmd = cmd
	d.stopping = false
	d.done = make(chan struct{})

	go d.pump(cmd, stdout, d.done)
	if d.afterStart != nil {
		d.afterStart()
	}
	return nil
}

// pump forwards stdout in fragment-sized chunks, then reports the exit
func (d *ProcessDevice) pump(cmd *exec.Cmd, stdout io.Reader, done chan struct{}) {
	var readErr error
	buf := make([]byte, d.fragmentSize)

	for {
		n, err := io.ReadFull(stdout, buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			d.emitData(Fragment{Data: chunk, Size: n})
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				readErr = err
			}
			break
		}
	}

	waitErr := cmd.Wait()

	d.mu.Lock()
	err := d.exitError(waitErr, readErr)
	d.cmd = nil
	d.stopping = false
	close(done)
	onStop := d.handlers.onStop
	d.mu.Unlock()

	if err != nil {
		slog.Warn("Capture ended with error", "error", err)
	} else {
		slog.Debug("Capture finalized")
	}
	if onStop != nil {
		onStop(err)
	}
}

// exitError classifies the process exit. Must be called with d.mu held.
// Any exit after an interrupt we sent counts as a clean finalize.
func (d *ProcessDevice) exitError(waitErr, readErr error) error {
	if waitErr != nil {
		var exitErr *exec.ExitError
		if d.stopping && errors.As(waitErr, &exitErr) {
			slog.Debug("Capture process exited after interrupt", "state", exitErr.ProcessState.String())
			return readErr
		}
		stderr := strings.TrimSpace(d.stderrBuf.String())
		if len(stderr) > 512 {
			stderr = stderr[len(stderr)-512:]
		}
		return fmt.Errorf("capture process failed: %w (stderr: %s)", waitErr, stderr)
	}
	if readErr != nil {
		return fmt.Errorf("failed to read capture output: %w", readErr)
	}
	return nil
}

func (d *ProcessDevice) emitData(f Fragment) {
	d.mu.Lock()
	h := d.handlers
	d.mu.Unlock()
	h.data(f)
}

// Stop interrupts the capture command; it is killed if it does not exit in time
func (d *ProcessDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cmd == nil {
		return fmt.Errorf("no capture in progress")
	}
	if d.stopping {
		return nil
	}
	d.stopping = true

	proc := d.cmd.Process
	slog.Debug("Sending SIGINT to capture process")
	if err := proc.Signal(os.Interrupt); err != nil {
		slog.Debug("Failed to interrupt capture process, killing", "error", err)
		proc.Kill()
	}

	done := d.done
	timeout := d.stopTimeout
	go func() {
		select {
		case <-done:
		case <-time.After(timeout):
			slog.Warn("Capture process did not exit within timeout, force killing")
			proc.Kill()
		}
	}()
	return nil
}

// Close kills any running capture and waits for it to finish
func (d *ProcessDevice) Close() error {
	d.mu.Lock()
	d.opened = false
	if d.cmd == nil {
		d.mu.Unlock()
		return nil
	}
	d.stopping = true
	d.cmd.Process.Kill()
	done := d.done
	d.mu.Unlock()

	<-done
	return nil
}
