package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/audiolibrelab/speaktranslate/internal/config"
)

const jackClientName = "speaktranslate"

// NewPipeWireDevice captures through ffmpeg's JACK input under pw-jack and
// links the configured source port into it.
func NewPipeWireDevice(cfg *config.Config, logWriter io.Writer) *ProcessDevice {
	pw := NewPipeWire()
	source := cfg.Audio.Source

	args := []string{
		"ffmpeg", "-hide_banner", "-nostdin",
		"-f", "jack",
		"-channels", fmt.Sprintf("%d", cfg.Audio.Channels),
		"-i", jackClientName,
		"-ar", fmt.Sprintf("%d", cfg.Audio.SampleRate),
		"-ac", fmt.Sprintf("%d", cfg.Audio.Channels),
		"-f", "wav", "-",
	}

	env := append(os.Environ(),
		"PIPEWIRE_QUANTUM=256/48000",
		"PIPEWIRE_LATENCY=256/48000",
	)

	d := NewProcessDevice("pw-jack", args, cfg.Audio.FragmentSize, logWriter)
	d.env = env
	d.requires = []string{"pw-jack", "ffmpeg"}
	d.probe = func(ctx context.Context) error {
		if source == "" {
			return nil
		}
		return pw.ValidatePort(source)
	}
	d.afterStart = func() {
		go linkSource(pw, source, cfg.Audio.Channels)
	}
	return d
}

// linkSource connects the capture source to every ffmpeg JACK input once the
// ports show up in the graph.
func linkSource(pw *PipeWire, source string, channels int) {
	if source == "" {
		return
	}
	for i := 1; i <= channels; i++ {
		dest := fmt.Sprintf("%s:input_%d", jackClientName, i)
		if err := pw.WaitForPort(dest, 5*time.Second); err != nil {
			slog.Error("FFmpeg JACK port did not appear", "port", dest, "error", err)
			continue
		}
		if err := pw.ConnectPortsWithRetry(source, dest); err != nil {
			slog.Error("Failed to connect capture source", "source", source, "dest", dest, "error", err)
			continue
		}
		slog.Info("Connected capture source", "source", source, "dest", dest)
	}
}

// NewPulseDevice captures from a pulse source, which PipeWire also serves.
func NewPulseDevice(cfg *config.Config, logWriter io.Writer) *ProcessDevice {
	source := cfg.Audio.Source
	if source == "" {
		source = "default"
	}

	args := []string{
		"-hide_banner", "-nostdin",
		"-f", "pulse",
		"-i", source,
		"-ar", fmt.Sprintf("%d", cfg.Audio.SampleRate),
		"-ac", fmt.Sprintf("%d", cfg.Audio.Channels),
		"-f", "wav", "-",
	}

	d := NewProcessDevice("ffmpeg", args, cfg.Audio.FragmentSize, logWriter)
	d.requires = []string{"ffmpeg"}
	return d
}
