package audio

import (
	"io"
	"os/exec"
	"strings"

	"github.com/audiolibrelab/speaktranslate/internal/config"
)

// BackendType represents the type of capture backend
type BackendType string

const (
	BackendTypePipeWire BackendType = "pipewire"
	BackendTypePulse    BackendType = "pulse"
	BackendTypeAuto     BackendType = "auto"
)

// NewDevice creates a capture device using the backend selected in configuration
func NewDevice(cfg *config.Config, logWriter io.Writer) Device {
	switch determineBackend(cfg, exec.LookPath) {
	case BackendTypePipeWire:
		return NewPipeWireDevice(cfg, logWriter)
	default:
		return NewPulseDevice(cfg, logWriter)
	}
}

// determineBackend resolves "auto": JACK-style sources need the PipeWire
// graph, everything else goes through the pulse compatibility layer.
func determineBackend(cfg *config.Config, lookPath func(string) (string, error)) BackendType {
	switch strings.ToLower(cfg.Audio.Backend) {
	case "pipewire":
		return BackendTypePipeWire
	case "pulse":
		return BackendTypePulse
	}

	if strings.Contains(cfg.Audio.Source, ":") {
		if _, err := lookPath("pw-jack"); err == nil {
			return BackendTypePipeWire
		}
	}
	return BackendTypePulse
}

// GetAvailableBackends returns list of available backends on current system
func GetAvailableBackends() []BackendType {
	var backends []BackendType
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return backends
	}
	if _, err := exec.LookPath("pw-jack"); err == nil {
		backends = append(backends, BackendTypePipeWire)
	}
	backends = append(backends, BackendTypePulse)
	return backends
}
