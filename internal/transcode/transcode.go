// Package transcode converts audio files to the WAV layout sent to the backend.
package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

type Transcoder struct {
	sampleRate int
	channels   int
	lookPath   func(string) (string, error)
}

func New(sampleRate, channels int) *Transcoder {
	return &Transcoder{sampleRate: sampleRate, channels: channels, lookPath: exec.LookPath}
}

// NeedsConversion reports whether path must go through ffmpeg before upload.
func NeedsConversion(path string) bool {
	return !strings.EqualFold(filepath.Ext(path), ".wav")
}

// ToWAV converts inputFile into a PCM WAV file in dir and returns its path.
func (t *Transcoder) ToWAV(ctx context.Context, inputFile, dir string) (string, error) {
	if _, err := os.Stat(inputFile); err != nil {
		return "", fmt.Errorf("input file not found: %s", inputFile)
	}
	if _, err := t.lookPath("ffmpeg"); err != nil {
		return "", fmt.Errorf("ffmpeg is required to convert %s: %w", inputFile, err)
	}

	base := strings.TrimSuffix(filepath.Base(inputFile), filepath.Ext(inputFile))
	outputFile := filepath.Join(dir, base+".wav")

	cmd := exec.CommandContext(ctx, "ffmpeg", t.args(inputFile, outputFile)...)
	slog.Debug("Running FFmpeg for conversion", "command", strings.Join(cmd.Args, " "))

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("FFmpeg conversion failed: %w\nOutput: %s", err, string(output))
	}

	// Verify output file was created
	if _, err := os.Stat(outputFile); err != nil {
		return "", fmt.Errorf("output file not created: %s", outputFile)
	}

	slog.Info("Converted recording", "input", inputFile, "output", outputFile)
	return outputFile, nil
}

func (t *Transcoder) args(inputFile, outputFile string) []string {
	return []string{
		"-hide_banner",
		"-i", inputFile,
		"-vn",
		"-ac", strconv.Itoa(t.channels),
		"-ar", strconv.Itoa(t.sampleRate),
		"-c:a", "pcm_s16le",
		"-y", // Overwrite output file
		outputFile,
	}
}
