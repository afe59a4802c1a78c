package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/audiolibrelab/speaktranslate/internal/artifact"
	"github.com/audiolibrelab/speaktranslate/internal/audio"
	"github.com/audiolibrelab/speaktranslate/internal/config"
	"github.com/audiolibrelab/speaktranslate/internal/metrics"
	"github.com/audiolibrelab/speaktranslate/internal/play"
	"github.com/audiolibrelab/speaktranslate/internal/session"
	"github.com/audiolibrelab/speaktranslate/internal/translate"
)

// app bundles a controller with the collaborators it owns.
type app struct {
	ctrl    *session.Controller
	store   *artifact.FileStore
	player  *play.Player
	metrics *metrics.Metrics
}

// externalLogWriter returns where capture and player processes write their output
func externalLogWriter() io.Writer {
	if verboseLevel >= 2 {
		return os.Stderr
	}
	return io.Discard
}

func newApp(cfg *config.Config, device audio.Device, view session.View, autoplay bool) (*app, error) {
	m := metrics.New()

	client, err := translate.NewClient(translate.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
	}, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create translation client: %w", err)
	}

	store, err := artifact.NewFileStore("")
	if err != nil {
		return nil, err
	}
	store.OnChange(m.SetLiveHandles)

	player := play.New(cfg.Playback.Player, externalLogWriter())

	ctrl := session.New(device, client, store, player, view, session.Options{
		SourceLang:  cfg.Languages.Source,
		TargetLang:  cfg.Languages.Target,
		DownloadDir: cfg.Output.DownloadDirectory,
		Autoplay:    autoplay,
		Metrics:     m,
	})

	return &app{ctrl: ctrl, store: store, player: player, metrics: m}, nil
}

// Close shuts the session down and removes the handle directory.
func (a *app) Close() error {
	err := a.ctrl.Shutdown()
	if cerr := a.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
