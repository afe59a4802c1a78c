package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/speaktranslate/internal/audio"
	"github.com/audiolibrelab/speaktranslate/internal/session"
	"github.com/audiolibrelab/speaktranslate/internal/transcode"
)

var (
	translatePlay     bool
	translateDownload bool
)

var translateCmd = &cobra.Command{
	Use:   "translate [file]",
	Short: "Translate an existing recording",
	Long: `Send an existing recording through the same session as a live
recording: the file is replayed as capture fragments, submitted to the
backend and the result is played and/or saved to the download directory.
Files other than WAV are converted with ffmpeg first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		input := args[0]
		if transcode.NeedsConversion(input) {
			tmpDir, err := os.MkdirTemp("", "speaktranslate-convert-")
			if err != nil {
				return fmt.Errorf("failed to create conversion directory: %w", err)
			}
			defer os.RemoveAll(tmpDir)

			input, err = transcode.New(cfg.Audio.SampleRate, cfg.Audio.Channels).ToWAV(ctx, input, tmpDir)
			if err != nil {
				return err
			}
		}

		view := newTerminalView(os.Stdout)
		device := audio.NewFileDevice(input, cfg.Audio.FragmentSize)

		a, err := newApp(cfg, device, view, translatePlay)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ctrl.Start(ctx); err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		if err := a.ctrl.Stop(); err != nil {
			return err
		}
		if err := a.ctrl.Wait(ctx); err != nil {
			return err
		}

		snap := a.ctrl.Snapshot()
		if snap.State != session.StateReady {
			return fmt.Errorf("%s", snap.Status)
		}

		if translateDownload {
			path, err := a.ctrl.Download()
			if err != nil {
				return err
			}
			fmt.Printf("Saved %s\n", path)
		}

		if translatePlay {
			done := make(chan struct{})
			go func() {
				a.player.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-ctx.Done():
				a.player.Pause()
			}
		}
		return nil
	},
}

func init() {
	translateCmd.Flags().BoolVar(&translatePlay, "play", false, "play the translation and wait for it to finish")
	translateCmd.Flags().BoolVarP(&translateDownload, "download", "d", false, "save the translation to the download directory")
}
