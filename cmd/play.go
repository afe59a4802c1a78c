package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/speaktranslate/internal/play"
)

var playCmd = &cobra.Command{
	Use:   "play [file]",
	Short: "Play an audio file",
	Long: `Play a saved translation with the configured player, or the first
available of vlc, mpv, ffplay and aplay.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		player := play.New(cfg.Playback.Player, externalLogWriter())
		if err := player.Load(args[0]); err != nil {
			return err
		}

		fmt.Printf("Playing: %s\n", args[0])
		if err := player.Play(); err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}

		done := make(chan struct{})
		go func() {
			player.Wait()
			close(done)
		}()

		select {
		case <-done:
			fmt.Println("Playback completed")
		case <-ctx.Done():
			player.Pause()
		}
		return nil
	},
}
