package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/speaktranslate/internal/audio"
	"github.com/audiolibrelab/speaktranslate/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Control a translation session over HTTP",
	Long: `Start an HTTP control API for a session on this machine: POST /record,
/stop, /close, /play, /download and /languages drive the session, GET /status
returns its state and GET /audio streams the current translation.`,
	Aliases: []string{"server"},
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		device := audio.NewDevice(cfg, externalLogWriter())
		a, err := newApp(cfg, device, newTerminalView(os.Stdout), cfg.Playback.Autoplay)
		if err != nil {
			return err
		}
		defer a.Close()

		return server.New(a.ctrl, a.metrics.Handler(), serveAddr).Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8090", "listen address")
	rootCmd.AddCommand(serveCmd)
}
