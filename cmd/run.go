package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/speaktranslate/internal/audio"
	"github.com/audiolibrelab/speaktranslate/internal/metrics"
	"github.com/audiolibrelab/speaktranslate/internal/session"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive translation session",
	Long: `Start an interactive session. Press r to record, s to stop and send the
recording for translation, c to close the current translation, d to download
it and q to quit. The translated audio plays automatically unless
playback.autoplay is false.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		view := newTerminalView(os.Stdout)
		device := audio.NewDevice(cfg, externalLogWriter())

		a, err := newApp(cfg, device, view, cfg.Playback.Autoplay)
		if err != nil {
			return err
		}
		defer a.Close()

		if cfg.Metrics.Address != "" {
			srv := startMetricsServer(cfg.Metrics.Address, a.metrics)
			defer shutdownMetricsServer(srv)
		}

		fmt.Printf("Translating %s → %s via %s\n", cfg.Languages.Source, cfg.Languages.Target, cfg.API.BaseURL)
		return interactiveLoop(ctx, a.ctrl, view)
	},
}

func interactiveLoop(ctx context.Context, ctrl *session.Controller, view *terminalView) error {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		fmt.Print(view.prompt())

		var line string
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case l, ok := <-lines:
			if !ok {
				return waitPending(ctrl)
			}
			line = l
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if quit := handleCommand(ctx, ctrl, fields); quit {
			return waitPending(ctrl)
		}
	}
}

func handleCommand(ctx context.Context, ctrl *session.Controller, fields []string) bool {
	switch strings.ToLower(fields[0]) {
	case "r", "record":
		if err := ctrl.Start(ctx); err != nil {
			reportError(err)
		}
	case "s", "stop":
		if err := ctrl.Stop(); err != nil {
			reportError(err)
		}
	case "p", "play":
		if err := ctrl.Play(); err != nil {
			reportError(err)
		}
	case "c", "close":
		ctrl.Close()
	case "d", "download":
		path, err := ctrl.Download()
		switch {
		case err != nil:
			reportError(err)
		case path == "":
			fmt.Println("Nothing to download yet")
		default:
			fmt.Printf("Saved %s\n", path)
		}
	case "l", "lang":
		if len(fields) != 3 {
			fmt.Println("usage: l <source> <target>")
			return false
		}
		if err := ctrl.SetLanguages(fields[1], fields[2]); err != nil {
			reportError(err)
			return false
		}
		fmt.Printf("Translating %s → %s\n", fields[1], fields[2])
	case "q", "quit", "exit":
		return true
	default:
		fmt.Printf("Unknown command: %s\n", fields[0])
	}
	return false
}

// waitPending lets an outstanding translation finish before exit
func waitPending(ctrl *session.Controller) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout+time.Second)
	defer cancel()
	return ctrl.Wait(ctx)
}

func reportError(err error) {
	if errors.Is(err, session.ErrInvalidState) {
		fmt.Println("Not available right now")
		slog.Debug("Command rejected", "error", err)
		return
	}
	fmt.Printf("Error: %v\n", err)
}

func startMetricsServer(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		slog.Info("Metrics endpoint listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
	return srv
}

func shutdownMetricsServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("Metrics server shutdown", "error", err)
	}
}
