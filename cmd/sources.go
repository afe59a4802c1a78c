package cmd

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/speaktranslate/internal/audio"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List available audio sources",
	Long:  `List the capture backends available on this system and the PipeWire/JACK ports that can be used as audio.source.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("🎵 Audio Sources (%s)\n", runtime.GOOS)
		fmt.Printf("═══════════════════════════════════════\n\n")

		backends := audio.GetAvailableBackends()
		if len(backends) == 0 {
			return fmt.Errorf("no capture backend available: ffmpeg not found in PATH")
		}
		fmt.Printf("🔧 BACKENDS: %v (configured: %s)\n\n", backends, cfg.Audio.Backend)

		fmt.Printf("🎙  PULSE:\n")
		fmt.Printf("  • audio.source empty uses the default input\n")
		fmt.Printf("  • list names with: pactl list short sources\n\n")

		return listPipeWireSources()
	},
}

// listPipeWireSources lists available PipeWire/JACK ports
func listPipeWireSources() error {
	ports, err := audio.NewPipeWire().ListPorts()
	if err != nil {
		slog.Warn("PipeWire ports unavailable", "error", err)
		return nil
	}

	fmt.Printf("📋 PIPEWIRE/JACK SOURCES (%d found):\n", len(ports))
	for i, port := range ports {
		fmt.Printf("  %d. %s\n", i+1, port)
	}

	fmt.Printf("\n💡 PipeWire Usage:\n")
	fmt.Printf("  • Format: \"Device: Audio (hw:X,Y):Z\" or \"Application:port\"\n")
	fmt.Printf("  • Example: \"Scarlett 2i2 USB: Audio (hw:1,0):capture_FL\"\n")
	fmt.Printf("  • Configure in audio.source with audio.backend: pipewire\n\n")

	return nil
}
