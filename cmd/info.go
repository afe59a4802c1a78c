package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/speaktranslate/internal/config"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show resolved configuration and backend endpoint",
	Long:  `Display the resolved configuration with inheritance indicators. Shows which values are inherited from the base settings vs profile-specific, and the translation endpoint in use.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("=== ENDPOINT ===\n")
		fmt.Printf("config_file: %s\n", cfgFile)
		if cfg.Profile != "" {
			fmt.Printf("profile: %s\n", cfg.Profile)
		}
		fmt.Printf("translate_url: %s/translate\n", cfg.API.BaseURL)

		fmt.Printf("\n=== RESOLVED CONFIGURATION ===\n")
		for _, key := range config.Keys() {
			fmt.Printf("%s: %s %s\n", key, settingValue(cfg, key), getInheritanceIndicator(cfg.Inheritance[key]))
		}

		return nil
	},
}

// settingValue renders one configuration key for display
func settingValue(c *config.Config, key string) string {
	switch key {
	case "api.host":
		return c.API.Host
	case "api.base_url":
		return c.API.BaseURL
	case "api.timeout":
		return c.API.Timeout.String()
	case "languages.source":
		return c.Languages.Source
	case "languages.target":
		return c.Languages.Target
	case "audio.backend":
		return c.Audio.Backend
	case "audio.source":
		return c.Audio.Source
	case "audio.sample_rate":
		return strconv.Itoa(c.Audio.SampleRate)
	case "audio.channels":
		return strconv.Itoa(c.Audio.Channels)
	case "audio.fragment_size":
		return strconv.Itoa(c.Audio.FragmentSize)
	case "playback.player":
		return c.Playback.Player
	case "playback.autoplay":
		return strconv.FormatBool(c.Playback.Autoplay)
	case "output.download_directory":
		return c.Output.DownloadDirectory
	case "metrics.address":
		return c.Metrics.Address
	default:
		return ""
	}
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case "inherited":
		return "[inherited]"
	case "profile-specific":
		return "[profile-specific]"
	default:
		return "[unknown]"
	}
}
