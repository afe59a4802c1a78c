package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/audiolibrelab/speaktranslate/internal/config"
)

var (
	cfg          *config.Config
	cfgFile      string
	envFile      string
	profile      string
	sourceLang   string
	targetLang   string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "speaktranslate",
	Short: "Record speech and play back its translation",
	Long: `speaktranslate records your microphone, sends the recording to the
speech-translation backend and plays back the translated audio together
with an English transcript when the backend provides one.

Run without a subcommand to start an interactive session.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(verboseLevel)

		if err := loadEnvFile(envFile); err != nil {
			return err
		}

		// Use default config path if not specified
		if cfgFile == "" {
			cfgFile = os.ExpandEnv("$HOME/.config/speaktranslate.yaml")
		}

		var err error
		cfg, err = config.Load(cfgFile, profile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if sourceLang != "" {
			cfg.Languages.Source = sourceLang
		}
		if targetLang != "" {
			cfg.Languages.Target = targetLang
		}

		slog.Debug("Configuration loaded", "file", cfgFile, "profile", cfg.Profile, "base_url", cfg.API.BaseURL)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCmd.RunE(cmd, args)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/speaktranslate.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with SPEAKTRANSLATE_* overrides, ignored when missing")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().StringVarP(&sourceLang, "source-lang", "s", "", "source language code (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&targetLang, "target-lang", "t", "", "target language code (overrides config)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=capture and player output, 3=max tracing")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(infoCmd)
}

// loadEnvFile exports a dotenv file into the process environment so the
// SPEAKTRANSLATE_* overrides reach viper. Variables already set win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	slog.Debug("Loaded env file", "path", path)
	return nil
}

// setupLogging configures slog based on the verbose level
func setupLogging(level int) {
	slogLevel := slog.LevelInfo
	if level >= 1 {
		slogLevel = slog.LevelDebug
	}

	// Configure text handler for clean terminal output
	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	slog.SetDefault(slog.New(handler))

	// Set environment variables for maximum tracing (level 3)
	if level >= 3 {
		os.Setenv("PIPEWIRE_DEBUG", "3")
		os.Setenv("FFMPEG_LOGLEVEL", "debug")
	}
}
