package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// LocalBaseURL is used when the client runs against a loopback host.
	LocalBaseURL = "http://127.0.0.1:5000"
	// RemoteBaseURL is the hosted translation backend.
	RemoteBaseURL = "https://speech-translate-app-cuvh.onrender.com"

	envPrefix = "SPEAKTRANSLATE"
)

// RootConfig is the on-disk layout: base settings at the top level plus
// optional named profiles that override them.
type RootConfig struct {
	Config       `mapstructure:",squash" yaml:",inline"`
	ActiveConfig string             `mapstructure:"active_config" yaml:"active_config,omitempty"`
	Configs      map[string]*Config `mapstructure:"configs" yaml:"configs,omitempty"`
}

type Config struct {
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Languages LanguagesConfig `mapstructure:"languages" yaml:"languages"`
	Audio     AudioConfig     `mapstructure:"audio" yaml:"audio"`
	Playback  PlaybackConfig  `mapstructure:"playback" yaml:"playback"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`

	// Profile is the name of the profile that was applied, empty for base settings.
	Profile string `mapstructure:"-" yaml:"profile,omitempty"`

	// Internal field to track inheritance information for info command
	Inheritance map[string]string `mapstructure:"-" yaml:"-"`
}

type APIConfig struct {
	// Host is the host name the client is served from. Loopback names
	// select the local backend, anything else the remote one.
	Host    string        `mapstructure:"host" yaml:"host"`
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"` // explicit override
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type LanguagesConfig struct {
	Source string `mapstructure:"source" yaml:"source"`
	Target string `mapstructure:"target" yaml:"target"`
}

type AudioConfig struct {
	Backend      string `mapstructure:"backend" yaml:"backend"` // "pipewire", "pulse", "auto"
	Source       string `mapstructure:"source" yaml:"source"`   // JACK port or pulse source, empty for default
	SampleRate   int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels     int    `mapstructure:"channels" yaml:"channels"`
	FragmentSize int    `mapstructure:"fragment_size" yaml:"fragment_size"` // bytes per capture fragment
}

type PlaybackConfig struct {
	Player   string `mapstructure:"player" yaml:"player"` // preferred player, empty for first available
	Autoplay bool   `mapstructure:"autoplay" yaml:"autoplay"`
}

type OutputConfig struct {
	DownloadDirectory string `mapstructure:"download_directory" yaml:"download_directory"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address" yaml:"address"` // empty disables the endpoint
}

var defaultConfig = Config{
	API: APIConfig{
		Timeout: 2 * time.Minute,
	},
	Languages: LanguagesConfig{
		Source: "en",
		Target: "es",
	},
	Audio: AudioConfig{
		Backend:      "auto",
		SampleRate:   16000,
		Channels:     1,
		FragmentSize: 4096,
	},
	Playback: PlaybackConfig{
		Autoplay: true,
	},
	Output: OutputConfig{
		DownloadDirectory: filepath.Join(os.Getenv("HOME"), "Downloads"),
	},
}

// Default returns a copy of the built-in configuration with the base URL resolved.
func Default() *Config {
	cfg := defaultConfig
	cfg.API.BaseURL = ResolveBaseURL(cfg.API.Host, "")
	return &cfg
}

// ResolveBaseURL picks the backend for a host name. A non-empty override wins.
func ResolveBaseURL(host, override string) string {
	if override != "" {
		return strings.TrimRight(override, "/")
	}
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1":
		return LocalBaseURL
	default:
		return RemoteBaseURL
	}
}

// Load reads configFile (missing files fall back to defaults), applies the
// SPEAKTRANSLATE_* environment and the selected profile, and resolves the base URL.
func Load(configFile, profile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	var root RootConfig
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg, err := selectProfile(&root, profile, v.IsSet)
	if err != nil {
		return nil, err
	}

	cfg.API.BaseURL = ResolveBaseURL(cfg.API.Host, cfg.API.BaseURL)
	cfg.Output.DownloadDirectory = expandPath(cfg.Output.DownloadDirectory)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.host", defaultConfig.API.Host)
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.timeout", defaultConfig.API.Timeout)
	v.SetDefault("languages.source", defaultConfig.Languages.Source)
	v.SetDefault("languages.target", defaultConfig.Languages.Target)
	v.SetDefault("audio.backend", defaultConfig.Audio.Backend)
	v.SetDefault("audio.source", "")
	v.SetDefault("audio.sample_rate", defaultConfig.Audio.SampleRate)
	v.SetDefault("audio.channels", defaultConfig.Audio.Channels)
	v.SetDefault("audio.fragment_size", defaultConfig.Audio.FragmentSize)
	v.SetDefault("playback.player", "")
	v.SetDefault("playback.autoplay", defaultConfig.Playback.Autoplay)
	v.SetDefault("output.download_directory", defaultConfig.Output.DownloadDirectory)
	v.SetDefault("metrics.address", "")
}

// selectProfile resolves the requested profile (flag value first, then
// active_config) over the base settings. isSet reports whether a full key was
// given explicitly, which is how boolean fields set to false are told apart
// from absent ones.
func selectProfile(root *RootConfig, profile string, isSet func(key string) bool) (*Config, error) {
	name := profile
	if name == "" {
		name = root.ActiveConfig
	}

	base := root.Config
	if name == "" {
		return mergeConfigs(&base, nil, nil), nil
	}

	selected, ok := root.Configs[name]
	if !ok || selected == nil {
		return nil, fmt.Errorf("configuration profile '%s' not found", name)
	}

	explicit := func(key string) bool {
		return isSet != nil && isSet("configs."+strings.ToLower(name)+"."+key)
	}
	cfg := mergeConfigs(&base, selected, explicit)
	cfg.Profile = name
	return cfg, nil
}

// mergeConfigs overlays every non-zero profile field on base and records
// which fields came from where. explicit may be nil.
func mergeConfigs(base, profile *Config, explicit func(key string) bool) *Config {
	result := &Config{}
	if base != nil {
		*result = *base
	}
	result.Inheritance = map[string]string{}

	var overrides []override
	if profile != nil {
		if explicit == nil {
			explicit = func(string) bool { return false }
		}
		overrides = profileOverrides(result, profile, explicit)
	}

	for _, key := range Keys() {
		result.Inheritance[key] = "inherited"
	}
	for _, o := range overrides {
		if o.set {
			o.apply()
			result.Inheritance[o.key] = "profile-specific"
		}
	}

	return result
}

type override struct {
	key   string
	set   bool
	apply func()
}

func profileOverrides(dst, p *Config, explicit func(key string) bool) []override {
	return []override{
		{"api.host", p.API.Host != "", func() { dst.API.Host = p.API.Host }},
		{"api.base_url", p.API.BaseURL != "", func() { dst.API.BaseURL = p.API.BaseURL }},
		{"api.timeout", p.API.Timeout != 0, func() { dst.API.Timeout = p.API.Timeout }},
		{"languages.source", p.Languages.Source != "", func() { dst.Languages.Source = p.Languages.Source }},
		{"languages.target", p.Languages.Target != "", func() { dst.Languages.Target = p.Languages.Target }},
		{"audio.backend", p.Audio.Backend != "", func() { dst.Audio.Backend = p.Audio.Backend }},
		{"audio.source", p.Audio.Source != "", func() { dst.Audio.Source = p.Audio.Source }},
		{"audio.sample_rate", p.Audio.SampleRate != 0, func() { dst.Audio.SampleRate = p.Audio.SampleRate }},
		{"audio.channels", p.Audio.Channels != 0, func() { dst.Audio.Channels = p.Audio.Channels }},
		{"audio.fragment_size", p.Audio.FragmentSize != 0, func() { dst.Audio.FragmentSize = p.Audio.FragmentSize }},
		{"playback.player", p.Playback.Player != "", func() { dst.Playback.Player = p.Playback.Player }},
		{"playback.autoplay", explicit("playback.autoplay"), func() { dst.Playback.Autoplay = p.Playback.Autoplay }},
		{"output.download_directory", p.Output.DownloadDirectory != "", func() { dst.Output.DownloadDirectory = p.Output.DownloadDirectory }},
		{"metrics.address", p.Metrics.Address != "", func() { dst.Metrics.Address = p.Metrics.Address }},
	}
}

// Keys lists the configuration keys in display order.
func Keys() []string {
	return []string{
		"api.host", "api.base_url", "api.timeout",
		"languages.source", "languages.target",
		"audio.backend", "audio.source", "audio.sample_rate", "audio.channels", "audio.fragment_size",
		"playback.player", "playback.autoplay",
		"output.download_directory",
		"metrics.address",
	}
}

// Validate checks the resolved configuration. Language codes are not checked
// beyond being present; the backend decides what it accepts.
func Validate(cfg *Config) error {
	if cfg.Languages.Source == "" {
		return fmt.Errorf("languages.source is required")
	}
	if cfg.Languages.Target == "" {
		return fmt.Errorf("languages.target is required")
	}

	switch strings.ToLower(cfg.Audio.Backend) {
	case "", "auto", "pipewire", "pulse":
	default:
		return fmt.Errorf("audio.backend must be 'pipewire', 'pulse' or 'auto', got: %s", cfg.Audio.Backend)
	}

	if cfg.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be > 0, got: %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 1 && cfg.Audio.Channels != 2 {
		return fmt.Errorf("audio.channels must be 1 or 2, got: %d", cfg.Audio.Channels)
	}
	if cfg.Audio.FragmentSize <= 0 {
		return fmt.Errorf("audio.fragment_size must be > 0, got: %d", cfg.Audio.FragmentSize)
	}
	if cfg.Audio.Source != "" && !isValidAudioSource(cfg.Audio.Source) {
		return fmt.Errorf("audio.source must be a valid audio source, got: %s", cfg.Audio.Source)
	}

	if cfg.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must be >= 0, got: %s", cfg.API.Timeout)
	}
	if !strings.HasPrefix(cfg.API.BaseURL, "http://") && !strings.HasPrefix(cfg.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must be an http(s) URL, got: %s", cfg.API.BaseURL)
	}

	return nil
}

// isValidAudioSource accepts pulse source names and JACK "device:port" names.
// Device names may themselves contain colons, so the port is the last segment.
func isValidAudioSource(source string) bool {
	source = strings.TrimSpace(source)
	if source == "" {
		return false
	}

	idx := strings.LastIndex(source, ":")
	if idx == -1 {
		return true
	}

	device := strings.TrimSpace(source[:idx])
	port := strings.TrimSpace(source[idx+1:])
	return device != "" && port != ""
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
