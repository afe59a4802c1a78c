package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "speaktranslate.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	return path
}

func TestResolveBaseURL(t *testing.T) {
	tests := []struct {
		host     string
		override string
		want     string
	}{
		{"localhost", "", LocalBaseURL},
		{"127.0.0.1", "", LocalBaseURL},
		{" LocalHost ", "", LocalBaseURL},
		{"", "", RemoteBaseURL},
		{"translate.example.com", "", RemoteBaseURL},
		{"localhost", "http://10.0.0.5:8000/", "http://10.0.0.5:8000"},
	}

	for _, tt := range tests {
		if got := ResolveBaseURL(tt.host, tt.override); got != tt.want {
			t.Errorf("ResolveBaseURL(%q, %q) = %q, want %q", tt.host, tt.override, got, tt.want)
		}
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "")
	if err != nil {
		t.Fatalf("Expected no error for missing config file, got: %v", err)
	}

	if cfg.API.BaseURL != RemoteBaseURL {
		t.Errorf("Expected remote base URL, got %s", cfg.API.BaseURL)
	}
	if cfg.Languages.Source != "en" || cfg.Languages.Target != "es" {
		t.Errorf("Unexpected default languages: %+v", cfg.Languages)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 {
		t.Errorf("Unexpected default audio config: %+v", cfg.Audio)
	}
	if cfg.API.Timeout != 2*time.Minute {
		t.Errorf("Expected 2m timeout, got %s", cfg.API.Timeout)
	}
	if !cfg.Playback.Autoplay {
		t.Error("Expected autoplay enabled by default")
	}
}

func TestLoad_LoopbackHostSelectsLocalBackend(t *testing.T) {
	path := createTempConfig(t, `
api:
  host: localhost
languages:
  source: fr
  target: de
`)

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.API.BaseURL != LocalBaseURL {
		t.Errorf("Expected %s, got %s", LocalBaseURL, cfg.API.BaseURL)
	}
	if cfg.Languages.Source != "fr" || cfg.Languages.Target != "de" {
		t.Errorf("Languages not loaded: %+v", cfg.Languages)
	}
}

func TestLoad_ProfileOverridesBase(t *testing.T) {
	path := createTempConfig(t, `
active_config: travel
api:
  timeout: 30s
languages:
  source: en
  target: es
audio:
  backend: pulse
configs:
  travel:
    languages:
      target: ja
    api:
      host: 127.0.0.1
  studio:
    audio:
      backend: pipewire
      source: "Scarlett 2i2 USB: Audio (hw:1,0):0"
`)

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Profile != "travel" {
		t.Errorf("Expected active profile 'travel', got %q", cfg.Profile)
	}
	if cfg.Languages.Source != "en" || cfg.Languages.Target != "ja" {
		t.Errorf("Expected en->ja, got %+v", cfg.Languages)
	}
	if cfg.API.BaseURL != LocalBaseURL {
		t.Errorf("Expected profile host to select local backend, got %s", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 30*time.Second {
		t.Errorf("Expected inherited 30s timeout, got %s", cfg.API.Timeout)
	}
	if cfg.Audio.Backend != "pulse" {
		t.Errorf("Expected inherited backend 'pulse', got %s", cfg.Audio.Backend)
	}

	if cfg.Inheritance["languages.target"] != "profile-specific" {
		t.Errorf("Expected languages.target profile-specific, got %s", cfg.Inheritance["languages.target"])
	}
	if cfg.Inheritance["languages.source"] != "inherited" {
		t.Errorf("Expected languages.source inherited, got %s", cfg.Inheritance["languages.source"])
	}

	// Explicit profile flag wins over active_config
	cfg, err = Load(path, "studio")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.Audio.Backend != "pipewire" || cfg.Audio.Source != "Scarlett 2i2 USB: Audio (hw:1,0):0" {
		t.Errorf("Studio profile not applied: %+v", cfg.Audio)
	}
	if cfg.Languages.Target != "es" {
		t.Errorf("Expected inherited target 'es', got %s", cfg.Languages.Target)
	}
}

func TestLoad_ProfileDisablesAutoplay(t *testing.T) {
	path := createTempConfig(t, `
playback:
  autoplay: true
configs:
  quiet:
    playback:
      autoplay: false
  loud:
    languages:
      target: de
`)

	cfg, err := Load(path, "quiet")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.Playback.Autoplay {
		t.Error("Expected profile to turn autoplay off")
	}
	if cfg.Inheritance["playback.autoplay"] != "profile-specific" {
		t.Errorf("Expected playback.autoplay profile-specific, got %s", cfg.Inheritance["playback.autoplay"])
	}

	cfg, err = Load(path, "loud")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !cfg.Playback.Autoplay {
		t.Error("Expected inherited autoplay to stay on")
	}
	if cfg.Inheritance["playback.autoplay"] != "inherited" {
		t.Errorf("Expected playback.autoplay inherited, got %s", cfg.Inheritance["playback.autoplay"])
	}
}

func TestLoad_UnknownProfile(t *testing.T) {
	path := createTempConfig(t, `
languages:
  source: en
  target: es
`)

	_, err := Load(path, "missing")
	if err == nil {
		t.Fatal("Expected error for unknown profile")
	}
	if !strings.Contains(err.Error(), "configuration profile 'missing' not found") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("SPEAKTRANSLATE_LANGUAGES_TARGET", "it")
	t.Setenv("SPEAKTRANSLATE_API_BASE_URL", "http://translator.internal:9000")

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.Languages.Target != "it" {
		t.Errorf("Expected env target 'it', got %s", cfg.Languages.Target)
	}
	if cfg.API.BaseURL != "http://translator.internal:9000" {
		t.Errorf("Expected env base URL, got %s", cfg.API.BaseURL)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := createTempConfig(t, "languages: [unterminated")

	if _, err := Load(path, ""); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(c *Config) {}, ""},
		{"empty source language", func(c *Config) { c.Languages.Source = "" }, "languages.source is required"},
		{"empty target language", func(c *Config) { c.Languages.Target = "" }, "languages.target is required"},
		{"unknown backend", func(c *Config) { c.Audio.Backend = "coreaudio" }, "audio.backend must be"},
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }, "audio.sample_rate must be > 0"},
		{"three channels", func(c *Config) { c.Audio.Channels = 3 }, "audio.channels must be 1 or 2"},
		{"zero fragment size", func(c *Config) { c.Audio.FragmentSize = 0 }, "audio.fragment_size must be > 0"},
		{"source without port", func(c *Config) { c.Audio.Source = "device:" }, "audio.source must be a valid audio source"},
		{"jack source", func(c *Config) { c.Audio.Source = "system:capture_1" }, ""},
		{"pulse source", func(c *Config) { c.Audio.Source = "alsa_input.usb-mic" }, ""},
		{"non-http base URL", func(c *Config) { c.API.BaseURL = "ftp://example.com" }, "api.base_url must be an http(s) URL"},
		{"unvalidated language codes", func(c *Config) { c.Languages.Target = "not-a-language" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestMergeConfigs_NoProfile(t *testing.T) {
	base := Default()
	result := mergeConfigs(base, nil, nil)

	if result.Languages != base.Languages {
		t.Errorf("Expected base languages, got %+v", result.Languages)
	}
	for _, key := range Keys() {
		if result.Inheritance[key] != "inherited" {
			t.Errorf("Expected %s inherited, got %s", key, result.Inheritance[key])
		}
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := expandPath("~/Downloads"); got != filepath.Join(home, "Downloads") {
		t.Errorf("Expected tilde expansion, got %s", got)
	}
	if got := expandPath("/tmp/out"); got != "/tmp/out" {
		t.Errorf("Expected absolute path untouched, got %s", got)
	}
}
