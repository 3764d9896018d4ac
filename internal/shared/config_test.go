package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Storage.Backend != "sqlite" {
			t.Errorf("expected storage backend sqlite, got %s", config.Storage.Backend)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Spotify.RedirectURI != "http://127.0.0.1:3000/callback" {
			t.Errorf("expected default redirect URI, got %s", config.Spotify.RedirectURI)
		}

		if config.Player.InitTimeout() != 20*time.Second {
			t.Errorf("expected 20s init timeout, got %v", config.Player.InitTimeout())
		}

		if config.Cache.TrackMetadataSize != 4096 {
			t.Errorf("expected track metadata cache size 4096, got %d", config.Cache.TrackMetadataSize)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nested", "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Storage.Path != DefaultConfig().Storage.Path {
			t.Errorf("created config storage path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[spotify]
client_id = "test_client_id"
redirect_uri = "http://localhost:8888/callback"

[storage]
backend = "bolt"
path = "/tmp/vinyl.bolt"

[player]
device_name = "kitchen"
init_timeout_seconds = 15
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected client_id test_client_id, got %s", config.Spotify.ClientID)
		}
		if config.Storage.Backend != "bolt" {
			t.Errorf("expected bolt backend, got %s", config.Storage.Backend)
		}
		if config.Player.InitTimeout() != 15*time.Second {
			t.Errorf("expected 15s init timeout, got %v", config.Player.InitTimeout())
		}
		if config.Spotify.TokenURL != "https://accounts.spotify.com/api/token" {
			t.Errorf("expected token URL default to survive a partial file, got %s", config.Spotify.TokenURL)
		}
		if err := config.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})

	t.Run("LoadConfig Missing File", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		config := DefaultConfig()
		if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected placeholder client_id to be rejected, got %v", err)
		}

		config.Spotify.ClientID = "abc"
		config.Storage.Backend = "redis"
		if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected unknown backend to be rejected, got %v", err)
		}
	})

	t.Run("SaveConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Spotify.ClientID = "saved_id"

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}
		if loaded.Spotify.ClientID != "saved_id" {
			t.Errorf("expected saved_id, got %s", loaded.Spotify.ClientID)
		}
	})

	t.Run("Player Durations Fall Back", func(t *testing.T) {
		var p PlayerConfig
		if p.InitTimeout() != 20*time.Second {
			t.Errorf("expected 20s fallback, got %v", p.InitTimeout())
		}
		if p.PollInterval() != time.Second {
			t.Errorf("expected 1s fallback, got %v", p.PollInterval())
		}
	})
}
