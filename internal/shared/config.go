package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Storage StorageConfig `toml:"storage"`
	Player  PlayerConfig  `toml:"player"`
	Cache   CacheConfig   `toml:"cache"`
	Server  ServerConfig  `toml:"server"`
	Logging LoggingConfig `toml:"logging"`
}

// SpotifyConfig contains the public PKCE client settings and provider endpoints.
//
// No client secret is needed: the PKCE verifier stands in for it.
type SpotifyConfig struct {
	ClientID    string `toml:"client_id"`
	RedirectURI string `toml:"redirect_uri"`
	AuthURL     string `toml:"auth_url"`
	TokenURL    string `toml:"token_url"`
	APIURL      string `toml:"api_url"`
}

// StorageConfig selects the key/value backend that persists tokens.
type StorageConfig struct {
	Backend string `toml:"backend"` // sqlite, bolt or memory
	Path    string `toml:"path"`
}

// PlayerConfig controls the Connect device the player attaches to.
type PlayerConfig struct {
	DeviceName         string  `toml:"device_name"`
	Volume             float64 `toml:"volume"`
	InitTimeoutSeconds int     `toml:"init_timeout_seconds"`
	PollIntervalMS     int     `toml:"poll_interval_ms"`
}

// CacheConfig sizes in-memory caches.
type CacheConfig struct {
	TrackMetadataSize int `toml:"track_metadata_size"`
}

// ServerConfig contains HTTP server settings for `vinyl serve`.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoggingConfig contains the log level name understood by charmbracelet/log.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// InitTimeout returns the player initialization bound as a [time.Duration].
func (p PlayerConfig) InitTimeout() time.Duration {
	if p.InitTimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(p.InitTimeoutSeconds) * time.Second
}

// PollInterval returns the Connect polling interval as a [time.Duration].
func (p PlayerConfig) PollInterval() time.Duration {
	if p.PollIntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(p.PollIntervalMS) * time.Millisecond
}

// Validate reports configuration that would make login impossible.
func (c *Config) Validate() error {
	if c.Spotify.ClientID == "" || c.Spotify.ClientID == "your_spotify_client_id" {
		return fmt.Errorf("%w: spotify.client_id must be set", ErrInvalidConfig)
	}
	if c.Spotify.RedirectURI == "" {
		return fmt.Errorf("%w: spotify.redirect_uri must be set", ErrInvalidConfig)
	}
	switch c.Storage.Backend {
	case "sqlite", "bolt", "memory":
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage.Backend)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path as TOML, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
