// Package config loads kasa's global configuration from
// ~/.kasa/config.json with environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Config is the global kasa config stored at ~/.kasa/config.json.
type Config struct {
	RemoteURL        string `json:"remote_url"`
	APIKey           string `json:"api_key"`
	DataDir          string `json:"data_dir,omitempty"`
	DeviceID         string `json:"device_id,omitempty"`
	FullSyncInterval string `json:"full_sync_interval,omitempty"` // duration string, default "15m"
	SyncPageSize     *int   `json:"sync_page_size,omitempty"`     // nil = default 500
}

const (
	defaultFullSyncInterval = 15 * time.Minute
	defaultSyncPageSize     = 500
)

// ConfigDir returns ~/.kasa, creating it if necessary.
func ConfigDir() (string, error) {
	if v := os.Getenv("KASA_CONFIG_DIR"); v != "" {
		if err := os.MkdirAll(v, 0755); err != nil {
			return "", fmt.Errorf("create config dir: %w", err)
		}
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".kasa")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// Load reads the global config from ~/.kasa/config.json.
// A missing file yields an empty config, not an error.
func Load() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config.json: %w", err)
	}
	return &cfg, nil
}

// Save writes the global config to ~/.kasa/config.json (0600 perms,
// the file carries the API key).
func Save(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0600)
}

// RemoteURL returns the remote store base URL.
// Priority: KASA_REMOTE_URL env > config.json.
func RemoteURL() string {
	if v := os.Getenv("KASA_REMOTE_URL"); v != "" {
		return v
	}
	cfg, err := Load()
	if err == nil && cfg.RemoteURL != "" {
		return cfg.RemoteURL
	}
	return ""
}

// APIKey returns the remote store API key.
// Priority: KASA_API_KEY env > config.json.
func APIKey() string {
	if v := os.Getenv("KASA_API_KEY"); v != "" {
		return v
	}
	cfg, err := Load()
	if err == nil {
		return cfg.APIKey
	}
	return ""
}

// DataDir returns the directory holding the local cache and sync state.
// Priority: KASA_DATA_DIR env > config.json > ~/.kasa/data.
func DataDir() (string, error) {
	if v := os.Getenv("KASA_DATA_DIR"); v != "" {
		return v, nil
	}
	cfg, err := Load()
	if err == nil && cfg.DataDir != "" {
		return cfg.DataDir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// FullSyncInterval returns the safety-net interval after which a delta
// sync is promoted to a full sync.
// Priority: KASA_FULL_SYNC_INTERVAL env > config.json > 15m.
func FullSyncInterval() time.Duration {
	if v := os.Getenv("KASA_FULL_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	cfg, err := Load()
	if err == nil && cfg.FullSyncInterval != "" {
		if d, err := time.ParseDuration(cfg.FullSyncInterval); err == nil && d > 0 {
			return d
		}
	}
	return defaultFullSyncInterval
}

// SyncPageSize returns the per-request row limit for sync fetches.
// Priority: KASA_SYNC_PAGE_SIZE env > config.json > 500.
func SyncPageSize() int {
	if v := os.Getenv("KASA_SYNC_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	cfg, err := Load()
	if err == nil && cfg.SyncPageSize != nil && *cfg.SyncPageSize > 0 {
		return *cfg.SyncPageSize
	}
	return defaultSyncPageSize
}

// DeviceID returns the persisted device ID, generating and saving one
// on first use.
func DeviceID() (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}
	if cfg.DeviceID != "" {
		return cfg.DeviceID, nil
	}
	cfg.DeviceID = uuid.NewString()
	if err := Save(cfg); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return cfg.DeviceID, nil
}
