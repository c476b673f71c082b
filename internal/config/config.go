// Package config loads, validates, and persists the client's JSON config
// file.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opensync/syftsync/internal/utils"
)

var (
	home, _            = os.UserHomeDir()
	DefaultConfigPath  = filepath.Join(home, ".syftbox", "config.json")
	DefaultDataDir     = filepath.Join(home, "SyftBox")
	DefaultServerURL   = "https://syftboxdev.openmined.org"
	DefaultClientURL   = "http://localhost:7938"
	DefaultLogFilePath = filepath.Join(home, ".syftbox", "logs", "syftbox.log")
	DefaultAppsEnabled = true

	// DefaultSyncInterval is the delay between sync loop ticks.
	DefaultSyncInterval = 10 * time.Second
	// DefaultMaxUploadSize rejects uploads larger than this locally, before
	// any network call; no server-advertised limit is consulted.
	DefaultMaxUploadSize int64 = 512 * 1024 * 1024
)

var (
	ErrInvalidURL   = utils.ErrInvalidURL
	ErrInvalidEmail = utils.ErrInvalidEmail
)

// Config is the client's on-disk configuration. RefreshToken is carried as
// an opaque pass-through: auth itself is out of scope, so the value is
// never parsed or validated here, only stored and handed back.
type Config struct {
	DataDir       string        `json:"data_dir" mapstructure:"data_dir"`
	Email         string        `json:"email" mapstructure:"email"`
	ServerURL     string        `json:"server_url" mapstructure:"server_url"`
	ClientURL     string        `json:"client_url,omitempty" mapstructure:"client_url,omitempty"`
	SyncInterval  time.Duration `json:"sync_interval,omitempty" mapstructure:"sync_interval,omitempty"`
	MaxUploadSize int64         `json:"max_upload_size,omitempty" mapstructure:"max_upload_size,omitempty"`
	AppsEnabled   bool          `json:"apps_enabled,omitempty" mapstructure:"apps_enabled"`
	RefreshToken  string        `json:"refresh_token,omitempty" mapstructure:"refresh_token,omitempty"`
	AccessToken   string        `json:"-" mapstructure:"access_token"` // never persisted, in-memory only
	Path          string        `json:"-" mapstructure:"config_path"`
}

// Save atomically persists the config as JSON; AccessToken is always
// excluded (json:"-").
func (c *Config) Save() error {
	if err := utils.EnsureParent(c.Path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.Path), ".tmp-config-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, c.Path)
}

// Validate normalizes and checks the config, filling in defaults.
func (c *Config) Validate() error {
	if c.Path == "" {
		c.Path = DefaultConfigPath
	}

	var err error
	c.DataDir, err = utils.ResolvePath(c.DataDir)
	if err != nil {
		return err
	}

	c.Email = strings.ToLower(c.Email)
	if err := utils.ValidateEmail(c.Email); err != nil {
		return err
	}

	if err := utils.ValidateURL(c.ServerURL); err != nil {
		return fmt.Errorf("server url: %w", err)
	}

	if c.ClientURL == "" {
		c.ClientURL = DefaultClientURL
	}
	if err := utils.ValidateURL(c.ClientURL); err != nil {
		return fmt.Errorf("client url: %w", err)
	}

	if c.SyncInterval <= 0 {
		c.SyncInterval = DefaultSyncInterval
	}
	if c.MaxUploadSize <= 0 {
		c.MaxUploadSize = DefaultMaxUploadSize
	}

	// refresh token intentionally unvalidated: auth is out of scope here.

	return nil
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("data_dir", c.DataDir),
		slog.String("email", c.Email),
		slog.String("server_url", c.ServerURL),
		slog.String("client_url", c.ClientURL),
		slog.Duration("sync_interval", c.SyncInterval),
		slog.Int64("max_upload_size", c.MaxUploadSize),
		slog.Bool("apps_enabled", c.AppsEnabled),
		slog.Bool("refresh_token", c.RefreshToken != ""),
		slog.String("path", c.Path),
	)
}

// LoadFromFile reads and parses the config at path.
func LoadFromFile(path string) (*Config, error) {
	path, err := utils.ResolvePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer data.Close()

	return LoadFromReader(path, data)
}

// LoadFromReader parses config JSON from reader, stamping Path on the result.
func LoadFromReader(path string, reader io.ReadCloser) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	cfg := Config{AppsEnabled: DefaultAppsEnabled}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.Path = path
	return &cfg, nil
}
