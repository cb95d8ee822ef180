// Package config loads formdoc settings from a YAML or TOML file, with
// environment overrides.
//
// Priority: environment > file > defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/formdoc/internal/lock"
	"github.com/roach88/formdoc/internal/logging"
)

// Environment variables read by Load.
const (
	EnvConfig      = "FORMDOC_CONFIG"
	EnvStorageType = "FORMDOC_STORAGE"
	EnvStoragePath = "FORMDOC_STORAGE_PATH"
	EnvStorageURL  = "FORMDOC_STORAGE_URL"
	EnvLogLevel    = "FORMDOC_LOG_LEVEL"
	EnvTemplateDir = "FORMDOC_TEMPLATES"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Config holds all formdoc settings.
type Config struct {
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Lock      LockConfig      `yaml:"lock" toml:"lock"`
	Templates TemplatesConfig `yaml:"templates" toml:"templates"`
	Logging   logging.Config  `yaml:"logging" toml:"logging"`

	// Groups maps user ids to the permission groups they belong to.
	Groups map[string][]string `yaml:"groups" toml:"groups"`
}

// StorageConfig selects where documents and lock rows live.
type StorageConfig struct {
	Type           string `yaml:"type" toml:"type"` // memory, sqlite, postgres
	Path           string `yaml:"path" toml:"path"` // SQLite file
	URL            string `yaml:"url" toml:"url"`   // PostgreSQL connection URL
	VersionHistory bool   `yaml:"version_history" toml:"version_history"`
}

// LockConfig tunes the per-document write lock.
type LockConfig struct {
	MaxAttempts int      `yaml:"max_attempts" toml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay" toml:"base_delay"`
	LeaseTTL    Duration `yaml:"lease_ttl" toml:"lease_ttl"` // 0 = rows never expire
}

// TemplatesConfig points at a directory of CUE form templates.
type TemplatesConfig struct {
	Dir   string `yaml:"dir" toml:"dir"`
	Watch bool   `yaml:"watch" toml:"watch"`
}

// Duration is a time.Duration written as a string ("250ms", "1m").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns a Config with all default values.
func Default() *Config {
	opts := lock.DefaultOptions()
	return &Config{
		Storage: StorageConfig{
			Type: StorageSQLite,
			Path: "formdoc.db",
		},
		Lock: LockConfig{
			MaxAttempts: opts.MaxAttempts,
			BaseDelay:   Duration(opts.BaseDelay),
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads the config file at path, or the file named by FORMDOC_CONFIG
// when path is empty, then applies environment overrides and validates
// the result. With no file at all the defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(string(data), c)
		if err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("parse config %s: unknown field %s", path, undecoded[0])
		}
		return nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvStorageType); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv(EnvStoragePath); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv(EnvStorageURL); v != "" {
		c.Storage.URL = v
		// A URL on its own implies postgres.
		if os.Getenv(EnvStorageType) == "" {
			c.Storage.Type = StoragePostgres
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvTemplateDir); v != "" {
		c.Templates.Dir = v
	}
	if v := os.Getenv("FORMDOC_LOCK_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FORMDOC_LOCK_ATTEMPTS: %w", err)
		}
		c.Lock.MaxAttempts = n
	}
	return nil
}

// Validate rejects unknown storage types, missing storage locations and
// out-of-range lock settings.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageMemory:
	case StorageSQLite:
		if c.Storage.Path == "" {
			return errors.New("storage.path is required for sqlite")
		}
	case StoragePostgres:
		if c.Storage.URL == "" {
			return errors.New("storage.url is required for postgres")
		}
	default:
		return fmt.Errorf("invalid storage type %q: must be memory, sqlite or postgres", c.Storage.Type)
	}

	if c.Lock.MaxAttempts < 1 {
		return fmt.Errorf("lock.max_attempts must be at least 1, got %d", c.Lock.MaxAttempts)
	}
	if c.Lock.BaseDelay < 0 {
		return errors.New("lock.base_delay must not be negative")
	}
	if c.Lock.LeaseTTL < 0 {
		return errors.New("lock.lease_ttl must not be negative")
	}
	if c.Lock.LeaseTTL > 0 && c.Lock.LeaseTTL.Duration() < lock.MinLeaseTTL {
		return fmt.Errorf("lock.lease_ttl must be 0 or at least %s", lock.MinLeaseTTL)
	}
	if c.Templates.Watch && c.Templates.Dir == "" {
		return errors.New("templates.watch requires templates.dir")
	}
	return c.Logging.Validate()
}

// LockOptions converts the lock settings for lock.NewTableLock.
func (c *Config) LockOptions() lock.Options {
	return lock.Options{
		Namespace:   lock.Namespace,
		MaxAttempts: c.Lock.MaxAttempts,
		BaseDelay:   c.Lock.BaseDelay.Duration(),
		LeaseTTL:    c.Lock.LeaseTTL.Duration(),
	}
}
