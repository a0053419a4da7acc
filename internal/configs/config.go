package configs

import (
	"fmt"
	"os"
	"strings"
	"time"

	kerrors "github.com/PolarWolf314/keysync/internal/errors"
)

// Store drivers.
const (
	StoreFile     = "file"
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Remote drivers.
const (
	RemoteNone  = "none"
	RemoteRedis = "redis"
	RemoteHTTP  = "http"
)

// DatabaseURLEnv is read when [store] dsn is empty.
const DatabaseURLEnv = "KEYSYNC_DATABASE_URL"

type Config struct {
	Key    KeyConfig    `toml:"key"`
	Store  StoreConfig  `toml:"store"`
	Remote RemoteConfig `toml:"remote"`
	Sync   SyncConfig   `toml:"sync"`
}

type KeyConfig struct {
	Curve string `toml:"curve"`
}

type StoreConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path,omitempty"`
	DSN    string `toml:"dsn,omitempty"`
}

type RemoteConfig struct {
	Driver   string   `toml:"driver"`
	Addr     string   `toml:"addr,omitempty"`
	Account  string   `toml:"account,omitempty"`
	Password string   `toml:"password,omitempty"`
	DB       int      `toml:"db,omitempty"`
	Timeout  Duration `toml:"timeout"`
}

type SyncConfig struct {
	StatusAttempts int      `toml:"status_attempts"`
	StatusBackoff  Duration `toml:"status_backoff"`
	GracePeriod    Duration `toml:"grace_period"`
	PollInterval   Duration `toml:"poll_interval"`
}

// Duration is a time.Duration written as a string in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Key:   KeyConfig{Curve: "p256"},
		Store: StoreConfig{Driver: StoreFile},
		Remote: RemoteConfig{
			Driver:  RemoteNone,
			Timeout: Duration{5 * time.Second},
		},
		Sync: SyncConfig{
			StatusAttempts: 3,
			StatusBackoff:  Duration{time.Second},
			GracePeriod:    Duration{3 * time.Second},
			PollInterval:   Duration{500 * time.Millisecond},
		},
	}
}

// LoadConfig reads the configuration at path on top of the defaults.
// A missing file returns the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	if err := LoadTOML(path, config); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", kerrors.ErrInvalidConfig, path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig writes config to path.
func SaveConfig(path string, config *Config) error {
	if err := config.Validate(); err != nil {
		return err
	}

	if err := SaveTOML(path, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks driver names and timing values.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreFile, StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("%w: store driver %q", kerrors.ErrUnknownDriver, c.Store.Driver)
	}

	switch c.Remote.Driver {
	case RemoteNone, RemoteRedis, RemoteHTTP:
	default:
		return fmt.Errorf("%w: remote driver %q", kerrors.ErrUnknownDriver, c.Remote.Driver)
	}

	if c.Remote.Driver == RemoteHTTP && c.Remote.Addr == "" {
		return fmt.Errorf("%w: remote driver http needs an addr", kerrors.ErrInvalidConfig)
	}
	if c.Sync.StatusAttempts < 1 {
		return fmt.Errorf("%w: sync.status_attempts must be at least 1", kerrors.ErrInvalidConfig)
	}
	if c.Sync.StatusBackoff.Duration < 0 || c.Sync.GracePeriod.Duration < 0 {
		return fmt.Errorf("%w: sync durations must not be negative", kerrors.ErrInvalidConfig)
	}
	if c.Sync.PollInterval.Duration <= 0 {
		return fmt.Errorf("%w: sync.poll_interval must be positive", kerrors.ErrInvalidConfig)
	}

	return nil
}

// StorePath returns the file store location, defaulting to the data directory.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return DefaultStorePath()
}

// DatabaseURL returns the Postgres DSN, falling back to KEYSYNC_DATABASE_URL.
func (c *Config) DatabaseURL() string {
	if c.Store.DSN != "" {
		return c.Store.DSN
	}
	return os.Getenv(DatabaseURLEnv)
}

// Account returns the remote account, defaulting to the current username.
func (c *Config) Account() string {
	if c.Remote.Account != "" {
		return c.Remote.Account
	}
	return UserKeysyncSettings.Username
}
