// Package config loads the YAML configuration shared by the infinitygrid
// hosts. Values missing from the file keep their defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sushant-115/infinitygrid/core/datasource"
	"github.com/sushant-115/infinitygrid/core/scroller"
	"github.com/sushant-115/infinitygrid/core/viewport"
	"github.com/sushant-115/infinitygrid/pkg/logger"
	"github.com/sushant-115/infinitygrid/pkg/telemetry"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Provider kinds.
const (
	ProviderGenerated = "generated"
	ProviderSQLite    = "sqlite"
	ProviderRemote    = "remote"
)

// ProviderConfig selects and tunes the row provider.
type ProviderConfig struct {
	// Kind is "generated", "sqlite" or "remote".
	Kind string `yaml:"kind"`
	// Rows is the size of a generated collection, or the number of demo rows
	// seeded into an empty SQLite table.
	Rows int `yaml:"rows"`
	// Latency is added to every generated fetch.
	Latency       time.Duration `yaml:"latency"`
	SQLitePath    string        `yaml:"sqlite_path"`
	RemoteAddress string        `yaml:"remote_address"`
	// RateLimit caps provider calls per second. Zero means unlimited.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// ServerConfig is the row server's listen configuration.
type ServerConfig struct {
	GRPCAddress string `yaml:"grpc_address"`
}

// Config is the full host configuration.
type Config struct {
	Logger     logger.Config     `yaml:"logger"`
	Telemetry  telemetry.Config  `yaml:"telemetry"`
	DataSource datasource.Config `yaml:"datasource"`
	Viewport   viewport.Config   `yaml:"viewport"`
	Scroller   scroller.Config   `yaml:"scroller"`
	Provider   ProviderConfig    `yaml:"provider"`
	Server     ServerConfig      `yaml:"server"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Logger: logger.Config{Level: "info", Format: "json", OutputFile: "stderr"},
		Telemetry: telemetry.Config{
			ServiceName:      logger.ServiceName,
			TraceSampleRatio: 1,
		},
		// Provider calls run to completion unless a fetch_timeout is set.
		DataSource: datasource.Config{},
		Viewport:   viewport.DefaultConfig(),
		Scroller:   scroller.DefaultConfig(),
		Provider: ProviderConfig{
			Kind:    ProviderGenerated,
			Rows:    1_000_000,
			Latency: 500 * time.Millisecond,
			Burst:   1,
		},
		Server: ServerConfig{GRPCAddress: "localhost:50061"},
	}
}

// Load reads path over Default and validates the result. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports every problem in c at once.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.DataSource.PageSize < 0 {
		bad("datasource.page_size must not be negative, got %d", c.DataSource.PageSize)
	}
	if c.DataSource.FetchTimeout < 0 {
		bad("datasource.fetch_timeout must not be negative, got %s", c.DataSource.FetchTimeout)
	}

	if c.Viewport.PrefetchNorth < 0 || c.Viewport.PrefetchSouth < 0 {
		bad("viewport prefetch zones must not be negative")
	}
	if c.Viewport.Tolerance < 0 {
		bad("viewport.tolerance must not be negative, got %g", c.Viewport.Tolerance)
	}
	if len(c.Viewport.SafeHeights) == 0 {
		bad("viewport.safe_heights must not be empty")
	}
	for i, h := range c.Viewport.SafeHeights {
		if h <= 0 {
			bad("viewport.safe_heights[%d] must be positive, got %g", i, h)
		}
		if i > 0 && h >= c.Viewport.SafeHeights[i-1] {
			bad("viewport.safe_heights must be strictly descending at index %d", i)
		}
	}

	if c.Scroller.Debounce <= 0 {
		bad("scroller.debounce must be positive, got %s", c.Scroller.Debounce)
	}

	switch c.Provider.Kind {
	case ProviderGenerated:
		if c.Provider.Rows < 0 {
			bad("provider.rows must not be negative, got %d", c.Provider.Rows)
		}
	case ProviderSQLite:
		if c.Provider.SQLitePath == "" {
			bad("provider.sqlite_path is required for the sqlite provider")
		}
	case ProviderRemote:
		if c.Provider.RemoteAddress == "" {
			bad("provider.remote_address is required for the remote provider")
		}
	default:
		bad("unknown provider.kind %q", c.Provider.Kind)
	}
	if c.Provider.RateLimit < 0 {
		bad("provider.rate_limit must not be negative, got %g", c.Provider.RateLimit)
	}

	return errors.Join(errs...)
}
