package ccp

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// DriverID is the registry id of the ccp driver.
const DriverID = "ccp"

// Pattern is the registry pattern of the ccp driver.
const Pattern = `^did:ccp:.+$`

// Config holds ccp driver configuration.
type Config struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SetDefaults sets viper defaults for ccp configuration.
func (c *Config) SetDefaults(v *viper.Viper, prefix string) {
	p := ""
	if prefix != "" {
		p = prefix + "."
	}
	v.SetDefault(p+"enabled", false)
	v.SetDefault(p+"url", DefaultURL)
	v.SetDefault(p+"timeout", "30s")
}

// Services holds the ccp driver.
type Services struct {
	Driver *Driver
}

// Initialize creates the driver, or returns nil when disabled.
func (c *Config) Initialize(ctx context.Context, logger *slog.Logger) (*Services, error) {
	if !c.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := NewDriver(c.URL, c.Timeout, logger)
	logger.Info("ccp driver initialized", "url", d.baseURL)
	return &Services{Driver: d}, nil
}

// Close closes the driver.
func (s *Services) Close() error {
	if s == nil || s.Driver == nil {
		return nil
	}
	return s.Driver.Close()
}
