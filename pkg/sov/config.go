package sov

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/b-open-io/did-resolver/pkg/driver"
)

// DriverID is the registry id of the sov driver.
const DriverID = "sov"

// Pattern is the registry pattern of the sov driver.
const Pattern = `^did:sov:.+$`

// Config holds sov driver configuration.
type Config struct {
	Enabled        bool          `mapstructure:"enabled"`
	DefaultNetwork string        `mapstructure:"default_network"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxConcurrent  int           `mapstructure:"max_concurrent"` // requests in flight per pool
	Pools          []PoolConfig  `mapstructure:"pools"`
}

// PoolConfig describes one ledger network.
type PoolConfig struct {
	Name    string `mapstructure:"name"`
	Version int    `mapstructure:"version"`
	URL     string `mapstructure:"url"`
}

// SetDefaults sets viper defaults for sov configuration.
func (c *Config) SetDefaults(v *viper.Viper, prefix string) {
	p := ""
	if prefix != "" {
		p = prefix + "."
	}
	v.SetDefault(p+"enabled", false)
	v.SetDefault(p+"default_network", DefaultNetwork)
	v.SetDefault(p+"timeout", "30s")
	v.SetDefault(p+"max_concurrent", 8)
}

// Services holds the sov driver.
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

	networks := make([]Network, 0, len(c.Pools))
	seen := make(map[string]struct{}, len(c.Pools))
	for _, pc := range c.Pools {
		if pc.Name == "" || pc.URL == "" {
			return nil, fmt.Errorf("%w: sov pool needs a name and a url", driver.ErrConfiguration)
		}
		if _, dup := seen[pc.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate sov pool %s", driver.ErrConfiguration, pc.Name)
		}
		seen[pc.Name] = struct{}{}
		networks = append(networks, Network{
			Name:    pc.Name,
			Version: pc.Version,
			Pool:    NewHTTPPool(pc.URL, c.Timeout, c.MaxConcurrent),
		})
	}
	if len(networks) == 0 {
		return nil, fmt.Errorf("%w: sov driver has no pools", driver.ErrConfiguration)
	}

	d := NewDriver(networks, c.DefaultNetwork, logger)
	logger.Info("opened pools", "count", len(networks), "defaultNetwork", d.defaultNetwork)
	return &Services{Driver: d}, nil
}

// Close closes the pools.
func (s *Services) Close() error {
	if s == nil || s.Driver == nil {
		return nil
	}
	return s.Driver.Close()
}
