package dns

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DriverID is the registry id of the DNS driver.
const DriverID = "dns"

// Pattern matches bare domain names.
const Pattern = `^((?:(?:[a-zA-Z0-9]|[a-zA-Z0-9][a-zA-Z0-9\-]*[a-zA-Z0-9])\.)*(?:[A-Za-z0-9]|[A-Za-z0-9][A-Za-z0-9\-]*[A-Za-z0-9]))$`

// Config holds DNS driver configuration.
type Config struct {
	Enabled    bool          `mapstructure:"enabled"`
	Servers    []string      `mapstructure:"servers"` // host[:port]; entries may be ';' separated
	ResolvConf string        `mapstructure:"resolv_conf"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// SetDefaults sets viper defaults for DNS configuration.
func (c *Config) SetDefaults(v *viper.Viper, prefix string) {
	p := ""
	if prefix != "" {
		p = prefix + "."
	}
	v.SetDefault(p+"enabled", true)
	v.SetDefault(p+"servers", []string{})
	v.SetDefault(p+"resolv_conf", DefaultResolvConf)
	v.SetDefault(p+"timeout", "5s")
}

// ServerList flattens Servers, splitting entries on ';'.
func (c *Config) ServerList() []string {
	var out []string
	for _, entry := range c.Servers {
		for _, s := range strings.Split(entry, ";") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Services holds the DNS driver.
type Services struct {
	Driver *Driver
}

// Initialize creates the driver, or returns nil when disabled.
func (c *Config) Initialize(ctx context.Context, logger *slog.Logger) (*Services, error) {
	if !c.Enabled {
		return nil, nil
	}
	d, err := NewDriver(c.ServerList(), c.ResolvConf, c.Timeout, logger)
	if err != nil {
		return nil, err
	}
	return &Services{Driver: d}, nil
}

// Close is a no-op; DNS exchanges hold no connections.
func (s *Services) Close() error {
	return nil
}
