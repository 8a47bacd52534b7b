package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"
)

// Mode constants
const (
	ModeDisabled = "disabled"
	ModeEmbedded = "embedded"
	ModeRemote   = "remote"
)

// Provider constants
const (
	ProviderBadger = "badger"
	ProviderRedis  = "redis"
)

// Config holds store configuration.
type Config struct {
	Mode     string       `mapstructure:"mode"`     // disabled, embedded, remote
	Provider string       `mapstructure:"provider"` // badger (embedded), redis (remote)
	Badger   BadgerConfig `mapstructure:"badger"`   // Badger-specific config
	Redis    RedisConfig  `mapstructure:"redis"`    // Redis-specific config
}

// BadgerConfig holds Badger-specific configuration
type BadgerConfig struct {
	Path     string `mapstructure:"path"`      // Path to database directory
	InMemory bool   `mapstructure:"in_memory"` // Use in-memory storage
	LogLevel string `mapstructure:"log_level"` // Badger's own log output
}

// SetDefaults sets viper defaults for store configuration.
func (c *Config) SetDefaults(v *viper.Viper, prefix string) {
	p := ""
	if prefix != "" {
		p = prefix + "."
	}
	v.SetDefault(p+"mode", ModeDisabled)
	v.SetDefault(p+"provider", ProviderBadger)
	v.SetDefault(p+"badger.path", "~/.didresolver/store")
	v.SetDefault(p+"badger.in_memory", false)
	v.SetDefault(p+"badger.log_level", "warn")
	v.SetDefault(p+"redis.addr", "localhost:6379")
	v.SetDefault(p+"redis.db", 0)
}

// Services holds initialized store services.
type Services struct {
	Store Store
}

// Initialize creates a Store from the configuration.
func (c *Config) Initialize(ctx context.Context, logger *slog.Logger) (*Services, error) {
	if c.Mode == ModeDisabled || c.Mode == "" {
		return nil, nil
	}

	if logger == nil {
		logger = slog.Default()
	}

	switch c.Mode {
	case ModeEmbedded:
		return c.initializeEmbedded(logger)

	case ModeRemote:
		return c.initializeRemote(logger)

	default:
		return nil, fmt.Errorf("unknown store mode: %s", c.Mode)
	}
}

// initializeEmbedded creates an embedded store based on provider
func (c *Config) initializeEmbedded(logger *slog.Logger) (*Services, error) {
	switch c.Provider {
	case ProviderBadger, "": // Default to badger if empty
		store, err := NewBadgerStoreFromConfig(&c.Badger, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize badger store: %w", err)
		}
		return &Services{Store: store}, nil

	default:
		return nil, fmt.Errorf("unknown embedded store provider: %s", c.Provider)
	}
}

// initializeRemote connects to a store server
func (c *Config) initializeRemote(logger *slog.Logger) (*Services, error) {
	switch c.Provider {
	case ProviderRedis:
		store, err := NewRedisStore(&c.Redis, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis store: %w", err)
		}
		return &Services{Store: store}, nil

	default:
		return nil, fmt.Errorf("unknown remote store provider: %s", c.Provider)
	}
}

// Close closes the store.
func (s *Services) Close() error {
	if s != nil && s.Store != nil {
		return s.Store.Close()
	}
	return nil
}
