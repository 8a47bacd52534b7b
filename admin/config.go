package admin

import (
	"context"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/b-open-io/did-resolver/pkg/btcr"
)

const (
	// ModeDisabled disables admin
	ModeDisabled = "disabled"
	// ModeEnabled enables admin
	ModeEnabled = "enabled"
)

// Config holds admin configuration
type Config struct {
	Mode   string       `mapstructure:"mode"`
	Routes RoutesConfig `mapstructure:"routes"`
}

// RoutesConfig holds route configuration
type RoutesConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Prefix  string `mapstructure:"prefix"`
}

// Services holds admin service instances
type Services struct {
	Routes *Routes
}

// InitializeDeps holds dependencies for admin initialization
type InitializeDeps struct {
	Index *btcr.AnchorIndex
}

// SetDefaults sets default configuration values
func (c *Config) SetDefaults(v *viper.Viper, prefix string) {
	v.SetDefault(prefix+".mode", ModeEnabled)
	v.SetDefault(prefix+".routes.enabled", true)
	v.SetDefault(prefix+".routes.prefix", "/admin")
}

// Initialize creates admin services from configuration. The anchor API
// needs the store; without an index there is nothing to administer.
func (c *Config) Initialize(ctx context.Context, logger *slog.Logger, deps *InitializeDeps) (*Services, error) {
	if c.Mode == ModeDisabled {
		return nil, nil
	}

	if logger == nil {
		logger = slog.Default()
	}

	svc := &Services{}

	if c.Routes.Enabled && deps != nil && deps.Index != nil {
		svc.Routes = NewRoutes(deps.Index, &c.Routes, logger)
	}

	logger.Info("admin service initialized", "mode", c.Mode, "anchors", svc.Routes != nil)
	return svc, nil
}

// Close cleans up admin services
func (svc *Services) Close() error {
	return nil
}
