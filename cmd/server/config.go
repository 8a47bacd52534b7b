package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"

	"github.com/b-open-io/did-resolver/admin"
	"github.com/b-open-io/did-resolver/docs"
	"github.com/b-open-io/did-resolver/pkg/btcr"
	"github.com/b-open-io/did-resolver/pkg/ccp"
	"github.com/b-open-io/did-resolver/pkg/dns"
	"github.com/b-open-io/did-resolver/pkg/driver"
	"github.com/b-open-io/did-resolver/pkg/logging"
	"github.com/b-open-io/did-resolver/pkg/resolver"
	"github.com/b-open-io/did-resolver/pkg/sov"
	"github.com/b-open-io/did-resolver/pkg/store"
)

// Config holds the complete server configuration
type Config struct {
	// Server settings
	Server  ServerConfig   `mapstructure:"server"`
	Logging logging.Config `mapstructure:"logging"`

	// Core services
	Store    store.Config    `mapstructure:"store"`
	Resolver resolver.Config `mapstructure:"resolver"`

	// Drivers, registered in this order
	BTCR    btcr.Config   `mapstructure:"btcr"`
	Sov     sov.Config    `mapstructure:"sov"`
	CCP     ccp.Config    `mapstructure:"ccp"`
	DNS     dns.Config    `mapstructure:"dns"`
	Drivers driver.Config `mapstructure:"drivers"`

	// Anchor index administration
	Admin admin.Config `mapstructure:"admin"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Host     string `mapstructure:"host"`
	BasePath string `mapstructure:"base_path"`
}

// Services holds all initialized services
type Services struct {
	Store    *store.Services
	BTCR     *btcr.Services
	Sov      *sov.Services
	CCP      *ccp.Services
	DNS      *dns.Services
	Registry *driver.Registry
	Resolver *resolver.Services
	Admin    *admin.Services
}

// SetDefaults configures viper defaults for all settings
func (c *Config) SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.base_path", "/1.0")

	v.SetDefault("logging.level", "info")

	// Cascade to package configs
	c.Store.SetDefaults(v, "store")
	c.Resolver.SetDefaults(v, "resolver")
	c.BTCR.SetDefaults(v, "btcr")
	c.Sov.SetDefaults(v, "sov")
	c.CCP.SetDefaults(v, "ccp")
	c.DNS.SetDefaults(v, "dns")
	c.Drivers.SetDefaults(v, "drivers")
	c.Admin.SetDefaults(v, "admin")
}

// Initialize creates all services from the configuration. On failure the
// services created so far are closed.
func (c *Config) Initialize(ctx context.Context, logger *slog.Logger) (svc *Services, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	svc = &Services{Registry: driver.NewRegistry()}
	defer func() {
		if err != nil {
			svc.Close()
			svc = nil
		}
	}()

	// Initialize store (foundational - the btcr index and admin depend on it)
	svc.Store, err = c.Store.Initialize(ctx, c.Logging.Component(logger, "store"))
	if err != nil {
		return svc, fmt.Errorf("failed to initialize store: %w", err)
	}
	var s store.Store
	if svc.Store != nil {
		s = svc.Store.Store
	}

	svc.BTCR, err = c.BTCR.Initialize(ctx, c.Logging.Component(logger, "btcr"), s)
	if err != nil {
		return svc, fmt.Errorf("failed to initialize btcr: %w", err)
	}
	if svc.BTCR != nil {
		if err = svc.Registry.Register(btcr.DriverID, btcr.Pattern, svc.BTCR.Driver); err != nil {
			return svc, err
		}
	}

	svc.Sov, err = c.Sov.Initialize(ctx, c.Logging.Component(logger, "sov"))
	if err != nil {
		return svc, fmt.Errorf("failed to initialize sov: %w", err)
	}
	if svc.Sov != nil {
		if err = svc.Registry.Register(sov.DriverID, sov.Pattern, svc.Sov.Driver); err != nil {
			return svc, err
		}
	}

	svc.CCP, err = c.CCP.Initialize(ctx, c.Logging.Component(logger, "ccp"))
	if err != nil {
		return svc, fmt.Errorf("failed to initialize ccp: %w", err)
	}
	if svc.CCP != nil {
		if err = svc.Registry.Register(ccp.DriverID, ccp.Pattern, svc.CCP.Driver); err != nil {
			return svc, err
		}
	}

	svc.DNS, err = c.DNS.Initialize(ctx, c.Logging.Component(logger, "dns"))
	if err != nil {
		return svc, fmt.Errorf("failed to initialize dns: %w", err)
	}
	if svc.DNS != nil {
		if err = svc.Registry.Register(dns.DriverID, dns.Pattern, svc.DNS.Driver); err != nil {
			return svc, err
		}
	}

	if err = c.Drivers.Register(svc.Registry, c.Logging.Component(logger, "drivers")); err != nil {
		return svc, fmt.Errorf("failed to register remote drivers: %w", err)
	}

	svc.Resolver, err = c.Resolver.Initialize(ctx, c.Logging.Component(logger, "resolver"), svc.Registry)
	if err != nil {
		return svc, fmt.Errorf("failed to initialize resolver: %w", err)
	}

	deps := &admin.InitializeDeps{}
	if svc.BTCR != nil {
		deps.Index = svc.BTCR.Index
	}
	svc.Admin, err = c.Admin.Initialize(ctx, c.Logging.Component(logger, "admin"), deps)
	if err != nil {
		return svc, fmt.Errorf("failed to initialize admin: %w", err)
	}

	return svc, nil
}

// RegisterRoutes registers all HTTP routes on the Fiber app
func (c *Config) RegisterRoutes(app *fiber.App, svc *Services) {
	// Resolver routes live under the base path, e.g. /1.0/identifiers/...
	if svc.Resolver != nil && svc.Resolver.Routes != nil {
		svc.Resolver.Routes.Register(app, c.Server.BasePath)
	}

	if svc.Admin != nil && svc.Admin.Routes != nil {
		svc.Admin.Routes.Register(app.Group(c.Admin.Routes.Prefix))
	}

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	// Setup API documentation routes
	registerDocsRoutes(app)
}

// registerDocsRoutes serves the generated swagger spec and a Scalar API
// reference UI
func registerDocsRoutes(app *fiber.App) {
	app.Get("/api-spec/swagger.json", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "application/json")
		return c.SendString(docs.SwaggerInfo.ReadDoc())
	})

	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!doctype html>
<html>
<head>
    <title>DID Resolver API</title>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
</head>
<body>
    <script id="api-reference" data-url="/api-spec/swagger.json"></script>
    <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body>
</html>`
		c.Set("Content-Type", "text/html")
		return c.SendString(html)
	})
}

// Close closes all services
func (svc *Services) Close() error {
	var errs []error

	// Close in reverse order of initialization
	if svc.Admin != nil {
		if err := svc.Admin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("admin close: %w", err))
		}
	}

	if svc.Resolver != nil {
		if err := svc.Resolver.Close(); err != nil {
			errs = append(errs, fmt.Errorf("resolver close: %w", err))
		}
	}

	if svc.DNS != nil {
		if err := svc.DNS.Close(); err != nil {
			errs = append(errs, fmt.Errorf("dns close: %w", err))
		}
	}

	if svc.CCP != nil {
		if err := svc.CCP.Close(); err != nil {
			errs = append(errs, fmt.Errorf("ccp close: %w", err))
		}
	}

	if svc.Sov != nil {
		if err := svc.Sov.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sov close: %w", err))
		}
	}

	if svc.BTCR != nil {
		if err := svc.BTCR.Close(); err != nil {
			errs = append(errs, fmt.Errorf("btcr close: %w", err))
		}
	}

	if svc.Store != nil {
		if err := svc.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// LoadConfig loads configuration from file and environment.
// Configuration is loaded from YAML files in order of precedence:
// 1. Explicit configPath argument (if provided)
// 2. ./config.yaml
// 3. ~/.didresolver/config.yaml
// 4. /etc/didresolver/config.yaml
// Environment variables with prefix DIDRESOLVER override config file values.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	cfg := &Config{}
	cfg.SetDefaults(v)

	// Configure viper
	v.SetConfigType("yaml")
	v.SetConfigName("config")
	v.SetEnvPrefix("DIDRESOLVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.didresolver")
		v.AddConfigPath("/etc/didresolver")

		// Attempt to read config, ignore if not found
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Logging.SetDefaults()

	return cfg, nil
}
