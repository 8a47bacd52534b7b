package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/b-open-io/did-resolver/pkg/driver"
)

// Dispatch modes
const (
	DispatchSequential = "sequential"
	DispatchParallel   = "parallel"
)

// Extension names accepted in resolver.extensions
const (
	ExtensionRedirect          = "redirect"
	ExtensionServiceParameters = "service-parameters"
)

// Defaults
const (
	DefaultConcurrency   = 4
	DefaultMaxRedirects  = 10
	DefaultDriverTimeout = 30 * time.Second
)

// Config holds resolution engine configuration.
type Config struct {
	Dispatch           string        `mapstructure:"dispatch"`             // sequential, parallel
	Concurrency        int           `mapstructure:"concurrency"`          // parallel attempts in flight
	DriverTimeout      time.Duration `mapstructure:"driver_timeout"`       // per driver attempt
	MaxRedirects       int           `mapstructure:"max_redirects"`        // redirect hops before failing
	FallthroughOnError bool          `mapstructure:"fallthrough_on_error"` // try the next driver after a failure
	Extensions         []string      `mapstructure:"extensions"`           // in execution order
	Routes             RoutesConfig  `mapstructure:"routes"`
}

// RoutesConfig holds HTTP route configuration.
type RoutesConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// SetDefaults sets viper defaults for resolver configuration.
func (c *Config) SetDefaults(v *viper.Viper, prefix string) {
	p := ""
	if prefix != "" {
		p = prefix + "."
	}
	v.SetDefault(p+"dispatch", DispatchSequential)
	v.SetDefault(p+"concurrency", DefaultConcurrency)
	v.SetDefault(p+"driver_timeout", DefaultDriverTimeout.String())
	v.SetDefault(p+"max_redirects", DefaultMaxRedirects)
	v.SetDefault(p+"fallthrough_on_error", false)
	v.SetDefault(p+"extensions", []string{ExtensionRedirect, ExtensionServiceParameters})
	v.SetDefault(p+"routes.enabled", true)
}

// Services holds the resolver and its routes.
type Services struct {
	Resolver *Resolver
	Routes   *Routes
}

// Initialize builds a Resolver over registry.
func (c *Config) Initialize(ctx context.Context, logger *slog.Logger, registry *driver.Registry) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch c.Dispatch {
	case "", DispatchSequential, DispatchParallel:
	default:
		return nil, fmt.Errorf("%w: unknown dispatch mode: %s", driver.ErrConfiguration, c.Dispatch)
	}

	extensions, err := BuildExtensions(c.Extensions)
	if err != nil {
		return nil, err
	}

	r := New(registry, Options{
		Dispatch:           c.Dispatch,
		Concurrency:        c.Concurrency,
		DriverTimeout:      c.DriverTimeout,
		MaxRedirects:       c.MaxRedirects,
		FallthroughOnError: c.FallthroughOnError,
	}, logger, extensions...)

	svc := &Services{Resolver: r}
	if c.Routes.Enabled {
		svc.Routes = NewRoutes(r, logger)
	}

	logger.Info("resolver initialized",
		"dispatch", r.opts.Dispatch,
		"drivers", registry.Len(),
		"extensions", c.Extensions)
	return svc, nil
}

// BuildExtensions maps extension names to instances.
func BuildExtensions(names []string) ([]Extension, error) {
	extensions := make([]Extension, 0, len(names))
	for _, name := range names {
		switch name {
		case ExtensionRedirect:
			extensions = append(extensions, &RedirectExtension{})
		case ExtensionServiceParameters:
			extensions = append(extensions, &ServiceParameterExtension{})
		default:
			return nil, fmt.Errorf("%w: unknown extension: %s", driver.ErrConfiguration, name)
		}
	}
	return extensions, nil
}

// Close is a no-op; drivers own their backends.
func (s *Services) Close() error {
	return nil
}
