// Package resolver implements the resolution engine: DID URL parsing,
// before/after extension hooks and dispatch over the driver registry.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/b-open-io/did-resolver/pkg/did"
	"github.com/b-open-io/did-resolver/pkg/driver"
)

// Options tunes dispatch. Zero values fall back to the defaults.
type Options struct {
	Dispatch           string
	Concurrency        int
	DriverTimeout      time.Duration
	MaxRedirects       int
	FallthroughOnError bool
}

// Resolver resolves identifiers against an ordered driver registry.
type Resolver struct {
	registry   *driver.Registry
	opts       Options
	extensions []Extension
	logger     *slog.Logger
}

// New creates a Resolver. Extensions run in the order given.
func New(registry *driver.Registry, opts Options, logger *slog.Logger, extensions ...Extension) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Dispatch == "" {
		opts.Dispatch = DispatchSequential
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	return &Resolver{
		registry:   registry,
		opts:       opts,
		extensions: extensions,
		logger:     logger,
	}
}

// Registry returns the driver registry.
func (r *Resolver) Registry() *driver.Registry {
	return r.registry
}

// Extensions returns the configured extensions.
func (r *Resolver) Extensions() []Extension {
	return r.extensions
}

// MaxRedirects returns the redirect bound.
func (r *Resolver) MaxRedirects() int {
	return r.opts.MaxRedirects
}

// Resolve resolves identifier, which may be a DID URL or any string a
// driver recognizes.
func (r *Resolver) Resolve(ctx context.Context, identifier string, options map[string]string) (*did.ResolveResult, error) {
	if r.registry == nil || r.registry.Len() == 0 {
		return nil, fmt.Errorf("%w: no drivers configured", driver.ErrConfiguration)
	}

	start := time.Now()
	result := did.NewResult()
	req := &Request{
		Identifier: identifier,
		Options:    options,
	}

	didURL, err := did.Parse(identifier)
	if err != nil {
		r.logger.Debug("identifier is not a DID URL", "identifier", identifier, "error", err)
	} else {
		req.DIDURL = didURL
		result.ResolutionMetadata.Set("didUrl", didURL)
	}

	var status Status

	if !status.SkipBefore {
		for _, ext := range r.extensions {
			s, err := ext.BeforeResolve(ctx, req, result, r)
			if err != nil {
				return nil, err
			}
			status = status.Or(s)
			if status.SkipBefore {
				break
			}
		}
	}

	if !status.SkipDriver {
		target := identifier
		if didURL != nil {
			target = didURL.DID()
		}
		r.logger.Debug("resolving identifier", "identifier", target)

		driverResult := did.NewResult()
		if err := r.ResolveWithDrivers(ctx, target, driverResult); err != nil {
			return nil, err
		}
		result.Document = driverResult.Document
		result.DocumentMetadata = driverResult.DocumentMetadata
		result.ResolutionMetadata.Merge(driverResult.ResolutionMetadata)
	}

	if !status.SkipAfter {
		for _, ext := range r.extensions {
			s, err := ext.AfterResolve(ctx, req, result, r)
			if err != nil {
				return nil, err
			}
			status = status.Or(s)
			if status.SkipAfter {
				break
			}
		}
	}

	result.ResolutionMetadata.Set("duration", time.Since(start).Milliseconds())
	return result, nil
}

// ResolveWithDrivers tries the registered drivers in order and copies the
// first non-declined result into result. It always records "identifier"
// and records "driverId" when a driver won.
func (r *Resolver) ResolveWithDrivers(ctx context.Context, identifier string, result *did.ResolveResult) error {
	entries := r.registry.Entries()

	var (
		winner   string
		resolved *did.ResolveResult
		err      error
	)
	if r.opts.Dispatch == DispatchParallel && len(entries) > 1 {
		winner, resolved, err = r.dispatchParallel(ctx, entries, identifier)
	} else {
		winner, resolved, err = r.dispatchSequential(ctx, entries, identifier)
	}
	if err != nil {
		return err
	}

	if resolved != nil {
		if resolved.Document.IsEmpty() {
			resolved.Document = nil
		}
		result.Document = resolved.Document
		result.DocumentMetadata = resolved.DocumentMetadata.Copy()
		result.ResolutionMetadata.Merge(resolved.ResolutionMetadata)
		result.ResolutionMetadata.Set("driverId", winner)
		r.logger.Debug("resolved identifier", "identifier", identifier, "driverId", winner)
	} else {
		r.logger.Debug("no result from drivers", "identifier", identifier, "drivers", len(entries))
	}

	result.ResolutionMetadata.Set("identifier", identifier)
	return nil
}

// Properties returns the properties of every driver keyed by driver id.
func (r *Resolver) Properties(ctx context.Context) (map[string]map[string]any, error) {
	if r.registry == nil || r.registry.Len() == 0 {
		return nil, fmt.Errorf("%w: no drivers configured", driver.ErrConfiguration)
	}

	props := make(map[string]map[string]any, r.registry.Len())
	for _, e := range r.registry.Entries() {
		p, err := e.Driver.Properties(ctx)
		if errors.Is(err, driver.ErrNotSupported) {
			p, err = nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("properties of driver %s: %w", e.ID, err)
		}
		if p == nil {
			p = map[string]any{}
		}
		props[e.ID] = p
	}
	return props, nil
}

// attempt runs one driver with the per-attempt timeout. Errors that are not
// already a *driver.ResolutionError are reported as backend failures.
func (r *Resolver) attempt(ctx context.Context, e driver.Entry, identifier string) (*did.ResolveResult, error) {
	if r.opts.DriverTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.DriverTimeout)
		defer cancel()
	}

	r.logger.Debug("attempting driver", "identifier", identifier, "driverId", e.ID)
	res, err := e.Driver.Resolve(ctx, identifier)
	if err != nil {
		var rerr *driver.ResolutionError
		if !errors.As(err, &rerr) {
			err = driver.Fail(driver.ErrBackendIO, identifier, err)
		}
		return nil, fmt.Errorf("driver %s: %w", e.ID, err)
	}
	return res, nil
}
