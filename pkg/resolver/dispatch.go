package resolver

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/b-open-io/did-resolver/pkg/did"
	"github.com/b-open-io/did-resolver/pkg/driver"
)

type outcome struct {
	result *did.ResolveResult
	err    error
}

// handle applies the error policy to one driver outcome. It reports whether
// dispatch should stop.
func (r *Resolver) handle(e driver.Entry, o outcome) (bool, error) {
	if o.err != nil {
		if r.opts.FallthroughOnError {
			r.logger.Warn("driver failed, trying next", "driverId", e.ID, "error", o.err)
			return false, nil
		}
		return true, o.err
	}
	return o.result != nil, nil
}

func (r *Resolver) dispatchSequential(ctx context.Context, entries []driver.Entry, identifier string) (string, *did.ResolveResult, error) {
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		res, err := r.attempt(ctx, e, identifier)
		stop, err := r.handle(e, outcome{result: res, err: err})
		if err != nil {
			return "", nil, err
		}
		if stop {
			return e.ID, res, nil
		}
	}
	return "", nil, nil
}

// dispatchParallel starts attempts concurrently but consumes their outcomes
// in registry order, so a later driver never wins over an earlier one that
// has not finished yet. Pending attempts are cancelled once the outcome is
// decided.
func (r *Resolver) dispatchParallel(ctx context.Context, entries []driver.Entry, identifier string) (string, *did.ResolveResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make([]outcome, len(entries))
	done := make([]chan struct{}, len(entries))
	for i := range done {
		done[i] = make(chan struct{})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i := range entries {
			g.Go(func() error {
				defer close(done[i])
				if err := gctx.Err(); err != nil {
					outcomes[i] = outcome{err: err}
					return nil
				}
				res, err := r.attempt(gctx, entries[i], identifier)
				outcomes[i] = outcome{result: res, err: err}
				return nil
			})
		}
	}()

	defer func() {
		cancel()
		<-launched
		g.Wait()
	}()

	for i, e := range entries {
		select {
		case <-done[i]:
		case <-ctx.Done():
			return "", nil, ctx.Err()
		}
		stop, err := r.handle(e, outcomes[i])
		if err != nil {
			return "", nil, err
		}
		if stop {
			return e.ID, outcomes[i].result, nil
		}
	}
	return "", nil, nil
}
