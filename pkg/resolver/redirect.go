package resolver

import (
	"context"
	"fmt"

	"github.com/b-open-io/did-resolver/pkg/did"
	"github.com/b-open-io/did-resolver/pkg/driver"
)

// RedirectExtension follows "redirect" entries in document metadata by
// resolving the target again. Each hop keeps the result it replaced under
// "previous" in resolution metadata.
type RedirectExtension struct {
	BaseExtension
}

func (e *RedirectExtension) AfterResolve(ctx context.Context, req *Request, result *did.ResolveResult, r *Resolver) (Status, error) {
	if !result.DocumentMetadata.Has("redirect") {
		return Status{}, nil
	}

	seen := map[string]struct{}{req.Identifier: {}}
	if req.DIDURL != nil {
		seen[req.DIDURL.DID()] = struct{}{}
	}

	for hops := 0; ; hops++ {
		target, ok := result.DocumentMetadata.GetString("redirect")
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return Status{}, err
		}
		if hops >= r.MaxRedirects() {
			return Status{}, driver.Failf(driver.ErrTooManyRedirects, req.Identifier, "more than %d redirects, last target %s", r.MaxRedirects(), target)
		}
		if _, ok := seen[target]; ok {
			return Status{}, driver.Failf(driver.ErrTooManyRedirects, req.Identifier, "redirect loop at %s", target)
		}
		seen[target] = struct{}{}

		r.logger.Debug("following redirect", "identifier", req.Identifier, "target", target, "hop", hops+1)

		previous := result.Copy()
		result.Reset()
		result.ResolutionMetadata.Set("previous", previous)

		next := did.NewResult()
		if err := r.ResolveWithDrivers(ctx, target, next); err != nil {
			return Status{}, fmt.Errorf("redirect to %s: %w", target, err)
		}
		result.Document = next.Document
		result.DocumentMetadata = next.DocumentMetadata
		result.ResolutionMetadata.Merge(next.ResolutionMetadata)
	}

	return Status{}, nil
}
