package resolver

import (
	"context"

	"github.com/b-open-io/did-resolver/pkg/did"
)

// Status tells the engine which stages to skip after a hook has run.
// The zero value skips nothing.
type Status struct {
	SkipBefore bool
	SkipDriver bool
	SkipAfter  bool
}

// Or combines two statuses. A flag that is set in either stays set.
func (s Status) Or(other Status) Status {
	return Status{
		SkipBefore: s.SkipBefore || other.SkipBefore,
		SkipDriver: s.SkipDriver || other.SkipDriver,
		SkipAfter:  s.SkipAfter || other.SkipAfter,
	}
}

// Request is what hooks see of the call being resolved.
type Request struct {
	Identifier string
	DIDURL     *did.URL // nil when Identifier is not a DID URL
	Options    map[string]string
}

// Extension hooks into resolution before and after driver dispatch.
type Extension interface {
	BeforeResolve(ctx context.Context, req *Request, result *did.ResolveResult, r *Resolver) (Status, error)
	AfterResolve(ctx context.Context, req *Request, result *did.ResolveResult, r *Resolver) (Status, error)
}

// BaseExtension implements both hooks as no-ops. Embed it and override the
// hook you need.
type BaseExtension struct{}

func (BaseExtension) BeforeResolve(ctx context.Context, req *Request, result *did.ResolveResult, r *Resolver) (Status, error) {
	return Status{}, nil
}

func (BaseExtension) AfterResolve(ctx context.Context, req *Request, result *did.ResolveResult, r *Resolver) (Status, error) {
	return Status{}, nil
}
