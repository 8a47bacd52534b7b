// Package driver defines the method driver contract, the ordered driver
// registry and the generic remote HTTP driver.
package driver

import (
	"context"

	"github.com/b-open-io/did-resolver/pkg/did"
)

// Driver resolves identifiers of one syntax.
//
// Resolve returns (nil, nil) when the identifier does not match the
// driver's syntax so that the next driver can be tried. Once a driver has
// committed to an identifier, any problem is returned as an error,
// preferably a *ResolutionError.
type Driver interface {
	Resolve(ctx context.Context, identifier string) (*did.ResolveResult, error)

	// Properties returns driver introspection data, or ErrNotSupported.
	Properties(ctx context.Context) (map[string]any, error)
}
