package resolver

import (
	"context"

	"github.com/b-open-io/did-resolver/pkg/did"
)

// Query parameters handled by ServiceParameterExtension.
const (
	ParamService     = "service"
	ParamServiceType = "service-type"
	ParamKey         = "key"
	ParamKeyType     = "key-type"
)

// ServiceParameterExtension records which services and verification methods
// of the resolved document match the service, service-type, key and
// key-type query parameters of the DID URL. The document is left untouched;
// the matching indices go to "selectedServices" and
// "selectedVerificationMethods" in resolution metadata.
type ServiceParameterExtension struct {
	BaseExtension
}

func (e *ServiceParameterExtension) AfterResolve(ctx context.Context, req *Request, result *did.ResolveResult, r *Resolver) (Status, error) {
	if req.DIDURL == nil || len(req.DIDURL.Params) == 0 {
		return Status{}, nil
	}

	serviceName, hasServiceName := req.DIDURL.Param(ParamService)
	serviceType, hasServiceType := req.DIDURL.Param(ParamServiceType)
	keyName, hasKeyName := req.DIDURL.Param(ParamKey)
	keyType, hasKeyType := req.DIDURL.Param(ParamKeyType)

	if hasServiceName || hasServiceType {
		selected := SelectServices(result.Document, optional(serviceName, hasServiceName), optional(serviceType, hasServiceType))
		r.logger.Debug("selected services", "identifier", req.Identifier, "indices", selected)
		result.ResolutionMetadata.Set("selectedServices", selected)
	}

	if hasKeyName || hasKeyType {
		selected := SelectVerificationMethods(result.Document, optional(keyName, hasKeyName), optional(keyType, hasKeyType))
		r.logger.Debug("selected verification methods", "identifier", req.Identifier, "indices", selected)
		result.ResolutionMetadata.Set("selectedVerificationMethods", selected)
	}

	return Status{}, nil
}

func optional(v string, ok bool) *string {
	if !ok {
		return nil
	}
	return &v
}

// SelectServices returns the indices of services whose id fragment equals
// name and whose type contains typ. A nil selector matches everything, and
// an entry without a declared type passes the type selector.
func SelectServices(doc *did.Document, name, typ *string) []int {
	selected := []int{}
	if doc == nil {
		return selected
	}
	for i, svc := range doc.Service {
		if matches(svc.ID, svc.Type, name, typ) {
			selected = append(selected, i)
		}
	}
	return selected
}

// SelectVerificationMethods is SelectServices for verification methods.
func SelectVerificationMethods(doc *did.Document, name, typ *string) []int {
	selected := []int{}
	if doc == nil {
		return selected
	}
	for i, vm := range doc.VerificationMethod {
		if matches(vm.ID, vm.Type, name, typ) {
			selected = append(selected, i)
		}
	}
	return selected
}

func matches(id string, types did.Types, name, typ *string) bool {
	if name != nil {
		if frag := did.Fragment(id); frag == "" || frag != *name {
			return false
		}
	}
	if typ != nil && len(types) > 0 && !types.Contains(*typ) {
		return false
	}
	return true
}
