package did

import (
	"encoding/json"
	"strings"
)

// ContextV1 is the default DID core JSON-LD context.
const ContextV1 = "https://www.w3.org/ns/did/v1"

// Types holds one or more JSON-LD type names. A single type marshals as a
// plain string.
type Types []string

func (t Types) MarshalJSON() ([]byte, error) {
	if len(t) == 1 {
		return json.Marshal(t[0])
	}
	return json.Marshal([]string(t))
}

func (t *Types) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*t = Types{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*t = many
	return nil
}

// Contains reports whether typ is one of the declared types.
func (t Types) Contains(typ string) bool {
	for _, v := range t {
		if v == typ {
			return true
		}
	}
	return false
}

// Context is an ordered JSON-LD context list. Entries are usually strings but
// may be embedded context objects.
type Context []any

func (c *Context) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*c = nil
	case []any:
		*c = v
	default:
		*c = Context{v}
	}
	return nil
}

// VerificationMethod is a public key entry of a DID document.
type VerificationMethod struct {
	ID                 string         `json:"id,omitempty"`
	Type               Types          `json:"type,omitempty"`
	Controller         string         `json:"controller,omitempty"`
	PublicKeyBase58    string         `json:"publicKeyBase58,omitempty"`
	PublicKeyHex       string         `json:"publicKeyHex,omitempty"`
	PublicKeyMultibase string         `json:"publicKeyMultibase,omitempty"`
	PublicKeyJwk       map[string]any `json:"publicKeyJwk,omitempty"`
}

// Authentication is either a bare reference to a verification method or an
// embedded, typed authentication entry.
type Authentication struct {
	ID                 string `json:"id,omitempty"`
	Type               Types  `json:"type,omitempty"`
	VerificationMethod string `json:"verificationMethod,omitempty"`
	Controller         string `json:"controller,omitempty"`
	PublicKeyBase58    string `json:"publicKeyBase58,omitempty"`
	PublicKeyHex       string `json:"publicKeyHex,omitempty"`
}

type authenticationAlias Authentication

func (a Authentication) MarshalJSON() ([]byte, error) {
	if a.isReference() {
		return json.Marshal(a.VerificationMethod)
	}
	return json.Marshal(authenticationAlias(a))
}

func (a *Authentication) UnmarshalJSON(b []byte) error {
	var ref string
	if err := json.Unmarshal(b, &ref); err == nil {
		*a = Authentication{VerificationMethod: ref}
		return nil
	}
	var alias authenticationAlias
	if err := json.Unmarshal(b, &alias); err != nil {
		return err
	}
	*a = Authentication(alias)
	return nil
}

func (a Authentication) isReference() bool {
	return a.ID == "" && len(a.Type) == 0 && a.Controller == "" &&
		a.PublicKeyBase58 == "" && a.PublicKeyHex == ""
}

// Service is a service endpoint entry of a DID document.
type Service struct {
	ID              string `json:"id,omitempty"`
	Type            Types  `json:"type,omitempty"`
	ServiceEndpoint any    `json:"serviceEndpoint,omitempty"`
}

// Document is a DID document.
type Document struct {
	Context            Context              `json:"@context,omitempty"`
	ID                 string               `json:"id,omitempty"`
	AlsoKnownAs        []string             `json:"alsoKnownAs,omitempty"`
	Controller         []string             `json:"controller,omitempty"`
	VerificationMethod []VerificationMethod `json:"verificationMethod,omitempty"`
	Authentication     []Authentication     `json:"authentication,omitempty"`
	Service            []Service            `json:"service,omitempty"`
}

// IsEmpty reports whether the document carries no content at all.
func (d *Document) IsEmpty() bool {
	return d == nil || (len(d.Context) == 0 && d.ID == "" && len(d.AlsoKnownAs) == 0 &&
		len(d.Controller) == 0 && len(d.VerificationMethod) == 0 &&
		len(d.Authentication) == 0 && len(d.Service) == 0)
}

// Fragment returns the part of id after '#', or "" if there is none.
func Fragment(id string) string {
	if i := strings.IndexByte(id, '#'); i >= 0 {
		return id[i+1:]
	}
	return ""
}

// MergeVerificationMethods appends entries of extra whose id is not already
// present in base. The first occurrence of an id wins.
func MergeVerificationMethods(base []VerificationMethod, extra ...VerificationMethod) []VerificationMethod {
	seen := make(map[string]struct{}, len(base))
	for _, vm := range base {
		if vm.ID != "" {
			seen[vm.ID] = struct{}{}
		}
	}
	for _, vm := range extra {
		if vm.ID != "" {
			if _, ok := seen[vm.ID]; ok {
				continue
			}
			seen[vm.ID] = struct{}{}
		}
		base = append(base, vm)
	}
	return base
}

// MergeAuthentications is MergeVerificationMethods for authentication
// entries. Bare references carry no id and are always appended.
func MergeAuthentications(base []Authentication, extra ...Authentication) []Authentication {
	seen := make(map[string]struct{}, len(base))
	for _, a := range base {
		if a.ID != "" {
			seen[a.ID] = struct{}{}
		}
	}
	for _, a := range extra {
		if a.ID != "" {
			if _, ok := seen[a.ID]; ok {
				continue
			}
			seen[a.ID] = struct{}{}
		}
		base = append(base, a)
	}
	return base
}

// MergeServices is MergeVerificationMethods for service entries.
func MergeServices(base []Service, extra ...Service) []Service {
	seen := make(map[string]struct{}, len(base))
	for _, svc := range base {
		if svc.ID != "" {
			seen[svc.ID] = struct{}{}
		}
	}
	for _, svc := range extra {
		if svc.ID != "" {
			if _, ok := seen[svc.ID]; ok {
				continue
			}
			seen[svc.ID] = struct{}{}
		}
		base = append(base, svc)
	}
	return base
}
