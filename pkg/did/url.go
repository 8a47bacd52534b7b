package did

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
)

// ErrInvalidDIDURL is returned when a string is not a syntactically valid DID URL.
var ErrInvalidDIDURL = errors.New("invalid DID URL")

var didURLPattern = regexp.MustCompile(
	`^did:([a-z0-9]+):((?:(?:[A-Za-z0-9._-]|%[0-9A-Fa-f]{2})*:)*(?:[A-Za-z0-9._-]|%[0-9A-Fa-f]{2})+)` +
		`(/[^?#]*)?(?:\?([^#]*))?(?:#(.*))?$`)

// URL is a parsed DID URL.
type URL struct {
	URLString        string            `json:"didUrlString"`
	DIDString        string            `json:"didString"`
	Method           string            `json:"method"`
	MethodSpecificID string            `json:"methodSpecificId"`
	Path             string            `json:"path,omitempty"`
	Query            string            `json:"query,omitempty"`
	Fragment         string            `json:"fragment,omitempty"`
	Params           map[string]string `json:"parameters,omitempty"`
}

// Parse parses s as a DID URL. Query parameters keep their first value.
func Parse(s string) (*URL, error) {
	m := didURLPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDIDURL, s)
	}

	u := &URL{
		URLString:        s,
		DIDString:        "did:" + m[1] + ":" + m[2],
		Method:           m[1],
		MethodSpecificID: m[2],
		Path:             m[3],
		Query:            m[4],
		Fragment:         m[5],
	}

	if u.Query != "" {
		values, err := url.ParseQuery(u.Query)
		if err != nil {
			return nil, fmt.Errorf("%w: query: %v", ErrInvalidDIDURL, err)
		}
		u.Params = make(map[string]string, len(values))
		for k, v := range values {
			if len(v) > 0 {
				u.Params[k] = v[0]
			}
		}
	}

	return u, nil
}

// DID returns the bare DID without path, query or fragment.
func (u *URL) DID() string {
	return u.DIDString
}

// Param returns a query parameter value.
func (u *URL) Param(name string) (string, bool) {
	if u == nil || u.Params == nil {
		return "", false
	}
	v, ok := u.Params[name]
	return v, ok
}

func (u *URL) String() string {
	return u.URLString
}
