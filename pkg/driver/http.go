package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/b-open-io/did-resolver/pkg/did"
)

// MaxConcurrentRequests bounds in-flight requests per remote driver.
const MaxConcurrentRequests = 16

const acceptHeader = `application/ld+json;profile="https://w3id.org/did-resolution", application/did+ld+json, application/ld+json, application/json`

// HTTPDriver delegates resolution to a remote driver service.
type HTTPDriver struct {
	pattern       *regexp.Regexp
	resolveURI    string
	propertiesURI string
	client        *http.Client
	limiter       chan struct{}
}

// NewHTTPDriver creates a remote driver. The pattern must match the whole
// identifier; its first capture group, if any, is sent instead of the full
// identifier. "$1" in resolveURI is replaced by the identifier, otherwise
// the identifier is appended.
func NewHTTPDriver(pattern, resolveURI, propertiesURI string, timeout time.Duration) (*HTTPDriver, error) {
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		re, err = regexp.Compile("^(?:" + pattern + ")$")
		if err != nil {
			return nil, fmt.Errorf("%w: invalid pattern %q: %v", ErrConfiguration, pattern, err)
		}
	}
	if resolveURI == "" {
		return nil, fmt.Errorf("%w: resolve uri is required", ErrConfiguration)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPDriver{
		pattern:       re,
		resolveURI:    resolveURI,
		propertiesURI: propertiesURI,
		client:        &http.Client{Timeout: timeout},
		limiter:       make(chan struct{}, MaxConcurrentRequests),
	}, nil
}

// ResolveURI returns the configured resolve URL template.
func (d *HTTPDriver) ResolveURI() string {
	return d.resolveURI
}

// PropertiesURI returns the configured properties URL, if any.
func (d *HTTPDriver) PropertiesURI() string {
	return d.propertiesURI
}

func (d *HTTPDriver) Resolve(ctx context.Context, identifier string) (*did.ResolveResult, error) {
	target := identifier
	if d.pattern != nil {
		m := d.pattern.FindStringSubmatch(identifier)
		if m == nil {
			return nil, nil
		}
		if len(m) > 1 && m[1] != "" {
			target = m[1]
		}
	}

	escaped := url.PathEscape(target)
	var uri string
	if strings.Contains(d.resolveURI, "$1") {
		uri = strings.ReplaceAll(d.resolveURI, "$1", escaped)
	} else {
		uri = d.resolveURI + escaped
	}

	body, status, err := d.get(ctx, uri, acceptHeader)
	if err != nil {
		return nil, Fail(ErrBackendIO, identifier, err)
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, Failf(ErrBackendIO, identifier, "http-err-%d from %s: %s", status, uri, truncate(body, 256))
	}

	return decodeResult(identifier, body)
}

func (d *HTTPDriver) Properties(ctx context.Context) (map[string]any, error) {
	if d.propertiesURI == "" {
		return map[string]any{}, nil
	}

	body, status, err := d.get(ctx, d.propertiesURI, "application/json")
	if err != nil {
		return nil, fmt.Errorf("%w: properties: %v", ErrBackendIO, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: properties: http-err-%d from %s", ErrBackendIO, status, d.propertiesURI)
	}

	props := map[string]any{}
	if err := json.Unmarshal(body, &props); err != nil {
		return nil, fmt.Errorf("%w: properties: %v", ErrBackendIO, err)
	}
	return props, nil
}

func (d *HTTPDriver) get(ctx context.Context, uri, accept string) ([]byte, int, error) {
	select {
	case d.limiter <- struct{}{}:
		defer func() { <-d.limiter }()
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", accept)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// decodeResult accepts either a full resolution result or a bare document.
func decodeResult(identifier string, body []byte) (*did.ResolveResult, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, Failf(ErrBackendIO, identifier, "invalid response body: %v", err)
	}

	if _, ok := probe["didDocument"]; ok {
		result := did.NewResult()
		if err := json.Unmarshal(body, result); err != nil {
			return nil, Failf(ErrBackendIO, identifier, "invalid resolution result: %v", err)
		}
		return result, nil
	}

	doc := &did.Document{}
	if err := json.Unmarshal(body, doc); err != nil {
		return nil, Failf(ErrBackendIO, identifier, "invalid did document: %v", err)
	}
	return did.NewDocumentResult(doc, did.NewMetadata()), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
