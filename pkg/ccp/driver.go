// Package ccp resolves did:ccp identifiers through the CCP HTTP registry.
package ccp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"github.com/b-open-io/did-resolver/pkg/did"
	"github.com/b-open-io/did-resolver/pkg/driver"
)

// DefaultURL is the CCP registry root.
const DefaultURL = "https://did.baidu.com"

// KeyType is used for keys and authentications that carry no type.
const KeyType = "Secp256k1"

// maxBodySize bounds a registry response.
const maxBodySize = 1 << 20

var didPattern = regexp.MustCompile(`^did:ccp:([123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz]{25,34})$`)

// Driver resolves did:ccp identifiers.
type Driver struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewDriver creates a driver for the registry at baseURL.
func NewDriver(baseURL string, timeout time.Duration, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Driver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type ccpKey struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	PublicKeyHex string `json:"publicKeyHex"`
}

type ccpService struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint any    `json:"serviceEndpoint"`
}

type ccpDocument struct {
	Version        int             `json:"version"`
	Created        string          `json:"created"`
	Updated        string          `json:"updated"`
	PublicKey      []ccpKey        `json:"publicKey"`
	Authentication []string        `json:"authentication"`
	Service        []ccpService    `json:"service"`
	Proof          json.RawMessage `json:"proof"`
}

type ccpResponse struct {
	Content struct {
		DIDDocument *ccpDocument `json:"didDocument"`
	} `json:"content"`
}

func (d *Driver) Resolve(ctx context.Context, identifier string) (*did.ResolveResult, error) {
	m := didPattern.FindStringSubmatch(identifier)
	if m == nil {
		return nil, nil
	}
	if _, err := base58.Decode(m[1]); err != nil {
		return nil, driver.Fail(driver.ErrMalformedIdentifier, identifier, err)
	}

	ddo, err := d.fetch(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if ddo == nil {
		return nil, nil
	}

	// index 0 is the authentication key, index 1 the recovery key
	vms := make([]did.VerificationMethod, 0, len(ddo.PublicKey))
	for _, k := range ddo.PublicKey {
		typ := k.Type
		if typ == "" {
			typ = KeyType
		}
		vms = append(vms, did.VerificationMethod{
			ID:           k.ID,
			Type:         did.Types{typ},
			PublicKeyHex: k.PublicKeyHex,
		})
	}

	auths := make([]did.Authentication, 0, len(ddo.Authentication))
	for _, ref := range ddo.Authentication {
		auths = append(auths, did.Authentication{ID: ref, Type: did.Types{KeyType}})
	}

	services := make([]did.Service, 0, len(ddo.Service))
	for _, s := range ddo.Service {
		services = append(services, did.Service{ID: s.ID, Type: did.Types{s.Type}, ServiceEndpoint: s.ServiceEndpoint})
	}

	doc := &did.Document{
		Context:            did.Context{did.ContextV1},
		ID:                 identifier,
		VerificationMethod: vms,
		Authentication:     auths,
		Service:            services,
	}

	md := did.NewMetadata()
	md.Set("version", ddo.Version)
	if len(ddo.Proof) > 0 {
		md.Set("proof", ddo.Proof)
	}
	md.Set("created", ddo.Created)
	md.Set("updated", ddo.Updated)
	return did.NewDocumentResult(doc, md), nil
}

// fetch returns the registry document, or nil when the registry has none.
func (d *Driver) fetch(ctx context.Context, identifier string) (*ccpDocument, error) {
	uri := d.baseURL + "/v1/did/resolve/" + identifier
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, driver.Fail(driver.ErrBackendIO, identifier, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, driver.Failf(driver.ErrBackendIO, identifier, "Cannot retrieve DDO info from %s: %w", d.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, driver.Failf(driver.ErrBackendIO, identifier, "Cannot retrieve DDO from %s: http-err-%d", d.baseURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, driver.Fail(driver.ErrBackendIO, identifier, err)
	}

	var r ccpResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, driver.Fail(driver.ErrBackendIO, identifier, fmt.Errorf("invalid registry response: %w", err))
	}
	d.logger.Debug("retrieved DDO", "identifier", identifier, "found", r.Content.DIDDocument != nil)
	return r.Content.DIDDocument, nil
}

func (d *Driver) Properties(ctx context.Context) (map[string]any, error) {
	return nil, driver.ErrNotSupported
}

// Close releases idle connections.
func (d *Driver) Close() error {
	d.client.CloseIdleConnections()
	return nil
}
