// Package sov resolves did:sov identifiers against Indy ledger pools.
package sov

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/mr-tron/base58"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/b-open-io/did-resolver/pkg/did"
	"github.com/b-open-io/did-resolver/pkg/driver"
)

// Document entry types
const (
	VerificationMethodType = "Ed25519VerificationKey2018"
	AuthenticationType     = "Ed25519SignatureAuthentication2018"
)

// DefaultNetwork is used for identifiers without a network segment.
const DefaultNetwork = "ubicua"

var didPattern = regexp.MustCompile(`^did:sov:(?:(\w[-\w]*(?::\w[-\w]*)*):)?([1-9A-HJ-NP-Za-km-z]{21,22})$`)

// Network is one configured ledger network.
type Network struct {
	Name    string
	Version int
	Pool    Pool
}

// Driver resolves did:sov identifiers.
type Driver struct {
	networks       map[string]Network
	defaultNetwork string
	logger         *slog.Logger
}

// NewDriver creates a driver over the given networks.
func NewDriver(networks []Network, defaultNetwork string, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultNetwork == "" {
		defaultNetwork = DefaultNetwork
	}
	m := make(map[string]Network, len(networks))
	for _, n := range networks {
		m[n.Name] = n
	}
	return &Driver{networks: m, defaultNetwork: defaultNetwork, logger: logger}
}

func (d *Driver) Resolve(ctx context.Context, identifier string) (*did.ResolveResult, error) {
	m := didPattern.FindStringSubmatch(identifier)
	if m == nil {
		return nil, nil
	}
	network, target := m[1], m[2]
	if strings.TrimSpace(network) == "" {
		network = d.defaultNetwork
	}

	n, ok := d.networks[network]
	if !ok || n.Pool == nil {
		return nil, driver.Failf(driver.ErrBackendUnavailable, identifier, "No pool for network: %s", network)
	}
	if n.Version == 0 {
		return nil, driver.Failf(driver.ErrBackendUnavailable, identifier, "No pool version for network: %s", network)
	}

	nymResponse, err := n.Pool.GetNym(ctx, target)
	if err != nil {
		return nil, driver.Failf(driver.ErrBackendIO, identifier, "Cannot send GET_NYM request: %w", err)
	}
	d.logger.Info("GET_NYM", "did", target, "network", network, "response", string(nymResponse))

	nymData, err := replyData(nymResponse)
	if err != nil {
		return nil, driver.Fail(driver.ErrBackendIO, identifier, fmt.Errorf("GET_NYM reply: %w", err))
	}
	if nymData == nil {
		return nil, nil
	}

	var nym struct {
		Verkey string `json:"verkey"`
	}
	if err := json.Unmarshal(nymData, &nym); err != nil {
		return nil, driver.Fail(driver.ErrBackendIO, identifier, fmt.Errorf("GET_NYM data: %w", err))
	}

	attrResponse, err := n.Pool.GetAttrib(ctx, target, "endpoint")
	if err != nil {
		return nil, driver.Failf(driver.ErrBackendIO, identifier, "Cannot send GET_ATTR request: %w", err)
	}
	d.logger.Info("GET_ATTR", "did", target, "network", network, "response", string(attrResponse))

	attrData, err := replyData(attrResponse)
	if err != nil {
		return nil, driver.Fail(driver.ErrBackendIO, identifier, fmt.Errorf("GET_ATTR reply: %w", err))
	}

	services, err := endpointServices(identifier, attrData)
	if err != nil {
		return nil, driver.Fail(driver.ErrBackendIO, identifier, fmt.Errorf("GET_ATTR data: %w", err))
	}

	keyID := identifier + "#key-1"
	doc := &did.Document{
		Context: did.Context{did.ContextV1},
		ID:      identifier,
		VerificationMethod: []did.VerificationMethod{{
			ID:              keyID,
			Type:            did.Types{VerificationMethodType},
			PublicKeyBase58: d.expandVerkey(identifier, nym.Verkey),
		}},
		Authentication: []did.Authentication{{
			Type:               did.Types{AuthenticationType},
			VerificationMethod: keyID,
		}},
		Service: services,
	}

	md := did.NewMetadata()
	md.Set("network", network)
	md.Set("poolVersion", n.Version)
	md.Set("nymResponse", json.RawMessage(nymResponse))
	md.Set("attrResponse", json.RawMessage(attrResponse))
	return did.NewDocumentResult(doc, md), nil
}

// Properties lists the configured networks.
func (d *Driver) Properties(ctx context.Context) (map[string]any, error) {
	names := make([]string, 0, len(d.networks))
	for name := range d.networks {
		names = append(names, name)
	}
	sort.Strings(names)

	networks := make([]map[string]any, 0, len(names))
	for _, name := range names {
		networks = append(networks, map[string]any{"name": name, "version": d.networks[name].Version})
	}
	return map[string]any{
		"defaultNetwork": d.defaultNetwork,
		"networks":       networks,
	}, nil
}

// Close closes every pool.
func (d *Driver) Close() error {
	var errs []error
	for name, n := range d.networks {
		if n.Pool == nil {
			continue
		}
		if err := n.Pool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("pool %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// replyData extracts result.data from a ledger reply. The ledger encodes it
// as a JSON string; nil means no data.
func replyData(reply []byte) (json.RawMessage, error) {
	var r struct {
		Result struct {
			Data json.RawMessage `json:"data"`
		} `json:"result"`
	}
	if err := json.Unmarshal(reply, &r); err != nil {
		return nil, err
	}

	data := bytes.TrimSpace(r.Result.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if data[0] == '{' {
		return data, nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	return json.RawMessage(s), nil
}

// endpointServices turns the "endpoint" attribute into services, one per
// key in attribute order.
func endpointServices(identifier string, attrData json.RawMessage) ([]did.Service, error) {
	if attrData == nil {
		return nil, nil
	}

	var attr struct {
		Endpoint *orderedmap.OrderedMap[string, any] `json:"endpoint"`
	}
	if err := json.Unmarshal(attrData, &attr); err != nil {
		return nil, err
	}
	if attr.Endpoint == nil {
		return nil, nil
	}

	services := make([]did.Service, 0, attr.Endpoint.Len())
	for pair := attr.Endpoint.Oldest(); pair != nil; pair = pair.Next() {
		services = append(services, did.Service{
			ID:              identifier + "#" + pair.Key,
			Type:            did.Types{pair.Key},
			ServiceEndpoint: pair.Value,
		})
	}
	return services, nil
}

// expandVerkey expands an abbreviated verkey ("~" prefix) to the full key:
// the first 16 bytes of the DID followed by the 16 bytes of the verkey.
func (d *Driver) expandVerkey(identifier, verkey string) string {
	if !strings.HasPrefix(identifier, "did:sov:") || !strings.HasPrefix(verkey, "~") {
		return verkey
	}

	didBytes, err := base58.Decode(identifier[strings.LastIndexByte(identifier, ':')+1:])
	if err != nil || len(didBytes) < 16 {
		d.logger.Warn("cannot expand verkey", "did", identifier, "error", err)
		return verkey
	}
	verkeyBytes, err := base58.Decode(verkey[1:])
	if err != nil || len(verkeyBytes) < 16 {
		d.logger.Warn("cannot expand verkey", "did", identifier, "verkey", verkey, "error", err)
		return verkey
	}

	full := make([]byte, 0, 32)
	full = append(full, didBytes[:16]...)
	full = append(full, verkeyBytes[:16]...)
	expanded := base58.Encode(full)

	d.logger.Debug("expanded verkey", "did", identifier, "verkey", verkey, "expanded", expanded)
	return expanded
}
