package driver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/b-open-io/did-resolver/pkg/did"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDriver struct {
	name string
}

func (s *stubDriver) Resolve(ctx context.Context, identifier string) (*did.ResolveResult, error) {
	return nil, nil
}

func (s *stubDriver) Properties(ctx context.Context) (map[string]any, error) {
	return nil, ErrNotSupported
}

func TestRegistryOrderAndLookup(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("driver-b", "^did:b:", &stubDriver{name: "b"}))
	require.NoError(t, reg.Register("driver-a", "^did:a:", &stubDriver{name: "a"}))
	require.NoError(t, reg.Register("driver-c", "", &stubDriver{name: "c"}))

	entries := reg.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"driver-b", "driver-a", "driver-c"}, []string{entries[0].ID, entries[1].ID, entries[2].ID})

	d, ok := reg.Get("driver-a")
	require.True(t, ok)
	assert.Equal(t, "a", d.(*stubDriver).name)

	_, ok = reg.Get("missing")
	assert.False(t, ok)

	err := reg.Register("driver-a", "", &stubDriver{})
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, 3, reg.Len())

	err = reg.Register("", "", &stubDriver{})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestImageURIs(t *testing.T) {
	tests := []struct {
		name           string
		image          string
		port           string
		properties     bool
		expectResolve  string
		expectProperty string
	}{
		{
			name:          "image with org and tag",
			image:         "universalresolver/driver-did-btcr:latest",
			expectResolve: "http://localhost:8080/driver-did-btcr/1.0/identifiers/$1",
		},
		{
			name:           "custom port and properties",
			image:          "ubicua/driver-did-sov",
			port:           "8129",
			properties:     true,
			expectResolve:  "http://localhost:8129/driver-did-sov/1.0/identifiers/$1",
			expectProperty: "http://localhost:8129/driver-did-sov/1.0/properties",
		},
		{
			name:          "image without org",
			image:         "driver-dns",
			expectResolve: "http://localhost:8080/driver-dns/1.0/identifiers/$1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolve, props := ImageURIs(tt.image, tt.port, tt.properties)
			assert.Equal(t, tt.expectResolve, resolve)
			assert.Equal(t, tt.expectProperty, props)
		})
	}
}

func TestConfigRegisterAutoIDs(t *testing.T) {
	cfg := &Config{
		Remote: []RemoteConfig{
			{Pattern: "^(did:btcr:.+)$", Image: "universalresolver/driver-did-btcr"},
			{Pattern: "^(did:btcr:.+)$", Image: "universalresolver/driver-did-btcr"},
			{Pattern: "^(did:web:.+)$", URL: "https://web.example/1.0/identifiers/"},
			{ID: "named", Pattern: "^(did:key:.+)$", URL: "https://key.example/$1"},
		},
	}

	reg := NewRegistry()
	require.NoError(t, cfg.Register(reg, nil))

	var ids []string
	for _, e := range reg.Entries() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{
		"driver-universalresolver/driver-did-btcr",
		"driver-universalresolver/driver-did-btcr-2",
		"driver-3",
		"named",
	}, ids)
}

func TestConfigRegisterValidation(t *testing.T) {
	tests := []struct {
		name  string
		entry RemoteConfig
	}{
		{name: "missing pattern", entry: RemoteConfig{URL: "http://x/"}},
		{name: "missing url and image", entry: RemoteConfig{Pattern: "^did:x:"}},
		{name: "invalid pattern", entry: RemoteConfig{Pattern: "(", URL: "http://x/"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Remote: []RemoteConfig{tt.entry}}
			err := cfg.Register(NewRegistry(), nil)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestConfigLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "drivers.json")
	content := `{
  "drivers": [
    {"pattern": "^(did:sov:(?:(?:\\w[-\\w]*(?::\\w[-\\w]*)*):)?(?:[1-9A-HJ-NP-Za-km-z]{21,22}))$", "image": "ubicua/driver-did-sov", "imagePort": 8129, "imageProperties": "true"},
    {"id": "web", "pattern": "^(did:web:.+)$", "url": "https://web.example/1.0/identifiers/$1"}
  ]
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := &Config{File: path}
	entries, err := cfg.LoadFile()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "ubicua/driver-did-sov", entries[0].Image)
	assert.Equal(t, "8129", entries[0].ImagePort)
	assert.True(t, entries[0].ImageProperties)
	assert.Equal(t, "web", entries[1].ID)

	reg := NewRegistry()
	require.NoError(t, cfg.Register(reg, nil))
	d, ok := reg.Get("driver-ubicua/driver-did-sov")
	require.True(t, ok)
	assert.Equal(t, "http://localhost:8129/driver-did-sov/1.0/properties", d.(*HTTPDriver).PropertiesURI())
}

func TestHTTPDriverResolve(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		switch r.URL.Path {
		case "/1.0/identifiers/did:example:doc":
			w.Header().Set("Content-Type", "application/did+ld+json")
			fmt.Fprint(w, `{"@context":"https://www.w3.org/ns/did/v1","id":"did:example:doc"}`)
		case "/1.0/identifiers/did:example:result":
			w.Header().Set("Content-Type", "application/ld+json")
			fmt.Fprint(w, `{"didDocument":{"id":"did:example:result"},"didDocumentMetadata":{"versionId":"2"},"didResolutionMetadata":{"contentType":"application/did+ld+json"}}`)
		case "/1.0/identifiers/did:example:broken":
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, "upstream down")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	d, err := NewHTTPDriver("^(did:example:.+)$", srv.URL+"/1.0/identifiers/$1", "", 0)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("bare document", func(t *testing.T) {
		result, err := d.Resolve(ctx, "did:example:doc")
		require.NoError(t, err)
		require.NotNil(t, result)
		require.NotNil(t, result.Document)
		assert.Equal(t, "did:example:doc", result.Document.ID)
	})

	t.Run("resolution result", func(t *testing.T) {
		result, err := d.Resolve(ctx, "did:example:result")
		require.NoError(t, err)
		require.NotNil(t, result.Document)
		assert.Equal(t, "did:example:result", result.Document.ID)
		v, _ := result.DocumentMetadata.GetString("versionId")
		assert.Equal(t, "2", v)
	})

	t.Run("not found declines", func(t *testing.T) {
		result, err := d.Resolve(ctx, "did:example:missing")
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("server error fails", func(t *testing.T) {
		_, err := d.Resolve(ctx, "did:example:broken")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrBackendIO)
		var rerr *ResolutionError
		require.True(t, errors.As(err, &rerr))
		assert.Equal(t, "did:example:broken", rerr.Identifier)
	})

	t.Run("pattern mismatch declines without request", func(t *testing.T) {
		before := requests.Load()
		result, err := d.Resolve(ctx, "did:other:123")
		require.NoError(t, err)
		assert.Nil(t, result)
		assert.Equal(t, before, requests.Load())
	})
}

func TestHTTPDriverProperties(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"network":"mainnet"}`)
	}))
	defer srv.Close()

	d, err := NewHTTPDriver("", srv.URL+"/1.0/identifiers/", srv.URL+"/1.0/properties", 0)
	require.NoError(t, err)

	props, err := d.Properties(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mainnet", props["network"])

	noProps, err := NewHTTPDriver("", srv.URL+"/1.0/identifiers/", "", 0)
	require.NoError(t, err)
	props, err = noProps.Properties(context.Background())
	require.NoError(t, err)
	assert.Empty(t, props)
}

func TestResolutionErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Fail(ErrBackendIO, "did:btcr:xyv2-xzpq-q9wa-p7t", cause)

	assert.ErrorIs(t, err, ErrBackendIO)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrBrokenChain)
	assert.Equal(t, "backend i/o failure for did:btcr:xyv2-xzpq-q9wa-p7t: connection refused", err.Error())
}
