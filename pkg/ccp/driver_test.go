package ccp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b-open-io/did-resolver/pkg/driver"
)

const (
	testDID     = "did:ccp:3CzQLF3qfFVQ1WjC9k2x1xDkxW4Z"
	missingDID  = "did:ccp:4CzQLF3qfFVQ1WjC9k2x1xDkxW4Z"
	brokenDID   = "did:ccp:5CzQLF3qfFVQ1WjC9k2x1xDkxW4Z"
	registryDoc = `{
		"content": {
			"didDocument": {
				"version": 1,
				"created": "2019-09-12T08:30:00Z",
				"updated": "2019-09-12T08:30:00Z",
				"publicKey": [
					{"id": "#key-1", "type": "Secp256k1", "publicKeyHex": "02aa"},
					{"id": "#key-2", "publicKeyHex": "03bb"}
				],
				"authentication": ["#key-1"],
				"service": [{"type": "agent", "serviceEndpoint": "https://agent.example.com"}],
				"proof": {"type": "Secp256k1", "creator": "#key-2", "signatureValue": "abc"}
			}
		}
	}`
)

func newRegistry(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/did/resolve/" + testDID:
			w.Write([]byte(registryDoc))
		case "/v1/did/resolve/" + missingDID:
			w.Write([]byte(`{"content": {}}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
}

func TestResolve(t *testing.T) {
	srv := newRegistry(t)
	defer srv.Close()
	d := NewDriver(srv.URL, 0, nil)
	ctx := context.Background()

	res, err := d.Resolve(ctx, testDID)
	require.NoError(t, err)
	require.NotNil(t, res.Document)

	doc := res.Document
	assert.Equal(t, testDID, doc.ID)
	require.Len(t, doc.VerificationMethod, 2)
	assert.Equal(t, "02aa", doc.VerificationMethod[0].PublicKeyHex)
	assert.True(t, doc.VerificationMethod[1].Type.Contains(KeyType))
	require.Len(t, doc.Authentication, 1)
	assert.Equal(t, "#key-1", doc.Authentication[0].ID)
	require.Len(t, doc.Service, 1)
	assert.Equal(t, "https://agent.example.com", doc.Service[0].ServiceEndpoint)

	assert.Equal(t, []string{"version", "proof", "created", "updated"}, res.DocumentMetadata.Keys())
	proof, _ := res.DocumentMetadata.Get("proof")
	assert.JSONEq(t, `{"type": "Secp256k1", "creator": "#key-2", "signatureValue": "abc"}`, string(proof.(json.RawMessage)))
}

func TestResolveOutcomes(t *testing.T) {
	srv := newRegistry(t)
	defer srv.Close()
	d := NewDriver(srv.URL, 0, nil)
	ctx := context.Background()

	for _, id := range []string{"did:sov:WRfXPg8dantKVubE3HX8pw", "did:ccp:short", missingDID} {
		res, err := d.Resolve(ctx, id)
		assert.NoError(t, err, id)
		assert.Nil(t, res, id)
	}

	_, err := d.Resolve(ctx, brokenDID)
	require.ErrorIs(t, err, driver.ErrBackendIO)
	assert.Contains(t, err.Error(), "http-err-502")

	_, err = d.Properties(ctx)
	assert.ErrorIs(t, err, driver.ErrNotSupported)
}

func TestInitialize(t *testing.T) {
	svc, err := (&Config{}).Initialize(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, svc)

	svc, err = (&Config{Enabled: true}).Initialize(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultURL, svc.Driver.baseURL)
	assert.NoError(t, svc.Close())
}
