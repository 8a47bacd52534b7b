package btcr

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b-open-io/did-resolver/pkg/did"
	"github.com/b-open-io/did-resolver/pkg/driver"
)

type mockTx struct {
	height  uint32
	pos     uint32
	record  *AnchorRecord
	missing bool
}

// mockConnection serves a fixed set of transactions and records every
// FetchAnchorRecord call.
type mockConnection struct {
	chain   Chain
	txs     map[string]*mockTx
	lookErr error

	mu      sync.Mutex
	fetched []string
	closed  bool
}

func newMockConnection(chain Chain) *mockConnection {
	return &mockConnection{chain: chain, txs: map[string]*mockTx{}}
}

func testTxid(c byte) string {
	return strings.Repeat(string(c), 64)
}

// add registers txid at height/pos with the given key, spent in spentIn.
func (m *mockConnection) add(txid string, height, pos uint32, key, spentIn string, deactivated bool, uri string) {
	ct, _ := NewChainTxid(m.chain, txid, 0)
	rec := &AnchorRecord{Txid: ct, InputScriptPubKey: key, ContinuationURI: uri, Deactivated: deactivated}
	if spentIn != "" {
		sp, _ := NewChainTxid(m.chain, spentIn, 0)
		rec.SpentIn = &sp
	}
	m.txs[txid] = &mockTx{height: height, pos: pos, record: rec}
}

func (m *mockConnection) LookupTxid(ctx context.Context, loc ChainLocation) (ChainTxid, error) {
	if m.lookErr != nil {
		return ChainTxid{}, m.lookErr
	}
	for txid, tx := range m.txs {
		if tx.height == loc.BlockHeight && tx.pos == loc.TransactionPosition {
			return NewChainTxid(m.chain, txid, loc.TxoIndex)
		}
	}
	return ChainTxid{}, errors.New("no transaction at location")
}

func (m *mockConnection) LookupLocation(ctx context.Context, txid ChainTxid) (ChainLocation, error) {
	tx, ok := m.txs[txid.Txid.String()]
	if !ok {
		return ChainLocation{}, errors.New("unknown transaction")
	}
	return ChainLocation{Chain: m.chain, BlockHeight: tx.height, TransactionPosition: tx.pos, TxoIndex: txid.TxoIndex}, nil
}

func (m *mockConnection) FetchAnchorRecord(ctx context.Context, txid ChainTxid) (*AnchorRecord, error) {
	m.mu.Lock()
	m.fetched = append(m.fetched, txid.Txid.String())
	m.mu.Unlock()
	tx, ok := m.txs[txid.Txid.String()]
	if !ok || tx.missing {
		return nil, nil
	}
	return tx.record, nil
}

func (m *mockConnection) Close() error {
	m.closed = true
	return nil
}

func testDID(t *testing.T, chain Chain, height, pos uint32) string {
	t.Helper()
	enc, err := EncodeTxref(ChainLocation{Chain: chain, BlockHeight: height, TransactionPosition: pos})
	require.NoError(t, err)
	return "did:btcr:" + stripPrefix(enc)
}

func newTestDriver(conn *mockConnection, opts Options) *Driver {
	return NewDriver(map[Chain]Connection{conn.chain: conn}, opts, nil)
}

func TestResolveDeclines(t *testing.T) {
	d := newTestDriver(newMockConnection(Testnet), Options{})
	for _, id := range []string{"did:sov:WRfXPg8dantKVubE3HX8pw", "example.com", "did:btcrx:abcd"} {
		res, err := d.Resolve(context.Background(), id)
		assert.NoError(t, err, id)
		assert.Nil(t, res, id)
	}
}

func TestResolveMalformed(t *testing.T) {
	d := newTestDriver(newMockConnection(Testnet), Options{})

	tests := []struct {
		name string
		id   string
		msg  string
	}{
		{"pattern", "did:btcr:abc", "4-4-4-3 or 4-4-4-4-2"},
		{"uppercase", "did:btcr:XKYT-FZGQ-QQ87-XNH", "4-4-4-3 or 4-4-4-4-2"},
		{"checksum", "did:btcr:xqqq-qqqq-qqqq-qqq", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := d.Resolve(context.Background(), tt.id)
			assert.Nil(t, res)
			require.ErrorIs(t, err, driver.ErrMalformedIdentifier)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestResolveExtendedZeroIndex(t *testing.T) {
	d := newTestDriver(newMockConnection(Testnet), Options{})

	enc, err := EncodeTxref(ChainLocation{Chain: Testnet, BlockHeight: 1201739, TransactionPosition: 2, Extended: true})
	require.NoError(t, err)

	_, err = d.Resolve(context.Background(), "did:btcr:"+stripPrefix(enc))
	require.ErrorIs(t, err, driver.ErrMalformedIdentifier)
	require.Contains(t, err.Error(), "Extended txref form not allowed if txoIndex == 0")

	// the suggested identifier decodes to the same location in short form
	msg := err.Error()
	start := strings.LastIndex(msg, "did:btcr:")
	require.GreaterOrEqual(t, start, 0)
	suggested := strings.Fields(msg[start:])[0]
	suggested = strings.TrimPrefix(suggested, "did:btcr:")

	loc, err := DecodeTxref(suggested)
	require.NoError(t, err)
	assert.False(t, loc.Extended)
	assert.Equal(t, Testnet, loc.Chain)
	assert.Equal(t, uint32(1201739), loc.BlockHeight)
	assert.Equal(t, uint32(2), loc.TransactionPosition)
}

func TestResolveNoConnection(t *testing.T) {
	d := newTestDriver(newMockConnection(Mainnet), Options{})
	_, err := d.Resolve(context.Background(), testDID(t, Testnet, 10, 1))
	require.ErrorIs(t, err, driver.ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "TESTNET")
}

func TestResolveUnspent(t *testing.T) {
	conn := newMockConnection(Testnet)
	conn.add(testTxid('a'), 1201739, 2, "02aa", "", false, "")
	d := newTestDriver(conn, Options{Connection: "mock"})
	id := testDID(t, Testnet, 1201739, 2)

	res, err := d.Resolve(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, res.Document)

	doc := res.Document
	assert.Equal(t, id, doc.ID)
	require.Len(t, doc.VerificationMethod, 2)
	assert.Equal(t, id+"#key-0", doc.VerificationMethod[0].ID)
	assert.Equal(t, "02aa", doc.VerificationMethod[0].PublicKeyBase58)
	assert.Equal(t, id+"#satoshi", doc.VerificationMethod[1].ID)
	assert.Equal(t, "02aa", doc.VerificationMethod[1].PublicKeyBase58)
	assert.True(t, doc.VerificationMethod[1].Type.Contains(VerificationMethodType))
	require.Len(t, doc.Authentication, 1)
	assert.Equal(t, "#satoshi", doc.Authentication[0].VerificationMethod)
	assert.True(t, doc.Authentication[0].Type.Contains(AuthenticationType))
	assert.Empty(t, doc.Service)

	md := res.DocumentMetadata
	assert.Equal(t, []string{
		"inputScriptPubKey", "continuationUri", "chain",
		"initialBlockHeight", "initialTransactionPosition", "initialTxoIndex", "initialTxid",
		"blockHeight", "transactionPosition", "txoIndex", "txid",
		"spentInChainAndTxids", "deactivated",
	}, md.Keys())

	superseded, _ := md.Get("spentInChainAndTxids")
	assert.Empty(t, superseded)
	initial, _ := md.Get("initialTxid")
	tip, _ := md.Get("txid")
	assert.Equal(t, initial, tip)
	deactivated, _ := md.Get("deactivated")
	assert.Equal(t, false, deactivated)

	ct, _ := res.ResolutionMetadata.GetString("contentType")
	assert.Equal(t, did.ContentTypeJSONLD, ct)
	assert.Equal(t, []string{testTxid('a')}, conn.fetched)
}

func TestResolveDeactivated(t *testing.T) {
	conn := newMockConnection(Testnet)
	conn.add(testTxid('a'), 100, 1, "02aa", testTxid('b'), false, "")
	conn.add(testTxid('b'), 101, 4, "02bb", testTxid('c'), true, "")
	conn.add(testTxid('c'), 102, 7, "02cc", "", false, "")
	d := newTestDriver(conn, Options{})
	id := testDID(t, Testnet, 100, 1)

	res, err := d.Resolve(context.Background(), id)
	require.NoError(t, err)

	md := res.DocumentMetadata
	superseded, _ := md.Get("spentInChainAndTxids")
	require.Len(t, superseded, 2)
	deactivated, _ := md.Get("deactivated")
	assert.Equal(t, true, deactivated)
	height, _ := md.Get("blockHeight")
	assert.Equal(t, uint32(102), height)
	initialHeight, _ := md.Get("initialBlockHeight")
	assert.Equal(t, uint32(100), initialHeight)

	// the deactivating spend is never fetched
	assert.Equal(t, []string{testTxid('a'), testTxid('b')}, conn.fetched)

	keys := make([]string, 0, len(res.Document.VerificationMethod))
	for _, vm := range res.Document.VerificationMethod {
		keys = append(keys, did.Fragment(vm.ID)+"="+vm.PublicKeyBase58)
	}
	assert.Equal(t, []string{"key-0=02aa", "key-1=02bb", "key-2=02bb", "satoshi=02bb"}, keys)
}

func TestResolveSpendChain(t *testing.T) {
	conn := newMockConnection(Mainnet)
	conn.add(testTxid('a'), 500, 1, "02aa", testTxid('b'), false, "")
	conn.add(testTxid('b'), 501, 2, "02bb", testTxid('c'), false, "")
	conn.add(testTxid('c'), 502, 3, "02cc", "", false, "")
	d := newTestDriver(conn, Options{})

	res, err := d.Resolve(context.Background(), testDID(t, Mainnet, 500, 1))
	require.NoError(t, err)

	vms := res.Document.VerificationMethod
	require.Len(t, vms, 4)
	assert.Equal(t, "02cc", vms[2].PublicKeyBase58)
	assert.Equal(t, "02cc", vms[3].PublicKeyBase58)
	txid, _ := res.DocumentMetadata.Get("txid")
	assert.Equal(t, testTxid('c'), txid.(ChainTxid).Txid.String())
}

func TestResolveChainFailures(t *testing.T) {
	t.Run("missing record", func(t *testing.T) {
		conn := newMockConnection(Testnet)
		conn.add(testTxid('a'), 100, 1, "02aa", testTxid('b'), false, "")
		conn.add(testTxid('b'), 101, 1, "02bb", "", false, "")
		conn.txs[testTxid('b')].missing = true

		_, err := newTestDriver(conn, Options{}).Resolve(context.Background(), testDID(t, Testnet, 100, 1))
		require.ErrorIs(t, err, driver.ErrBrokenChain)
		assert.Contains(t, err.Error(), "no BTCR data found in transaction")
	})

	t.Run("cycle", func(t *testing.T) {
		conn := newMockConnection(Testnet)
		conn.add(testTxid('a'), 100, 1, "02aa", testTxid('b'), false, "")
		conn.add(testTxid('b'), 101, 1, "02bb", testTxid('a'), false, "")

		_, err := newTestDriver(conn, Options{}).Resolve(context.Background(), testDID(t, Testnet, 100, 1))
		require.ErrorIs(t, err, driver.ErrBrokenChain)
	})

	t.Run("too long", func(t *testing.T) {
		conn := newMockConnection(Testnet)
		conn.add(testTxid('a'), 100, 1, "02aa", testTxid('b'), false, "")
		conn.add(testTxid('b'), 101, 1, "02bb", testTxid('c'), false, "")
		conn.add(testTxid('c'), 102, 1, "02cc", testTxid('d'), false, "")
		conn.add(testTxid('d'), 103, 1, "02dd", testTxid('e'), false, "")
		conn.add(testTxid('e'), 104, 1, "02ee", "", false, "")

		_, err := newTestDriver(conn, Options{MaxChainLength: 2}).Resolve(context.Background(), testDID(t, Testnet, 100, 1))
		require.ErrorIs(t, err, driver.ErrChainTooLong)
		assert.Len(t, conn.fetched, 3)
	})

	t.Run("lookup failure", func(t *testing.T) {
		conn := newMockConnection(Testnet)
		conn.lookErr = errors.New("connection refused")

		_, err := newTestDriver(conn, Options{}).Resolve(context.Background(), testDID(t, Testnet, 100, 1))
		require.ErrorIs(t, err, driver.ErrBackendIO)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("canceled", func(t *testing.T) {
		conn := newMockConnection(Testnet)
		conn.add(testTxid('a'), 100, 1, "02aa", "", false, "")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newTestDriver(conn, Options{}).Resolve(ctx, testDID(t, Testnet, 100, 1))
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, conn.fetched)
	})
}

func TestResolveContinuation(t *testing.T) {
	var id string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ddo.jsonld":
			w.Header().Set("Content-Type", "application/ld+json")
			w.Write([]byte(`{
				"@context": "https://w3id.org/btcr/v1",
				"didDocument": {
					"verificationMethod": [
						{"id": "` + id + `#satoshi", "type": "EcdsaSecp256k1VerificationKey2019", "publicKeyBase58": "ignored"},
						{"id": "` + id + `#vm-1", "type": "EcdsaSecp256k1VerificationKey2019", "publicKeyBase58": "02ff"}
					],
					"authentication": ["#satoshi", "#vm-1"],
					"service": [
						{"id": "` + id + `#agent", "type": "AgentService", "serviceEndpoint": "https://agent.example.com"},
						{"id": "` + id + `#agent", "type": "AgentService", "serviceEndpoint": "https://shadow.example.com"}
					]
				}
			}`))
		case "/bare.json":
			w.Write([]byte(`{"something": "else"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	newDriver := func(uri string) *Driver {
		conn := newMockConnection(Testnet)
		conn.add(testTxid('a'), 200, 3, "02aa", "", false, uri)
		return newTestDriver(conn, Options{})
	}
	id = testDID(t, Testnet, 200, 3)

	t.Run("wrapped document", func(t *testing.T) {
		res, err := newDriver(srv.URL+"/ddo.jsonld").Resolve(context.Background(), id)
		require.NoError(t, err)

		doc := res.Document
		assert.Equal(t, did.Context{"https://w3id.org/btcr/v1"}, doc.Context)

		ids := map[string]int{}
		for _, vm := range doc.VerificationMethod {
			ids[vm.ID]++
		}
		for vmID, n := range ids {
			assert.Equal(t, 1, n, "duplicate verification method %s", vmID)
		}
		require.Len(t, doc.VerificationMethod, 3)
		assert.Equal(t, "02aa", doc.VerificationMethod[1].PublicKeyBase58, "anchor key must win")
		assert.Equal(t, id+"#vm-1", doc.VerificationMethod[2].ID)

		// Bare references have no id, so the continuation's "#satoshi" is kept.
		require.Len(t, doc.Authentication, 3)
		assert.True(t, doc.Authentication[0].Type.Contains(AuthenticationType))
		assert.Equal(t, "#satoshi", doc.Authentication[1].VerificationMethod)
		assert.Equal(t, "#vm-1", doc.Authentication[2].VerificationMethod)

		require.Len(t, doc.Service, 1)
		assert.Equal(t, id+"#agent", doc.Service[0].ID)
		assert.Equal(t, "https://agent.example.com", doc.Service[0].ServiceEndpoint)

		uri, _ := res.DocumentMetadata.GetString("continuationUri")
		assert.Equal(t, srv.URL+"/ddo.jsonld", uri)
		assert.True(t, res.DocumentMetadata.Has("continuation"))
	})

	t.Run("unwrapped body", func(t *testing.T) {
		res, err := newDriver(srv.URL+"/bare.json").Resolve(context.Background(), id)
		require.NoError(t, err)
		assert.Len(t, res.Document.VerificationMethod, 2)
		assert.Empty(t, res.Document.Service)
		cont, ok := res.DocumentMetadata.Get("continuation")
		require.True(t, ok)
		assert.Equal(t, id, cont.(*did.Document).ID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := newDriver(srv.URL+"/missing").Resolve(context.Background(), id)
		require.ErrorIs(t, err, driver.ErrContinuationFetch)
		assert.Contains(t, err.Error(), "http-err-404")
	})
}

func TestProperties(t *testing.T) {
	mainConn := newMockConnection(Mainnet)
	testConn := newMockConnection(Testnet)
	d := NewDriver(map[Chain]Connection{Mainnet: mainConn, Testnet: testConn}, Options{Connection: ConnectionStore}, nil)

	props, err := d.Properties(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ConnectionStore, props["connection"])
	assert.Equal(t, []Chain{Mainnet, Testnet}, props["chains"])
	assert.Equal(t, DefaultMaxChainLength, props["maxChainLength"])

	require.NoError(t, d.Close())
	assert.True(t, mainConn.closed)
	assert.True(t, testConn.closed)
}
