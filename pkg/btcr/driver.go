// Package btcr resolves did:btcr identifiers. The identifier is a txref
// pointing at a Bitcoin transaction; the driver follows the chain of
// spends from that transaction to its tip and builds the DID document from
// the keys that signed along the way plus the continuation document the tip
// references.
package btcr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/b-open-io/did-resolver/pkg/did"
	"github.com/b-open-io/did-resolver/pkg/driver"
)

// Document entry types
const (
	VerificationMethodType = "EcdsaSecp256k1VerificationKey2019"
	AuthenticationType     = "EcdsaSecp256k1SignatureAuthentication2019"
)

// DefaultMaxChainLength bounds the spend chain walk.
const DefaultMaxChainLength = 1000

var (
	methodPattern         = regexp.MustCompile(`^did:btcr:(.*)$`)
	methodSpecificPattern = regexp.MustCompile(`^[a-z0-9]{4}-[a-z0-9]{4}-[a-z0-9]{4}-(?:[a-z0-9]{3}|[a-z0-9]{4}-[a-z0-9]{2})$`)
)

// Options configures the driver.
type Options struct {
	Connection          string        // connection kind, reported in properties
	MaxChainLength      int           // spends followed before giving up
	ContinuationTimeout time.Duration // HTTP timeout of the continuation fetch
}

// Driver resolves did:btcr identifiers.
type Driver struct {
	connections map[Chain]Connection
	opts        Options
	client      *http.Client
	logger      *slog.Logger
}

// NewDriver creates a driver. connections maps each supported chain to its
// backend; a chain without one fails with ErrBackendUnavailable.
func NewDriver(connections map[Chain]Connection, opts Options, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxChainLength <= 0 {
		opts.MaxChainLength = DefaultMaxChainLength
	}
	if opts.ContinuationTimeout <= 0 {
		opts.ContinuationTimeout = 30 * time.Second
	}
	return &Driver{
		connections: connections,
		opts:        opts,
		client:      &http.Client{Timeout: opts.ContinuationTimeout},
		logger:      logger,
	}
}

// walk is the state of a tip walk.
type walk struct {
	initialLoc  ChainLocation
	initialTxid ChainTxid
	loc         ChainLocation
	txid        ChainTxid
	record      *AnchorRecord
	superseded  []*AnchorRecord
}

func (d *Driver) Resolve(ctx context.Context, identifier string) (*did.ResolveResult, error) {
	m := methodPattern.FindStringSubmatch(identifier)
	if m == nil {
		return nil, nil
	}
	msid := m[1]
	if !methodSpecificPattern.MatchString(msid) {
		return nil, driver.Failf(driver.ErrMalformedIdentifier, identifier, "DID does not match 4-4-4-3 or 4-4-4-4-2 pattern")
	}

	loc, err := DecodeTxref(msid)
	if err != nil {
		return nil, driver.Fail(driver.ErrMalformedIdentifier, identifier, err)
	}
	if loc.TxoIndex == 0 && loc.Extended {
		corrected, err := EncodeTxref(loc.ShortForm())
		if err != nil {
			return nil, driver.Fail(driver.ErrMalformedIdentifier, identifier, err)
		}
		return nil, driver.Failf(driver.ErrMalformedIdentifier, identifier,
			"Extended txref form not allowed if txoIndex == 0. You probably want to use did:btcr:%s instead.", stripPrefix(corrected))
	}

	conn, ok := d.connections[loc.Chain]
	if !ok || conn == nil {
		return nil, driver.Failf(driver.ErrBackendUnavailable, identifier, "no connection is available for the chain %s", loc.Chain)
	}

	w, err := d.walk(ctx, identifier, conn, loc)
	if err != nil {
		return nil, err
	}

	d.logger.Info("retrieved BTCR data",
		"identifier", identifier,
		"txid", w.txid.Txid.String(),
		"chain", w.loc.Chain,
		"superseded", len(w.superseded),
		"deactivated", w.record.Deactivated)

	var continuation *did.Document
	if w.record.ContinuationURI != "" {
		continuation, err = d.fetchContinuation(ctx, identifier, w.record.ContinuationURI)
		if err != nil {
			return nil, err
		}
		d.logger.Debug("retrieved continuation", "identifier", identifier, "uri", w.record.ContinuationURI)
	}

	doc := assemble(identifier, w, continuation)
	return did.NewDocumentResult(doc, methodMetadata(w, continuation)), nil
}

// walk follows spends from loc until an unspent or deactivated anchor.
func (d *Driver) walk(ctx context.Context, identifier string, conn Connection, loc ChainLocation) (*walk, error) {
	txid, err := conn.LookupTxid(ctx, loc)
	if err != nil {
		return nil, driver.Fail(driver.ErrBackendIO, identifier, err)
	}

	w := &walk{
		initialLoc:  loc,
		initialTxid: txid,
		loc:         loc,
		txid:        txid,
	}
	visited := map[ChainTxid]struct{}{}

	for steps := 0; ; steps++ {
		if err := ctx.Err(); err != nil {
			return nil, driver.Fail(driver.ErrBackendIO, identifier, err)
		}
		if steps > d.opts.MaxChainLength {
			return nil, driver.Failf(driver.ErrChainTooLong, identifier, "more than %d spends from %s", d.opts.MaxChainLength, w.initialTxid)
		}
		key := ChainTxid{Chain: w.txid.Chain, Txid: w.txid.Txid}
		if _, seen := visited[key]; seen {
			return nil, driver.Failf(driver.ErrBrokenChain, identifier, "spend cycle at %s", w.txid)
		}
		visited[key] = struct{}{}

		record, err := conn.FetchAnchorRecord(ctx, w.txid)
		if err != nil {
			return nil, driver.Fail(driver.ErrBackendIO, identifier, err)
		}
		if record == nil {
			return nil, driver.Failf(driver.ErrBrokenChain, identifier, "no BTCR data found in transaction %s", w.txid)
		}
		w.record = record

		if record.SpentIn == nil {
			return w, nil
		}

		w.superseded = append(w.superseded, record)
		w.txid = *record.SpentIn
		if w.loc, err = conn.LookupLocation(ctx, w.txid); err != nil {
			return nil, driver.Fail(driver.ErrBackendIO, identifier, err)
		}

		if record.Deactivated {
			d.logger.Debug("DID document is deactivated", "identifier", identifier, "txid", w.txid.Txid.String())
			return w, nil
		}
	}
}

// assemble builds the document: one key per superseded anchor plus the
// tip, the #satoshi key, and whatever the continuation adds.
func assemble(identifier string, w *walk, continuation *did.Document) *did.Document {
	keys := make([]string, 0, len(w.superseded)+1)
	for _, r := range w.superseded {
		keys = append(keys, r.InputScriptPubKey)
	}
	keys = append(keys, w.record.InputScriptPubKey)

	vms := make([]did.VerificationMethod, 0, len(keys)+1)
	for i, key := range keys {
		vms = append(vms, did.VerificationMethod{
			ID:              fmt.Sprintf("%s#key-%d", identifier, i),
			Type:            did.Types{VerificationMethodType},
			PublicKeyBase58: key,
		})
	}
	vms = append(vms, did.VerificationMethod{
		ID:              identifier + "#satoshi",
		Type:            did.Types{VerificationMethodType},
		PublicKeyBase58: keys[len(keys)-1],
	})

	auths := []did.Authentication{{
		Type:               did.Types{AuthenticationType},
		VerificationMethod: "#satoshi",
	}}

	doc := &did.Document{
		Context:            did.Context{did.ContextV1},
		ID:                 identifier,
		VerificationMethod: vms,
		Authentication:     auths,
	}

	if continuation != nil {
		if len(continuation.Context) > 0 {
			doc.Context = continuation.Context
		}
		doc.VerificationMethod = did.MergeVerificationMethods(doc.VerificationMethod, continuation.VerificationMethod...)
		doc.Authentication = did.MergeAuthentications(doc.Authentication, continuation.Authentication...)
		doc.Service = did.MergeServices(doc.Service, continuation.Service...)
	}
	return doc
}

func methodMetadata(w *walk, continuation *did.Document) did.Metadata {
	md := did.NewMetadata()
	md.Set("inputScriptPubKey", w.record.InputScriptPubKey)
	if w.record.ContinuationURI != "" {
		md.Set("continuationUri", w.record.ContinuationURI)
	} else {
		md.Set("continuationUri", nil)
	}
	if continuation != nil {
		md.Set("continuation", continuation)
	}
	md.Set("chain", w.loc.Chain)
	md.Set("initialBlockHeight", w.initialLoc.BlockHeight)
	md.Set("initialTransactionPosition", w.initialLoc.TransactionPosition)
	md.Set("initialTxoIndex", w.initialLoc.TxoIndex)
	md.Set("initialTxid", w.initialTxid)
	md.Set("blockHeight", w.loc.BlockHeight)
	md.Set("transactionPosition", w.loc.TransactionPosition)
	md.Set("txoIndex", w.loc.TxoIndex)
	md.Set("txid", w.txid)
	superseded := w.superseded
	if superseded == nil {
		superseded = []*AnchorRecord{}
	}
	md.Set("spentInChainAndTxids", superseded)
	md.Set("deactivated", w.record.Deactivated)
	return md
}

func (d *Driver) Properties(ctx context.Context) (map[string]any, error) {
	chains := make([]Chain, 0, len(d.connections))
	for _, c := range []Chain{Mainnet, Testnet} {
		if conn, ok := d.connections[c]; ok && conn != nil {
			chains = append(chains, c)
		}
	}
	return map[string]any{
		"connection":     d.opts.Connection,
		"chains":         chains,
		"maxChainLength": d.opts.MaxChainLength,
	}, nil
}

// Close closes every connection.
func (d *Driver) Close() error {
	var errs []error
	for chain, conn := range d.connections {
		if conn == nil {
			continue
		}
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s connection: %w", chain, err))
		}
	}
	return errors.Join(errs...)
}
