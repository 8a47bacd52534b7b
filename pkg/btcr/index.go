package btcr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/b-open-io/did-resolver/pkg/store"
)

// Anchor index key layout
const (
	locKeyPrefix = "btcr:loc:"
	txKeyPrefix  = "btcr:tx:"
)

// Anchor index hash fields
const (
	fieldBlockHeight         = "blockHeight"
	fieldTransactionPosition = "transactionPosition"
	fieldInputScriptPubKey   = "inputScriptPubKey"
	fieldSpentIn             = "spentIn"
	fieldContinuationURI     = "continuationUri"
	fieldDeactivated         = "deactivated"
)

var anchorFields = [][]byte{
	[]byte(fieldBlockHeight),
	[]byte(fieldTransactionPosition),
	[]byte(fieldInputScriptPubKey),
	[]byte(fieldSpentIn),
	[]byte(fieldContinuationURI),
	[]byte(fieldDeactivated),
}

// ErrAnchorNotFound is returned by AnchorIndex.Get for unknown entries.
var ErrAnchorNotFound = errors.New("anchor not found")

// AnchorEntry is one indexed anchor transaction. SpentIn is the txid of the
// spending transaction on the same chain.
type AnchorEntry struct {
	Chain               Chain  `json:"chain"`
	BlockHeight         uint32 `json:"blockHeight"`
	TransactionPosition uint32 `json:"transactionPosition"`
	Txid                string `json:"txid"`
	InputScriptPubKey   string `json:"inputScriptPubKey"`
	SpentIn             string `json:"spentIn,omitempty"`
	ContinuationURI     string `json:"continuationUri,omitempty"`
	Deactivated         bool   `json:"deactivated"`
}

// Validate checks the entry before it is written and normalizes its txids.
func (e *AnchorEntry) Validate() error {
	if e.Chain != Mainnet && e.Chain != Testnet {
		return fmt.Errorf("invalid chain %q", e.Chain)
	}
	txid, err := NewChainTxid(e.Chain, e.Txid, 0)
	if err != nil {
		return err
	}
	e.Txid = txid.Txid.String()
	if e.SpentIn != "" {
		spentIn, err := NewChainTxid(e.Chain, e.SpentIn, 0)
		if err != nil {
			return fmt.Errorf("spentIn: %w", err)
		}
		e.SpentIn = spentIn.Txid.String()
	}
	if e.InputScriptPubKey == "" {
		return errors.New("inputScriptPubKey is required")
	}
	if e.BlockHeight > maxBlockHeight || e.TransactionPosition > maxPosition {
		return fmt.Errorf("location %d/%d out of range", e.BlockHeight, e.TransactionPosition)
	}
	return nil
}

// AnchorIndex keeps anchor entries in a store.
type AnchorIndex struct {
	store  store.Store
	logger *slog.Logger
}

// NewAnchorIndex creates an index over s.
func NewAnchorIndex(s store.Store, logger *slog.Logger) *AnchorIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnchorIndex{store: s, logger: logger}
}

func locKey(chain Chain, height, pos uint32) []byte {
	return []byte(fmt.Sprintf("%s%s:%d:%d", locKeyPrefix, chain, height, pos))
}

func txKey(chain Chain, txid string) []byte {
	return []byte(txKeyPrefix + string(chain) + ":" + strings.ToLower(txid))
}

// Put writes or replaces an entry.
func (x *AnchorIndex) Put(ctx context.Context, e *AnchorEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	fields := map[string][]byte{
		fieldBlockHeight:         []byte(strconv.FormatUint(uint64(e.BlockHeight), 10)),
		fieldTransactionPosition: []byte(strconv.FormatUint(uint64(e.TransactionPosition), 10)),
		fieldInputScriptPubKey:   []byte(e.InputScriptPubKey),
		fieldDeactivated:         []byte(strconv.FormatBool(e.Deactivated)),
	}
	if e.SpentIn != "" {
		fields[fieldSpentIn] = []byte(e.SpentIn)
	}
	if e.ContinuationURI != "" {
		fields[fieldContinuationURI] = []byte(e.ContinuationURI)
	}

	if prev, err := x.Get(ctx, e.Chain, e.Txid); err == nil &&
		(prev.BlockHeight != e.BlockHeight || prev.TransactionPosition != e.TransactionPosition) {
		if err := x.store.Del(ctx, locKey(e.Chain, prev.BlockHeight, prev.TransactionPosition)); err != nil {
			return fmt.Errorf("failed to move location of %s: %w", e.Txid, err)
		}
	}

	key := txKey(e.Chain, e.Txid)
	if err := x.store.HDel(ctx, key, anchorFields...); err != nil {
		return fmt.Errorf("failed to clear anchor %s: %w", e.Txid, err)
	}
	if err := x.store.HMSet(ctx, key, fields); err != nil {
		return fmt.Errorf("failed to write anchor %s: %w", e.Txid, err)
	}
	if err := x.store.Set(ctx, locKey(e.Chain, e.BlockHeight, e.TransactionPosition), []byte(e.Txid)); err != nil {
		return fmt.Errorf("failed to write location of %s: %w", e.Txid, err)
	}

	x.logger.Debug("anchor indexed", "chain", e.Chain, "txid", e.Txid, "blockHeight", e.BlockHeight, "position", e.TransactionPosition)
	return nil
}

// Get returns the entry for txid or ErrAnchorNotFound.
func (x *AnchorIndex) Get(ctx context.Context, chain Chain, txid string) (*AnchorEntry, error) {
	fields, err := x.store.HGetAll(ctx, txKey(chain, txid))
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrAnchorNotFound
	}

	e := &AnchorEntry{
		Chain:             chain,
		Txid:              strings.ToLower(txid),
		InputScriptPubKey: string(fields[fieldInputScriptPubKey]),
		SpentIn:           string(fields[fieldSpentIn]),
		ContinuationURI:   string(fields[fieldContinuationURI]),
	}
	if e.BlockHeight, err = parseUint32(fields[fieldBlockHeight]); err != nil {
		return nil, fmt.Errorf("anchor %s: %s: %w", txid, fieldBlockHeight, err)
	}
	if e.TransactionPosition, err = parseUint32(fields[fieldTransactionPosition]); err != nil {
		return nil, fmt.Errorf("anchor %s: %s: %w", txid, fieldTransactionPosition, err)
	}
	if v := fields[fieldDeactivated]; len(v) > 0 {
		if e.Deactivated, err = strconv.ParseBool(string(v)); err != nil {
			return nil, fmt.Errorf("anchor %s: %s: %w", txid, fieldDeactivated, err)
		}
	}
	return e, nil
}

// Lookup returns the txid indexed at a chain location.
func (x *AnchorIndex) Lookup(ctx context.Context, chain Chain, height, pos uint32) (string, error) {
	v, err := x.store.Get(ctx, locKey(chain, height, pos))
	if errors.Is(err, store.ErrKeyNotFound) {
		return "", ErrAnchorNotFound
	}
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// Delete removes an entry and its location key.
func (x *AnchorIndex) Delete(ctx context.Context, chain Chain, txid string) error {
	e, err := x.Get(ctx, chain, txid)
	if err != nil {
		return err
	}
	if err := x.store.Del(ctx, locKey(chain, e.BlockHeight, e.TransactionPosition)); err != nil {
		return fmt.Errorf("failed to delete location of %s: %w", txid, err)
	}
	if err := x.store.HDel(ctx, txKey(chain, txid), anchorFields...); err != nil {
		return fmt.Errorf("failed to delete anchor %s: %w", txid, err)
	}
	return nil
}

// List returns up to limit entries of chain in location key order.
func (x *AnchorIndex) List(ctx context.Context, chain Chain, limit int) ([]*AnchorEntry, error) {
	kvs, err := x.store.Scan(ctx, []byte(locKeyPrefix+string(chain)+":"), limit)
	if err != nil {
		return nil, err
	}
	entries := make([]*AnchorEntry, 0, len(kvs))
	for _, kv := range kvs {
		e, err := x.Get(ctx, chain, string(kv.Value))
		if errors.Is(err, ErrAnchorNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func parseUint32(b []byte) (uint32, error) {
	v, err := strconv.ParseUint(string(b), 10, 32)
	return uint32(v), err
}

// StoreConnection serves anchor data from an AnchorIndex.
type StoreConnection struct {
	chain Chain
	index *AnchorIndex
}

// NewStoreConnection creates a connection for chain backed by index.
func NewStoreConnection(chain Chain, index *AnchorIndex) *StoreConnection {
	return &StoreConnection{chain: chain, index: index}
}

func (c *StoreConnection) LookupTxid(ctx context.Context, loc ChainLocation) (ChainTxid, error) {
	txid, err := c.index.Lookup(ctx, c.chain, loc.BlockHeight, loc.TransactionPosition)
	if err != nil {
		return ChainTxid{}, fmt.Errorf("location %d/%d: %w", loc.BlockHeight, loc.TransactionPosition, err)
	}
	return NewChainTxid(c.chain, txid, loc.TxoIndex)
}

func (c *StoreConnection) LookupLocation(ctx context.Context, txid ChainTxid) (ChainLocation, error) {
	e, err := c.index.Get(ctx, c.chain, txid.Txid.String())
	if err != nil {
		return ChainLocation{}, fmt.Errorf("transaction %s: %w", txid.Txid, err)
	}
	return ChainLocation{
		Chain:               c.chain,
		BlockHeight:         e.BlockHeight,
		TransactionPosition: e.TransactionPosition,
		TxoIndex:            txid.TxoIndex,
	}, nil
}

func (c *StoreConnection) FetchAnchorRecord(ctx context.Context, txid ChainTxid) (*AnchorRecord, error) {
	e, err := c.index.Get(ctx, c.chain, txid.Txid.String())
	if errors.Is(err, ErrAnchorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	record := &AnchorRecord{
		Txid:              txid,
		InputScriptPubKey: e.InputScriptPubKey,
		ContinuationURI:   e.ContinuationURI,
		Deactivated:       e.Deactivated,
	}
	if e.SpentIn != "" {
		spentIn, err := NewChainTxid(c.chain, e.SpentIn, 0)
		if err != nil {
			return nil, err
		}
		record.SpentIn = &spentIn
	}
	return record, nil
}

// Close is a no-op; the store is owned by the store services.
func (c *StoreConnection) Close() error {
	return nil
}
