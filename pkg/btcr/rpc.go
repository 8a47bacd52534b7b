package btcr

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg"
	btcchainhash "github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/txscript"
)

// RPC flavours
const (
	RPCBitcoind = "bitcoind"
	RPCBtcd     = "btcd"
)

// DefaultSpendScanDepth bounds the forward block scan used to find a
// spending transaction on bitcoind.
const DefaultSpendScanDepth = 2016

// searchPageSize is the page size of btcd searchrawtransactions calls.
const searchPageSize = 100

// RPCOptions configures an RPCConnection.
type RPCOptions struct {
	URL            string // http(s)://user:pass@host:port
	Cert           string // base64 DER or PEM certificate for btcd TLS
	SpendScanDepth int64
}

// RPCConnection reads anchor data from a bitcoind or btcd node over
// JSON-RPC. bitcoind finds spends by scanning blocks after the anchor;
// btcd uses its address index.
type RPCConnection struct {
	chain     Chain
	flavour   string
	client    *rpcclient.Client
	params    *chaincfg.Params
	scanDepth int64
	logger    *slog.Logger
}

// NewRPCConnection creates a connection. No request is made until the
// connection is used.
func NewRPCConnection(chain Chain, flavour string, opts RPCOptions, logger *slog.Logger) (*RPCConnection, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if flavour != RPCBitcoind && flavour != RPCBtcd {
		return nil, fmt.Errorf("unknown rpc flavour: %s", flavour)
	}

	cfg, err := connConfig(opts)
	if err != nil {
		return nil, err
	}

	client, err := rpcclient.New(cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create rpc client: %w", err)
	}

	params := &chaincfg.MainNetParams
	if chain == Testnet {
		params = &chaincfg.TestNet3Params
	}
	if opts.SpendScanDepth <= 0 {
		opts.SpendScanDepth = DefaultSpendScanDepth
	}

	logger.Debug("rpc connection created", "chain", chain, "flavour", flavour, "host", cfg.Host)

	return &RPCConnection{
		chain:     chain,
		flavour:   flavour,
		client:    client,
		params:    params,
		scanDepth: opts.SpendScanDepth,
		logger:    logger,
	}, nil
}

func connConfig(opts RPCOptions) (*rpcclient.ConnConfig, error) {
	u, err := url.Parse(opts.URL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid rpc url %q", opts.URL)
	}

	cfg := &rpcclient.ConnConfig{
		Host:         u.Host,
		HTTPPostMode: true,
		DisableTLS:   u.Scheme != "https",
	}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Pass, _ = u.User.Password()
	}

	if opts.Cert != "" {
		cert, err := decodeCert(opts.Cert)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = cert
		cfg.DisableTLS = false
	}
	return cfg, nil
}

// decodeCert accepts a base64 encoded DER or PEM certificate and returns PEM.
func decodeCert(s string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid rpc certificate: %w", err)
	}
	if strings.HasPrefix(string(raw), "-----BEGIN") {
		return raw, nil
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: raw}), nil
}

func (c *RPCConnection) LookupTxid(ctx context.Context, loc ChainLocation) (ChainTxid, error) {
	if err := ctx.Err(); err != nil {
		return ChainTxid{}, err
	}
	hash, err := c.client.GetBlockHash(int64(loc.BlockHeight))
	if err != nil {
		return ChainTxid{}, fmt.Errorf("getblockhash %d: %w", loc.BlockHeight, err)
	}
	block, err := c.client.GetBlockVerbose(hash)
	if err != nil {
		return ChainTxid{}, fmt.Errorf("getblock %s: %w", hash, err)
	}
	if int(loc.TransactionPosition) >= len(block.Tx) {
		return ChainTxid{}, fmt.Errorf("no transaction at position %d in block %d", loc.TransactionPosition, loc.BlockHeight)
	}
	return NewChainTxid(c.chain, block.Tx[loc.TransactionPosition], loc.TxoIndex)
}

func (c *RPCConnection) LookupLocation(ctx context.Context, txid ChainTxid) (ChainLocation, error) {
	if err := ctx.Err(); err != nil {
		return ChainLocation{}, err
	}
	tx, err := c.rawTx(txid)
	if err != nil {
		return ChainLocation{}, err
	}
	if tx == nil || tx.BlockHash == "" {
		return ChainLocation{}, fmt.Errorf("transaction %s is not confirmed", txid.Txid)
	}

	block, err := c.block(tx.BlockHash)
	if err != nil {
		return ChainLocation{}, err
	}
	want := txid.Txid.String()
	for i, id := range block.Tx {
		if id == want {
			return ChainLocation{
				Chain:               c.chain,
				BlockHeight:         uint32(block.Height),
				TransactionPosition: uint32(i),
				TxoIndex:            txid.TxoIndex,
			}, nil
		}
	}
	return ChainLocation{}, fmt.Errorf("transaction %s not found in block %s", txid.Txid, tx.BlockHash)
}

func (c *RPCConnection) FetchAnchorRecord(ctx context.Context, txid ChainTxid) (*AnchorRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx, err := c.rawTx(txid)
	if err != nil || tx == nil {
		return nil, err
	}

	inputs, outputs, err := txParts(tx.Vin, tx.Vout)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", txid.Txid, err)
	}
	pub, err := inputPublicKey(inputs)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", txid.Txid, err)
	}

	record := &AnchorRecord{
		Txid:              txid,
		InputScriptPubKey: pub,
		ContinuationURI:   continuationURI(outputs),
	}

	if int(txid.TxoIndex) >= len(outputs) {
		return record, nil
	}

	var spender *btcjson.TxRawResult
	switch c.flavour {
	case RPCBtcd:
		spender, err = c.searchSpender(ctx, txid, outputs[txid.TxoIndex].Script)
	default:
		spender, err = c.scanSpender(ctx, txid, tx.BlockHash)
	}
	if err != nil {
		return nil, err
	}
	if spender == nil {
		return record, nil
	}

	spentIn, err := NewChainTxid(c.chain, spender.Txid, 0)
	if err != nil {
		return nil, err
	}
	_, spenderOutputs, err := txParts(nil, spender.Vout)
	if err != nil {
		return nil, fmt.Errorf("spending transaction %s: %w", spender.Txid, err)
	}
	record.SpentIn = &spentIn
	record.Deactivated = !hasSpendableOutput(spenderOutputs)
	return record, nil
}

func (c *RPCConnection) Close() error {
	c.client.Shutdown()
	return nil
}

// rawTx returns (nil, nil) when the node does not know the transaction.
func (c *RPCConnection) rawTx(txid ChainTxid) (*btcjson.TxRawResult, error) {
	h := btcchainhash.Hash(txid.Txid)
	tx, err := c.client.GetRawTransactionVerbose(&h)
	if err != nil {
		var rpcErr *btcjson.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCNoTxInfo {
			return nil, nil
		}
		return nil, fmt.Errorf("getrawtransaction %s: %w", txid.Txid, err)
	}
	return tx, nil
}

func (c *RPCConnection) block(hash string) (*btcjson.GetBlockVerboseResult, error) {
	h, err := btcchainhash.NewHashFromStr(hash)
	if err != nil {
		return nil, fmt.Errorf("invalid block hash %q: %w", hash, err)
	}
	block, err := c.client.GetBlockVerbose(h)
	if err != nil {
		return nil, fmt.Errorf("getblock %s: %w", hash, err)
	}
	return block, nil
}

// scanSpender checks the UTXO set and, if the output is spent, walks the
// blocks after the anchor until the spending transaction shows up.
func (c *RPCConnection) scanSpender(ctx context.Context, txid ChainTxid, blockHash string) (*btcjson.TxRawResult, error) {
	h := btcchainhash.Hash(txid.Txid)
	utxo, err := c.client.GetTxOut(&h, txid.TxoIndex, true)
	if err != nil {
		return nil, fmt.Errorf("gettxout %s: %w", txid, err)
	}
	if utxo != nil {
		return nil, nil
	}
	if blockHash == "" {
		return nil, nil
	}

	anchor, err := c.block(blockHash)
	if err != nil {
		return nil, err
	}
	tip, err := c.client.GetBlockCount()
	if err != nil {
		return nil, fmt.Errorf("getblockcount: %w", err)
	}

	want := txid.Txid.String()
	last := min(tip, anchor.Height+c.scanDepth)
	for height := anchor.Height; height <= last; height++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hash, err := c.client.GetBlockHash(height)
		if err != nil {
			return nil, fmt.Errorf("getblockhash %d: %w", height, err)
		}
		block, err := c.client.GetBlockVerboseTx(hash)
		if err != nil {
			return nil, fmt.Errorf("getblock %s: %w", hash, err)
		}
		for i := range block.Tx {
			for _, in := range block.Tx[i].Vin {
				if in.Txid == want && in.Vout == txid.TxoIndex {
					return &block.Tx[i], nil
				}
			}
		}
	}

	return nil, fmt.Errorf("spend of %s not found within %d blocks", txid, c.scanDepth)
}

// searchSpender finds the spending transaction through btcd's address index.
func (c *RPCConnection) searchSpender(ctx context.Context, txid ChainTxid, pkScript []byte) (*btcjson.TxRawResult, error) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(pkScript, c.params)
	if err != nil || len(addrs) == 0 {
		return nil, nil
	}

	want := txid.Txid.String()
	for skip := 0; ; skip += searchPageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results, err := c.client.SearchRawTransactionsVerbose(addrs[0], skip, searchPageSize, false, false, nil)
		if err != nil {
			var rpcErr *btcjson.RPCError
			if errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCNoTxInfo {
				return nil, nil
			}
			return nil, fmt.Errorf("searchrawtransactions %s: %w", addrs[0], err)
		}
		for _, r := range results {
			for _, in := range r.Vin {
				if in.Txid == want && in.Vout == txid.TxoIndex {
					return &btcjson.TxRawResult{Txid: r.Txid, BlockHash: r.BlockHash, Vout: r.Vout}, nil
				}
			}
		}
		if len(results) < searchPageSize {
			return nil, nil
		}
	}
}

func txParts(vin []btcjson.Vin, vout []btcjson.Vout) ([]rawInput, []rawOutput, error) {
	inputs := make([]rawInput, 0, len(vin))
	for _, in := range vin {
		var ri rawInput
		if in.ScriptSig != nil {
			b, err := hex.DecodeString(in.ScriptSig.Hex)
			if err != nil {
				return nil, nil, fmt.Errorf("input script: %w", err)
			}
			ri.ScriptSig = b
		}
		for _, w := range in.Witness {
			b, err := hex.DecodeString(w)
			if err != nil {
				return nil, nil, fmt.Errorf("input witness: %w", err)
			}
			ri.Witness = append(ri.Witness, b)
		}
		inputs = append(inputs, ri)
	}

	outputs := make([]rawOutput, 0, len(vout))
	for _, out := range vout {
		b, err := hex.DecodeString(out.ScriptPubKey.Hex)
		if err != nil {
			return nil, nil, fmt.Errorf("output script: %w", err)
		}
		outputs = append(outputs, rawOutput{Script: b})
	}
	return inputs, outputs, nil
}
