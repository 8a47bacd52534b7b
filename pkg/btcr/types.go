package btcr

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/chainhash"
)

// ChainTxid identifies one transaction output on a chain.
type ChainTxid struct {
	Chain    Chain
	Txid     chainhash.Hash
	TxoIndex uint32
}

// NewChainTxid parses a hex txid.
func NewChainTxid(chain Chain, txid string, txoIndex uint32) (ChainTxid, error) {
	h, err := chainhash.NewHashFromHex(txid)
	if err != nil {
		return ChainTxid{}, fmt.Errorf("invalid txid %q: %w", txid, err)
	}
	return ChainTxid{Chain: chain, Txid: *h, TxoIndex: txoIndex}, nil
}

func (c ChainTxid) String() string {
	return fmt.Sprintf("%s:%s:%d", c.Chain, c.Txid.String(), c.TxoIndex)
}

type chainTxidJSON struct {
	Chain    Chain  `json:"chain"`
	Txid     string `json:"txid"`
	TxoIndex uint32 `json:"txoIndex"`
}

func (c ChainTxid) MarshalJSON() ([]byte, error) {
	return json.Marshal(chainTxidJSON{Chain: c.Chain, Txid: c.Txid.String(), TxoIndex: c.TxoIndex})
}

func (c *ChainTxid) UnmarshalJSON(b []byte) error {
	var raw chainTxidJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := NewChainTxid(raw.Chain, raw.Txid, raw.TxoIndex)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// AnchorRecord is what a transaction contributes to a BTCR DID: the signing
// key, the continuation document location and the spend that supersedes it.
type AnchorRecord struct {
	Txid              ChainTxid  `json:"txid"`
	InputScriptPubKey string     `json:"inputScriptPubKey"`
	SpentIn           *ChainTxid `json:"spentIn,omitempty"`
	ContinuationURI   string     `json:"continuationUri,omitempty"`
	Deactivated       bool       `json:"deactivated"`
}

// Connection reads BTCR anchor data from a Bitcoin backend.
// FetchAnchorRecord returns (nil, nil) when the transaction is unknown.
type Connection interface {
	LookupTxid(ctx context.Context, loc ChainLocation) (ChainTxid, error)
	LookupLocation(ctx context.Context, txid ChainTxid) (ChainLocation, error)
	FetchAnchorRecord(ctx context.Context, txid ChainTxid) (*AnchorRecord, error)
	Close() error
}
