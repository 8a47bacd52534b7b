package btcr

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBlockCypherURL is the BlockCypher API root.
const DefaultBlockCypherURL = "https://api.blockcypher.com/v1/btc"

var errNotFound = errors.New("not found")

// BlockCypherConnection reads anchor data from the BlockCypher REST API.
type BlockCypherConnection struct {
	chain   Chain
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// BlockCypherOptions configures a BlockCypherConnection.
type BlockCypherOptions struct {
	BaseURL   string        // API root without the network suffix
	Token     string        // optional API token
	RateLimit float64       // requests per second, 0 disables pacing
	Timeout   time.Duration // HTTP timeout
}

// NewBlockCypherConnection creates a connection for chain.
func NewBlockCypherConnection(chain Chain, opts BlockCypherOptions, logger *slog.Logger) *BlockCypherConnection {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBlockCypherURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	network := "main"
	if chain == Testnet {
		network = "test3"
	}

	limit := rate.Inf
	burst := 1
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	return &BlockCypherConnection{
		chain:   chain,
		baseURL: opts.BaseURL + "/" + network,
		token:   opts.Token,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

type bcBlock struct {
	Height int64    `json:"height"`
	Txids  []string `json:"txids"`
}

type bcInput struct {
	Script  string   `json:"script"`
	Witness []string `json:"witness"`
}

type bcOutput struct {
	Script     string `json:"script"`
	SpentBy    string `json:"spent_by"`
	DataString string `json:"data_string"`
	ScriptType string `json:"script_type"`
}

type bcTx struct {
	Hash        string     `json:"hash"`
	BlockHeight int64      `json:"block_height"`
	BlockIndex  int64      `json:"block_index"`
	Inputs      []bcInput  `json:"inputs"`
	Outputs     []bcOutput `json:"outputs"`
}

func (c *BlockCypherConnection) LookupTxid(ctx context.Context, loc ChainLocation) (ChainTxid, error) {
	q := url.Values{}
	q.Set("txstart", strconv.FormatUint(uint64(loc.TransactionPosition), 10))
	q.Set("limit", "1")

	var block bcBlock
	if err := c.get(ctx, fmt.Sprintf("/blocks/%d", loc.BlockHeight), q, &block); err != nil {
		return ChainTxid{}, fmt.Errorf("block %d: %w", loc.BlockHeight, err)
	}
	if len(block.Txids) == 0 {
		return ChainTxid{}, fmt.Errorf("no transaction at position %d in block %d", loc.TransactionPosition, loc.BlockHeight)
	}
	return NewChainTxid(c.chain, block.Txids[0], loc.TxoIndex)
}

func (c *BlockCypherConnection) LookupLocation(ctx context.Context, txid ChainTxid) (ChainLocation, error) {
	tx, err := c.tx(ctx, txid)
	if err != nil {
		return ChainLocation{}, err
	}
	if tx.BlockHeight < 0 {
		return ChainLocation{}, fmt.Errorf("transaction %s is unconfirmed", txid.Txid)
	}
	return ChainLocation{
		Chain:               c.chain,
		BlockHeight:         uint32(tx.BlockHeight),
		TransactionPosition: uint32(tx.BlockIndex),
		TxoIndex:            txid.TxoIndex,
	}, nil
}

func (c *BlockCypherConnection) FetchAnchorRecord(ctx context.Context, txid ChainTxid) (*AnchorRecord, error) {
	tx, err := c.tx(ctx, txid)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	inputs, outputs, err := tx.raw()
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
		ContinuationURI:   tx.continuationURI(outputs),
	}

	if int(txid.TxoIndex) < len(outputs) && outputs[txid.TxoIndex].SpentBy != "" {
		spentIn, err := NewChainTxid(c.chain, outputs[txid.TxoIndex].SpentBy, 0)
		if err != nil {
			return nil, err
		}
		record.SpentIn = &spentIn

		spender, err := c.tx(ctx, spentIn)
		if err != nil {
			return nil, fmt.Errorf("spending transaction %s: %w", spentIn.Txid, err)
		}
		_, spenderOutputs, err := spender.raw()
		if err != nil {
			return nil, fmt.Errorf("spending transaction %s: %w", spentIn.Txid, err)
		}
		record.Deactivated = !hasSpendableOutput(spenderOutputs)
	}

	return record, nil
}

func (c *BlockCypherConnection) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *BlockCypherConnection) tx(ctx context.Context, txid ChainTxid) (*bcTx, error) {
	q := url.Values{}
	q.Set("includeHex", "false")
	var tx bcTx
	if err := c.get(ctx, "/txs/"+txid.Txid.String(), q, &tx); err != nil {
		return nil, fmt.Errorf("transaction %s: %w", txid.Txid, err)
	}
	return &tx, nil
}

func (c *BlockCypherConnection) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if c.token != "" {
		q.Set("token", c.token)
	}
	uri := c.baseURL + path
	if len(q) > 0 {
		uri += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("http-err-%d-%s", resp.StatusCode, body)
	}

	c.logger.Debug("blockcypher request", "chain", c.chain, "path", path)
	return json.NewDecoder(resp.Body).Decode(out)
}

func (tx *bcTx) raw() ([]rawInput, []rawOutput, error) {
	inputs := make([]rawInput, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		sig, err := hex.DecodeString(in.Script)
		if err != nil {
			return nil, nil, fmt.Errorf("input script: %w", err)
		}
		ri := rawInput{ScriptSig: sig}
		for _, w := range in.Witness {
			b, err := hex.DecodeString(w)
			if err != nil {
				return nil, nil, fmt.Errorf("input witness: %w", err)
			}
			ri.Witness = append(ri.Witness, b)
		}
		inputs = append(inputs, ri)
	}

	outputs := make([]rawOutput, 0, len(tx.Outputs))
	for _, out := range tx.Outputs {
		s, err := hex.DecodeString(out.Script)
		if err != nil {
			return nil, nil, fmt.Errorf("output script: %w", err)
		}
		outputs = append(outputs, rawOutput{Script: s, SpentBy: out.SpentBy})
	}
	return inputs, outputs, nil
}

// continuationURI prefers BlockCypher's decoded data_string and falls back
// to parsing the output scripts.
func (tx *bcTx) continuationURI(outputs []rawOutput) string {
	for _, out := range tx.Outputs {
		if out.ScriptType == "null-data" && out.DataString != "" {
			return out.DataString
		}
	}
	return continuationURI(outputs)
}
