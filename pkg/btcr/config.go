package btcr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/b-open-io/did-resolver/pkg/driver"
	"github.com/b-open-io/did-resolver/pkg/store"
)

// Connection kinds
const (
	ConnectionBlockCypher = "blockcypherapi"
	ConnectionBitcoind    = RPCBitcoind
	ConnectionBtcd        = RPCBtcd
	ConnectionStore       = "store"
	ConnectionBitcoinj    = "bitcoinj"
)

// DriverID is the registry id of the BTCR driver.
const DriverID = "btcr"

// Pattern is the registry pattern of the BTCR driver.
const Pattern = `^did:btcr:.+$`

// Config holds BTCR driver configuration.
type Config struct {
	Enabled             bool              `mapstructure:"enabled"`
	Connection          string            `mapstructure:"connection"` // blockcypherapi, bitcoind, btcd, store
	RPCURLMainnet       string            `mapstructure:"rpc_url_mainnet"`
	RPCURLTestnet       string            `mapstructure:"rpc_url_testnet"`
	RPCCertMainnet      string            `mapstructure:"rpc_cert_mainnet"` // base64, btcd only
	RPCCertTestnet      string            `mapstructure:"rpc_cert_testnet"`
	SpendScanDepth      int64             `mapstructure:"spend_scan_depth"`
	MaxChainLength      int               `mapstructure:"max_chain_length"`
	ContinuationTimeout time.Duration     `mapstructure:"continuation_timeout"`
	BlockCypher         BlockCypherConfig `mapstructure:"blockcypher"`
}

// BlockCypherConfig holds BlockCypher API configuration.
type BlockCypherConfig struct {
	URL       string        `mapstructure:"url"`
	Token     string        `mapstructure:"token"`
	RateLimit float64       `mapstructure:"rate_limit"` // requests per second, 0 for none
	Timeout   time.Duration `mapstructure:"timeout"`
}

// SetDefaults sets viper defaults for BTCR configuration.
func (c *Config) SetDefaults(v *viper.Viper, prefix string) {
	p := ""
	if prefix != "" {
		p = prefix + "."
	}
	v.SetDefault(p+"enabled", true)
	v.SetDefault(p+"connection", ConnectionBlockCypher)
	v.SetDefault(p+"rpc_url_mainnet", "")
	v.SetDefault(p+"rpc_url_testnet", "")
	v.SetDefault(p+"spend_scan_depth", DefaultSpendScanDepth)
	v.SetDefault(p+"max_chain_length", DefaultMaxChainLength)
	v.SetDefault(p+"continuation_timeout", "30s")
	v.SetDefault(p+"blockcypher.url", DefaultBlockCypherURL)
	v.SetDefault(p+"blockcypher.rate_limit", 3)
	v.SetDefault(p+"blockcypher.timeout", "30s")
}

// Services holds the BTCR driver and, for store connections, its index.
type Services struct {
	Driver *Driver
	Index  *AnchorIndex
}

// Initialize creates the driver. s is required for the store connection
// and optional otherwise; when present the anchor index is always exposed.
func (c *Config) Initialize(ctx context.Context, logger *slog.Logger, s store.Store) (*Services, error) {
	if !c.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	svc := &Services{}
	if s != nil {
		svc.Index = NewAnchorIndex(s, logger)
	}

	connections := make(map[Chain]Connection, 2)
	switch c.Connection {
	case ConnectionBlockCypher, "":
		opts := BlockCypherOptions{
			BaseURL:   c.BlockCypher.URL,
			Token:     c.BlockCypher.Token,
			RateLimit: c.BlockCypher.RateLimit,
			Timeout:   c.BlockCypher.Timeout,
		}
		connections[Mainnet] = NewBlockCypherConnection(Mainnet, opts, logger)
		connections[Testnet] = NewBlockCypherConnection(Testnet, opts, logger)

	case ConnectionBitcoind, ConnectionBtcd:
		endpoints := []struct {
			chain Chain
			url   string
			cert  string
		}{
			{Mainnet, c.RPCURLMainnet, c.RPCCertMainnet},
			{Testnet, c.RPCURLTestnet, c.RPCCertTestnet},
		}
		for _, ep := range endpoints {
			if ep.url == "" {
				continue
			}
			conn, err := NewRPCConnection(ep.chain, c.Connection, RPCOptions{
				URL:            ep.url,
				Cert:           ep.cert,
				SpendScanDepth: c.SpendScanDepth,
			}, logger)
			if err != nil {
				closeAll(connections)
				return nil, fmt.Errorf("%w: %s %s connection: %v", driver.ErrConfiguration, c.Connection, ep.chain, err)
			}
			connections[ep.chain] = conn
		}
		if len(connections) == 0 {
			return nil, fmt.Errorf("%w: %s connection needs rpc_url_mainnet or rpc_url_testnet", driver.ErrConfiguration, c.Connection)
		}

	case ConnectionStore:
		if svc.Index == nil {
			return nil, fmt.Errorf("%w: store connection needs an enabled store", driver.ErrConfiguration)
		}
		connections[Mainnet] = NewStoreConnection(Mainnet, svc.Index)
		connections[Testnet] = NewStoreConnection(Testnet, svc.Index)

	case ConnectionBitcoinj:
		return nil, fmt.Errorf("%w: connection %s is not implemented", driver.ErrConfiguration, c.Connection)

	default:
		return nil, fmt.Errorf("%w: unknown btcr connection: %s", driver.ErrConfiguration, c.Connection)
	}

	connection := c.Connection
	if connection == "" {
		connection = ConnectionBlockCypher
	}
	svc.Driver = NewDriver(connections, Options{
		Connection:          connection,
		MaxChainLength:      c.MaxChainLength,
		ContinuationTimeout: c.ContinuationTimeout,
	}, logger)

	logger.Info("btcr driver initialized", "connection", connection, "chains", len(connections))
	return svc, nil
}

func closeAll(connections map[Chain]Connection) {
	for _, conn := range connections {
		conn.Close()
	}
}

// Close closes the driver's connections.
func (s *Services) Close() error {
	if s == nil || s.Driver == nil {
		return nil
	}
	return s.Driver.Close()
}
