package btcr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Chain identifies the Bitcoin network a txref points into.
type Chain string

const (
	Mainnet Chain = "MAINNET"
	Testnet Chain = "TESTNET"
)

// Txref human readable parts
const (
	HRPMainnet = "tx"
	HRPTestnet = "txtest"
)

// Txref magic values, the first 5-bit group of the data part.
const (
	magicMainnet         byte = 3
	magicMainnetExtended byte = 4
	magicTestnet         byte = 6
	magicTestnetExtended byte = 7
)

const (
	shortDataLen    = 9
	extendedDataLen = 12

	maxBlockHeight = 1<<24 - 1
	maxPosition    = 1<<15 - 1
	maxTxoIndex    = 1<<15 - 1
)

// ErrInvalidTxref is returned for txrefs that fail to decode.
var ErrInvalidTxref = errors.New("invalid txref")

// ChainLocation is a decoded txref: a position in the block chain plus the
// output index of the anchoring transaction.
type ChainLocation struct {
	Chain               Chain  `json:"chain"`
	BlockHeight         uint32 `json:"blockHeight"`
	TransactionPosition uint32 `json:"transactionPosition"`
	TxoIndex            uint32 `json:"txoIndex"`
	Extended            bool   `json:"-"`
}

// HRP returns the txref human readable part for the location's chain.
func (c Chain) HRP() string {
	if c == Testnet {
		return HRPTestnet
	}
	return HRPMainnet
}

// DecodeTxref decodes a txref with or without its "tx1:"/"txtest1:" prefix.
// Without a prefix the chain is inferred from the magic character.
func DecodeTxref(s string) (ChainLocation, error) {
	var loc ChainLocation

	clean := strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(s, "-", ""), ":", ""))
	if clean == "" {
		return loc, fmt.Errorf("%w: empty", ErrInvalidTxref)
	}

	hrp := ""
	data := clean
	if i := strings.LastIndexByte(clean, '1'); i >= 0 {
		hrp, data = clean[:i], clean[i+1:]
	} else {
		switch data[0] {
		case 'r', 'y':
			hrp = HRPMainnet
		case 'x', '8':
			hrp = HRPTestnet
		default:
			return loc, fmt.Errorf("%w: unknown magic %q", ErrInvalidTxref, data[0])
		}
	}

	gotHRP, groups, err := bech32.Decode(hrp + "1" + data)
	if err != nil {
		return loc, fmt.Errorf("%w: %v", ErrInvalidTxref, err)
	}

	switch len(groups) {
	case shortDataLen, extendedDataLen:
	default:
		return loc, fmt.Errorf("%w: unexpected data length %d", ErrInvalidTxref, len(groups))
	}

	extended := len(groups) == extendedDataLen
	switch groups[0] {
	case magicMainnet, magicMainnetExtended:
		loc.Chain = Mainnet
	case magicTestnet, magicTestnetExtended:
		loc.Chain = Testnet
	default:
		return loc, fmt.Errorf("%w: unknown magic %d", ErrInvalidTxref, groups[0])
	}
	if isExtendedMagic(groups[0]) != extended {
		return loc, fmt.Errorf("%w: magic %d does not match data length %d", ErrInvalidTxref, groups[0], len(groups))
	}
	if gotHRP != loc.Chain.HRP() {
		return loc, fmt.Errorf("%w: hrp %q does not match chain %s", ErrInvalidTxref, gotHRP, loc.Chain)
	}
	if groups[1]&1 != 0 {
		return loc, fmt.Errorf("%w: unsupported version %d", ErrInvalidTxref, groups[1]&1)
	}

	loc.BlockHeight = uint32(groups[1]>>1) |
		uint32(groups[2])<<4 |
		uint32(groups[3])<<9 |
		uint32(groups[4])<<14 |
		uint32(groups[5])<<19
	loc.TransactionPosition = uint32(groups[6]) |
		uint32(groups[7])<<5 |
		uint32(groups[8])<<10
	if extended {
		loc.Extended = true
		loc.TxoIndex = uint32(groups[9]) |
			uint32(groups[10])<<5 |
			uint32(groups[11])<<10
	}

	return loc, nil
}

// EncodeTxref encodes loc as "hrp1:xxxx-xxxx-...". The extended form is used
// when loc.Extended is set or the txo index is not zero.
func EncodeTxref(loc ChainLocation) (string, error) {
	if loc.BlockHeight > maxBlockHeight {
		return "", fmt.Errorf("%w: block height %d out of range", ErrInvalidTxref, loc.BlockHeight)
	}
	if loc.TransactionPosition > maxPosition {
		return "", fmt.Errorf("%w: transaction position %d out of range", ErrInvalidTxref, loc.TransactionPosition)
	}
	if loc.TxoIndex > maxTxoIndex {
		return "", fmt.Errorf("%w: txo index %d out of range", ErrInvalidTxref, loc.TxoIndex)
	}

	extended := loc.Extended || loc.TxoIndex != 0

	var magic byte
	switch {
	case loc.Chain == Testnet && extended:
		magic = magicTestnetExtended
	case loc.Chain == Testnet:
		magic = magicTestnet
	case extended:
		magic = magicMainnetExtended
	default:
		magic = magicMainnet
	}

	h, p := loc.BlockHeight, loc.TransactionPosition
	groups := []byte{
		magic,
		byte(h&0xF) << 1,
		byte(h>>4) & 0x1F,
		byte(h>>9) & 0x1F,
		byte(h>>14) & 0x1F,
		byte(h>>19) & 0x1F,
		byte(p) & 0x1F,
		byte(p>>5) & 0x1F,
		byte(p>>10) & 0x1F,
	}
	if extended {
		i := loc.TxoIndex
		groups = append(groups, byte(i)&0x1F, byte(i>>5)&0x1F, byte(i>>10)&0x1F)
	}

	hrp := loc.Chain.HRP()
	enc, err := bech32.Encode(hrp, groups)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTxref, err)
	}

	return hrp + "1:" + group(enc[len(hrp)+1:]), nil
}

// ShortForm returns the canonical location: extended only when the txo
// index requires it.
func (l ChainLocation) ShortForm() ChainLocation {
	l.Extended = l.TxoIndex != 0
	return l
}

func isExtendedMagic(m byte) bool {
	return m == magicMainnetExtended || m == magicTestnetExtended
}

// group inserts a dash after every four characters.
func group(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && i%4 == 0 {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// stripPrefix returns the txref without its "hrp1:" prefix.
func stripPrefix(txref string) string {
	if i := strings.IndexByte(txref, ':'); i >= 0 {
		return txref[i+1:]
	}
	return txref
}
