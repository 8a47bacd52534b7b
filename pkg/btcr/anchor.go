package btcr

import (
	"encoding/hex"
	"errors"

	"github.com/bsv-blockchain/go-sdk/script"
)

var errNoPublicKey = errors.New("no public key in first input")

// rawInput and rawOutput are the backend-neutral view of a transaction
// that anchor extraction works on.
type rawInput struct {
	ScriptSig []byte
	Witness   [][]byte
}

type rawOutput struct {
	Script  []byte
	SpentBy string // txid of the spending transaction, "" when unspent
}

// inputPublicKey returns the hex public key that signed the first input:
// witness[1] for segwit spends, otherwise the last push of the scriptSig.
func inputPublicKey(inputs []rawInput) (string, error) {
	if len(inputs) == 0 {
		return "", errNoPublicKey
	}
	in := inputs[0]
	if len(in.Witness) >= 2 && len(in.Witness[1]) > 0 {
		return hex.EncodeToString(in.Witness[1]), nil
	}

	scr := script.NewFromBytes(in.ScriptSig)
	var last []byte
	pos := 0
	for pos < len(*scr) {
		op, err := scr.ReadOp(&pos)
		if err != nil {
			break
		}
		if len(op.Data) > 0 {
			last = op.Data
		}
	}
	if last == nil {
		return "", errNoPublicKey
	}
	return hex.EncodeToString(last), nil
}

// nullData returns the payload of an OP_RETURN output script, accepting both
// OP_RETURN and OP_FALSE OP_RETURN forms.
func nullData(s []byte) ([]byte, bool) {
	scr := script.NewFromBytes(s)
	pos := 0
	op, err := scr.ReadOp(&pos)
	if err != nil {
		return nil, false
	}
	if op.Op == script.OpFALSE {
		if op, err = scr.ReadOp(&pos); err != nil {
			return nil, false
		}
	}
	if op.Op != script.OpRETURN {
		return nil, false
	}
	if pos >= len(*scr) {
		return []byte{}, true
	}
	data, err := scr.ReadOp(&pos)
	if err != nil {
		return []byte{}, true
	}
	return data.Data, true
}

// continuationURI returns the first OP_RETURN payload as text.
func continuationURI(outputs []rawOutput) string {
	for _, out := range outputs {
		if data, ok := nullData(out.Script); ok && len(data) > 0 {
			return string(data)
		}
	}
	return ""
}

// hasSpendableOutput reports whether any output is not OP_RETURN. A spend
// without one ends the DID.
func hasSpendableOutput(outputs []rawOutput) bool {
	for _, out := range outputs {
		if len(out.Script) == 0 {
			continue
		}
		if _, ok := nullData(out.Script); !ok {
			return true
		}
	}
	return false
}
