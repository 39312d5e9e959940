package ledger

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Quantity is an unsigned integer that the daemon may encode as a JSON
// number, a decimal string or a 0x-prefixed hex string.
type Quantity struct {
	*big.Int
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		q.Int = nil
		return nil
	}
	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
	}
	v, err := parseQuantity(raw)
	if err != nil {
		return err
	}
	q.Int = v
	return nil
}

func parseQuantity(raw string) (*big.Int, error) {
	base := 10
	digits := raw
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		base = 16
		digits = raw[2:]
	}
	if digits == "" {
		return nil, fmt.Errorf("empty quantity %q", raw)
	}
	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("malformed quantity %q", raw)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative quantity %q", raw)
	}
	return v, nil
}

// Present reports whether the value was set.
func (q Quantity) Present() bool { return q.Int != nil }

// HexBytes decodes hex strings with or without a 0x prefix.
type HexBytes []byte

func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("malformed hex: %w", err)
	}
	*h = b
	return nil
}
