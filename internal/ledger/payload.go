package ledger

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultNetwork is the only network the harness drives.
const DefaultNetwork = "regtest"

// Envelope is the raw ledger action returned by the daemon.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Network string          `json:"network,omitempty"`
}

// ParseEnvelope decodes a ledger action document.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: decode action: %w", ErrInvalidPayload, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrInvalidPayload)
	}
	return env, nil
}

// ResolvedNetwork returns payload.network, falling back to the envelope's
// own network field.
func (e Envelope) ResolvedNetwork() string {
	var p struct {
		Network string `json:"network"`
	}
	if len(e.Payload) > 0 && json.Unmarshal(e.Payload, &p) == nil && p.Network != "" {
		return p.Network
	}
	return e.Network
}

type payloadFields map[string]json.RawMessage

func (f payloadFields) require(t Type, keys ...string) error {
	for _, k := range keys {
		raw, ok := f[k]
		if !ok || string(raw) == "null" {
			return fmt.Errorf("%w: %s requires %q", ErrMissingKey, t, k)
		}
	}
	return nil
}

func (f payloadFields) decode(t Type, key string, out any) error {
	raw, ok := f[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s.%s: %v", ErrInvalidPayload, t, key, err)
	}
	return nil
}

type keyed struct {
	key string
	dst any
}

func (f payloadFields) decodeAll(t Type, pairs ...keyed) error {
	for _, p := range pairs {
		if err := f.decode(t, p.key, p.dst); err != nil {
			return err
		}
	}
	return nil
}

// Decode turns the envelope into its typed Action.
func (e Envelope) Decode() (Action, error) {
	fields := payloadFields{}
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &fields); err != nil {
			return nil, fmt.Errorf("%w: %s payload: %v", ErrInvalidPayload, e.Type, err)
		}
	}
	switch e.Type {
	case TypeBitcoinSendAmountToAddress:
		return decodeBitcoinSend(e.Type, fields)
	case TypeBitcoinBroadcastSignedTransaction:
		return decodeBitcoinBroadcast(e.Type, fields)
	case TypeEthereumDeployContract:
		return decodeEthereumDeploy(e.Type, fields)
	case TypeEthereumCallContract:
		return decodeEthereumCall(e.Type, fields)
	case TypeLndAddHoldInvoice:
		return decodeLndAddHoldInvoice(e.Type, fields)
	case TypeLndSendPayment:
		return decodeLndSendPayment(e.Type, fields)
	case TypeLndSettleInvoice:
		return decodeLndSettleInvoice(e.Type, fields)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, e.Type)
	}
}

func decodeBitcoinSend(t Type, f payloadFields) (Action, error) {
	if err := f.require(t, "to", "amount"); err != nil {
		return nil, err
	}
	var out BitcoinSendAmountToAddress
	var amount Quantity
	if err := f.decode(t, "to", &out.To); err != nil {
		return nil, err
	}
	if err := f.decode(t, "amount", &amount); err != nil {
		return nil, err
	}
	sats, err := satoshis(t, "amount", amount)
	if err != nil {
		return nil, err
	}
	out.Amount = sats
	return out, nil
}

func decodeBitcoinBroadcast(t Type, f payloadFields) (Action, error) {
	if err := f.require(t, "hex"); err != nil {
		return nil, err
	}
	var out BitcoinBroadcastSignedTransaction
	var raw HexBytes
	if err := f.decode(t, "hex", &raw); err != nil {
		return nil, err
	}
	out.Hex = hex.EncodeToString(raw)
	var minTime Quantity
	if err := f.decode(t, "min_median_block_time", &minTime); err != nil {
		return nil, err
	}
	ts, err := unixTime(t, "min_median_block_time", minTime)
	if err != nil {
		return nil, err
	}
	out.MinMedianBlockTime = ts
	return out, nil
}

func decodeEthereumDeploy(t Type, f payloadFields) (Action, error) {
	if err := f.require(t, "data", "amount"); err != nil {
		return nil, err
	}
	var out EthereumDeployContract
	var data HexBytes
	var amount, gas Quantity
	if err := f.decode(t, "data", &data); err != nil {
		return nil, err
	}
	if err := f.decode(t, "amount", &amount); err != nil {
		return nil, err
	}
	if err := f.decode(t, "gas_limit", &gas); err != nil {
		return nil, err
	}
	gasLimit, err := uint64Of(t, "gas_limit", gas)
	if err != nil {
		return nil, err
	}
	out.Data = data
	out.Amount = amount.Int
	out.GasLimit = gasLimit
	return out, nil
}

func decodeEthereumCall(t Type, f payloadFields) (Action, error) {
	if err := f.require(t, "contract_address", "gas_limit"); err != nil {
		return nil, err
	}
	var out EthereumCallContract
	var addr string
	var data HexBytes
	var gas, minTime Quantity
	if err := f.decode(t, "contract_address", &addr); err != nil {
		return nil, err
	}
	if !common.IsHexAddress(addr) {
		return nil, fmt.Errorf("%w: %s.contract_address %q is not an address", ErrInvalidPayload, t, addr)
	}
	if err := f.decode(t, "data", &data); err != nil {
		return nil, err
	}
	if err := f.decode(t, "gas_limit", &gas); err != nil {
		return nil, err
	}
	if err := f.decode(t, "min_block_timestamp", &minTime); err != nil {
		return nil, err
	}
	gasLimit, err := uint64Of(t, "gas_limit", gas)
	if err != nil {
		return nil, err
	}
	ts, err := unixTime(t, "min_block_timestamp", minTime)
	if err != nil {
		return nil, err
	}
	out.ContractAddress = common.HexToAddress(addr)
	out.Data = data
	out.GasLimit = gasLimit
	out.MinBlockTimestamp = ts
	return out, nil
}

func decodeLndAddHoldInvoice(t Type, f payloadFields) (Action, error) {
	if err := f.require(t, "amount", "secret_hash", "expiry", "cltv_expiry"); err != nil {
		return nil, err
	}
	var amount, expiry, cltv Quantity
	var hash HexBytes
	if err := f.decodeAll(t, keyed{"amount", &amount}, keyed{"secret_hash", &hash},
		keyed{"expiry", &expiry}, keyed{"cltv_expiry", &cltv}); err != nil {
		return nil, err
	}
	sats, err := satoshis(t, "amount", amount)
	if err != nil {
		return nil, err
	}
	exp, err := uint32Of(t, "expiry", expiry)
	if err != nil {
		return nil, err
	}
	cltvExpiry, err := uint32Of(t, "cltv_expiry", cltv)
	if err != nil {
		return nil, err
	}
	if len(hash) != 32 {
		return nil, fmt.Errorf("%w: %s.secret_hash must be 32 bytes", ErrInvalidPayload, t)
	}
	return LndAddHoldInvoice{Amount: sats, SecretHash: hash, Expiry: exp, CltvExpiry: cltvExpiry}, nil
}

func decodeLndSendPayment(t Type, f payloadFields) (Action, error) {
	if err := f.require(t, "to_public_key", "amount", "secret_hash", "final_cltv_delta"); err != nil {
		return nil, err
	}
	var amount, delta Quantity
	var to, hash HexBytes
	if err := f.decodeAll(t, keyed{"to_public_key", &to}, keyed{"amount", &amount},
		keyed{"secret_hash", &hash}, keyed{"final_cltv_delta", &delta}); err != nil {
		return nil, err
	}
	sats, err := satoshis(t, "amount", amount)
	if err != nil {
		return nil, err
	}
	finalDelta, err := uint32Of(t, "final_cltv_delta", delta)
	if err != nil {
		return nil, err
	}
	if len(to) != 33 {
		return nil, fmt.Errorf("%w: %s.to_public_key must be a 33 byte compressed key", ErrInvalidPayload, t)
	}
	if len(hash) != 32 {
		return nil, fmt.Errorf("%w: %s.secret_hash must be 32 bytes", ErrInvalidPayload, t)
	}
	return LndSendPayment{ToPublicKey: to, Amount: sats, SecretHash: hash, FinalCltvDelta: finalDelta}, nil
}

func decodeLndSettleInvoice(t Type, f payloadFields) (Action, error) {
	if err := f.require(t, "secret"); err != nil {
		return nil, err
	}
	var secret HexBytes
	if err := f.decode(t, "secret", &secret); err != nil {
		return nil, err
	}
	if len(secret) != 32 {
		return nil, fmt.Errorf("%w: %s.secret must be 32 bytes", ErrInvalidPayload, t)
	}
	return LndSettleInvoice{Secret: secret}, nil
}

func satoshis(t Type, key string, q Quantity) (btcutil.Amount, error) {
	if !q.Present() || !q.IsInt64() {
		return 0, fmt.Errorf("%w: %s.%s is not a satoshi amount", ErrInvalidPayload, t, key)
	}
	return btcutil.Amount(q.Int64()), nil
}

func uint64Of(t Type, key string, q Quantity) (uint64, error) {
	if !q.Present() {
		return 0, nil
	}
	if !q.IsUint64() {
		return 0, fmt.Errorf("%w: %s.%s overflows uint64", ErrInvalidPayload, t, key)
	}
	return q.Uint64(), nil
}

func uint32Of(t Type, key string, q Quantity) (uint32, error) {
	v, err := uint64Of(t, key, q)
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %s.%s overflows uint32", ErrInvalidPayload, t, key)
	}
	return uint32(v), nil
}

func unixTime(t Type, key string, q Quantity) (time.Time, error) {
	if !q.Present() {
		return time.Time{}, nil
	}
	if !q.IsInt64() {
		return time.Time{}, fmt.Errorf("%w: %s.%s is not a unix timestamp", ErrInvalidPayload, t, key)
	}
	return time.Unix(q.Int64(), 0), nil
}
