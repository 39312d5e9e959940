// Package bitcoin is the bitcoind-backed wallet used by actors: address
// generation, payments, raw broadcasts and chain median time.
package bitcoin

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAddress     = errors.New("bitcoin: invalid address")
	ErrInvalidTransaction = errors.New("bitcoin: invalid raw transaction")
	ErrInvalidAmount      = errors.New("bitcoin: invalid amount")
)

type Config struct {
	// Host is bitcoind's RPC host:port. A wallet path suffix selects a
	// named wallet, e.g. "127.0.0.1:18443/wallet/alice".
	Host     string
	User     string
	Password string
	Params   *chaincfg.Params
}

// Wallet talks to one bitcoind wallet over HTTP POST JSON-RPC.
type Wallet struct {
	rpc    *rpcclient.Client
	params *chaincfg.Params
}

func New(cfg Config) (*Wallet, error) {
	if cfg.Host == "" {
		return nil, errors.New("bitcoin: rpc host is required")
	}
	params := cfg.Params
	if params == nil {
		params = &chaincfg.RegressionNetParams
	}
	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Password,
		Params:       params.Name,
		DisableTLS:   true,
		HTTPPostMode: true,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("bitcoin: rpc client: %w", err)
	}
	return &Wallet{rpc: client, params: params}, nil
}

func (w *Wallet) Close() {
	w.rpc.Shutdown()
}

func (w *Wallet) Params() *chaincfg.Params { return w.params }

// NewAddress asks the wallet for a fresh receiving address.
func (w *Wallet) NewAddress(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	addr, err := w.rpc.GetNewAddress("")
	if err != nil {
		return "", fmt.Errorf("bitcoin: getnewaddress: %w", err)
	}
	return addr.EncodeAddress(), nil
}

func (w *Wallet) decodeAddress(to string) (btcutil.Address, error) {
	addr, err := btcutil.DecodeAddress(to, w.params)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, to, err)
	}
	if !addr.IsForNet(w.params) {
		return nil, fmt.Errorf("%w: %q is not a %s address", ErrInvalidAddress, to, w.params.Name)
	}
	return addr, nil
}

// SendToAddress pays amount to the address and returns the txid.
func (w *Wallet) SendToAddress(ctx context.Context, to string, amount btcutil.Amount) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if amount <= 0 {
		return "", fmt.Errorf("%w: %d sat", ErrInvalidAmount, int64(amount))
	}
	addr, err := w.decodeAddress(to)
	if err != nil {
		return "", err
	}
	hash, err := w.rpc.SendToAddress(addr, amount)
	if err != nil {
		return "", fmt.Errorf("bitcoin: sendtoaddress %s: %w", to, err)
	}
	log.Debug().Str("to", to).Str("amount", amount.String()).Str("txid", hash.String()).Msg("bitcoin payment sent")
	return hash.String(), nil
}

// Fund pays a BTC-denominated amount, e.g. "1.5", to the address.
func (w *Wallet) Fund(ctx context.Context, to string, btc decimal.Decimal) (string, error) {
	sats := btc.Shift(8)
	if !sats.IsInteger() || !sats.IsPositive() {
		return "", fmt.Errorf("%w: %s BTC", ErrInvalidAmount, btc.String())
	}
	return w.SendToAddress(ctx, to, btcutil.Amount(sats.IntPart()))
}

// MedianTime returns the median time past of the chain tip.
func (w *Wallet) MedianTime(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	raw, err := w.rpc.RawRequest("getblockchaininfo", nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("bitcoin: getblockchaininfo: %w", err)
	}
	var info btcjson.GetBlockChainInfoResult
	if err := json.Unmarshal(raw, &info); err != nil {
		return time.Time{}, fmt.Errorf("bitcoin: decode blockchain info: %w", err)
	}
	return time.Unix(info.MedianTime, 0), nil
}

// SendRawTransaction broadcasts a signed transaction. The hex is parsed
// first so a malformed document never reaches the node.
func (w *Wallet) SendRawTransaction(ctx context.Context, txHex string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := hex.DecodeString(txHex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}

	param, err := json.Marshal(txHex)
	if err != nil {
		return "", err
	}
	resp, err := w.rpc.RawRequest("sendrawtransaction", []json.RawMessage{param})
	if err != nil {
		return "", fmt.Errorf("bitcoin: sendrawtransaction: %w", err)
	}
	var txid string
	if err := json.Unmarshal(resp, &txid); err != nil {
		return "", fmt.Errorf("bitcoin: decode txid: %w", err)
	}
	want := tx.TxHash()
	got, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return "", fmt.Errorf("bitcoin: decode txid: %w", err)
	}
	if !got.IsEqual(&want) {
		return "", fmt.Errorf("bitcoin: node returned txid %s for transaction %s", got, want)
	}
	return txid, nil
}

// Generate mines blocks to a fresh wallet address. Only useful on regtest.
func (w *Wallet) Generate(ctx context.Context, blocks int64) ([]string, error) {
	raw, err := w.NewAddress(ctx)
	if err != nil {
		return nil, err
	}
	addr, err := w.decodeAddress(raw)
	if err != nil {
		return nil, err
	}
	hashes, err := w.rpc.GenerateToAddress(blocks, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("bitcoin: generatetoaddress: %w", err)
	}
	out := make([]string, 0, len(hashes))
	for _, h := range hashes {
		out = append(out, h.String())
	}
	return out, nil
}
