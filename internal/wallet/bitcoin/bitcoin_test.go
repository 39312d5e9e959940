package bitcoin

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/danmuck/swapharness/internal/testutil/testlog"
	"github.com/shopspring/decimal"
)

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     json.RawMessage   `json:"id"`
}

// fakeNode answers the handful of bitcoind calls the wallet makes.
type fakeNode struct {
	mu      sync.Mutex
	methods []string
	params  map[string][]json.RawMessage
	median  int64
	address string
}

func (f *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.methods = append(f.methods, req.Method)
	f.params[req.Method] = req.Params
	f.mu.Unlock()

	var result any
	switch req.Method {
	case "getnewaddress":
		result = f.address
	case "sendtoaddress":
		result = strings.Repeat("ab", 32)
	case "getblockchaininfo":
		f.mu.Lock()
		median := f.median
		f.mu.Unlock()
		result = map[string]any{"chain": "regtest", "blocks": 101, "mediantime": median}
	case "sendrawtransaction":
		var txHex string
		_ = json.Unmarshal(req.Params[0], &txHex)
		raw, _ := hex.DecodeString(txHex)
		var tx wire.MsgTx
		_ = tx.Deserialize(bytes.NewReader(raw))
		result = tx.TxHash().String()
	case "generatetoaddress":
		result = []string{strings.Repeat("cd", 32)}
	default:
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": nil,
			"error":  map[string]any{"code": -32601, "message": "Method not found"},
			"id":     req.ID,
		})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "error": nil, "id": req.ID})
}

func (f *fakeNode) called(method string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.methods {
		if m == method {
			return true
		}
	}
	return false
}

func (f *fakeNode) param(method string, i int) json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params[method][i]
}

func (f *fakeNode) setMedian(v int64) {
	f.mu.Lock()
	f.median = v
	f.mu.Unlock()
}

func regtestAddress(t *testing.T) string {
	t.Helper()
	addr, err := btcutil.NewAddressWitnessPubKeyHash(bytes.Repeat([]byte{0x01}, 20), &chaincfg.RegressionNetParams)
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	return addr.EncodeAddress()
}

func newWallet(t *testing.T) (*Wallet, *fakeNode) {
	t.Helper()
	node := &fakeNode{params: map[string][]json.RawMessage{}, address: regtestAddress(t)}
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	w, err := New(Config{Host: strings.TrimPrefix(srv.URL, "http://"), User: "u", Password: "p"})
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	t.Cleanup(w.Close)
	return w, node
}

func TestNewAddress(t *testing.T) {
	testlog.Start(t)
	w, node := newWallet(t)
	addr, err := w.NewAddress(context.Background())
	if err != nil {
		t.Fatalf("new address: %v", err)
	}
	if addr != node.address || !strings.HasPrefix(addr, "bcrt1") {
		t.Fatalf("unexpected address: %q", addr)
	}
}

func TestSendToAddress(t *testing.T) {
	testlog.Start(t)
	w, node := newWallet(t)
	txid, err := w.SendToAddress(context.Background(), node.address, btcutil.Amount(100_000_000))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if txid != strings.Repeat("ab", 32) {
		t.Fatalf("unexpected txid: %q", txid)
	}
	var amount float64
	if err := json.Unmarshal(node.param("sendtoaddress", 1), &amount); err != nil {
		t.Fatalf("decode amount param: %v", err)
	}
	if amount != 1 {
		t.Fatalf("unexpected BTC amount: %v", amount)
	}
}

func TestSendToAddressRejectsForeignAddress(t *testing.T) {
	testlog.Start(t)
	w, node := newWallet(t)
	mainnet, err := btcutil.NewAddressWitnessPubKeyHash(bytes.Repeat([]byte{0x02}, 20), &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	_, err = w.SendToAddress(context.Background(), mainnet.EncodeAddress(), 1000)
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected invalid address, got %v", err)
	}
	if node.called("sendtoaddress") {
		t.Fatalf("foreign address reached the node")
	}
}

func TestFundConvertsDecimalBTC(t *testing.T) {
	testlog.Start(t)
	w, node := newWallet(t)
	if _, err := w.Fund(context.Background(), node.address, decimal.RequireFromString("0.5")); err != nil {
		t.Fatalf("fund: %v", err)
	}
	var amount float64
	if err := json.Unmarshal(node.param("sendtoaddress", 1), &amount); err != nil {
		t.Fatalf("decode amount param: %v", err)
	}
	if amount != 0.5 {
		t.Fatalf("unexpected BTC amount: %v", amount)
	}

	_, err := w.Fund(context.Background(), node.address, decimal.RequireFromString("0.000000001"))
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected sub-satoshi amount to fail, got %v", err)
	}
}

func TestMedianTime(t *testing.T) {
	testlog.Start(t)
	w, node := newWallet(t)
	node.setMedian(1_700_000_000)
	got, err := w.MedianTime(context.Background())
	if err != nil {
		t.Fatalf("median time: %v", err)
	}
	if !got.Equal(time.Unix(1_700_000_000, 0)) {
		t.Fatalf("unexpected median time: %v", got)
	}
}

func TestSendRawTransaction(t *testing.T) {
	testlog.Start(t)
	w, node := newWallet(t)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{0x01}, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(50_000, []byte{0x51}))
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		t.Fatalf("serialize: %v", err)
	}

	txid, err := w.SendRawTransaction(context.Background(), hex.EncodeToString(buf.Bytes()))
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if txid != tx.TxHash().String() {
		t.Fatalf("unexpected txid: %s", txid)
	}
	if !node.called("sendrawtransaction") {
		t.Fatalf("expected broadcast to reach the node")
	}
}

func TestSendRawTransactionRejectsGarbage(t *testing.T) {
	testlog.Start(t)
	w, node := newWallet(t)
	for _, raw := range []string{"zz", "0200"} {
		if _, err := w.SendRawTransaction(context.Background(), raw); !errors.Is(err, ErrInvalidTransaction) {
			t.Fatalf("%q: expected invalid transaction, got %v", raw, err)
		}
	}
	if node.called("sendrawtransaction") {
		t.Fatalf("garbage reached the node")
	}
}

func TestGenerate(t *testing.T) {
	testlog.Start(t)
	w, _ := newWallet(t)
	hashes, err := w.Generate(context.Background(), 1)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(hashes) != 1 {
		t.Fatalf("unexpected hashes: %v", hashes)
	}
}

func TestCanceledContextSkipsRPC(t *testing.T) {
	testlog.Start(t)
	w, node := newWallet(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := w.MedianTime(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if node.called("getblockchaininfo") {
		t.Fatalf("canceled call reached the node")
	}
}
