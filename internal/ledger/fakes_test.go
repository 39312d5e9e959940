package ledger

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/danmuck/swapharness/internal/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// recorder counts every ledger call so tests can assert "no I/O happened".
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) record(name string) {
	r.mu.Lock()
	r.calls = append(r.calls, name)
	r.mu.Unlock()
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeBitcoin struct {
	*recorder
	clock      *clock.Fake
	median     time.Time
	sentTo     string
	sentAmount btcutil.Amount
	broadcast  string
	sentAt     time.Time
	err        error
}

func (f *fakeBitcoin) SendToAddress(_ context.Context, to string, amount btcutil.Amount) (string, error) {
	f.record("bitcoin.SendToAddress")
	if f.err != nil {
		return "", f.err
	}
	f.sentTo, f.sentAmount = to, amount
	return "btc-txid", nil
}

func (f *fakeBitcoin) MedianTime(context.Context) (time.Time, error) {
	f.record("bitcoin.MedianTime")
	return f.median, nil
}

func (f *fakeBitcoin) SendRawTransaction(_ context.Context, txHex string) (string, error) {
	f.record("bitcoin.SendRawTransaction")
	f.broadcast = txHex
	if f.clock != nil {
		f.sentAt = f.clock.Now()
	}
	return "raw-txid", nil
}

type fakeEthereum struct {
	*recorder
	clock    *clock.Fake
	to       common.Address
	data     []byte
	value    *big.Int
	gasLimit uint64
	sentAt   time.Time
	status   uint64
}

func (f *fakeEthereum) receipt() *types.Receipt {
	return &types.Receipt{
		Status:      f.status,
		TxHash:      common.HexToHash("0x01"),
		BlockNumber: big.NewInt(7),
	}
}

func (f *fakeEthereum) DeployContract(_ context.Context, data []byte, value *big.Int, gasLimit uint64) (*types.Receipt, error) {
	f.record("ethereum.DeployContract")
	f.data, f.value, f.gasLimit = data, value, gasLimit
	r := f.receipt()
	r.ContractAddress = common.HexToAddress("0x00a329c0648769a73afac7f9381e08fb43dbea72")
	return r, nil
}

func (f *fakeEthereum) SendTransactionTo(_ context.Context, to common.Address, data []byte, value *big.Int, gasLimit uint64) (*types.Receipt, error) {
	f.record("ethereum.SendTransactionTo")
	f.to, f.data, f.value, f.gasLimit = to, data, value, gasLimit
	if f.clock != nil {
		f.sentAt = f.clock.Now()
	}
	return f.receipt(), nil
}

type fakeLightning struct {
	*recorder
	secret []byte
}

func (f *fakeLightning) AddHoldInvoice(context.Context, btcutil.Amount, []byte, uint32, uint32) (string, error) {
	f.record("lightning.AddHoldInvoice")
	return "lnbcrt1invoice", nil
}

func (f *fakeLightning) SendPayment(context.Context, []byte, btcutil.Amount, []byte, uint32) ([]byte, error) {
	f.record("lightning.SendPayment")
	return []byte("preimage"), nil
}

func (f *fakeLightning) SettleInvoice(_ context.Context, secret []byte) error {
	f.record("lightning.SettleInvoice")
	f.secret = secret
	return nil
}

type harness struct {
	rec   *recorder
	clock *clock.Fake
	btc   *fakeBitcoin
	eth   *fakeEthereum
	ln    *fakeLightning
	d     *Dispatcher
}

func newHarness(start time.Time) *harness {
	rec := &recorder{}
	clk := clock.NewFake(start)
	h := &harness{
		rec:   rec,
		clock: clk,
		btc:   &fakeBitcoin{recorder: rec, clock: clk},
		eth:   &fakeEthereum{recorder: rec, clock: clk, status: types.ReceiptStatusSuccessful},
		ln:    &fakeLightning{recorder: rec},
	}
	h.d = NewDispatcher(Wallets{
		Bitcoin:     h.btc,
		BitcoinNode: h.btc,
		Ethereum:    h.eth,
		Lightning:   h.ln,
	}, Config{Clock: clk, Label: "alice"})
	return h
}
