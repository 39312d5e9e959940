package actor

import (
	"bytes"
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type payment struct {
	to     string
	amount btcutil.Amount
}

type fakeBitcoin struct {
	mu         sync.Mutex
	address    string
	payments   []payment
	broadcasts []string
	median     time.Time
}

func newFakeBitcoin(t *testing.T, seed byte) *fakeBitcoin {
	t.Helper()
	addr, err := btcutil.NewAddressWitnessPubKeyHash(bytes.Repeat([]byte{seed}, 20), &chaincfg.RegressionNetParams)
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	return &fakeBitcoin{address: addr.EncodeAddress()}
}

func (f *fakeBitcoin) NewAddress(context.Context) (string, error) { return f.address, nil }

func (f *fakeBitcoin) SendToAddress(_ context.Context, to string, amount btcutil.Amount) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments = append(f.payments, payment{to: to, amount: amount})
	return "fund-txid", nil
}

func (f *fakeBitcoin) MedianTime(context.Context) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.median, nil
}

func (f *fakeBitcoin) advanceMedian(d time.Duration) {
	f.mu.Lock()
	f.median = f.median.Add(d)
	f.mu.Unlock()
}

func (f *fakeBitcoin) SendRawTransaction(_ context.Context, txHex string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, txHex)
	return "spend-txid", nil
}

func (f *fakeBitcoin) snapshot() ([]payment, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]payment(nil), f.payments...), append([]string(nil), f.broadcasts...)
}

type contractCall struct {
	to   common.Address
	data []byte
}

type fakeEthereum struct {
	mu      sync.Mutex
	address common.Address
	deploys []*big.Int
	calls   []contractCall
}

func newFakeEthereum(seed byte) *fakeEthereum {
	return &fakeEthereum{address: common.BytesToAddress(bytes.Repeat([]byte{seed}, 20))}
}

func (f *fakeEthereum) Address() common.Address { return f.address }

func (f *fakeEthereum) DeployContract(_ context.Context, _ []byte, value *big.Int, _ uint64) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deploys = append(f.deploys, value)
	return &types.Receipt{
		Status:          types.ReceiptStatusSuccessful,
		ContractAddress: crypto.CreateAddress(f.address, uint64(len(f.deploys)-1)),
		BlockNumber:     big.NewInt(1),
	}, nil
}

func (f *fakeEthereum) SendTransactionTo(_ context.Context, to common.Address, data []byte, _ *big.Int, _ uint64) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, contractCall{to: to, data: data})
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(2)}, nil
}

func (f *fakeEthereum) snapshot() ([]*big.Int, []contractCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*big.Int(nil), f.deploys...), append([]contractCall(nil), f.calls...)
}
