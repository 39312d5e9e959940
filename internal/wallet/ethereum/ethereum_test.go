package ethereum

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/danmuck/swapharness/internal/testutil/testlog"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

type fakeBackend struct {
	mu        sync.Mutex
	chainID   *big.Int
	nonce     uint64
	estimated int
	sent      []*types.Transaction
	sendErr   error
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return f.chainID, nil }

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimated++
	return 90_000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	f.nonce++
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.sent {
		if tx.Hash() != hash {
			continue
		}
		r := &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash, BlockNumber: big.NewInt(1)}
		if tx.To() == nil {
			from, _ := types.Sender(types.LatestSignerForChainID(f.chainID), tx)
			r.ContractAddress = crypto.CreateAddress(from, tx.Nonce())
		}
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func newWallet(t *testing.T) (*Wallet, *fakeBackend) {
	t.Helper()
	key, err := ParseKey(testKey)
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	backend := &fakeBackend{chainID: big.NewInt(1337)}
	w, err := New(context.Background(), backend, key)
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	return w, backend
}

func TestDeployContract(t *testing.T) {
	testlog.Start(t)
	w, backend := newWallet(t)
	receipt, err := w.DeployContract(context.Background(), []byte{0x60, 0x60}, big.NewInt(5), 0)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if receipt.ContractAddress != crypto.CreateAddress(w.Address(), 0) {
		t.Fatalf("unexpected contract address: %s", receipt.ContractAddress.Hex())
	}
	if backend.estimated != 1 {
		t.Fatalf("expected gas estimation when no limit given")
	}
	tx := backend.sent[0]
	if tx.To() != nil || tx.Value().Int64() != 5 || tx.Gas() != 90_000 {
		t.Fatalf("unexpected deploy tx: to=%v value=%v gas=%d", tx.To(), tx.Value(), tx.Gas())
	}
	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1337)), tx)
	if err != nil || from != w.Address() {
		t.Fatalf("unexpected sender %s: %v", from.Hex(), err)
	}
}

func TestSendTransactionToUsesGivenGasAndIncrementsNonce(t *testing.T) {
	testlog.Start(t)
	w, backend := newWallet(t)
	to := common.HexToAddress("0x00a329c0648769a73afac7f9381e08fb43dbea72")
	for i := 0; i < 2; i++ {
		if _, err := w.SendTransactionTo(context.Background(), to, []byte{0x01}, nil, 100_000); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if backend.estimated != 0 {
		t.Fatalf("unexpected gas estimation")
	}
	for i, tx := range backend.sent {
		if tx.Nonce() != uint64(i) || *tx.To() != to || tx.Gas() != 100_000 || tx.Value().Sign() != 0 {
			t.Fatalf("unexpected tx %d: nonce=%d to=%v gas=%d value=%v", i, tx.Nonce(), tx.To(), tx.Gas(), tx.Value())
		}
	}
}

func TestSendErrorPropagates(t *testing.T) {
	testlog.Start(t)
	w, backend := newWallet(t)
	boom := errors.New("nonce too low")
	backend.sendErr = boom
	_, err := w.SendTransactionTo(context.Background(), common.Address{}, nil, nil, 21_000)
	if !errors.Is(err, boom) {
		t.Fatalf("expected send error, got %v", err)
	}
}

func TestParseKeyRejectsGarbage(t *testing.T) {
	if _, err := ParseKey("0x1234"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected invalid key, got %v", err)
	}
}
