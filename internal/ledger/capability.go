package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// BitcoinWallet pays out of a funded wallet.
type BitcoinWallet interface {
	SendToAddress(ctx context.Context, to string, amount btcutil.Amount) (string, error)
}

// BitcoinNode exposes the chain view needed for time-locked broadcasts.
type BitcoinNode interface {
	MedianTime(ctx context.Context) (time.Time, error)
	SendRawTransaction(ctx context.Context, txHex string) (string, error)
}

// EthereumWallet signs and submits transactions, returning the mined receipt.
type EthereumWallet interface {
	DeployContract(ctx context.Context, data []byte, value *big.Int, gasLimit uint64) (*types.Receipt, error)
	SendTransactionTo(ctx context.Context, to common.Address, data []byte, value *big.Int, gasLimit uint64) (*types.Receipt, error)
}

// LightningWallet drives hold invoices and payments on an lnd node.
type LightningWallet interface {
	AddHoldInvoice(ctx context.Context, amount btcutil.Amount, secretHash []byte, expiry, cltvExpiry uint32) (string, error)
	SendPayment(ctx context.Context, to []byte, amount btcutil.Amount, secretHash []byte, finalCltvDelta uint32) ([]byte, error)
	SettleInvoice(ctx context.Context, secret []byte) error
}

// Wallets is the capability set one actor dispatches against. Any member
// may be nil when the actor does not use that ledger.
type Wallets struct {
	Bitcoin     BitcoinWallet
	BitcoinNode BitcoinNode
	Ethereum    EthereumWallet
	Lightning   LightningWallet
}
