package actor

import (
	"context"
	"fmt"

	"github.com/danmuck/swapharness/internal/action"
	"github.com/danmuck/swapharness/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
)

// BitcoinWallet is a bitcoin payer that can also hand out fresh addresses.
type BitcoinWallet interface {
	ledger.BitcoinWallet
	NewAddress(ctx context.Context) (string, error)
}

// EthereumWallet is an ethereum signer with a fixed account.
type EthereumWallet interface {
	ledger.EthereumWallet
	Address() common.Address
}

// Wallets is everything an actor may touch on the ledgers. Members are
// optional; using a missing one fails the action that needs it.
type Wallets struct {
	Bitcoin     BitcoinWallet
	BitcoinNode ledger.BitcoinNode
	Ethereum    EthereumWallet
	Lightning   ledger.LightningWallet
}

func (w Wallets) ledger() ledger.Wallets {
	return ledger.Wallets{
		Bitcoin:     w.Bitcoin,
		BitcoinNode: w.BitcoinNode,
		Ethereum:    w.Ethereum,
		Lightning:   w.Lightning,
	}
}

// addressSource answers autofill from the actor's wallets.
type addressSource struct {
	wallets Wallets
}

var _ action.AddressSource = addressSource{}

func (s addressSource) EthereumAddress() (string, error) {
	if s.wallets.Ethereum == nil {
		return "", fmt.Errorf("%w: no ethereum wallet", action.ErrMissingWallet)
	}
	return s.wallets.Ethereum.Address().Hex(), nil
}

func (s addressSource) NewBitcoinAddress(ctx context.Context) (string, error) {
	if s.wallets.Bitcoin == nil {
		return "", fmt.Errorf("%w: no bitcoin wallet", action.ErrMissingWallet)
	}
	return s.wallets.Bitcoin.NewAddress(ctx)
}
