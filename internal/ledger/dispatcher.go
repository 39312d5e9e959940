package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/danmuck/swapharness/internal/clock"
	"github.com/danmuck/swapharness/internal/observability"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultWaitInterval is how often a time precondition is re-sampled.
	DefaultWaitInterval = time.Second
	// DefaultBlockTimestampBuffer is added to min_block_timestamp; a call
	// mined in a block stamped exactly at the threshold transfers nothing.
	DefaultBlockTimestampBuffer = 2 * time.Second
)

// Outcome is the ledger-native result of one dispatched action.
type Outcome struct {
	Type            Type
	TxID            string
	ContractAddress string
	Receipt         *types.Receipt
	PaymentRequest  string
	Preimage        []byte
}

type Config struct {
	// Network is the only accepted payload network, DefaultNetwork if empty.
	Network              string
	Clock                clock.Clock
	WaitInterval         time.Duration
	BlockTimestampBuffer time.Duration
	// Label tags logs and metrics, usually the actor name.
	Label string
}

// Dispatcher executes ledger actions. It holds no per-action state; one
// actor uses it sequentially.
type Dispatcher struct {
	wallets Wallets
	network string
	clock   clock.Clock
	every   time.Duration
	buffer  time.Duration
	label   string
}

func NewDispatcher(wallets Wallets, cfg Config) *Dispatcher {
	d := &Dispatcher{
		wallets: wallets,
		network: cfg.Network,
		clock:   cfg.Clock,
		every:   cfg.WaitInterval,
		buffer:  cfg.BlockTimestampBuffer,
		label:   cfg.Label,
	}
	if d.network == "" {
		d.network = DefaultNetwork
	}
	if d.clock == nil {
		d.clock = clock.Real()
	}
	if d.every <= 0 {
		d.every = DefaultWaitInterval
	}
	if d.buffer <= 0 {
		d.buffer = DefaultBlockTimestampBuffer
	}
	return d
}

// Execute checks the network, decodes env and runs it. The network check
// happens before decoding so a foreign payload never reaches a wallet.
func (d *Dispatcher) Execute(ctx context.Context, env Envelope) (Outcome, error) {
	out, err := d.execute(ctx, env)
	observability.RecordLedgerAction(d.label, string(env.Type), err)
	if err != nil {
		log.Error().Err(err).Str("actor", d.label).Str("type", string(env.Type)).Msg("ledger action failed")
	}
	return out, err
}

func (d *Dispatcher) execute(ctx context.Context, env Envelope) (Outcome, error) {
	if network := env.ResolvedNetwork(); network != d.network {
		return Outcome{}, fmt.Errorf("%w: expected network %s, found %q", ErrNetworkMismatch, d.network, network)
	}
	act, err := env.Decode()
	if err != nil {
		return Outcome{}, err
	}
	return d.dispatch(ctx, act)
}

func (d *Dispatcher) dispatch(ctx context.Context, act Action) (Outcome, error) {
	log.Info().Str("actor", d.label).Str("type", string(act.Type())).Msg("executing ledger action")
	switch a := act.(type) {
	case BitcoinSendAmountToAddress:
		return d.bitcoinSend(ctx, a)
	case BitcoinBroadcastSignedTransaction:
		return d.bitcoinBroadcast(ctx, a)
	case EthereumDeployContract:
		return d.ethereumDeploy(ctx, a)
	case EthereumCallContract:
		return d.ethereumCall(ctx, a)
	case LndAddHoldInvoice:
		return d.lndAddHoldInvoice(ctx, a)
	case LndSendPayment:
		return d.lndSendPayment(ctx, a)
	case LndSettleInvoice:
		return d.lndSettleInvoice(ctx, a)
	default:
		return Outcome{}, fmt.Errorf("%w: %T", ErrUnsupportedAction, act)
	}
}

func (d *Dispatcher) bitcoinSend(ctx context.Context, a BitcoinSendAmountToAddress) (Outcome, error) {
	if d.wallets.Bitcoin == nil {
		return Outcome{}, fmt.Errorf("%w: bitcoin wallet for %s", ErrMissingCapability, a.Type())
	}
	txid, err := d.wallets.Bitcoin.SendToAddress(ctx, a.To, a.Amount)
	if err != nil {
		return Outcome{}, fmt.Errorf("ledger: send %d sat to %s: %w", int64(a.Amount), a.To, err)
	}
	return Outcome{Type: a.Type(), TxID: txid}, nil
}

func (d *Dispatcher) bitcoinBroadcast(ctx context.Context, a BitcoinBroadcastSignedTransaction) (Outcome, error) {
	if d.wallets.BitcoinNode == nil {
		return Outcome{}, fmt.Errorf("%w: bitcoin node for %s", ErrMissingCapability, a.Type())
	}
	if !a.MinMedianBlockTime.IsZero() {
		if err := d.waitForMedianTime(ctx, a.MinMedianBlockTime); err != nil {
			return Outcome{}, err
		}
	}
	txid, err := d.wallets.BitcoinNode.SendRawTransaction(ctx, a.Hex)
	if err != nil {
		return Outcome{}, fmt.Errorf("ledger: broadcast transaction: %w", err)
	}
	return Outcome{Type: a.Type(), TxID: txid}, nil
}

func (d *Dispatcher) ethereumDeploy(ctx context.Context, a EthereumDeployContract) (Outcome, error) {
	if d.wallets.Ethereum == nil {
		return Outcome{}, fmt.Errorf("%w: ethereum wallet for %s", ErrMissingCapability, a.Type())
	}
	receipt, err := d.wallets.Ethereum.DeployContract(ctx, a.Data, a.Amount, a.GasLimit)
	if err != nil {
		return Outcome{}, fmt.Errorf("ledger: deploy contract: %w", err)
	}
	return receiptOutcome(a.Type(), receipt)
}

func (d *Dispatcher) ethereumCall(ctx context.Context, a EthereumCallContract) (Outcome, error) {
	if d.wallets.Ethereum == nil {
		return Outcome{}, fmt.Errorf("%w: ethereum wallet for %s", ErrMissingCapability, a.Type())
	}
	if !a.MinBlockTimestamp.IsZero() {
		if err := d.waitForTimestamp(ctx, a.MinBlockTimestamp); err != nil {
			return Outcome{}, err
		}
	}
	receipt, err := d.wallets.Ethereum.SendTransactionTo(ctx, a.ContractAddress, a.Data, new(big.Int), a.GasLimit)
	if err != nil {
		return Outcome{}, fmt.Errorf("ledger: call contract %s: %w", a.ContractAddress.Hex(), err)
	}
	return receiptOutcome(a.Type(), receipt)
}

func receiptOutcome(t Type, receipt *types.Receipt) (Outcome, error) {
	out := Outcome{Type: t, Receipt: receipt}
	if receipt == nil {
		return out, nil
	}
	out.TxID = receipt.TxHash.Hex()
	if receipt.ContractAddress != (common.Address{}) {
		out.ContractAddress = receipt.ContractAddress.Hex()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return out, fmt.Errorf("%w: %s reverted in block %v", ErrTransactionFailed, out.TxID, receipt.BlockNumber)
	}
	return out, nil
}

func (d *Dispatcher) lndAddHoldInvoice(ctx context.Context, a LndAddHoldInvoice) (Outcome, error) {
	if d.wallets.Lightning == nil {
		return Outcome{}, fmt.Errorf("%w: lightning wallet for %s", ErrMissingCapability, a.Type())
	}
	invoice, err := d.wallets.Lightning.AddHoldInvoice(ctx, a.Amount, a.SecretHash, a.Expiry, a.CltvExpiry)
	if err != nil {
		return Outcome{}, fmt.Errorf("ledger: add hold invoice %x: %w", a.SecretHash, err)
	}
	return Outcome{Type: a.Type(), PaymentRequest: invoice}, nil
}

func (d *Dispatcher) lndSendPayment(ctx context.Context, a LndSendPayment) (Outcome, error) {
	if d.wallets.Lightning == nil {
		return Outcome{}, fmt.Errorf("%w: lightning wallet for %s", ErrMissingCapability, a.Type())
	}
	preimage, err := d.wallets.Lightning.SendPayment(ctx, a.ToPublicKey, a.Amount, a.SecretHash, a.FinalCltvDelta)
	if err != nil {
		return Outcome{}, fmt.Errorf("ledger: send payment %x: %w", a.SecretHash, err)
	}
	return Outcome{Type: a.Type(), TxID: hex.EncodeToString(a.SecretHash), Preimage: preimage}, nil
}

func (d *Dispatcher) lndSettleInvoice(ctx context.Context, a LndSettleInvoice) (Outcome, error) {
	if d.wallets.Lightning == nil {
		return Outcome{}, fmt.Errorf("%w: lightning wallet for %s", ErrMissingCapability, a.Type())
	}
	if err := d.wallets.Lightning.SettleInvoice(ctx, a.Secret); err != nil {
		return Outcome{}, fmt.Errorf("ledger: settle invoice: %w", err)
	}
	return Outcome{Type: a.Type(), Preimage: a.Secret}, nil
}
