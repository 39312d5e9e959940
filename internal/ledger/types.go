package ledger

import (
	"math/big"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/ethereum/go-ethereum/common"
)

// Type is the wire tag of a ledger action.
type Type string

const (
	TypeBitcoinSendAmountToAddress        Type = "bitcoin-send-amount-to-address"
	TypeBitcoinBroadcastSignedTransaction Type = "bitcoin-broadcast-signed-transaction"
	TypeEthereumDeployContract            Type = "ethereum-deploy-contract"
	TypeEthereumCallContract              Type = "ethereum-call-contract"
	TypeLndAddHoldInvoice                 Type = "lnd-add-hold-invoice"
	TypeLndSendPayment                    Type = "lnd-send-payment"
	TypeLndSettleInvoice                  Type = "lnd-settle-invoice"
)

// Types lists every supported action type.
func Types() []Type {
	return []Type{
		TypeBitcoinSendAmountToAddress,
		TypeBitcoinBroadcastSignedTransaction,
		TypeEthereumDeployContract,
		TypeEthereumCallContract,
		TypeLndAddHoldInvoice,
		TypeLndSendPayment,
		TypeLndSettleInvoice,
	}
}

// Action is one decoded ledger action. The set of implementations is closed
// to this package.
type Action interface {
	Type() Type
	ledgerAction()
}

type BitcoinSendAmountToAddress struct {
	To     string
	Amount btcutil.Amount
}

type BitcoinBroadcastSignedTransaction struct {
	Hex string
	// MinMedianBlockTime is zero when the transaction has no time lock.
	MinMedianBlockTime time.Time
}

type EthereumDeployContract struct {
	Data   []byte
	Amount *big.Int
	// GasLimit is zero when the wallet should estimate.
	GasLimit uint64
}

type EthereumCallContract struct {
	ContractAddress   common.Address
	Data              []byte
	GasLimit          uint64
	MinBlockTimestamp time.Time
}

type LndAddHoldInvoice struct {
	Amount     btcutil.Amount
	SecretHash []byte
	Expiry     uint32
	CltvExpiry uint32
}

type LndSendPayment struct {
	ToPublicKey    []byte
	Amount         btcutil.Amount
	SecretHash     []byte
	FinalCltvDelta uint32
}

type LndSettleInvoice struct {
	Secret []byte
}

func (BitcoinSendAmountToAddress) Type() Type        { return TypeBitcoinSendAmountToAddress }
func (BitcoinBroadcastSignedTransaction) Type() Type { return TypeBitcoinBroadcastSignedTransaction }
func (EthereumDeployContract) Type() Type            { return TypeEthereumDeployContract }
func (EthereumCallContract) Type() Type              { return TypeEthereumCallContract }
func (LndAddHoldInvoice) Type() Type                 { return TypeLndAddHoldInvoice }
func (LndSendPayment) Type() Type                    { return TypeLndSendPayment }
func (LndSettleInvoice) Type() Type                  { return TypeLndSettleInvoice }

func (BitcoinSendAmountToAddress) ledgerAction()        {}
func (BitcoinBroadcastSignedTransaction) ledgerAction() {}
func (EthereumDeployContract) ledgerAction()            {}
func (EthereumCallContract) ledgerAction()              {}
func (LndAddHoldInvoice) ledgerAction()                 {}
func (LndSendPayment) ledgerAction()                    {}
func (LndSettleInvoice) ledgerAction()                  {}
