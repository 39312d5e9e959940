// Package ethereum signs and submits actor transactions with a local key.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
)

var ErrInvalidKey = errors.New("ethereum: invalid private key")

// Backend is the node surface the wallet needs. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

type Wallet struct {
	backend Backend
	key     *ecdsa.PrivateKey
	address common.Address
	signer  types.Signer

	// sendMu serializes nonce selection and submission.
	sendMu sync.Mutex
}

// Dial connects to a JSON-RPC endpoint and loads a hex private key.
func Dial(ctx context.Context, rpcURL, hexKey string) (*Wallet, error) {
	key, err := ParseKey(hexKey)
	if err != nil {
		return nil, err
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("ethereum: dial %s: %w", rpcURL, err)
	}
	return New(ctx, client, key)
}

func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}

func New(ctx context.Context, backend Backend, key *ecdsa.PrivateKey) (*Wallet, error) {
	if key == nil {
		return nil, ErrInvalidKey
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("ethereum: chain id: %w", err)
	}
	return &Wallet{
		backend: backend,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(chainID),
	}, nil
}

func (w *Wallet) Address() common.Address { return w.address }

// DeployContract sends a contract creation and waits for its receipt.
func (w *Wallet) DeployContract(ctx context.Context, data []byte, value *big.Int, gasLimit uint64) (*types.Receipt, error) {
	return w.send(ctx, nil, data, value, gasLimit)
}

// SendTransactionTo sends data and value to an address and waits for the receipt.
func (w *Wallet) SendTransactionTo(ctx context.Context, to common.Address, data []byte, value *big.Int, gasLimit uint64) (*types.Receipt, error) {
	return w.send(ctx, &to, data, value, gasLimit)
}

func (w *Wallet) send(ctx context.Context, to *common.Address, data []byte, value *big.Int, gasLimit uint64) (*types.Receipt, error) {
	if value == nil {
		value = new(big.Int)
	}
	signed, err := w.submit(ctx, to, data, value, gasLimit)
	if err != nil {
		return nil, err
	}
	receipt, err := bind.WaitMined(ctx, w.backend, signed)
	if err != nil {
		return nil, fmt.Errorf("ethereum: wait for %s: %w", signed.Hash().Hex(), err)
	}
	log.Debug().
		Str("tx", signed.Hash().Hex()).
		Uint64("status", receipt.Status).
		Uint64("gas_used", receipt.GasUsed).
		Msg("ethereum transaction mined")
	return receipt, nil
}

func (w *Wallet) submit(ctx context.Context, to *common.Address, data []byte, value *big.Int, gasLimit uint64) (*types.Transaction, error) {
	w.sendMu.Lock()
	defer w.sendMu.Unlock()

	nonce, err := w.backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return nil, fmt.Errorf("ethereum: nonce: %w", err)
	}
	gasPrice, err := w.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("ethereum: gas price: %w", err)
	}
	if gasLimit == 0 {
		gasLimit, err = w.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:     w.address,
			To:       to,
			GasPrice: gasPrice,
			Value:    value,
			Data:     data,
		})
		if err != nil {
			return nil, fmt.Errorf("ethereum: estimate gas: %w", err)
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       to,
		Value:    value,
		Data:     data,
	})
	signed, err := types.SignTx(tx, w.signer, w.key)
	if err != nil {
		return nil, fmt.Errorf("ethereum: sign: %w", err)
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("ethereum: send %s: %w", signed.Hash().Hex(), err)
	}
	return signed, nil
}
