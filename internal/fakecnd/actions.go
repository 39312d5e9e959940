package fakecnd

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/danmuck/swapharness/internal/ledger"
	"github.com/danmuck/swapharness/internal/siren"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	ActionAccept  = "accept"
	ActionDecline = "decline"
	ActionFund    = "fund"
	ActionRedeem  = "redeem"
	ActionRefund  = "refund"

	ethereumCallGasLimit   = 100_000
	ethereumDeployGasLimit = 4_000_000
	// Approximate weight of a single-input HTLC spend.
	bitcoinSpendWeight = 540
)

var chainParams = &chaincfg.RegressionNetParams

func swapHref(id string) string { return "/swaps/rfc003/" + id }

// Actions lists what role may do next in s.
func Actions(s Swap, role Role) []siren.Action {
	href := swapHref(s.ID)
	var out []siren.Action
	if s.Communication == CommunicationSent {
		if role == RoleBob {
			out = append(out,
				siren.Action{
					Name:   ActionAccept,
					Method: http.MethodPost,
					Href:   href + "/accept",
					Type:   siren.MediaTypeJSON,
					Fields: []siren.Field{
						{Name: "alpha_ledger_redeem_identity", Class: siren.NewClassSet(siren.ClassBitcoin, siren.ClassAddress)},
						{Name: "beta_ledger_refund_identity", Class: siren.NewClassSet(siren.ClassEthereum, siren.ClassAddress)},
					},
				},
				siren.Action{
					Name:   ActionDecline,
					Method: http.MethodPost,
					Href:   href + "/decline",
					Type:   siren.MediaTypeJSON,
					Fields: []siren.Field{{Name: "reason"}},
				},
			)
		}
		return out
	}
	if s.Communication != CommunicationAccepted {
		return nil
	}

	spendFields := []siren.Field{
		{Name: "address", Class: siren.NewClassSet(siren.ClassBitcoin, siren.ClassAddress)},
		{Name: "fee_per_wu", Class: siren.NewClassSet(siren.ClassBitcoin, siren.ClassFeePerWU, siren.ClassFeePerByte)},
	}
	get := func(name string, fields []siren.Field) siren.Action {
		return siren.Action{Name: name, Method: http.MethodGet, Href: href + "/" + name, Fields: fields}
	}

	switch role {
	case RoleAlice:
		if s.AlphaLedger == LedgerNotDeployed {
			out = append(out, get(ActionFund, nil))
		}
		if s.BetaLedger == LedgerFunded {
			out = append(out, get(ActionRedeem, nil))
		}
		if s.AlphaLedger == LedgerFunded {
			out = append(out, get(ActionRefund, spendFields))
		}
	case RoleBob:
		if s.AlphaLedger == LedgerFunded && s.BetaLedger == LedgerNotDeployed {
			out = append(out, get(ActionFund, nil))
		}
		if s.AlphaLedger == LedgerFunded && s.BetaLedger == LedgerRedeemed {
			out = append(out, get(ActionRedeem, spendFields))
		}
		if s.BetaLedger == LedgerFunded {
			out = append(out, get(ActionRefund, nil))
		}
	}
	return out
}

func hasAction(s Swap, role Role, name string) bool {
	for _, a := range Actions(s, role) {
		if a.Name == name {
			return true
		}
	}
	return false
}

// AcceptRequest is the body Bob posts to accept.
type AcceptRequest struct {
	AlphaLedgerRedeemIdentity string `json:"alpha_ledger_redeem_identity"`
	BetaLedgerRefundIdentity  string `json:"beta_ledger_refund_identity"`
}

func (n *Network) accept(daemon, id string, req AcceptRequest) (Swap, error) {
	if _, err := btcutil.DecodeAddress(req.AlphaLedgerRedeemIdentity, chainParams); err != nil {
		return Swap{}, fmt.Errorf("%w: alpha_ledger_redeem_identity: %v", ErrInvalidRequest, err)
	}
	if !common.IsHexAddress(req.BetaLedgerRefundIdentity) {
		return Swap{}, fmt.Errorf("%w: beta_ledger_refund_identity %q", ErrInvalidRequest, req.BetaLedgerRefundIdentity)
	}
	return n.update(daemon, id, func(s *Swap, role Role) error {
		if role != RoleBob {
			return ErrWrongSwapRole
		}
		if s.Communication != CommunicationSent {
			return ErrAlreadyAnswered
		}
		s.Communication = CommunicationAccepted
		s.AlphaRedeemIdentity = req.AlphaLedgerRedeemIdentity
		s.BetaRefundIdentity = req.BetaLedgerRefundIdentity
		return nil
	})
}

func (n *Network) decline(daemon, id, reason string) (Swap, error) {
	return n.update(daemon, id, func(s *Swap, role Role) error {
		if role != RoleBob {
			return ErrWrongSwapRole
		}
		if s.Communication != CommunicationSent {
			return ErrAlreadyAnswered
		}
		s.Communication = CommunicationDeclined
		s.DeclineReason = reason
		return nil
	})
}

// ledgerAction returns the ledger action for name and records its effect,
// standing in for the daemon observing the ledger.
func (n *Network) ledgerAction(daemon, id, name string, query url.Values) (ledger.Envelope, error) {
	var env ledger.Envelope
	_, err := n.update(daemon, id, func(s *Swap, role Role) error {
		if s.Status() != StatusInProgress {
			return ErrSwapFinished
		}
		if !hasAction(*s, role, name) {
			return fmt.Errorf("%w: %s for %s", ErrActionNotFound, name, role)
		}
		var err error
		env, err = buildLedgerAction(s, role, name, query)
		if err != nil {
			return err
		}
		applyLedgerAction(s, role, name)
		return nil
	})
	return env, err
}

func applyLedgerAction(s *Swap, role Role, name string) {
	switch {
	case role == RoleAlice && name == ActionFund:
		s.AlphaLedger = LedgerFunded
	case role == RoleBob && name == ActionFund:
		s.BetaLedger = LedgerFunded
	case role == RoleAlice && name == ActionRedeem:
		s.BetaLedger = LedgerRedeemed
	case role == RoleBob && name == ActionRedeem:
		s.AlphaLedger = LedgerRedeemed
	case role == RoleAlice && name == ActionRefund:
		s.AlphaLedger = LedgerRefunded
	case role == RoleBob && name == ActionRefund:
		s.BetaLedger = LedgerRefunded
	}
}

func buildLedgerAction(s *Swap, role Role, name string, query url.Values) (ledger.Envelope, error) {
	switch {
	case role == RoleAlice && name == ActionFund:
		htlc, err := alphaHTLCAddress(s.ID)
		if err != nil {
			return ledger.Envelope{}, err
		}
		return envelope(ledger.TypeBitcoinSendAmountToAddress, map[string]any{
			"to":     htlc.EncodeAddress(),
			"amount": strconv.FormatInt(int64(s.AlphaAmount), 10),
		})
	case role == RoleBob && name == ActionFund:
		return envelope(ledger.TypeEthereumDeployContract, map[string]any{
			"data":      "0x" + hex.EncodeToString(betaHTLCCode(s)),
			"amount":    s.BetaAmount.String(),
			"gas_limit": "0x" + strconv.FormatUint(ethereumDeployGasLimit, 16),
		})
	case role == RoleAlice && name == ActionRedeem:
		return envelope(ledger.TypeEthereumCallContract, map[string]any{
			"contract_address": betaHTLCAddress(s.ID).Hex(),
			"data":             "0x" + hex.EncodeToString(s.Secret[:]),
			"gas_limit":        "0x" + strconv.FormatUint(ethereumCallGasLimit, 16),
		})
	case role == RoleBob && name == ActionRefund:
		return envelope(ledger.TypeEthereumCallContract, map[string]any{
			"contract_address":    betaHTLCAddress(s.ID).Hex(),
			"gas_limit":           "0x" + strconv.FormatUint(ethereumCallGasLimit, 16),
			"min_block_timestamp": s.BetaExpiry.Unix(),
		})
	case name == ActionRedeem || name == ActionRefund:
		refund := name == ActionRefund
		txHex, err := spendAlphaHTLC(s, query, refund)
		if err != nil {
			return ledger.Envelope{}, err
		}
		payload := map[string]any{"hex": txHex}
		if refund {
			payload["min_median_block_time"] = s.AlphaExpiry.Unix()
		}
		return envelope(ledger.TypeBitcoinBroadcastSignedTransaction, payload)
	default:
		return ledger.Envelope{}, fmt.Errorf("%w: %s for %s", ErrActionNotFound, name, role)
	}
}

func envelope(t ledger.Type, payload map[string]any) (ledger.Envelope, error) {
	payload["network"] = ledger.DefaultNetwork
	raw, err := json.Marshal(payload)
	if err != nil {
		return ledger.Envelope{}, err
	}
	return ledger.Envelope{Type: t, Payload: raw}, nil
}

func alphaHTLCAddress(id string) (*btcutil.AddressWitnessScriptHash, error) {
	script := sha256.Sum256([]byte("alpha-htlc:" + id))
	return btcutil.NewAddressWitnessScriptHash(script[:], chainParams)
}

func betaHTLCAddress(id string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("beta-htlc:" + id)))
}

func betaHTLCCode(s *Swap) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0x60, 0x80, 0x60, 0x40})
	buf.Write(s.SecretHash[:])
	var expiry [8]byte
	binary.BigEndian.PutUint64(expiry[:], uint64(s.BetaExpiry.Unix()))
	buf.Write(expiry[:])
	buf.Write(common.FromHex(s.BetaRedeemIdentity))
	buf.Write(common.FromHex(s.BetaRefundIdentity))
	return buf.Bytes()
}

// spendAlphaHTLC builds the redeem or refund transaction for the bitcoin
// HTLC, paying to the address and fee rate given in query.
func spendAlphaHTLC(s *Swap, query url.Values, refund bool) (string, error) {
	to, err := btcutil.DecodeAddress(strings.TrimSpace(query.Get("address")), chainParams)
	if err != nil {
		return "", fmt.Errorf("%w: address: %v", ErrInvalidRequest, err)
	}
	feePerWU, err := strconv.ParseInt(query.Get("fee_per_wu"), 10, 64)
	if err != nil || feePerWU <= 0 {
		return "", fmt.Errorf("%w: fee_per_wu %q", ErrInvalidRequest, query.Get("fee_per_wu"))
	}
	value := int64(s.AlphaAmount) - feePerWU*bitcoinSpendWeight
	if value <= 0 {
		return "", fmt.Errorf("%w: fee exceeds htlc value", ErrInvalidRequest)
	}
	pkScript, err := txscript.PayToAddrScript(to)
	if err != nil {
		return "", fmt.Errorf("%w: address script: %v", ErrInvalidRequest, err)
	}

	fundingTx := chainhash.HashH([]byte("alpha-funding:" + s.ID))
	in := wire.NewTxIn(wire.NewOutPoint(&fundingTx, 0), nil, nil)
	tx := wire.NewMsgTx(2)
	if refund {
		in.Witness = wire.TxWitness{{}, {}}
		in.Sequence = wire.MaxTxInSequenceNum - 1
		tx.LockTime = uint32(s.AlphaExpiry.Unix())
	} else {
		in.Witness = wire.TxWitness{{}, s.Secret[:], {0x01}}
	}
	tx.AddTxIn(in)
	tx.AddTxOut(wire.NewTxOut(value, pkScript))

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}
