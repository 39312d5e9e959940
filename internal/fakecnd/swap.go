package fakecnd

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/google/uuid"
)

var (
	ErrSwapNotFound    = errors.New("swap not found")
	ErrActionNotFound  = errors.New("action not found")
	ErrUnknownPeer     = errors.New("unknown peer")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrDaemonIDInUse   = errors.New("daemon id already registered")
	ErrWrongSwapRole   = errors.New("action not available for this role")
	ErrSwapFinished    = errors.New("swap already finished")
	ErrAlreadyAnswered = errors.New("swap request already answered")
)

type Role string

const (
	RoleAlice Role = "Alice"
	RoleBob   Role = "Bob"
)

// Communication states of the swap request.
const (
	CommunicationSent     = "SENT"
	CommunicationAccepted = "ACCEPTED"
	CommunicationDeclined = "DECLINED"
)

// Ledger HTLC states.
const (
	LedgerNotDeployed = "NotDeployed"
	LedgerFunded      = "Funded"
	LedgerRedeemed    = "Redeemed"
	LedgerRefunded    = "Refunded"
)

// Overall swap status.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusSwapped    = "SWAPPED"
	StatusNotSwapped = "NOT_SWAPPED"
)

// Swap is a bitcoin (alpha) for ether (beta) rfc003 swap shared by the two
// daemons taking part in it.
type Swap struct {
	ID    string
	Alice string
	Bob   string

	AlphaAmount btcutil.Amount
	BetaAmount  *big.Int
	AlphaExpiry time.Time
	BetaExpiry  time.Time

	BetaRedeemIdentity  string
	BetaRefundIdentity  string
	AlphaRedeemIdentity string
	DeclineReason       string

	Communication string
	AlphaLedger   string
	BetaLedger    string

	Secret     [32]byte
	SecretHash [32]byte
	created    time.Time
}

func (s *Swap) Status() string {
	switch {
	case s.Communication == CommunicationDeclined:
		return StatusNotSwapped
	case s.AlphaLedger == LedgerRedeemed && s.BetaLedger == LedgerRedeemed:
		return StatusSwapped
	case (s.AlphaLedger == LedgerRefunded || s.BetaLedger == LedgerRefunded) &&
		s.AlphaLedger != LedgerFunded && s.BetaLedger != LedgerFunded:
		return StatusNotSwapped
	default:
		return StatusInProgress
	}
}

// RoleOf reports which side daemon id plays in the swap.
func (s *Swap) RoleOf(id string) (Role, bool) {
	switch id {
	case s.Alice:
		return RoleAlice, true
	case s.Bob:
		return RoleBob, true
	default:
		return "", false
	}
}

// Network is the set of fake daemons that can reach each other and the
// swaps between them.
type Network struct {
	mu      sync.Mutex
	daemons map[string]*Daemon
	swaps   map[string]*Swap
	now     func() time.Time
}

func NewNetwork() *Network {
	return &Network{
		daemons: map[string]*Daemon{},
		swaps:   map[string]*Swap{},
		now:     time.Now,
	}
}

func (n *Network) register(d *Daemon) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.daemons[d.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDaemonIDInUse, d.ID)
	}
	n.daemons[d.ID] = d
	return nil
}

// SwapRequest is the body of POST /swaps/rfc003.
type SwapRequest struct {
	Peer                     string `json:"peer"`
	AlphaAsset               Asset  `json:"alpha_asset"`
	BetaAsset                Asset  `json:"beta_asset"`
	AlphaExpiry              int64  `json:"alpha_expiry"`
	BetaExpiry               int64  `json:"beta_expiry"`
	BetaLedgerRedeemIdentity string `json:"beta_ledger_redeem_identity"`
}

type Asset struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
}

func (n *Network) createSwap(alice string, req SwapRequest) (*Swap, error) {
	alphaQty, ok := new(big.Int).SetString(req.AlphaAsset.Quantity, 10)
	if !ok || alphaQty.Sign() <= 0 || !alphaQty.IsInt64() {
		return nil, fmt.Errorf("%w: alpha_asset.quantity %q", ErrInvalidRequest, req.AlphaAsset.Quantity)
	}
	betaQty, ok := new(big.Int).SetString(req.BetaAsset.Quantity, 10)
	if !ok || betaQty.Sign() <= 0 {
		return nil, fmt.Errorf("%w: beta_asset.quantity %q", ErrInvalidRequest, req.BetaAsset.Quantity)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if req.Peer == alice {
		return nil, fmt.Errorf("%w: cannot swap with self", ErrInvalidRequest)
	}
	if _, ok := n.daemons[req.Peer]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeer, req.Peer)
	}

	now := n.now()
	swap := &Swap{
		ID:                 uuid.NewString(),
		Alice:              alice,
		Bob:                req.Peer,
		AlphaAmount:        btcutil.Amount(alphaQty.Int64()),
		BetaAmount:         betaQty,
		AlphaExpiry:        now.Add(24 * time.Hour),
		BetaExpiry:         now.Add(12 * time.Hour),
		BetaRedeemIdentity: req.BetaLedgerRedeemIdentity,
		Communication:      CommunicationSent,
		AlphaLedger:        LedgerNotDeployed,
		BetaLedger:         LedgerNotDeployed,
		created:            now,
	}
	if req.AlphaExpiry > 0 {
		swap.AlphaExpiry = time.Unix(req.AlphaExpiry, 0)
	}
	if req.BetaExpiry > 0 {
		swap.BetaExpiry = time.Unix(req.BetaExpiry, 0)
	}
	if _, err := rand.Read(swap.Secret[:]); err != nil {
		return nil, fmt.Errorf("fakecnd: generate secret: %w", err)
	}
	swap.SecretHash = sha256.Sum256(swap.Secret[:])
	n.swaps[swap.ID] = swap
	return swap, nil
}

// Swap returns a copy of the swap as seen by daemon id.
func (n *Network) Swap(daemon, id string) (Swap, Role, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	swap, ok := n.swaps[id]
	if !ok {
		return Swap{}, "", fmt.Errorf("%w: %s", ErrSwapNotFound, id)
	}
	role, ok := swap.RoleOf(daemon)
	if !ok {
		return Swap{}, "", fmt.Errorf("%w: %s", ErrSwapNotFound, id)
	}
	return *swap, role, nil
}

// Swaps lists swaps daemon takes part in, oldest first.
func (n *Network) Swaps(daemon string) []Swap {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Swap, 0, len(n.swaps))
	for _, s := range n.swaps {
		if _, ok := s.RoleOf(daemon); ok {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].created.Equal(out[j].created) {
			return out[i].ID < out[j].ID
		}
		return out[i].created.Before(out[j].created)
	})
	return out
}

// update runs fn on the live swap after checking the caller takes part.
func (n *Network) update(daemon, id string, fn func(*Swap, Role) error) (Swap, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	swap, ok := n.swaps[id]
	if !ok {
		return Swap{}, fmt.Errorf("%w: %s", ErrSwapNotFound, id)
	}
	role, ok := swap.RoleOf(daemon)
	if !ok {
		return Swap{}, fmt.Errorf("%w: %s", ErrSwapNotFound, id)
	}
	if err := fn(swap, role); err != nil {
		return Swap{}, err
	}
	return *swap, nil
}
