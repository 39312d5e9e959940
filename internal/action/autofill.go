package action

import (
	"context"
	"fmt"

	"github.com/danmuck/swapharness/internal/siren"
	"github.com/rs/zerolog/log"
)

// DefaultBitcoinFeePerWU is used for feePerWU fields when no rate is configured.
const DefaultBitcoinFeePerWU int64 = 20

const declineActionName = "decline"

// Values maps field names to request values.
type Values map[string]any

// AddressSource supplies the wallet-derived values autofill writes.
type AddressSource interface {
	EthereumAddress() (string, error)
	NewBitcoinAddress(ctx context.Context) (string, error)
}

// AutofillParams configures the non-wallet values the resolver fills in.
type AutofillParams struct {
	BitcoinFeePerWU int64
	// DeclineReason, when set, is sent as the reason of every decline action.
	DeclineReason string
}

type fillFunc func(ctx context.Context, r *Resolver, f siren.Field) (any, error)

type rule struct {
	name    string
	classes []siren.Class
	fill    fillFunc
}

// rules run in slice order for every field; a later match overwrites an
// earlier one for the same field.
var rules = []rule{
	{
		name:    "ethereum-address",
		classes: []siren.Class{siren.ClassEthereum, siren.ClassAddress},
		fill: func(_ context.Context, r *Resolver, f siren.Field) (any, error) {
			if r.wallet == nil {
				return nil, fmt.Errorf("%w: ethereum address for field %q", ErrMissingWallet, f.Name)
			}
			return r.wallet.EthereumAddress()
		},
	},
	{
		name:    "bitcoin-fee-per-wu",
		classes: []siren.Class{siren.ClassBitcoin, siren.ClassFeePerWU},
		fill: func(_ context.Context, r *Resolver, _ siren.Field) (any, error) {
			return r.feePerWU(), nil
		},
	},
	{
		name:    "bitcoin-address",
		classes: []siren.Class{siren.ClassBitcoin, siren.ClassAddress},
		fill: func(ctx context.Context, r *Resolver, f siren.Field) (any, error) {
			if r.wallet == nil {
				return nil, fmt.Errorf("%w: bitcoin address for field %q", ErrMissingWallet, f.Name)
			}
			return r.wallet.NewBitcoinAddress(ctx)
		},
	},
}

// Resolver fills in the fields of an action that the wallet can answer.
type Resolver struct {
	wallet AddressSource
	params AutofillParams
}

func NewResolver(wallet AddressSource, params AutofillParams) *Resolver {
	return &Resolver{wallet: wallet, params: params}
}

func (r *Resolver) feePerWU() int64 {
	if r.params.BitcoinFeePerWU > 0 {
		return r.params.BitcoinFeePerWU
	}
	return DefaultBitcoinFeePerWU
}

// Validate checks the field contracts of a without touching any wallet.
func Validate(a siren.Action) error {
	for _, f := range a.Fields {
		if f.Class.HasAll(siren.ClassBitcoin, siren.ClassFeePerWU) && !f.Class.Has(siren.ClassFeePerByte) {
			return fmt.Errorf("%w: action %q field %q is classified feePerWU without feePerByte",
				ErrContractViolation, a.Name, f.Name)
		}
	}
	return nil
}

// Resolve returns explicit merged with every value autofill can supply.
// Explicit values are never overwritten.
func (r *Resolver) Resolve(ctx context.Context, a siren.Action, explicit Values) (Values, error) {
	if err := Validate(a); err != nil {
		return nil, err
	}
	out := make(Values, len(a.Fields)+len(explicit))
	for k, v := range explicit {
		out[k] = v
	}

	for _, f := range a.Fields {
		if _, set := explicit[f.Name]; set {
			continue
		}
		for _, rl := range rules {
			if !f.Class.HasAll(rl.classes...) {
				continue
			}
			v, err := rl.fill(ctx, r, f)
			if err != nil {
				return nil, fmt.Errorf("action: autofill %s for %q.%s: %w", rl.name, a.Name, f.Name, err)
			}
			out[f.Name] = v
			log.Debug().
				Str("action", a.Name).
				Str("field", f.Name).
				Str("rule", rl.name).
				Msg("autofill")
		}
	}

	if a.Name == declineActionName && r.params.DeclineReason != "" {
		if len(a.Fields) == 0 {
			return nil, fmt.Errorf("%w: action %q has no reason field for the configured decline reason",
				ErrContractViolation, a.Name)
		}
		reasonField := a.Fields[0].Name
		if _, set := explicit[reasonField]; !set {
			out[reasonField] = r.params.DeclineReason
		}
	}
	return out, nil
}
