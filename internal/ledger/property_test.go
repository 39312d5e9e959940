package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestForeignNetworkNeverTouchesWallets runs every type on a random network.
// Property: network != regtest => ErrNetworkMismatch && no wallet calls
func TestForeignNetworkNeverTouchesWallets(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	types := Types()
	properties.Property("foreign network is rejected before any I/O", prop.ForAll(
		func(network string, idx int) bool {
			if network == DefaultNetwork {
				return true
			}
			typ := types[idx%len(types)]
			doc := fmt.Sprintf(`{"type":%q,"payload":{"network":%q}}`, typ, network)
			env, err := ParseEnvelope([]byte(doc))
			if err != nil {
				return false
			}
			h := newHarness(start)
			_, err = h.d.Execute(context.Background(), env)
			return errors.Is(err, ErrNetworkMismatch) && len(h.rec.Calls()) == 0
		},
		gen.AlphaString(),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}

// TestCallNeverPrecedesBuffer varies the threshold distance.
// Property: min_block_timestamp = T => send time >= T + buffer
func TestCallNeverPrecedesBuffer(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("call waits for threshold plus buffer", prop.ForAll(
		func(offset int64) bool {
			h := newHarness(start)
			threshold := start.Add(time.Duration(offset) * time.Second)
			doc := fmt.Sprintf(`{"type":"ethereum-call-contract","payload":{"contract_address":"0x00a329c0648769a73afac7f9381e08fb43dbea72","gas_limit":21000,"min_block_timestamp":%d,"network":"regtest"}}`, threshold.Unix())
			env, err := ParseEnvelope([]byte(doc))
			if err != nil {
				return false
			}
			if _, err := h.d.Execute(context.Background(), env); err != nil {
				return false
			}
			return !h.eth.sentAt.Before(threshold.Add(DefaultBlockTimestampBuffer))
		},
		gen.Int64Range(-30, 120),
	))

	properties.TestingRun(t)
}
