package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/swapharness/internal/observability"
	"github.com/rs/zerolog/log"
)

// waitForMedianTime blocks until the chain's median time reaches threshold.
// There is no upper bound; ctx is the only way out.
func (d *Dispatcher) waitForMedianTime(ctx context.Context, threshold time.Time) error {
	current, err := d.wallets.BitcoinNode.MedianTime(ctx)
	if err != nil {
		return fmt.Errorf("ledger: fetch median time: %w", err)
	}
	if !current.Before(threshold) {
		return nil
	}

	start := d.clock.Now()
	log.Info().
		Str("actor", d.label).
		Int64("required", threshold.Unix()).
		Int64("current", current.Unix()).
		Msg("waiting for median time to pass")
	for current.Before(threshold) {
		if err := d.clock.Sleep(ctx, d.every); err != nil {
			return fmt.Errorf("ledger: waiting for median time %d: %w", threshold.Unix(), err)
		}
		current, err = d.wallets.BitcoinNode.MedianTime(ctx)
		if err != nil {
			return fmt.Errorf("ledger: fetch median time: %w", err)
		}
		log.Info().
			Str("actor", d.label).
			Int64("required", threshold.Unix()).
			Int64("current", current.Unix()).
			Msg("current median time")
	}
	observability.RecordLedgerWait(d.label, "median_time", d.clock.Now().Sub(start))
	return nil
}

// waitForTimestamp blocks until the wall clock passes threshold plus the
// block timestamp buffer.
func (d *Dispatcher) waitForTimestamp(ctx context.Context, threshold time.Time) error {
	target := threshold.Add(d.buffer)
	now := d.clock.Now()
	if !now.Before(target) {
		return nil
	}

	start := now
	log.Info().
		Str("actor", d.label).
		Int64("min_block_timestamp", threshold.Unix()).
		Dur("delay", target.Sub(now)).
		Msg("waiting before action can be executed")
	for now.Before(target) {
		if err := d.clock.Sleep(ctx, d.every); err != nil {
			return fmt.Errorf("ledger: waiting for timestamp %d: %w", threshold.Unix(), err)
		}
		now = d.clock.Now()
		log.Debug().
			Str("actor", d.label).
			Dur("remaining", target.Sub(now)).
			Msg("block timestamp wait")
	}
	observability.RecordLedgerWait(d.label, "block_timestamp", now.Sub(start))
	return nil
}
