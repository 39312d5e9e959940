package clock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFakeSleepAdvancesAndRecords(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	f := NewFake(start)
	var seen []time.Time
	f.OnSleep = func(now time.Time) { seen = append(seen, now) }

	if err := f.Sleep(context.Background(), time.Second); err != nil {
		t.Fatalf("sleep: %v", err)
	}
	f.Advance(500 * time.Millisecond)
	if err := f.Sleep(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("sleep: %v", err)
	}

	if got := f.Now().Sub(start); got != 3500*time.Millisecond {
		t.Fatalf("unexpected elapsed: %v", got)
	}
	if s := f.Sleeps(); len(s) != 2 || s[0] != time.Second || s[1] != 2*time.Second {
		t.Fatalf("unexpected sleeps: %v", s)
	}
	if len(seen) != 2 || !seen[1].Equal(start.Add(3500*time.Millisecond)) {
		t.Fatalf("unexpected hook calls: %v", seen)
	}
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Real().Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if err := NewFake(time.Now()).Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}
