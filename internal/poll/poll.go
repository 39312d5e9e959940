// Package poll repeatedly fetches a daemon resource until a predicate holds.
package poll

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danmuck/swapharness/internal/clock"
	"github.com/danmuck/swapharness/internal/observability"
	"github.com/danmuck/swapharness/internal/siren"
	"github.com/rs/zerolog/log"
)

const DefaultInterval = 500 * time.Millisecond

var (
	// ErrUnexpectedStatus is fatal: a non-200 answer is never "not ready yet".
	ErrUnexpectedStatus = errors.New("poll: unexpected status")
	ErrExhausted        = errors.New("poll: attempts exhausted")
)

// Policy is the retry policy applied when the predicate is false.
type Policy struct {
	Interval time.Duration
	// MaxAttempts bounds the number of fetches. Zero means unbounded; the
	// caller's context (usually the test timeout) ends the poll instead.
	MaxAttempts int
}

func DefaultPolicy() Policy {
	return Policy{Interval: DefaultInterval}
}

// Predicate inspects a fetched resource.
type Predicate func(siren.Resource) bool

type Config struct {
	BaseURL *url.URL
	Client  *http.Client
	Policy  Policy
	Clock   clock.Clock
	// Label tags logs and metrics, usually the actor name.
	Label string
}

// Poller holds no per-poll state and may be shared.
type Poller struct {
	base   *url.URL
	client *http.Client
	policy Policy
	clock  clock.Clock
	label  string
}

func New(cfg Config) *Poller {
	p := &Poller{
		base:   cfg.BaseURL,
		client: cfg.Client,
		policy: cfg.Policy,
		clock:  cfg.Clock,
		label:  cfg.Label,
	}
	if p.client == nil {
		p.client = http.DefaultClient
	}
	if p.clock == nil {
		p.clock = clock.Real()
	}
	if p.policy.Interval <= 0 {
		p.policy.Interval = DefaultInterval
	}
	return p
}

func (p *Poller) Policy() Policy { return p.policy }

// Until fetches location until pred returns true and returns that resource.
func (p *Poller) Until(ctx context.Context, location string, pred Predicate) (siren.Resource, error) {
	for attempt := 1; ; attempt++ {
		res, err := p.Fetch(ctx, location)
		if err != nil {
			return siren.Resource{}, err
		}
		ok := pred(res)
		observability.RecordPollFetch(p.label, ok)
		if ok {
			return res, nil
		}
		if p.policy.MaxAttempts > 0 && attempt >= p.policy.MaxAttempts {
			return siren.Resource{}, fmt.Errorf("%w: %s after %d fetches", ErrExhausted, location, attempt)
		}
		log.Debug().
			Str("actor", p.label).
			Str("location", location).
			Int("attempt", attempt).
			Dur("interval", p.policy.Interval).
			Msg("poll: predicate not satisfied")
		if err := p.clock.Sleep(ctx, p.policy.Interval); err != nil {
			return siren.Resource{}, fmt.Errorf("poll: %s: %w", location, err)
		}
	}
}

// Fetch performs a single GET and decodes the body. Anything but 200 fails.
func (p *Poller) Fetch(ctx context.Context, location string) (siren.Resource, error) {
	target, err := p.resolve(location)
	if err != nil {
		return siren.Resource{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return siren.Resource{}, fmt.Errorf("poll: build request %s: %w", target, err)
	}
	req.Header.Set("Accept", siren.MediaTypeJSON)
	resp, err := p.client.Do(req)
	if err != nil {
		return siren.Resource{}, fmt.Errorf("poll: GET %s: %w", target, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return siren.Resource{}, fmt.Errorf("poll: read %s: %w", target, err)
	}
	if resp.StatusCode != http.StatusOK {
		return siren.Resource{}, fmt.Errorf("%w: GET %s returned %d: %s",
			ErrUnexpectedStatus, target, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return siren.Decode(body)
}

func (p *Poller) resolve(location string) (string, error) {
	target, err := siren.ResolveHref(p.base, location)
	if err != nil {
		return "", fmt.Errorf("poll: parse location %q: %w", location, err)
	}
	return target.String(), nil
}
