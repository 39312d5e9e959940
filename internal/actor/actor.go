// Package actor drives one swap participant: it follows the daemon's
// hypermedia actions, fills them from its wallets and executes the ledger
// actions the daemon hands back.
package actor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/danmuck/swapharness/internal/action"
	"github.com/danmuck/swapharness/internal/clock"
	"github.com/danmuck/swapharness/internal/ledger"
	"github.com/danmuck/swapharness/internal/observability"
	"github.com/danmuck/swapharness/internal/poll"
	"github.com/danmuck/swapharness/internal/siren"
	"github.com/multiformats/go-multiaddr"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnexpectedStatus = errors.New("actor: unexpected status")
	ErrMissingLocation  = errors.New("actor: response has no Location")
	ErrNoListenAddress  = errors.New("actor: no listen address configured")
	ErrNoSwap           = errors.New("actor: no swap found")
)

type Config struct {
	Name      string
	DaemonURL *url.URL
	// ListenAddress is the daemon's peer address as other actors dial it.
	ListenAddress   multiaddr.Multiaddr
	DeclineReason   string
	BitcoinFeePerWU int64
	Poll            poll.Policy
	// Network is the only ledger network accepted, regtest if empty.
	Network    string
	HTTPClient *http.Client
	Clock      clock.Clock
}

// Actor is used by one goroutine at a time. Separate actors are independent
// and may run concurrently.
type Actor struct {
	cfg        Config
	client     *http.Client
	poller     *poll.Poller
	resolver   *action.Resolver
	dispatcher *ledger.Dispatcher
}

func New(cfg Config, wallets Wallets) (*Actor, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, errors.New("actor: name is required")
	}
	if cfg.DaemonURL == nil || cfg.DaemonURL.Host == "" {
		return nil, fmt.Errorf("actor %s: daemon url is required", cfg.Name)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Actor{
		cfg:    cfg,
		client: client,
		poller: poll.New(poll.Config{
			BaseURL: cfg.DaemonURL,
			Client:  client,
			Policy:  cfg.Poll,
			Clock:   clk,
			Label:   cfg.Name,
		}),
		resolver: action.NewResolver(addressSource{wallets: wallets}, action.AutofillParams{
			BitcoinFeePerWU: cfg.BitcoinFeePerWU,
			DeclineReason:   cfg.DeclineReason,
		}),
		dispatcher: ledger.NewDispatcher(wallets.ledger(), ledger.Config{
			Network: cfg.Network,
			Clock:   clk,
			Label:   cfg.Name,
		}),
	}, nil
}

func (a *Actor) Name() string { return a.cfg.Name }

func (a *Actor) DaemonURL() *url.URL { return a.cfg.DaemonURL }

// PollUntil fetches location every poll interval until pred holds.
func (a *Actor) PollUntil(ctx context.Context, location string, pred poll.Predicate) (siren.Resource, error) {
	return a.poller.Until(ctx, location, pred)
}

// NextAction polls location until the resource offers name, either as an
// action or as a link, and returns it.
func (a *Actor) NextAction(ctx context.Context, location, name string) (siren.Action, error) {
	res, err := a.PollUntil(ctx, location, func(r siren.Resource) bool {
		_, ok := r.Action(name)
		return ok
	})
	if err != nil {
		return siren.Action{}, fmt.Errorf("actor %s: waiting for %q on %s: %w", a.cfg.Name, name, location, err)
	}
	act, _ := res.Action(name)
	return act, nil
}

// Resolve returns explicit plus every field value the actor's wallets and
// settings can fill in.
func (a *Actor) Resolve(ctx context.Context, act siren.Action, explicit action.Values) (action.Values, error) {
	return a.resolver.Resolve(ctx, act, explicit)
}

// BuildRequest resolves act and renders it without sending anything.
func (a *Actor) BuildRequest(ctx context.Context, act siren.Action, explicit action.Values) (action.Request, error) {
	values, err := a.Resolve(ctx, act, explicit)
	if err != nil {
		return action.Request{}, err
	}
	return action.Build(act, values)
}

// Response is the daemon's answer to an action.
type Response struct {
	Status   int
	Location string
	Body     []byte
	// Ledger is set when the daemon answered with a ledger action.
	Ledger *ledger.Envelope
}

// DoComitAction sends act to the daemon. Any status outside 2xx fails.
func (a *Actor) DoComitAction(ctx context.Context, act siren.Action, explicit action.Values) (Response, error) {
	resp, err := a.doComitAction(ctx, act, explicit)
	observability.RecordComitAction(a.cfg.Name, act.Name, err)
	return resp, err
}

func (a *Actor) doComitAction(ctx context.Context, act siren.Action, explicit action.Values) (Response, error) {
	req, err := a.BuildRequest(ctx, act, explicit)
	if err != nil {
		return Response{}, err
	}
	log.Info().
		Str("actor", a.cfg.Name).
		Str("action", act.Name).
		Str("method", req.Method).
		Str("url", req.URL).
		Msg("executing action")

	httpReq, err := req.HTTPRequest(ctx, a.cfg.DaemonURL)
	if err != nil {
		return Response{}, err
	}
	out, err := a.send(httpReq)
	if err != nil {
		return out, fmt.Errorf("actor %s: action %q: %w", a.cfg.Name, act.Name, err)
	}
	env, err := ledgerEnvelope(out.Body)
	if err != nil {
		return out, fmt.Errorf("actor %s: action %q: %w", a.cfg.Name, act.Name, err)
	}
	out.Ledger = env
	return out, nil
}

func (a *Actor) send(req *http.Request) (Response, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read %s: %w", req.URL, err)
	}
	out := Response{Status: resp.StatusCode, Location: resp.Header.Get("Location"), Body: body}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, fmt.Errorf("%w: %s %s returned %d: %s",
			ErrUnexpectedStatus, req.Method, req.URL, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return out, nil
}

// ledgerEnvelope decodes body as a ledger action when it is a JSON object
// with a type key. A present but unusable type is an error.
func ledgerEnvelope(body []byte) (*ledger.Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ledger.ErrInvalidPayload, err)
	}
	if _, ok := probe["type"]; !ok {
		return nil, nil
	}
	env, err := ledger.ParseEnvelope(trimmed)
	if err != nil {
		return nil, err
	}
	return &env, nil
}

// DoLedgerAction executes a ledger action with the actor's wallets.
func (a *Actor) DoLedgerAction(ctx context.Context, env ledger.Envelope) (ledger.Outcome, error) {
	return a.dispatcher.Execute(ctx, env)
}

// Result is the outcome of Do.
type Result struct {
	Action   siren.Action
	Response Response
	// Outcome is set when the action produced a ledger action.
	Outcome *ledger.Outcome
}

// Do waits for name to be offered on location, performs it and executes the
// ledger action it returns, if any.
func (a *Actor) Do(ctx context.Context, location, name string, explicit action.Values) (Result, error) {
	act, err := a.NextAction(ctx, location, name)
	if err != nil {
		return Result{}, err
	}
	resp, err := a.DoComitAction(ctx, act, explicit)
	result := Result{Action: act, Response: resp}
	if err != nil {
		return result, err
	}
	if resp.Ledger == nil {
		return result, nil
	}
	outcome, err := a.DoLedgerAction(ctx, *resp.Ledger)
	result.Outcome = &outcome
	if err != nil {
		return result, fmt.Errorf("actor %s: action %q: %w", a.cfg.Name, name, err)
	}
	return result, nil
}

// CreateSwap posts a swap request and returns the new swap's location.
func (a *Actor) CreateSwap(ctx context.Context, request any) (string, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("actor %s: encode swap request: %w", a.cfg.Name, err)
	}
	req := action.Request{
		Method:      http.MethodPost,
		URL:         "/swaps/rfc003",
		ContentType: siren.MediaTypeJSON,
		Body:        body,
	}
	httpReq, err := req.HTTPRequest(ctx, a.cfg.DaemonURL)
	if err != nil {
		return "", err
	}
	resp, err := a.send(httpReq)
	if err != nil {
		return "", fmt.Errorf("actor %s: create swap: %w", a.cfg.Name, err)
	}
	if resp.Status != http.StatusCreated {
		return "", fmt.Errorf("%w: create swap returned %d, expected 201", ErrUnexpectedStatus, resp.Status)
	}
	if resp.Location == "" {
		return "", ErrMissingLocation
	}
	log.Info().Str("actor", a.cfg.Name).Str("location", resp.Location).Msg("swap created")
	return resp.Location, nil
}

// PeerID returns the id the daemon announces on its root resource.
func (a *Actor) PeerID(ctx context.Context) (string, error) {
	res, err := a.poller.Fetch(ctx, "/")
	if err != nil {
		return "", fmt.Errorf("actor %s: peer id: %w", a.cfg.Name, err)
	}
	id := res.String("id")
	if id == "" {
		return "", fmt.Errorf("actor %s: daemon root has no id", a.cfg.Name)
	}
	return id, nil
}

// SwapHref polls the swap list until one swap exists and returns its self link.
func (a *Actor) SwapHref(ctx context.Context) (string, error) {
	var href string
	_, err := a.PollUntil(ctx, "/swaps", func(r siren.Resource) bool {
		swaps, err := r.EmbeddedList("swaps")
		if err != nil || len(swaps) == 0 {
			return false
		}
		self, ok := swaps[0].Link("self")
		href = self.Href
		return ok
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoSwap, err)
	}
	return href, nil
}

func (a *Actor) ListenAddress() (multiaddr.Multiaddr, error) {
	if a.cfg.ListenAddress == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoListenAddress, a.cfg.Name)
	}
	return a.cfg.ListenAddress, nil
}
