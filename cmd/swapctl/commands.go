package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/swapharness/internal/action"
	"github.com/danmuck/swapharness/internal/config"
	"github.com/danmuck/swapharness/internal/fakecnd"
	"github.com/danmuck/swapharness/internal/ledger"
	"github.com/danmuck/swapharness/internal/siren"
	"github.com/shopspring/decimal"
)

// common flags shared by commands that talk to an actor's daemon.
type actorFlags struct {
	config  string
	actor   string
	timeout time.Duration
}

func (f *actorFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.config, "config", defaultHarnessPath, "harness config path")
	fs.StringVar(&f.actor, "actor", "alice", "actor name from the harness config")
	fs.DurationVar(&f.timeout, "timeout", 5*time.Minute, "give up after this long")
}

func (f *actorFlags) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.timeout)
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func runInit(args []string, out io.Writer) error {
	fs := newFlagSet("init", out)
	kind := fs.String("kind", "harness", "config kind: harness|daemon")
	output := fs.String("output", "", "output path (defaults to harness.toml or daemon.toml)")
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	target := *output
	if target == "" {
		target = strings.ToLower(strings.TrimSpace(*kind)) + ".toml"
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s config template to %s\n", *kind, target)
	return nil
}

func runValidate(args []string, out io.Writer) error {
	fs := newFlagSet("validate", out)
	path := fs.String("config", defaultHarnessPath, "harness config path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	h, err := config.LoadHarness(*path)
	if err != nil {
		return err
	}
	for _, name := range h.ActorNames() {
		a := h.Actors[name]
		u, err := a.DaemonURL()
		if err != nil {
			return fmt.Errorf("actor %s: %w", name, err)
		}
		fmt.Fprintf(out, "%s\t%s\n", name, u)
	}
	fmt.Fprintf(out, "validated %d actors on %s\n", len(h.Actors), h.Network)
	return nil
}

func runPeerID(ctx context.Context, args []string, out io.Writer) error {
	var f actorFlags
	fs := newFlagSet("peer-id", out)
	f.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx, cancel := f.context(ctx)
	defer cancel()
	s, err := openSession(ctx, f, walletsNone)
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := s.actor.PeerID(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "id\t%s\n", id)
	if addr, err := s.actor.ListenAddress(); err == nil {
		fmt.Fprintf(out, "listen\t%s\n", addr)
	}
	return nil
}

func runCreate(ctx context.Context, args []string, out io.Writer) error {
	var f actorFlags
	fs := newFlagSet("create", out)
	f.register(fs)
	peer := fs.String("peer", "", "peer id of the counterparty daemon")
	alpha := fs.String("alpha", "100000000", "alpha quantity in satoshi")
	beta := fs.String("beta", "10000000000000000000", "beta quantity in wei")
	redeem := fs.String("beta-redeem-identity", "", "ethereum address receiving the beta asset")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *peer == "" {
		return fmt.Errorf("create: -peer is required")
	}
	ctx, cancel := f.context(ctx)
	defer cancel()
	s, err := openSession(ctx, f, walletsAll)
	if err != nil {
		return err
	}
	defer s.Close()

	identity := *redeem
	if identity == "" && s.ethereum != nil {
		identity = s.ethereum.Address().Hex()
	}
	location, err := s.actor.CreateSwap(ctx, fakecnd.SwapRequest{
		Peer:                     *peer,
		AlphaAsset:               fakecnd.Asset{Name: "bitcoin", Quantity: *alpha},
		BetaAsset:                fakecnd.Asset{Name: "ether", Quantity: *beta},
		BetaLedgerRedeemIdentity: identity,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, location)
	return nil
}

func runShow(ctx context.Context, args []string, out io.Writer) error {
	var f actorFlags
	fs := newFlagSet("show", out)
	f.register(fs)
	swap := fs.String("swap", "", "swap location (defaults to the first swap)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx, cancel := f.context(ctx)
	defer cancel()
	s, err := openSession(ctx, f, walletsNone)
	if err != nil {
		return err
	}
	defer s.Close()

	location, err := s.location(ctx, *swap)
	if err != nil {
		return err
	}
	res, err := s.actor.PollUntil(ctx, location, func(_ siren.Resource) bool { return true })
	if err != nil {
		return err
	}
	return writeJSON(out, json.RawMessage(res.Raw))
}

func runDo(ctx context.Context, args []string, out io.Writer) error {
	var f actorFlags
	fs := newFlagSet("do", out)
	f.register(fs)
	swap := fs.String("swap", "", "swap location (defaults to the first swap)")
	name := fs.String("action", "", "action name, e.g. accept, fund, redeem")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("do: -action is required")
	}
	explicit, err := parseValues(fs.Args())
	if err != nil {
		return err
	}
	ctx, cancel := f.context(ctx)
	defer cancel()
	s, err := openSession(ctx, f, walletsAll)
	if err != nil {
		return err
	}
	defer s.Close()

	location, err := s.location(ctx, *swap)
	if err != nil {
		return err
	}
	result, err := s.actor.Do(ctx, location, *name, explicit)
	if err != nil {
		return err
	}
	report := struct {
		Action  string          `json:"action"`
		Status  int             `json:"status"`
		Ledger  *ledger.Outcome `json:"ledger,omitempty"`
		Created string          `json:"location,omitempty"`
	}{Action: result.Action.Name, Status: result.Response.Status, Ledger: result.Outcome, Created: result.Response.Location}
	return writeJSON(out, report)
}

func runLedger(ctx context.Context, args []string, out io.Writer) error {
	var f actorFlags
	fs := newFlagSet("ledger", out)
	f.register(fs)
	file := fs.String("file", "", "ledger action JSON document, - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	body, err := readDocument(*file)
	if err != nil {
		return err
	}
	env, err := ledger.ParseEnvelope(body)
	if err != nil {
		return err
	}
	ctx, cancel := f.context(ctx)
	defer cancel()
	s, err := openSession(ctx, f, walletsAll)
	if err != nil {
		return err
	}
	defer s.Close()

	outcome, err := s.actor.DoLedgerAction(ctx, env)
	if err != nil {
		return err
	}
	return writeJSON(out, outcome)
}

func runFund(ctx context.Context, args []string, out io.Writer) error {
	var f actorFlags
	fs := newFlagSet("fund", out)
	f.register(fs)
	to := fs.String("to", "", "bitcoin address to pay")
	amount := fs.String("btc", "1", "amount in BTC")
	generate := fs.Int64("generate", 0, "blocks to mine after paying")
	if err := fs.Parse(args); err != nil {
		return err
	}
	btc, err := decimal.NewFromString(*amount)
	if err != nil {
		return fmt.Errorf("fund: -btc %q: %w", *amount, err)
	}
	ctx, cancel := f.context(ctx)
	defer cancel()
	s, err := openSession(ctx, f, walletsBitcoin)
	if err != nil {
		return err
	}
	defer s.Close()

	target := *to
	if target == "" {
		if target, err = s.bitcoin.NewAddress(ctx); err != nil {
			return err
		}
	}
	txid, err := s.bitcoin.Fund(ctx, target, btc)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\t%s\t%s BTC\n", txid, target, btc)
	if *generate > 0 {
		hashes, err := s.bitcoin.Generate(ctx, *generate)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "mined %d blocks\n", len(hashes))
	}
	return nil
}

// parseValues reads key=value arguments into explicit action values.
func parseValues(args []string) (action.Values, error) {
	if len(args) == 0 {
		return nil, nil
	}
	values := make(action.Values, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		values[key] = value
	}
	return values, nil
}

func readDocument(path string) ([]byte, error) {
	switch path {
	case "":
		return nil, fmt.Errorf("ledger: -file is required")
	case "-":
		return io.ReadAll(os.Stdin)
	default:
		return os.ReadFile(filepath.Clean(path))
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
