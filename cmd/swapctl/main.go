package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/danmuck/swapharness/internal/logging"
	"github.com/rs/zerolog/log"
)

const defaultHarnessPath = "harness.toml"

var errUsage = errors.New(`usage: swapctl <command> [flags]

commands:
  init      write a harness or daemon config template
  validate  load and check a harness config
  peer-id   print an actor's daemon peer id and listen address
  create    send a swap request from one actor to another
  show      print the swap resource an actor sees
  do        run one action on a swap and execute its ledger action
  ledger    execute a ledger action document with an actor's wallets
  fund      send bitcoin from an actor's wallet`)

func main() {
	logging.ConfigureRuntime()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		log.Error().Err(err).Msg("swapctl failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := strings.TrimSpace(args[0]), args[1:]
	switch cmd {
	case "init":
		return runInit(rest, out)
	case "validate":
		return runValidate(rest, out)
	case "peer-id":
		return runPeerID(ctx, rest, out)
	case "create":
		return runCreate(ctx, rest, out)
	case "show":
		return runShow(ctx, rest, out)
	case "do":
		return runDo(ctx, rest, out)
	case "ledger":
		return runLedger(ctx, rest, out)
	case "fund":
		return runFund(ctx, rest, out)
	case "help", "-h", "--help":
		fmt.Fprintln(out, errUsage)
		return nil
	default:
		return fmt.Errorf("%w\n\nunknown command %q", errUsage, cmd)
	}
}
