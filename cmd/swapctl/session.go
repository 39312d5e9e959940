package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/danmuck/swapharness/internal/actor"
	"github.com/danmuck/swapharness/internal/config"
	"github.com/danmuck/swapharness/internal/poll"
	"github.com/danmuck/swapharness/internal/wallet/bitcoin"
	"github.com/danmuck/swapharness/internal/wallet/ethereum"
	"github.com/danmuck/swapharness/internal/wallet/lightning"
	"github.com/rs/zerolog/log"
)

type walletSet int

const (
	walletsNone walletSet = iota
	walletsBitcoin
	walletsAll
)

// session is one actor with the wallets a command asked for.
type session struct {
	actor     *actor.Actor
	bitcoin   *bitcoin.Wallet
	ethereum  *ethereum.Wallet
	lightning *lightning.Wallet
}

func openSession(ctx context.Context, f actorFlags, set walletSet) (*session, error) {
	h, err := config.LoadHarness(f.config)
	if err != nil {
		return nil, err
	}
	cfg, err := h.Actor(f.actor)
	if err != nil {
		return nil, err
	}
	s := &session{}
	wallets, err := s.dial(ctx, h, cfg, set)
	if err != nil {
		s.Close()
		return nil, err
	}
	actorCfg, err := actorConfig(h, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	if s.actor, err = actor.New(actorCfg, wallets); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func actorConfig(h config.Harness, cfg config.Actor) (actor.Config, error) {
	daemonURL, err := cfg.DaemonURL()
	if err != nil {
		return actor.Config{}, fmt.Errorf("actor %s: daemon url: %w", cfg.Name, err)
	}
	out := actor.Config{
		Name:            cfg.Name,
		DaemonURL:       daemonURL,
		DeclineReason:   cfg.DeclineReason,
		BitcoinFeePerWU: cfg.BitcoinFeePerWU,
		Poll:            poll.Policy{Interval: cfg.PollInterval, MaxAttempts: cfg.PollMaxAttempts},
		Network:         h.Network,
	}
	if cfg.DaemonConfigPath != "" {
		addr, err := cfg.ListenAddress()
		if err != nil {
			log.Warn().Err(err).Str("actor", cfg.Name).Msg("daemon listen address unavailable")
		} else {
			out.ListenAddress = addr
		}
	}
	return out, nil
}

// dial connects the wallets in set. Only wallets that were configured and
// dialed are placed in the returned set.
func (s *session) dial(ctx context.Context, h config.Harness, cfg config.Actor, set walletSet) (actor.Wallets, error) {
	var wallets actor.Wallets
	if set == walletsNone {
		return wallets, nil
	}

	params, err := chainParams(h.Network)
	if err != nil {
		return wallets, err
	}
	btc, err := bitcoin.New(bitcoin.Config{
		Host:     h.Bitcoin.WalletHost(cfg.BitcoinWallet),
		User:     h.Bitcoin.User,
		Password: h.Bitcoin.Password,
		Params:   params,
	})
	if err != nil {
		return wallets, fmt.Errorf("actor %s: bitcoin wallet: %w", cfg.Name, err)
	}
	s.bitcoin = btc
	wallets.Bitcoin = btc
	wallets.BitcoinNode = btc
	if set == walletsBitcoin {
		return wallets, nil
	}

	if cfg.EthereumPrivateKey != "" {
		eth, err := ethereum.Dial(ctx, h.Ethereum.URL, cfg.EthereumPrivateKey)
		if err != nil {
			return wallets, fmt.Errorf("actor %s: ethereum wallet: %w", cfg.Name, err)
		}
		s.ethereum = eth
		wallets.Ethereum = eth
	}
	if cfg.Lightning.Enabled() {
		ln, err := lightning.Dial(lightning.Config{
			Host:         cfg.Lightning.Host,
			TLSCertPath:  cfg.Lightning.TLSCertPath,
			MacaroonPath: cfg.Lightning.MacaroonPath,
		})
		if err != nil {
			return wallets, fmt.Errorf("actor %s: lightning wallet: %w", cfg.Name, err)
		}
		s.lightning = ln
		wallets.Lightning = ln
	}
	return wallets, nil
}

// location returns swap, or the first swap the actor's daemon lists.
func (s *session) location(ctx context.Context, swap string) (string, error) {
	if strings.TrimSpace(swap) != "" {
		return swap, nil
	}
	return s.actor.SwapHref(ctx)
}

func (s *session) Close() {
	if s.bitcoin != nil {
		s.bitcoin.Close()
	}
	if s.lightning != nil {
		if err := s.lightning.Close(); err != nil {
			log.Debug().Err(err).Msg("close lightning wallet")
		}
	}
}

func chainParams(network string) (*chaincfg.Params, error) {
	switch strings.ToLower(strings.TrimSpace(network)) {
	case "regtest", "":
		return &chaincfg.RegressionNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	default:
		return nil, fmt.Errorf("unknown bitcoin network %q", network)
	}
}
