package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/multiformats/go-multiaddr"
)

const (
	DefaultNetwork         = "regtest"
	DefaultBitcoinFeePerWU = int64(20)
	DefaultPollInterval    = 500 * time.Millisecond
)

// Harness is the runtime view of harness.toml.
type Harness struct {
	Network  string
	Bitcoin  BitcoinRPC
	Ethereum EthereumRPC
	Actors   map[string]Actor
}

type BitcoinRPC struct {
	Host     string
	User     string
	Password string
}

// WalletHost selects a named bitcoind wallet on Host.
func (b BitcoinRPC) WalletHost(wallet string) string {
	if wallet == "" {
		return b.Host
	}
	return strings.TrimSuffix(b.Host, "/") + "/wallet/" + url.PathEscape(wallet)
}

type EthereumRPC struct {
	URL string
}

type Actor struct {
	Name string
	Host string
	// DaemonConfigPath is resolved against the harness file's directory.
	DaemonConfigPath   string
	HTTPAPIURL         string
	BitcoinWallet      string
	EthereumPrivateKey string
	DeclineReason      string
	BitcoinFeePerWU    int64
	PollInterval       time.Duration
	// PollMaxAttempts of zero polls until the caller's context ends.
	PollMaxAttempts int
	Lightning       Lightning
}

type Lightning struct {
	Host         string
	TLSCertPath  string
	MacaroonPath string
}

// Enabled reports whether an lnd node is configured.
func (l Lightning) Enabled() bool { return strings.TrimSpace(l.Host) != "" }

func DefaultHarness() Harness {
	return Harness{
		Network:  DefaultNetwork,
		Bitcoin:  BitcoinRPC{Host: "127.0.0.1:18443"},
		Ethereum: EthereumRPC{URL: "http://127.0.0.1:8545"},
		Actors:   map[string]Actor{},
	}
}

func DefaultActor(name string) Actor {
	return Actor{
		Name:            name,
		Host:            "127.0.0.1",
		BitcoinFeePerWU: DefaultBitcoinFeePerWU,
		PollInterval:    DefaultPollInterval,
	}
}

// harness.toml key mapping.
type harnessFile struct {
	Network  string               `toml:"network"`
	Bitcoin  bitcoinFile          `toml:"bitcoin"`
	Ethereum ethereumFile         `toml:"ethereum"`
	Actors   map[string]actorFile `toml:"actors"`
}

type bitcoinFile struct {
	RPCHost     string `toml:"rpc_host"`
	RPCUser     string `toml:"rpc_user"`
	RPCPassword string `toml:"rpc_password"`
}

type ethereumFile struct {
	RPCURL string `toml:"rpc_url"`
}

type actorFile struct {
	Host               string        `toml:"host"`
	ConfigFile         string        `toml:"config_file"`
	HTTPAPIURL         string        `toml:"http_api_url"`
	BitcoinWallet      string        `toml:"bitcoin_wallet"`
	EthereumPrivateKey string        `toml:"ethereum_private_key"`
	DeclineReason      string        `toml:"decline_reason"`
	BitcoinFeePerWU    int64         `toml:"bitcoin_fee_per_wu"`
	PollInterval       string        `toml:"poll_interval"`
	PollMaxAttempts    int           `toml:"poll_max_attempts"`
	Lightning          lightningFile `toml:"lightning"`
}

type lightningFile struct {
	Host         string `toml:"host"`
	TLSCertPath  string `toml:"tls_cert_path"`
	MacaroonPath string `toml:"macaroon_path"`
}

// LoadHarness decodes path and overlays every defined key on the defaults.
func LoadHarness(path string) (Harness, error) {
	cfg := DefaultHarness()

	var raw harnessFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Harness{}, fmt.Errorf("load harness config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Harness{}, fmt.Errorf("load harness config: unknown key %s", undecoded[0])
	}

	if meta.IsDefined("network") {
		cfg.Network = strings.TrimSpace(raw.Network)
	}
	if meta.IsDefined("bitcoin", "rpc_host") {
		cfg.Bitcoin.Host = strings.TrimSpace(raw.Bitcoin.RPCHost)
	}
	if meta.IsDefined("bitcoin", "rpc_user") {
		cfg.Bitcoin.User = raw.Bitcoin.RPCUser
	}
	if meta.IsDefined("bitcoin", "rpc_password") {
		cfg.Bitcoin.Password = raw.Bitcoin.RPCPassword
	}
	if meta.IsDefined("ethereum", "rpc_url") {
		cfg.Ethereum.URL = strings.TrimSpace(raw.Ethereum.RPCURL)
	}

	base := filepath.Dir(path)
	for name, rawActor := range raw.Actors {
		actor, err := overlayActor(meta, base, name, rawActor)
		if err != nil {
			return Harness{}, fmt.Errorf("load harness config: %w", err)
		}
		cfg.Actors[name] = actor
	}

	if err := ValidateHarness(cfg); err != nil {
		return Harness{}, fmt.Errorf("load harness config: %w", err)
	}
	return cfg, nil
}

func overlayActor(meta toml.MetaData, base, name string, raw actorFile) (Actor, error) {
	actor := DefaultActor(name)
	defined := func(key ...string) bool {
		return meta.IsDefined(append([]string{"actors", name}, key...)...)
	}

	if defined("host") {
		actor.Host = strings.TrimSpace(raw.Host)
	}
	if defined("config_file") {
		actor.DaemonConfigPath = strings.TrimSpace(raw.ConfigFile)
		if actor.DaemonConfigPath != "" && !filepath.IsAbs(actor.DaemonConfigPath) {
			actor.DaemonConfigPath = filepath.Join(base, actor.DaemonConfigPath)
		}
	}
	if defined("http_api_url") {
		actor.HTTPAPIURL = strings.TrimSpace(raw.HTTPAPIURL)
	}
	if defined("bitcoin_wallet") {
		actor.BitcoinWallet = strings.TrimSpace(raw.BitcoinWallet)
	}
	if defined("ethereum_private_key") {
		actor.EthereumPrivateKey = strings.TrimSpace(raw.EthereumPrivateKey)
	}
	if defined("decline_reason") {
		actor.DeclineReason = raw.DeclineReason
	}
	if defined("bitcoin_fee_per_wu") {
		actor.BitcoinFeePerWU = raw.BitcoinFeePerWU
	}
	if defined("poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PollInterval))
		if err != nil {
			return Actor{}, fmt.Errorf("actor %s: poll_interval: %w", name, err)
		}
		actor.PollInterval = d
	}
	if defined("poll_max_attempts") {
		actor.PollMaxAttempts = raw.PollMaxAttempts
	}
	if defined("lightning", "host") {
		actor.Lightning.Host = strings.TrimSpace(raw.Lightning.Host)
	}
	if defined("lightning", "tls_cert_path") {
		actor.Lightning.TLSCertPath = strings.TrimSpace(raw.Lightning.TLSCertPath)
	}
	if defined("lightning", "macaroon_path") {
		actor.Lightning.MacaroonPath = strings.TrimSpace(raw.Lightning.MacaroonPath)
	}
	return actor, nil
}

func ValidateHarness(cfg Harness) error {
	if cfg.Network == "" {
		return fmt.Errorf("network is required")
	}
	for _, name := range cfg.ActorNames() {
		if err := ValidateActor(cfg.Actors[name]); err != nil {
			return fmt.Errorf("actor %s invalid: %w", name, err)
		}
	}
	return nil
}

func ValidateActor(a Actor) error {
	if strings.TrimSpace(a.Host) == "" {
		return fmt.Errorf("host is required")
	}
	if a.DaemonConfigPath == "" && a.HTTPAPIURL == "" {
		return fmt.Errorf("config_file or http_api_url is required")
	}
	if a.HTTPAPIURL != "" {
		u, err := url.Parse(a.HTTPAPIURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("http_api_url %q is not an absolute URL", a.HTTPAPIURL)
		}
	}
	if a.BitcoinFeePerWU <= 0 {
		return fmt.Errorf("bitcoin_fee_per_wu must be positive")
	}
	if a.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if a.PollMaxAttempts < 0 {
		return fmt.Errorf("poll_max_attempts must not be negative")
	}
	if a.Lightning.Enabled() && (a.Lightning.TLSCertPath == "" || a.Lightning.MacaroonPath == "") {
		return fmt.Errorf("lightning requires tls_cert_path and macaroon_path")
	}
	return nil
}

// ActorNames lists configured actors in a stable order.
func (h Harness) ActorNames() []string {
	names := make([]string, 0, len(h.Actors))
	for name := range h.Actors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h Harness) Actor(name string) (Actor, error) {
	a, ok := h.Actors[name]
	if !ok {
		return Actor{}, fmt.Errorf("unknown actor %q (configured: %s)", name, strings.Join(h.ActorNames(), ", "))
	}
	return a, nil
}

// DaemonURL is http_api_url when set, otherwise derived from the daemon config.
func (a Actor) DaemonURL() (*url.URL, error) {
	if a.HTTPAPIURL != "" {
		return url.Parse(a.HTTPAPIURL)
	}
	daemon, err := LoadDaemonConfig(a.DaemonConfigPath)
	if err != nil {
		return nil, err
	}
	return daemon.HTTPAPIURL(a.Host)
}

// ListenAddress is the daemon's peer address as dialable from other actors.
func (a Actor) ListenAddress() (multiaddr.Multiaddr, error) {
	if a.DaemonConfigPath == "" {
		return nil, fmt.Errorf("actor %s has no config_file", a.Name)
	}
	daemon, err := LoadDaemonConfig(a.DaemonConfigPath)
	if err != nil {
		return nil, err
	}
	return daemon.ListenAddress(a.Host)
}
