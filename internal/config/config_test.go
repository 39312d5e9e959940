package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDaemonConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "alice.toml", daemonTemplate)

	cfg, err := LoadDaemonConfig(path)
	if err != nil {
		t.Fatalf("load daemon config: %v", err)
	}
	u, err := cfg.HTTPAPIURL("127.0.0.1")
	if err != nil {
		t.Fatalf("http api url: %v", err)
	}
	if u.String() != "http://127.0.0.1:8000" {
		t.Fatalf("unexpected url: %s", u)
	}
	if len(cfg.HTTPAPI.Cors.AllowedOrigins) != 1 {
		t.Fatalf("unexpected cors origins: %v", cfg.HTTPAPI.Cors.AllowedOrigins)
	}
}

func TestDaemonListenAddressReplacesUnspecified(t *testing.T) {
	cases := []struct {
		listen string
		host   string
		want   string
	}{
		{"/ip4/0.0.0.0/tcp/9939", "127.0.0.1", "/ip4/127.0.0.1/tcp/9939"},
		{"/ip4/0.0.0.0/tcp/9939", "bob.local", "/dns/bob.local/tcp/9939"},
		{"/ip6/::/tcp/9939", "::1", "/ip6/::1/tcp/9939"},
		{"/ip4/10.0.0.5/tcp/9939", "127.0.0.1", "/ip4/10.0.0.5/tcp/9939"},
	}
	for _, tc := range cases {
		cfg := DaemonConfig{Network: DaemonNetwork{Listen: []string{tc.listen}}}
		got, err := cfg.ListenAddress(tc.host)
		if err != nil {
			t.Fatalf("%s: %v", tc.listen, err)
		}
		if got.String() != tc.want {
			t.Fatalf("%s via %s: got %s want %s", tc.listen, tc.host, got, tc.want)
		}
	}
}

func TestDaemonConfigValidation(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.toml", "[http_api]\nport = 0\n")
	if _, err := LoadDaemonConfig(bad); err == nil {
		t.Fatalf("expected port validation error")
	}
	badListen := writeFile(t, dir, "listen.toml", "[http_api]\nport = 1\n[network]\nlisten = [\"not-a-multiaddr\"]\n")
	if _, err := LoadDaemonConfig(badListen); err == nil {
		t.Fatalf("expected listen validation error")
	}
	if _, err := LoadDaemonConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestLoadHarnessTemplate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "alice.toml", daemonTemplate)
	path := writeFile(t, dir, "harness.toml", harnessTemplate)

	cfg, err := LoadHarness(path)
	if err != nil {
		t.Fatalf("load harness: %v", err)
	}
	if cfg.Network != "regtest" || cfg.Bitcoin.User != "bitcoin" {
		t.Fatalf("unexpected harness: %+v", cfg)
	}
	if names := cfg.ActorNames(); strings.Join(names, ",") != "alice,bob" {
		t.Fatalf("unexpected actors: %v", names)
	}

	alice, err := cfg.Actor("alice")
	if err != nil {
		t.Fatalf("alice: %v", err)
	}
	if alice.DaemonConfigPath != filepath.Join(dir, "alice.toml") {
		t.Fatalf("config_file not resolved against harness dir: %s", alice.DaemonConfigPath)
	}
	u, err := alice.DaemonURL()
	if err != nil || u.String() != "http://127.0.0.1:8000" {
		t.Fatalf("unexpected alice url %v: %v", u, err)
	}
	addr, err := alice.ListenAddress()
	if err != nil || addr.String() != "/ip4/127.0.0.1/tcp/9939" {
		t.Fatalf("unexpected alice listen address %v: %v", addr, err)
	}

	bob, _ := cfg.Actor("bob")
	if bob.DeclineReason != "BadRate" || bob.BitcoinFeePerWU != DefaultBitcoinFeePerWU || bob.PollInterval != DefaultPollInterval {
		t.Fatalf("bob defaults not applied: %+v", bob)
	}
	if u, err := bob.DaemonURL(); err != nil || u.Host != "127.0.0.1:8010" {
		t.Fatalf("unexpected bob url %v: %v", u, err)
	}
	if _, err := bob.ListenAddress(); err == nil {
		t.Fatalf("expected bob without config_file to have no listen address")
	}
	if _, err := cfg.Actor("carol"); err == nil {
		t.Fatalf("expected unknown actor error")
	}
}

func TestLoadHarnessOverlaysDefinedKeysOnly(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "harness.toml", `
[actors.alice]
http_api_url = "http://localhost:8000"
poll_interval = "250ms"
poll_max_attempts = 40

[actors.alice.lightning]
host = "127.0.0.1:10009"
tls_cert_path = "/tmp/tls.cert"
macaroon_path = "/tmp/admin.macaroon"
`)
	cfg, err := LoadHarness(path)
	if err != nil {
		t.Fatalf("load harness: %v", err)
	}
	if cfg.Network != DefaultNetwork || cfg.Bitcoin.Host != "127.0.0.1:18443" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	alice := cfg.Actors["alice"]
	if alice.Host != "127.0.0.1" || alice.PollInterval != 250*time.Millisecond || alice.PollMaxAttempts != 40 {
		t.Fatalf("unexpected alice: %+v", alice)
	}
	if !alice.Lightning.Enabled() || alice.Lightning.MacaroonPath != "/tmp/admin.macaroon" {
		t.Fatalf("unexpected lightning: %+v", alice.Lightning)
	}
}

func TestLoadHarnessRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown key":   "netwrk = \"regtest\"\n",
		"no endpoint":   "[actors.alice]\nhost = \"127.0.0.1\"\n",
		"bad duration":  "[actors.alice]\nhttp_api_url = \"http://x:1\"\npoll_interval = \"soon\"\n",
		"zero fee":      "[actors.alice]\nhttp_api_url = \"http://x:1\"\nbitcoin_fee_per_wu = 0\n",
		"relative url":  "[actors.alice]\nhttp_api_url = \"localhost\"\n",
		"lnd no creds":  "[actors.alice]\nhttp_api_url = \"http://x:1\"\n[actors.alice.lightning]\nhost = \"127.0.0.1:10009\"\n",
		"empty network": "network = \"\"\n",
	}
	for name, body := range cases {
		dir := t.TempDir()
		path := writeFile(t, dir, "harness.toml", body)
		if _, err := LoadHarness(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestBitcoinWalletHost(t *testing.T) {
	rpc := BitcoinRPC{Host: "127.0.0.1:18443"}
	if got := rpc.WalletHost("alice"); got != "127.0.0.1:18443/wallet/alice" {
		t.Fatalf("unexpected wallet host: %s", got)
	}
	if got := rpc.WalletHost(""); got != rpc.Host {
		t.Fatalf("unexpected default wallet host: %s", got)
	}
}

func TestWriteTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "harness.toml")
	if err := WriteTemplate(path, "harness", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, "harness", false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := WriteTemplate(path, "daemon", true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if _, err := Template("ghost"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}
