package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "harness":
		return harnessTemplate, nil
	case "daemon":
		return daemonTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const harnessTemplate = `network = "regtest"

[bitcoin]
rpc_host = "127.0.0.1:18443"
rpc_user = "bitcoin"
rpc_password = "t68ej4UX2pB0cLlGwSwHFBLKxXYgomkXyFyxuBmm2U8="

[ethereum]
rpc_url = "http://127.0.0.1:8545"

[actors.alice]
host = "127.0.0.1"
config_file = "alice.toml"
bitcoin_wallet = "alice"
ethereum_private_key = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
bitcoin_fee_per_wu = 20
poll_interval = "500ms"

[actors.bob]
host = "127.0.0.1"
http_api_url = "http://127.0.0.1:8010"
bitcoin_wallet = "bob"
ethereum_private_key = "0x8da4ef21b864d2cc526dbdb2a120bd2874c36c9d0a1fb7f8c63d7f7a8b41de8f"
decline_reason = "BadRate"
`

const daemonTemplate = `[http_api]
address = "0.0.0.0"
port = 8000

[http_api.cors]
allowed_origins = ["http://localhost:3000"]

[network]
listen = ["/ip4/0.0.0.0/tcp/9939"]
`
