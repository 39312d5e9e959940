package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/multiformats/go-multiaddr"
	"github.com/pelletier/go-toml/v2"
)

// DaemonConfig is the subset of a swap daemon's own config file the harness
// reads to find its HTTP API and peer listen address.
type DaemonConfig struct {
	HTTPAPI DaemonHTTPAPI `toml:"http_api"`
	Network DaemonNetwork `toml:"network"`
	WebGUI  DaemonWebGUI  `toml:"web_gui"`
}

type DaemonHTTPAPI struct {
	Address string     `toml:"address"`
	Port    int        `toml:"port"`
	Cors    DaemonCors `toml:"cors"`
}

type DaemonCors struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

type DaemonNetwork struct {
	Listen []string `toml:"listen"`
}

type DaemonWebGUI struct {
	Port int `toml:"port"`
}

func LoadDaemonConfig(path string) (DaemonConfig, error) {
	var cfg DaemonConfig
	if err := loadToml(path, &cfg); err != nil {
		return DaemonConfig{}, err
	}
	if cfg.HTTPAPI.Address == "" {
		cfg.HTTPAPI.Address = "0.0.0.0"
	}
	if err := ValidateDaemonConfig(cfg); err != nil {
		return DaemonConfig{}, fmt.Errorf("daemon config %s: %w", path, err)
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateDaemonConfig(cfg DaemonConfig) error {
	if cfg.HTTPAPI.Port <= 0 || cfg.HTTPAPI.Port > 65535 {
		return fmt.Errorf("http_api.port %d out of range", cfg.HTTPAPI.Port)
	}
	for i, addr := range cfg.Network.Listen {
		if _, err := multiaddr.NewMultiaddr(addr); err != nil {
			return fmt.Errorf("network.listen[%d] invalid: %w", i, err)
		}
	}
	return nil
}

// HTTPAPIURL is the daemon API base as seen from host.
func (d DaemonConfig) HTTPAPIURL(host string) (*url.URL, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("daemon host is required")
	}
	return &url.URL{Scheme: "http", Host: net.JoinHostPort(host, strconv.Itoa(d.HTTPAPI.Port))}, nil
}

// ListenAddress returns the first peer listen multiaddr. An unspecified IP
// is replaced by host so the address is dialable by other actors.
func (d DaemonConfig) ListenAddress(host string) (multiaddr.Multiaddr, error) {
	if len(d.Network.Listen) == 0 {
		return nil, fmt.Errorf("daemon config has no network.listen address")
	}
	addr, err := multiaddr.NewMultiaddr(d.Network.Listen[0])
	if err != nil {
		return nil, fmt.Errorf("network.listen[0]: %w", err)
	}
	protos := addr.Protocols()
	if len(protos) < 2 {
		return nil, fmt.Errorf("network.listen[0] %s lacks a transport", addr)
	}
	ipProto, transport := protos[0], protos[1]
	if ipProto.Code != multiaddr.P_IP4 && ipProto.Code != multiaddr.P_IP6 {
		return addr, nil
	}
	ip, err := addr.ValueForProtocol(ipProto.Code)
	if err != nil {
		return nil, err
	}
	if parsed := net.ParseIP(ip); parsed == nil || !parsed.IsUnspecified() {
		return addr, nil
	}
	port, err := addr.ValueForProtocol(transport.Code)
	if err != nil {
		return nil, err
	}

	var hostProto string
	switch hostIP := net.ParseIP(host); {
	case hostIP == nil:
		hostProto = "dns"
	case hostIP.To4() != nil:
		hostProto = "ip4"
	default:
		hostProto = "ip6"
	}
	return multiaddr.NewMultiaddr(fmt.Sprintf("/%s/%s/%s/%s", hostProto, host, transport.Name, port))
}
