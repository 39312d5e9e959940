package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/danmuck/swapharness/internal/config"
	"github.com/danmuck/swapharness/internal/fakecnd"
	"github.com/danmuck/swapharness/internal/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: fakecnd <daemon.toml>...")
		flag.PrintDefaults()
	}
	flag.Parse()
	logging.ConfigureRuntime()

	paths := flag.Args()
	if len(paths) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	network := fakecnd.NewNetwork()
	errs := make(chan error, len(paths))
	for _, path := range paths {
		cfg, err := daemonConfig(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("failed to load daemon config")
		}
		d, err := fakecnd.New(network, cfg)
		if err != nil {
			log.Fatal().Err(err).Str("daemon", cfg.ID).Msg("failed to start daemon")
		}
		go func() {
			errs <- fmt.Errorf("daemon %s: %w", d.ID, d.Serve())
		}()
	}
	log.Fatal().Err(<-errs).Msg("fake daemon stopped")
}

// daemonConfig reads a daemon config file. The file name without extension
// becomes the daemon's peer id.
func daemonConfig(path string) (fakecnd.Config, error) {
	cfg, err := config.LoadDaemonConfig(path)
	if err != nil {
		return fakecnd.Config{}, err
	}
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return fakecnd.Config{
		ID:              id,
		Addr:            net.JoinHostPort(cfg.HTTPAPI.Address, strconv.Itoa(cfg.HTTPAPI.Port)),
		ListenAddresses: cfg.Network.Listen,
		CorsOrigins:     cfg.HTTPAPI.Cors.AllowedOrigins,
	}, nil
}
