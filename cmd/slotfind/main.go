// Command slotfind runs the balance-slot discovery HTTP adapter: it loads a
// TOML configuration, binds one rpcclient.Client per configured chain
// (either a real node via gethrpc or an in-process tracer via localtracer),
// and serves spec §6's single route until interrupted.
//
// This replaces the teacher's example/example.go ad hoc main(), which only
// ever demonstrated simulator.Simulate/SimulateBundle against a hardcoded
// endpoint; the override/balance techniques it exercised now live on,
// adapted, in localtracer and slotvalidator.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/evmtoolkit/slotfind/cache"
	"github.com/evmtoolkit/slotfind/config"
	"github.com/evmtoolkit/slotfind/gethrpc"
	"github.com/evmtoolkit/slotfind/localtracer"
	"github.com/evmtoolkit/slotfind/rpcclient"
	"github.com/evmtoolkit/slotfind/server"
)

func main() {
	log.SetDefault(log.NewLogger(log.NewTerminalHandler(os.Stderr, true)))

	app := &cli.App{
		Name:  "slotfind",
		Usage: "ERC-20 balance storage-slot discovery service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "slotfind.toml",
				Usage:   "path to the TOML configuration file",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Crit("slotfind: fatal error", "err", err)
	}
}

func run(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return fmt.Errorf("slotfind: %w", err)
	}

	clients, err := buildClients(cfg)
	if err != nil {
		return fmt.Errorf("slotfind: %w", err)
	}

	store, err := buildCache(cfg)
	if err != nil {
		return fmt.Errorf("slotfind: %w", err)
	}

	handler := server.New(clients, store, time.Duration(cfg.TimeoutMS)*time.Millisecond)

	srv := &http.Server{Addr: cfg.BindAddr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		log.Info("slotfind: listening", "addr", cfg.BindAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("slotfind: server: %w", err)
	case sig := <-sigCh:
		log.Info("slotfind: shutting down", "signal", sig)
		return srv.Close()
	}
}

// buildClients binds one rpcclient.Client per configured chain. A "geth"
// chain dials its primary endpoint first; if that dial fails and a
// ForkEndpoint is configured (spec's "optional forked fallback endpoint"),
// it dials that instead before giving up on the chain entirely.
func buildClients(cfg *config.Config) (map[string]rpcclient.Client, error) {
	clients := make(map[string]rpcclient.Client, len(cfg.Chains))
	for _, chain := range cfg.Chains {
		switch chain.Backend {
		case config.BackendLocal:
			clients[chain.Label] = localtracer.New(chain.Endpoint, nil)
		default:
			client, err := gethrpc.Dial(context.Background(), chain.Endpoint)
			if err != nil && chain.ForkEndpoint != "" {
				log.Warn("slotfind: primary endpoint unreachable, falling back to fork endpoint",
					"chain", chain.Label, "endpoint", chain.Endpoint, "err", err)
				client, err = gethrpc.Dial(context.Background(), chain.ForkEndpoint)
			}
			if err != nil {
				return nil, fmt.Errorf("dial %s (%s): %w", chain.Label, chain.Endpoint, err)
			}
			clients[chain.Label] = client
		}
	}
	return clients, nil
}

func buildCache(cfg *config.Config) (cache.Store, error) {
	local, err := cache.NewMemStore(10_000)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	if !cfg.Cache.Enabled {
		return local, nil
	}
	remote := cache.NewRedisStore(cache.RedisConfig{
		Host:     cfg.Cache.Host,
		Port:     cfg.Cache.Port,
		Password: cfg.Cache.Password,
		TLS:      cfg.Cache.TLS,
	}, 0)
	return cache.NewLayeredStore(local, remote), nil
}
