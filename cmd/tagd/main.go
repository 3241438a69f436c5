// Copyright 2026 The Tagd Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/contenttag/tagd/lib/clock"
	"github.com/contenttag/tagd/lib/config"
	"github.com/contenttag/tagd/lib/process"
	"github.com/contenttag/tagd/lib/tagrpc"
	"github.com/contenttag/tagd/lib/tagstore"
	"github.com/contenttag/tagd/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var configPath string
	var showVersion bool
	flag.StringVar(&configPath, "config", "", "path to tagd.yaml (overrides TAGD_CONFIG)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		version.Print("tagd")
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else if os.Getenv("TAGD_CONFIG") != "" {
		cfg, err = config.Load()
	} else {
		cfg = config.Default()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.EnsureStoreDir(); err != nil {
		return err
	}

	store, err := tagstore.Open(tagstore.Config{
		Path:     cfg.Store.Path,
		PoolSize: cfg.Store.PoolSize,
		Clock:    clock.Real(),
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("closing store", "error", err)
		}
	}()

	listener, err := listen(cfg)
	if err != nil {
		return err
	}
	if cfg.Listen.Network == "unix" {
		defer os.Remove(cfg.Listen.Address)
	}

	server := tagrpc.NewServer(store, logger)
	if err := server.Serve(ctx, listener); err != nil {
		return err
	}

	logger.Info("shut down cleanly")
	return nil
}

// listen creates the configured listener. A stale Unix socket file
// from an unclean shutdown is removed first.
func listen(cfg *config.Config) (net.Listener, error) {
	if cfg.Listen.Network == "unix" {
		if err := os.Remove(cfg.Listen.Address); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing stale socket %s: %w", cfg.Listen.Address, err)
		}
	}

	listener, err := net.Listen(cfg.Listen.Network, cfg.Listen.Address)
	if err != nil {
		return nil, fmt.Errorf("listening on %s %s: %w", cfg.Listen.Network, cfg.Listen.Address, err)
	}
	return listener, nil
}
