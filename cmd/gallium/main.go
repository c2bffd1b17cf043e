// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

// Gallium is the Galactica display server daemon. It listens on a
// Unix socket for display protocol clients, composites their
// shared-memory surfaces into software framebuffers, and serves a
// CBOR control socket for management tooling.
//
// On startup:
//  1. Loads configuration (GALLIUM_CONFIG or --config, defaults
//     otherwise).
//  2. Hardens the process: drops root if present, locks memory,
//     disables core dumps.
//  3. Creates the security context with a fresh session token.
//  4. Brings up the configured outputs and both sockets.
//  5. Runs until SIGINT/SIGTERM or a control-socket shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/LiterallyKirby/Galactica/config"
	"github.com/LiterallyKirby/Galactica/lib/version"
	"github.com/LiterallyKirby/Galactica/security"
	"github.com/LiterallyKirby/Galactica/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		socketName  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to gallium.yaml (overrides GALLIUM_CONFIG)")
	flag.StringVar(&socketName, "socket", "", "display socket name (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("gallium %s\n", version.Full())
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if socketName != "" {
		cfg.Display.Socket = socketName
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	// Harden before touching any client data. Privilege drop failure
	// is fatal; the memory protections are best-effort.
	if err := security.DropPrivileges(logger); err != nil {
		return fmt.Errorf("dropping privileges: %w", err)
	}
	if err := security.LockMemory(); err != nil {
		logger.Warn("could not lock memory", "error", err)
	}
	if err := security.DisableCoreDumps(); err != nil {
		logger.Warn("could not disable core dumps", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv, err := server.New(cfg, logger)
	if err != nil {
		return err
	}

	controlPath := filepath.Join(config.RuntimeDir(), cfg.Display.ControlSocket)
	control := server.NewControl(controlPath, srv, cancel, logger)

	// GALLIUM_DISPLAY lets child processes find the socket.
	os.Setenv("GALLIUM_DISPLAY", cfg.Display.Socket)

	errs := make(chan error, 2)
	go func() { errs <- control.Serve(ctx) }()
	go func() { errs <- srv.Serve(ctx) }()

	// First failure (or clean shutdown) wins; cancel unwinds the rest.
	err = <-errs
	cancel()
	if second := <-errs; err == nil {
		err = second
	}
	return err
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
