package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tmarkou/agora/internal/bus"
	"github.com/tmarkou/agora/internal/config"
	"github.com/tmarkou/agora/internal/gallery"
	"github.com/tmarkou/agora/internal/runs"
	"github.com/tmarkou/agora/internal/secrets"
	"github.com/tmarkou/agora/internal/store"
	"github.com/tmarkou/agora/internal/vault"
	"github.com/tmarkou/agora/internal/web"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("agora %s\n", version)
	case "gateway":
		if err := runGateway(); err != nil {
			slog.Error("gateway failed", "error", err)
			os.Exit(1)
		}
	case "backup":
		if err := runBackup(os.Args[2:]); err != nil {
			slog.Error("backup failed", "error", err)
			os.Exit(1)
		}
	case "restore":
		if err := runRestore(os.Args[2:]); err != nil {
			slog.Error("restore failed", "error", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: agora <command>\n\nCommands:\n  gateway    Start the Agora gateway service\n  backup     Archive the data directory\n  restore    Restore a data directory archive\n  version    Print version\n")
}

func runGateway() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting agora gateway", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite store
	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	// Embedded NATS
	b, err := bus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer b.Close()
	slog.Info("nats started", "port", cfg.NATS.Port)

	client, err := bus.NewClient(b)
	if err != nil {
		return fmt.Errorf("init nats client: %w", err)
	}
	defer client.Close()

	// Secret vault and resolver
	v := vault.New(cfg.Vault.Passphrase)
	resolver := secrets.NewResolver(db, v)

	// Example team gallery
	if cfg.Gallery.Seed {
		n, err := gallery.Seed(db, cfg.Gallery.UserID, slog.Default())
		if err != nil {
			return fmt.Errorf("seed gallery: %w", err)
		}
		if n > 0 {
			slog.Info("gallery ready", "teams", n)
		}
	}

	// Run lifecycle manager
	manager := runs.NewManager(db, client, resolver, cfg.Validation.MaxTerminationDepth, slog.Default())
	defer manager.Close()

	// Pick up runs left in flight by a previous process.
	if _, err := manager.ResumeOpen(); err != nil {
		return fmt.Errorf("resume open runs: %w", err)
	}

	// Web API
	if cfg.Web.Enabled {
		srv := web.NewServer(db, manager, resolver, cfg.Web, cfg.Gallery.UserID, version)
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
		slog.Info("web server started", "port", cfg.Web.Port)
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)
	cancel()

	return nil
}
