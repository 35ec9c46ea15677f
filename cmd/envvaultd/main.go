package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/org/envvault/internal/api"
	"github.com/org/envvault/internal/audit"
	"github.com/org/envvault/internal/auth"
	"github.com/org/envvault/internal/config"
	"github.com/org/envvault/internal/core"
	"github.com/org/envvault/internal/storage"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load config
	cfgFile := config.DefaultPath()
	if v := os.Getenv("ENVVAULT_CONFIG"); v != "" {
		cfgFile = v
	}
	cfg, err := config.Load(cfgFile, config.GetenvPresent)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfgFile).Msg("failed to load config")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("envvaultd stopped")
		stop()
		os.Exit(1)
	}
}

// run serves until ctx is done or the server fails. Everything it opens is
// closed before it returns.
func run(ctx context.Context, cfg config.Config) error {
	vault := core.NewVault(core.Options{
		Storage:   storage.Options{Driver: cfg.Storage.Driver, DSN: cfg.Storage.DSN},
		KeyFile:   cfg.KeyFile,
		ShellPath: cfg.ShellSync.Path,
		Profiles:  cfg.ShellSync.Profiles,
	})
	defer vault.Close()

	// A store that cannot be opened leaves the API up in degraded mode.
	if err := vault.Init(ctx); err != nil {
		log.Error().Err(err).Msg("vault storage unavailable, serving degraded")
	} else {
		vault.SyncToShell(ctx)
		if cfg.ShellSync.InstallHook {
			vault.InstallShellHook()
		}
		if cfg.ShellSync.Watch {
			go func() {
				if err := vault.WatchShellFile(ctx); err != nil {
					log.Error().Err(err).Msg("shell file watcher stopped")
				}
			}()
		}
	}

	token, created, err := auth.LoadOrCreateToken(cfg.API.TokenFile)
	if err != nil {
		return fmt.Errorf("loading API token: %w", err)
	}
	if created {
		log.Info().Str("path", cfg.API.TokenFile).Msg("generated API token")
	}

	auditor := audit.Nop()
	if !cfg.Audit.Disabled {
		auditor, err = audit.NewLogger(audit.Options{
			File:       cfg.Audit.File,
			MaxSizeMB:  cfg.Audit.MaxSizeMB,
			MaxBackups: cfg.Audit.MaxBackups,
		})
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
	}
	defer auditor.Close()

	srv := api.NewServer(vault, auth.NewTokenService(token), auditor, api.Config{
		ListenAddr: cfg.API.ListenAddr,
		RateLimit:  cfg.API.RateLimit,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Info().Str("addr", cfg.API.ListenAddr).Msg("server started")
	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("server stopped")
	if serveErr != nil {
		return fmt.Errorf("serving API: %w", serveErr)
	}
	return nil
}
