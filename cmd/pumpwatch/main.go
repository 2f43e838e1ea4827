package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/pumpwatch/internal/auth"
	"github.com/gosuda/pumpwatch/internal/calendar"
	"github.com/gosuda/pumpwatch/internal/config"
	"github.com/gosuda/pumpwatch/internal/domain"
	"github.com/gosuda/pumpwatch/internal/importer"
	"github.com/gosuda/pumpwatch/internal/report"
	"github.com/gosuda/pumpwatch/internal/server"
	"github.com/gosuda/pumpwatch/internal/status"
	"github.com/gosuda/pumpwatch/internal/store/memory"
	"github.com/gosuda/pumpwatch/internal/store/postgres"
	"github.com/gosuda/pumpwatch/internal/wellaudit"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, parseErr := zerolog.ParseLevel(cfg.Log.Level)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Format == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	cal, err := calendar.New(cfg.Calendar.Kind, cfg.Calendar.Location)
	if err != nil {
		return err
	}

	authSvc := auth.NewService(store.Users(), cfg.JWT.Secret, cfg.JWT.AccessTTL)
	statusSvc := status.NewService(store, status.WithDeleteWindow(cfg.Rules.DeleteWindow))

	// Seed an empty installation.
	if err := authSvc.EnsureAdmin(ctx, cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminPassword); err != nil {
		return err
	}
	if err := statusSvc.SeedPumps(ctx, cfg.Bootstrap.PumpCount); err != nil {
		return err
	}

	srv := server.New(ctx, cfg, store.Users(), server.Services{
		Auth:     authSvc,
		Status:   statusSvc,
		Reports:  report.NewService(store, cal, cfg.Rules.ReportConcurrency),
		Imports:  importer.NewService(store, cal, cfg.Rules.ImportMaxRows),
		Wells:    wellaudit.NewService(store),
		Calendar: cal,
	})

	// Start server in background goroutine.
	go func() {
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
			cancel()
		}
	}()

	log.Info().
		Str("store", cfg.Store).
		Str("calendar", cfg.Calendar.Kind).
		Str("timezone", cfg.Calendar.Timezone).
		Msg("pumpwatch started")

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}

// openStore returns the configured backend and its release function.
func openStore(ctx context.Context, cfg *config.Config) (domain.Store, func(), error) {
	if cfg.Store == config.StoreMemory {
		log.Warn().Msg("using the in-memory store; data is lost on exit")
		return memory.New(), func() {}, nil
	}

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return nil, nil, fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	dsn := cfg.Database.DSN()
	if cfg.Migrate {
		if err := postgres.Migrate(ctx, dsn); err != nil {
			return nil, nil, err
		}
	}

	// Connect to PostgreSQL.
	store, err := postgres.New(ctx, dsn, int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}
