// Historical tick collector CLI.
// This application fetches historical price ticks for a fixed set of
// synthetic volatility indices from the Deriv streaming quote API, covering
// one bounded time window per invocation, and persists them idempotently
// into a per-window SQLite store.
//
// Configuration is environment-driven (optionally via a .env file):
//
//	DERIV_API_TOKEN=...  START_DATE=2024-01-01 END_DATE=2024-01-08 tickstore
//	DERIV_API_TOKEN=...  WEEKS_AGO=2 tickstore
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/johnayoung/go-tick-collector/internal/collector"
	"github.com/johnayoung/go-tick-collector/internal/config"
	apperrors "github.com/johnayoung/go-tick-collector/internal/errors"
	"github.com/johnayoung/go-tick-collector/internal/logger"
	"github.com/johnayoung/go-tick-collector/internal/models"
	"github.com/johnayoung/go-tick-collector/internal/source"
	"github.com/johnayoung/go-tick-collector/internal/storage"
)

// Exit codes following standard conventions
const (
	ExitSuccess     = 0
	ExitConfigError = 2
	ExitAuthError   = 3
	ExitRunError    = 4
	ExitInterrupt   = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	log, logCloser, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		return ExitConfigError
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	window, err := resolveWindow(cfg)
	if err != nil {
		log.Error("window resolution failed", "error", err)
		return ExitConfigError
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := storage.NewSQLiteStore(window.StorePath(cfg.DataDir, cfg.DBPrefix), log)
	if err != nil {
		log.Error("failed to open store", "error", err)
		return ExitRunError
	}
	defer store.Close()

	client := source.NewDerivClient(cfg.Endpoint(), cfg.APIToken, cfg.PageDelay, log)

	runner := collector.NewRunner(client, store, models.DefaultInstruments(),
		cfg.PageSize, cfg.InstrumentDelay, log)

	summary, err := runner.Run(ctx, window)
	if err != nil {
		log.Error("run failed", "error", err, "kind", apperrors.KindOf(err))
		switch apperrors.KindOf(err) {
		case apperrors.KindConfiguration:
			return ExitConfigError
		case apperrors.KindAuthentication:
			return ExitAuthError
		default:
			if ctx.Err() != nil {
				return ExitInterrupt
			}
			return ExitRunError
		}
	}

	printSummary(summary, store.Path())
	if ctx.Err() != nil {
		return ExitInterrupt
	}
	return ExitSuccess
}

// resolveWindow computes the collection window from the configured mode:
// explicit date pair when both dates are set, weeks-ago offset otherwise.
func resolveWindow(cfg *config.Config) (*models.Window, error) {
	if cfg.UseDateRange() {
		return models.NewWindowFromDates(cfg.StartDate, cfg.EndDate)
	}
	return models.NewWindowFromWeeksAgo(cfg.WeeksAgo, time.Now().UTC())
}

// printSummary writes the final human-readable report to stdout; operators
// of long unattended runs rely on it, so it bypasses log level filtering.
func printSummary(summary *collector.RunSummary, storePath string) {
	fmt.Printf("\nperiod:        %s\n", summary.Window.String())
	fmt.Printf("ticks fetched: %d\n", summary.Collected)
	fmt.Printf("new rows:      %d\n", summary.Inserted)
	if failed := summary.Failed(); len(failed) > 0 {
		fmt.Printf("incomplete:    %v\n", failed)
	}
	fmt.Printf("database:      %s\n", storePath)
	fmt.Printf("elapsed:       %s\n", summary.Elapsed.Round(time.Second))
}
