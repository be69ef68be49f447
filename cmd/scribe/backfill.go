package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frostdev-ops/scribe/internal/backfill"
	"github.com/frostdev-ops/scribe/internal/config"
	"github.com/frostdev-ops/scribe/internal/hermes"
	"github.com/frostdev-ops/scribe/internal/processor"
	"github.com/frostdev-ops/scribe/internal/store"
	"github.com/frostdev-ops/scribe/internal/transcript"
)

// runBackfill replays stored gateway session files through the pipeline:
//
//	scribe backfill --sessions-dir ~/.openclaw/sessions [--dry-run]
func runBackfill(args []string) {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	sessionsDir := fs.String("sessions-dir", "", "directory of gateway session JSONL files (required)")
	singleFile := fs.String("file", "", "process a single session file")
	since := fs.String("since", "", "only sessions on/after this date (YYYY-MM-DD)")
	until := fs.String("until", "", "only sessions on/before this date (YYYY-MM-DD)")
	minMessages := fs.Int("min-messages", 0, "skip sessions with fewer messages")
	dryRun := fs.Bool("dry-run", false, "parse and count without publishing or persisting")
	_ = fs.Parse(args)

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	if *sessionsDir == "" && *singleFile == "" {
		slog.Error("--sessions-dir or --file is required")
		os.Exit(1)
	}

	bcfg := backfill.Config{
		SessionsDir: *sessionsDir,
		DataDir:     cfg.IdentityDir,
		SingleFile:  *singleFile,
		MinMessages: *minMessages,
		DryRun:      *dryRun,
	}
	if *since != "" {
		t, err := time.Parse("2006-01-02", *since)
		if err != nil {
			slog.Error("invalid --since", "error", err)
			os.Exit(1)
		}
		bcfg.Since = t
	}
	if *until != "" {
		t, err := time.Parse("2006-01-02", *until)
		if err != nil {
			slog.Error("invalid --until", "error", err)
			os.Exit(1)
		}
		bcfg.Until = t
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("interrupt received, stopping backfill")
		cancel()
	}()

	norm := transcript.NewNormalizer()

	var db *store.Store
	var s processor.RecordStore
	if !*dryRun && cfg.DatabaseURL != "" {
		var err error
		db, err = store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		s = db
	}

	var bus processor.Bus
	if !*dryRun {
		hermesClient, err := hermes.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer hermesClient.Close()
		bus = hermesClient
	}

	proc := processor.New(s, bus, nil, norm, slog.Default())
	runner := backfill.NewRunner(bcfg, proc, slog.Default())

	if err := runner.Run(ctx); err != nil {
		slog.Error("backfill failed", "error", err)
		os.Exit(1)
	}
}
