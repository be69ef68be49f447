package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frostdev-ops/scribe/internal/api"
	"github.com/frostdev-ops/scribe/internal/config"
	"github.com/frostdev-ops/scribe/internal/gateway"
	"github.com/frostdev-ops/scribe/internal/hermes"
	"github.com/frostdev-ops/scribe/internal/processor"
	"github.com/frostdev-ops/scribe/internal/store"
	"github.com/frostdev-ops/scribe/internal/transcript"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "backfill" {
		runBackfill(os.Args[2:])
		return
	}

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("scribe starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	norm := transcript.NewNormalizer()

	// Database (optional — without it records are published but not stored)
	var db *store.Store
	if cfg.DatabaseURL != "" {
		var err error
		db, err = store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set — records will not be persisted")
	}

	// NATS/Hermes
	hermesClient, err := hermes.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer hermesClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Gateway (optional — enables direct session pulls)
	var gw *gateway.Client
	if cfg.GatewayURL != "" {
		gw, err = gateway.NewClient(gateway.Config{
			URL:     cfg.GatewayURL,
			Token:   cfg.GatewayToken,
			Name:    cfg.GatewayName,
			DataDir: cfg.IdentityDir,
		}, slog.Default())
		if err != nil {
			slog.Error("failed to build gateway client", "error", err)
			os.Exit(1)
		}
		if err := gw.Connect(ctx); err != nil {
			slog.Error("failed to connect to gateway", "error", err, "device_id", gw.DeviceID())
			os.Exit(1)
		}
		defer gw.Close()
	} else {
		slog.Warn("gateway not configured — running on bus events only")
	}

	// Processor — the main pipeline
	proc := newProcessor(db, hermesClient, gw, norm)

	// Subscribe to raw history batches
	if err := hermesClient.Subscribe(hermes.SubjectHistoryStored, proc.HandleHistoryStored); err != nil {
		slog.Error("failed to subscribe to history events", "error", err)
		os.Exit(1)
	}

	// Normalize the configured session once at startup when a gateway is up.
	if gw != nil && cfg.SessionKey != "" {
		syncCtx, syncCancel := context.WithTimeout(ctx, 30*time.Second)
		if err := proc.SyncSession(syncCtx, cfg.SessionKey); err != nil {
			slog.Warn("initial session sync failed", "session_key", cfg.SessionKey, "error", err)
		}
		syncCancel()
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, norm, db)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Announce registration
	if err := hermesClient.Publish("swarm.agent.scribe.registered", map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      cfg.Port,
	}); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	slog.Info("scribe ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("scribe stopped")
}

// newProcessor wires the optional collaborators without handing typed nil
// pointers to the processor's interfaces.
func newProcessor(db *store.Store, bus *hermes.Client, gw *gateway.Client, norm *transcript.Normalizer) *processor.Processor {
	var s processor.RecordStore
	if db != nil {
		s = db
	}
	var src processor.HistorySource
	if gw != nil {
		src = gw
	}
	return processor.New(s, bus, src, norm, slog.Default())
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
