package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/frostdev-ops/scribe/internal/hermes"
	"github.com/frostdev-ops/scribe/internal/transcript"
)

// Bus is the publishing side of the message bus. *hermes.Client satisfies it.
type Bus interface {
	Publish(subject string, data any) error
}

// HistorySource fetches raw session history. *gateway.Client satisfies it.
type HistorySource interface {
	History(ctx context.Context, sessionKey string) ([]map[string]any, error)
}

// RecordStore persists canonical records. *store.Store satisfies it.
type RecordStore interface {
	SaveRecords(ctx context.Context, sessionKey string, records []transcript.Record) error
}

// Processor ties the normalization pipeline to the bus and the store: raw
// history batches come in, canonical records go out.
type Processor struct {
	store   RecordStore
	bus     Bus
	gateway HistorySource
	norm    *transcript.Normalizer
	logger  *slog.Logger
}

// New builds a processor. store and gateway may be nil; the corresponding
// steps are skipped.
func New(s RecordStore, bus Bus, gw HistorySource, norm *transcript.Normalizer, logger *slog.Logger) *Processor {
	return &Processor{
		store:   s,
		bus:     bus,
		gateway: gw,
		norm:    norm,
		logger:  logger,
	}
}

// NormalizedEvent is the payload published on SubjectTranscriptNormalized.
type NormalizedEvent struct {
	SessionKey string              `json:"session_key"`
	Records    []transcript.Record `json:"records"`
}

// HandleHistoryStored is the NATS handler for SubjectHistoryStored.
func (p *Processor) HandleHistoryStored(subject string, data []byte) {
	ctx := context.Background()

	var evt hermes.HistoryStoredEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse history event", "error", err)
		return
	}
	if evt.SessionKey == "" {
		p.logger.Error("history event missing session key")
		return
	}

	history := make([]map[string]any, 0, len(evt.Messages))
	for _, raw := range evt.Messages {
		var msg map[string]any
		if err := json.Unmarshal(raw, &msg); err != nil {
			p.logger.Warn("skipping unparseable history message", "session_key", evt.SessionKey, "error", err)
			continue
		}
		history = append(history, msg)
	}

	if _, err := p.ProcessHistory(ctx, evt.SessionKey, history); err != nil {
		p.logger.Error("history processing failed", "session_key", evt.SessionKey, "error", err)
	}
}

// SyncSession pulls a session's history straight from the gateway and runs it
// through the pipeline.
func (p *Processor) SyncSession(ctx context.Context, sessionKey string) error {
	if p.gateway == nil {
		return fmt.Errorf("no gateway configured")
	}
	history, err := p.gateway.History(ctx, sessionKey)
	if err != nil {
		return fmt.Errorf("fetch session %s: %w", sessionKey, err)
	}
	_, err = p.ProcessHistory(ctx, sessionKey, history)
	return err
}

// ProcessHistory normalizes a raw history batch, publishes the result, and
// persists it when a store is configured. It returns the number of canonical
// records emitted.
func (p *Processor) ProcessHistory(ctx context.Context, sessionKey string, history []map[string]any) (int, error) {
	records := p.norm.Normalize(history)

	p.logger.Info("history normalized",
		"session_key", sessionKey,
		"messages", len(history),
		"records", len(records),
	)

	if p.bus != nil {
		evt := NormalizedEvent{SessionKey: sessionKey, Records: records}
		if err := p.bus.Publish(hermes.SubjectTranscriptNormalized, evt); err != nil {
			p.logger.Error("failed to publish normalized transcript", "session_key", sessionKey, "error", err)
		}
	}

	if p.store != nil {
		if err := p.store.SaveRecords(ctx, sessionKey, records); err != nil {
			return 0, fmt.Errorf("persist records: %w", err)
		}
	}
	return len(records), nil
}
