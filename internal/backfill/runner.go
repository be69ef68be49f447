package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/frostdev-ops/scribe/internal/processor"
)

// Config holds the backfill command configuration.
type Config struct {
	SessionsDir string    // directory of gateway session JSONL files
	DataDir     string    // where the resume state lives
	Since       time.Time // skip files entirely before this time
	Until       time.Time // skip files entirely after this time
	SingleFile  string    // process one file only
	MinMessages int       // skip sessions shorter than this
	DryRun      bool      // parse and count without publishing or persisting
}

// Runner replays stored gateway session files through the normalization
// pipeline. Runs are resumable: processed files are remembered by content
// hash, so reruns only touch new or changed sessions.
type Runner struct {
	cfg    Config
	proc   *processor.Processor
	logger *slog.Logger
}

func NewRunner(cfg Config, proc *processor.Processor, logger *slog.Logger) *Runner {
	return &Runner{cfg: cfg, proc: proc, logger: logger}
}

// Run executes the backfill.
func (r *Runner) Run(ctx context.Context) error {
	state, err := LoadState(r.cfg.DataDir)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	files, err := r.discoverFiles()
	if err != nil {
		return fmt.Errorf("discover files: %w", err)
	}
	r.logger.Info("session files discovered", "count", len(files))

	for _, path := range files {
		select {
		case <-ctx.Done():
			r.logger.Info("backfill interrupted, saving state")
			_ = state.Save()
			return ctx.Err()
		default:
		}

		hash, err := HashFile(path)
		if err != nil {
			r.logger.Warn("failed to hash session file", "path", path, "error", err)
			state.AddError(fmt.Sprintf("hash %s: %v", path, err))
			continue
		}
		if state.IsProcessed(path, hash) {
			continue
		}

		history, err := ParseSessionFile(path)
		if err != nil {
			r.logger.Warn("failed to parse session file", "path", path, "error", err)
			state.AddError(fmt.Sprintf("parse %s: %v", path, err))
			continue
		}
		if len(history) < r.cfg.MinMessages {
			state.MarkProcessed(path, hash)
			continue
		}
		if !r.inDateRange(history) {
			state.MarkProcessed(path, hash)
			continue
		}

		sessionKey := sessionKeyFor(path)
		r.logger.Info("processing session file",
			"path", path,
			"session_key", sessionKey,
			"messages", len(history),
		)

		if r.cfg.DryRun {
			r.logger.Info("dry run, skipping publish", "session_key", sessionKey, "messages", len(history))
			continue
		}

		emitted, err := r.proc.ProcessHistory(ctx, sessionKey, history)
		if err != nil {
			r.logger.Error("session processing failed", "session_key", sessionKey, "error", err)
			state.AddError(fmt.Sprintf("process %s: %v", sessionKey, err))
			continue
		}

		state.RecordsEmitted += emitted
		state.MarkProcessed(path, hash)
		if err := state.Save(); err != nil {
			r.logger.Warn("failed to save state", "error", err)
		}
	}

	if err := state.Save(); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	r.logger.Info("backfill complete",
		"files_processed", state.FilesProcessed,
		"records_emitted", state.RecordsEmitted,
		"errors", len(state.Errors),
	)
	return nil
}

func (r *Runner) discoverFiles() ([]string, error) {
	if r.cfg.SingleFile != "" {
		return []string{r.cfg.SingleFile}, nil
	}

	var files []string
	err := filepath.WalkDir(r.cfg.SessionsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".jsonl") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// inDateRange checks the first timestamped message against the configured
// window.
func (r *Runner) inDateRange(history []map[string]any) bool {
	if r.cfg.Since.IsZero() && r.cfg.Until.IsZero() {
		return true
	}
	for _, msg := range history {
		ms, ok := msg["timestamp"].(int64)
		if !ok {
			if f, okf := msg["timestamp"].(float64); okf {
				ms = int64(f)
				ok = true
			}
		}
		if !ok || ms == 0 {
			continue
		}
		ts := time.UnixMilli(ms)
		if !r.cfg.Since.IsZero() && ts.Before(r.cfg.Since) {
			return false
		}
		if !r.cfg.Until.IsZero() && ts.After(r.cfg.Until) {
			return false
		}
		return true
	}
	return true
}

// sessionKeyFor derives a session key from a file path: the base name without
// its extension.
func sessionKeyFor(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
