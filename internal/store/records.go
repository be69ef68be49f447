package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/frostdev-ops/scribe/internal/transcript"
)

// SaveRecords persists a normalized transcript for a session. All records are
// written in a single transaction so a partially normalized history never
// lands in the database. Re-saving a session upserts on the
// (session_key, record_id) unique index.
func (s *Store) SaveRecords(ctx context.Context, sessionKey string, records []transcript.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, rec := range records {
		var origin []byte
		if rec.Origin != nil {
			var err error
			if origin, err = json.Marshal(rec.Origin); err != nil {
				return fmt.Errorf("marshal origin: %w", err)
			}
		}
		var err error
		var images []byte
		if len(rec.Images) > 0 {
			if images, err = json.Marshal(rec.Images); err != nil {
				return fmt.Errorf("marshal images: %w", err)
			}
		}
		var toolCall, toolResult []byte
		if rec.ToolCall != nil {
			if toolCall, err = json.Marshal(rec.ToolCall); err != nil {
				return fmt.Errorf("marshal tool call: %w", err)
			}
		}
		if rec.ToolResult != nil {
			if toolResult, err = json.Marshal(rec.ToolResult); err != nil {
				return fmt.Errorf("marshal tool result: %w", err)
			}
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO transcript_records (id, session_key, record_id, seq, role, content, sent_at, special_format, metadata_prefixes, origin, tool_call, tool_result, images, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
			ON CONFLICT (session_key, record_id) DO UPDATE SET
				seq = EXCLUDED.seq,
				role = EXCLUDED.role,
				content = EXCLUDED.content,
				sent_at = EXCLUDED.sent_at,
				special_format = EXCLUDED.special_format,
				metadata_prefixes = EXCLUDED.metadata_prefixes,
				origin = EXCLUDED.origin,
				tool_call = EXCLUDED.tool_call,
				tool_result = EXCLUDED.tool_result,
				images = EXCLUDED.images
		`, uuid.New(), sessionKey, rec.ID, i, rec.Role, rec.Content,
			time.UnixMilli(rec.Timestamp).UTC(), rec.SpecialFormat, rec.MetadataPrefixes,
			origin, toolCall, toolResult, images)
		if err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListRecords returns the stored transcript for a session in insertion order.
func (s *Store) ListRecords(ctx context.Context, sessionKey string) ([]transcript.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT record_id, role, content, sent_at, special_format, metadata_prefixes, origin, tool_call, tool_result, images
		FROM transcript_records
		WHERE session_key = $1
		ORDER BY seq
	`, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []transcript.Record
	for rows.Next() {
		var (
			rec                          transcript.Record
			sentAt                       time.Time
			origin                       []byte
			toolCall, toolResult, images []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Role, &rec.Content, &sentAt, &rec.SpecialFormat,
			&rec.MetadataPrefixes, &origin, &toolCall, &toolResult, &images); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Timestamp = sentAt.UnixMilli()
		if len(origin) > 0 {
			if err := json.Unmarshal(origin, &rec.Origin); err != nil {
				return nil, fmt.Errorf("decode origin: %w", err)
			}
		}
		if len(toolCall) > 0 {
			rec.ToolCall = &transcript.ToolCall{}
			if err := json.Unmarshal(toolCall, rec.ToolCall); err != nil {
				return nil, fmt.Errorf("decode tool call: %w", err)
			}
		}
		if len(toolResult) > 0 {
			rec.ToolResult = &transcript.ToolResult{}
			if err := json.Unmarshal(toolResult, rec.ToolResult); err != nil {
				return nil, fmt.Errorf("decode tool result: %w", err)
			}
		}
		if len(images) > 0 {
			if err := json.Unmarshal(images, &rec.Images); err != nil {
				return nil, fmt.Errorf("decode images: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}
