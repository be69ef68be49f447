package transcript

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// historySeq backs the default record id generator. Process-lifetime scoped;
// ids are unique, not contiguous.
var historySeq atomic.Uint64

func nextHistoryID() string {
	return fmt.Sprintf("hist-%d", historySeq.Add(1))
}

// Normalizer drives the pipeline over an ordered raw history batch. It is
// stateless across invocations apart from the id generator and safe for
// concurrent use as long as that generator is.
type Normalizer struct {
	conv   Conventions
	nextID func() string
	now    func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithIDFunc injects the record id generator, letting tests supply
// deterministic identifiers.
func WithIDFunc(fn func() string) Option {
	return func(n *Normalizer) { n.nextID = fn }
}

// WithClock injects the timestamp source used when a record omits its own.
func WithClock(fn func() time.Time) Option {
	return func(n *Normalizer) { n.now = fn }
}

// WithConventions overrides the provider/sentinel convention table.
func WithConventions(conv Conventions) Option {
	return func(n *Normalizer) { n.conv = conv }
}

// NewNormalizer builds a Normalizer with the stock conventions, the shared
// process-wide id counter, and the wall clock.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		conv:   DefaultConventions(),
		nextID: nextHistoryID,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// DecodeHistory decodes a raw history payload: either a bare JSON array of
// records or an envelope with a "messages" array. Undecodable payloads yield
// an empty batch rather than an error.
func DecodeHistory(data []byte) []map[string]any {
	var batch []map[string]any
	if err := json.Unmarshal(data, &batch); err == nil {
		return batch
	}
	var envelope struct {
		Messages []map[string]any `json:"messages"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil {
		return envelope.Messages
	}
	return nil
}

// Normalize converts a raw history batch into canonical records, in emission
// order. It never fails; malformed records degrade to best-effort text.
func (n *Normalizer) Normalize(history []map[string]any) []Record {
	var out []Record
	for _, raw := range history {
		out = n.appendRecord(out, raw)
	}
	return out
}

func (n *Normalizer) appendRecord(out []Record, raw map[string]any) []Record {
	if raw == nil {
		return out
	}
	role := NormalizeRole(raw["role"])
	text := ExtractText(raw)
	images := ExtractImages(raw)
	structured := ExtractStructuredOrigin(raw)
	ts := asMillis(raw["timestamp"])
	if ts == 0 {
		ts = n.now().UnixMilli()
	}

	var parsed parsedContent
	switch role {
	case RoleUser:
		parsed = parseUserContent(n.conv, text)
	case RoleAssistant:
		parsed = parseAssistantContent(n.conv, text)
	default:
		parsed = parsedContent{role: role, content: text}
	}

	if len(parsed.segments) > 0 {
		for i, seg := range parsed.segments {
			rec := Record{
				ID:               n.nextID(),
				Role:             segRole(seg),
				Content:          seg.content,
				Timestamp:        ts,
				SpecialFormat:    seg.special,
				MetadataPrefixes: seg.prefixes,
				Origin:           mergeForRole(segRole(seg), seg.origin, structured),
			}
			if i == 0 {
				rec.Images = images
			}
			out = append(out, rec)
		}
	} else if strings.TrimSpace(parsed.content) != "" {
		out = append(out, Record{
			ID:               n.nextID(),
			Role:             role,
			Content:          parsed.content,
			Timestamp:        ts,
			SpecialFormat:    parsed.special,
			MetadataPrefixes: parsed.prefixes,
			Origin:           mergeForRole(role, parsed.origin, structured),
			Images:           images,
		})
	}

	return n.appendToolItems(out, raw, ts)
}

// appendToolItems emits tool records and correlates "message" send calls
// with their results within one raw record. A matched result merges its
// recovered origin into the earlier send record instead of emitting a new
// one.
func (n *Normalizer) appendToolItems(out []Record, raw map[string]any, ts int64) []Record {
	lastSend := -1
	for _, item := range ExtractToolItems(raw) {
		switch item.Kind {
		case toolItemCall:
			if item.Name == "message" {
				content, origin := parseSendPayload(n.conv, item.Payload)
				if content != "" || origin != nil {
					out = append(out, Record{
						ID:        n.nextID(),
						Role:      RoleAssistant,
						Content:   content,
						Timestamp: ts,
						Origin:    origin,
					})
					lastSend = len(out) - 1
					continue
				}
			}
			out = append(out, Record{
				ID:        n.nextID(),
				Role:      RoleTool,
				Timestamp: ts,
				ToolCall:  &ToolCall{Name: item.Name, Input: item.Payload},
			})
		case toolItemResult:
			if item.Name == "message" {
				if origin := parseSendResultOrigin(item.Payload); origin != nil {
					if lastSend >= 0 {
						out[lastSend].Origin = MergeOrigins(origin, out[lastSend].Origin)
						lastSend = -1
					} else {
						out = append(out, Record{
							ID:        n.nextID(),
							Role:      RoleAssistant,
							Timestamp: ts,
							Origin:    origin,
						})
					}
					continue
				}
			}
			out = append(out, Record{
				ID:         n.nextID(),
				Role:       RoleTool,
				Timestamp:  ts,
				ToolResult: &ToolResult{Name: item.Name, Output: item.Payload},
			})
		}
	}
	return out
}

func segRole(seg parsedContent) string {
	if seg.role == "" {
		return RoleUser
	}
	return seg.role
}

// mergeForRole applies the role-specific primary/fallback rule: user text is
// the most reliable provenance signal, so content-derived origin dominates
// for user records; assistants rarely embed provider tags, so structured
// metadata dominates there.
func mergeForRole(role string, derived, structured *Origin) *Origin {
	if role == RoleUser {
		return MergeOrigins(derived, structured)
	}
	return MergeOrigins(structured, derived)
}
