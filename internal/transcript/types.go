// Package transcript normalizes heterogeneous gateway chat history into a
// canonical, renderable transcript. It classifies roles, extracts text, tool
// invocations, and images from loosely shaped records, and recovers message
// provenance ("origin") from structured metadata and provider-specific
// textual conventions. The pipeline never fails: malformed input degrades to
// plain text with no derived origin.
package transcript

import "strings"

// Canonical roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// SpecialFormat tags a record for downstream display substitution.
type SpecialFormat string

const (
	FormatSystemNote       SpecialFormat = "system-note"
	FormatHeartbeatRequest SpecialFormat = "heartbeat-request"
	FormatHeartbeatOK      SpecialFormat = "heartbeat-ok"
)

// Origin describes who a message is from or to, on what provider, surfaced
// where. All fields are optional; an origin with no populated field collapses
// to nil rather than an empty object.
type Origin struct {
	Provider    string `json:"provider,omitempty"`
	Surface     string `json:"surface,omitempty"`
	ChatType    string `json:"chatType,omitempty"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	AccountID   string `json:"accountId,omitempty"`
	ThreadID    string `json:"threadId,omitempty"`
	Label       string `json:"label,omitempty"`
	RoutedModel string `json:"routedModel,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// IsZero reports whether no field carries a value.
func (o *Origin) IsZero() bool {
	if o == nil {
		return true
	}
	return o.Provider == "" && o.Surface == "" && o.ChatType == "" &&
		o.From == "" && o.To == "" && o.AccountID == "" && o.ThreadID == "" &&
		o.Label == "" && o.RoutedModel == "" && o.AvatarURL == ""
}

// MergeOrigins combines two origins field by field. Primary's fields win when
// set; fallback fills gaps. Returns nil when the merged result is empty.
func MergeOrigins(primary, fallback *Origin) *Origin {
	if primary == nil && fallback == nil {
		return nil
	}
	merged := Origin{}
	if fallback != nil {
		merged = *fallback
	}
	if primary != nil {
		fill(&merged.Provider, primary.Provider)
		fill(&merged.Surface, primary.Surface)
		fill(&merged.ChatType, primary.ChatType)
		fill(&merged.From, primary.From)
		fill(&merged.To, primary.To)
		fill(&merged.AccountID, primary.AccountID)
		fill(&merged.ThreadID, primary.ThreadID)
		fill(&merged.Label, primary.Label)
		fill(&merged.RoutedModel, primary.RoutedModel)
		fill(&merged.AvatarURL, primary.AvatarURL)
	}
	if merged.IsZero() {
		return nil
	}
	return &merged
}

// fill overwrites dst when the primary value is set.
func fill(dst *string, primary string) {
	if primary != "" {
		*dst = primary
	}
}

// Image is a normalized inline or attached image. Data may be empty only when
// PreviewURL references the image instead.
type Image struct {
	MimeType   string `json:"mimeType"`
	Data       string `json:"data"`
	FileName   string `json:"fileName,omitempty"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

// ToolCall is a tool invocation attached to a canonical record.
type ToolCall struct {
	Name  string `json:"name"`
	Input any    `json:"input"`
}

// ToolResult is a tool outcome attached to a canonical record.
type ToolResult struct {
	Name   string `json:"name"`
	Output any    `json:"output"`
}

// Record is the pipeline's output unit: one renderable transcript entry.
type Record struct {
	ID               string        `json:"id"`
	Role             string        `json:"role"`
	Content          string        `json:"content"`
	Timestamp        int64         `json:"timestamp"`
	SpecialFormat    SpecialFormat `json:"specialFormat,omitempty"`
	MetadataPrefixes []string      `json:"metadataPrefixes,omitempty"`
	ToolCall         *ToolCall     `json:"toolCall,omitempty"`
	ToolResult       *ToolResult   `json:"toolResult,omitempty"`
	Origin           *Origin       `json:"origin,omitempty"`
	Images           []Image       `json:"images,omitempty"`
}

// Tool item kinds, produced per raw record and consumed by the orchestrator.
const (
	toolItemCall   = "call"
	toolItemResult = "result"
)

// ToolItem is a transient tool-invocation or tool-result extracted from a raw
// record's content parts.
type ToolItem struct {
	Kind    string
	Name    string
	Payload any
}

// parsedContent is the transient output of the role-specific content parsers.
// When one raw record explodes into multiple canonical records, segments
// carries the per-speaker sub-results and the top-level fields mirror the
// first segment.
type parsedContent struct {
	role     string
	content  string
	origin   *Origin
	prefixes []string
	special  SpecialFormat
	segments []parsedContent
}

// NormalizeRole maps a raw role token to a canonical role. Non-string input
// is treated as assistant output; tool-call and tool-result variants collapse
// to "tool"; anything else passes through lower-cased so unknown roles reach
// the caller unchanged instead of erroring.
func NormalizeRole(raw any) string {
	s, ok := raw.(string)
	if !ok {
		return RoleAssistant
	}
	switch strings.ToLower(s) {
	case "toolresult", "tool_result", "toolcall", "tool_call":
		return RoleTool
	default:
		return strings.ToLower(s)
	}
}
