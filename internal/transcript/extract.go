package transcript

import (
	"encoding/json"
	"strings"
)

// Loose accessors over untrusted record shapes. Wrong-typed fields read as
// absent; nothing here panics.

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

// firstString returns the first non-empty string among the given keys.
func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := asString(m[k]); s != "" {
			return s
		}
	}
	return ""
}

// asMillis coerces a timestamp field to epoch milliseconds, 0 when absent.
func asMillis(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case int:
		return int64(t)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// ExtractText pulls the best-effort plain-text body out of a raw record.
// A string content field wins; a content part list contributes its text parts
// joined by newline; a top-level text field is the last resort. Returns ""
// when no text is found.
func ExtractText(raw map[string]any) string {
	switch content := raw["content"].(type) {
	case string:
		return content
	case []any:
		var parts []string
		for _, p := range content {
			part := asMap(p)
			if part == nil || asString(part["type"]) != "text" {
				continue
			}
			if text := asString(part["text"]); text != "" {
				parts = append(parts, text)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
	}
	return asString(raw["text"])
}

// ExtractToolItems scans a raw record's content parts for tool invocations
// and tool results. The list is scanned twice, calls first, so every call
// item precedes every result item from the same record.
func ExtractToolItems(raw map[string]any) []ToolItem {
	parts := asList(raw["content"])
	if len(parts) == 0 {
		return nil
	}

	var items []ToolItem
	for _, p := range parts {
		part := asMap(p)
		if part == nil || !isToolCallPart(part) {
			continue
		}
		payload := part["arguments"]
		if payload == nil {
			payload = part["args"]
		}
		if payload == nil {
			payload = map[string]any{}
		}
		items = append(items, ToolItem{Kind: toolItemCall, Name: toolName(part), Payload: payload})
	}
	for _, p := range parts {
		part := asMap(p)
		if part == nil {
			continue
		}
		switch strings.ToLower(asString(part["type"])) {
		case "toolresult", "tool_result":
		default:
			continue
		}
		items = append(items, ToolItem{Kind: toolItemResult, Name: toolName(part), Payload: resultPayload(part)})
	}
	return items
}

// isToolCallPart matches explicit tool-call type tags plus a duck-typed
// fallback for providers that omit the tag but carry name + arguments.
func isToolCallPart(part map[string]any) bool {
	switch strings.ToLower(asString(part["type"])) {
	case "toolcall", "tool_call", "tooluse", "tool_use":
		return true
	}
	if _, ok := part["name"].(string); ok && part["arguments"] != nil {
		return true
	}
	return false
}

func toolName(part map[string]any) string {
	if name, ok := part["name"].(string); ok && name != "" {
		return name
	}
	return "tool"
}

// resultPayload resolves a tool-result part's payload: text field, else
// string content, else result field, else the whole part.
func resultPayload(part map[string]any) any {
	if text := asString(part["text"]); text != "" {
		return text
	}
	if content, ok := part["content"].(string); ok && content != "" {
		return content
	}
	if part["result"] != nil {
		return part["result"]
	}
	return part
}

// ExtractImages normalizes inline and attached image data. Sources, in
// order: content parts tagged "image", then top-level attachments and images
// lists. Entries without base64 data and without a URL reference are dropped.
func ExtractImages(raw map[string]any) []Image {
	var images []Image
	for _, p := range asList(raw["content"]) {
		part := asMap(p)
		if part == nil {
			continue
		}
		switch strings.ToLower(asString(part["type"])) {
		case "image", "image_url":
		default:
			continue
		}
		if img, ok := imageFromPart(part); ok {
			images = append(images, img)
		}
	}
	for _, key := range []string{"attachments", "images"} {
		for _, a := range asList(raw[key]) {
			entry := asMap(a)
			if entry == nil {
				continue
			}
			if img, ok := imageFromPart(entry); ok {
				images = append(images, img)
			}
		}
	}
	return images
}

func imageFromPart(part map[string]any) (Image, bool) {
	img := Image{
		MimeType:   firstString(part, "mimeType", "mime_type", "contentType", "content_type", "mime"),
		Data:       firstString(part, "data", "base64", "content"),
		FileName:   firstString(part, "fileName", "file_name", "filename", "name"),
		PreviewURL: firstString(part, "previewUrl", "preview_url", "url"),
	}

	// Anthropic-style nested source block.
	if source := asMap(part["source"]); source != nil {
		if img.MimeType == "" {
			img.MimeType = firstString(source, "media_type", "mediaType", "mimeType")
		}
		if img.Data == "" {
			img.Data = asString(source["data"])
		}
		if img.PreviewURL == "" {
			img.PreviewURL = asString(source["url"])
		}
	}
	if imageURL := asMap(part["image_url"]); imageURL != nil && img.PreviewURL == "" {
		img.PreviewURL = asString(imageURL["url"])
	}

	if mime, data, ok := splitDataURI(img.Data); ok {
		if img.MimeType == "" {
			img.MimeType = mime
		}
		img.Data = data
	}
	if mime, data, ok := splitDataURI(img.PreviewURL); ok {
		if img.Data == "" {
			img.Data = data
			if img.MimeType == "" {
				img.MimeType = mime
			}
		}
		img.PreviewURL = ""
	}

	if img.MimeType != "" && !strings.HasPrefix(img.MimeType, "image/") {
		return Image{}, false
	}
	if img.MimeType == "" {
		img.MimeType = "image/png"
	}
	// Data may be empty only for URL-referenced images.
	if img.Data == "" && img.PreviewURL == "" {
		return Image{}, false
	}
	return img, true
}

// splitDataURI splits a data:<mime>;base64,<payload> URI into its parts.
func splitDataURI(s string) (mime, data string, ok bool) {
	if !strings.HasPrefix(s, "data:") {
		return "", "", false
	}
	rest := s[len("data:"):]
	comma := strings.Index(rest, ",")
	if comma < 0 {
		return "", "", false
	}
	header := rest[:comma]
	data = rest[comma+1:]
	mime = strings.TrimSuffix(header, ";base64")
	return mime, data, true
}
