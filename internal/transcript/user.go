package transcript

import (
	"regexp"
	"strings"
)

var (
	systemMarkerRe = regexp.MustCompile(`^System:\s*\[[^\]]+\]`)
	systemPrefixRe = regexp.MustCompile(`^System:\s*\[[^\]]+\]\s*`)
	// Heartbeat-request prompts mention the heartbeat file, the expected
	// reply, or the bare word.
	heartbeatRequestRe = regexp.MustCompile(`(?i)heartbeat\.md|reply\s+heartbeat_ok|\bheartbeat\b`)
)

// parseUserContent runs the full user-side state machine: metadata-prefix
// stripping, auto-router scaffolding removal, and System/Discord
// segmentation. When segmentation applies the result mirrors the first
// segment and carries the full segment list for the orchestrator to expand.
func parseUserContent(conv Conventions, text string) parsedContent {
	rest, origin, prefixes := stripMetadataPrefixes(conv, text)

	if idx := autoRouterPrefixIndex(conv, prefixes); idx >= 0 {
		stripped, routedModel, fallback := stripAutoRouter(conv, rest)
		// Without the tier sentence nothing was consumed: the tag stays a
		// preserved diagnostic prefix and the text is left alone.
		if routedModel != "" {
			rest2, origin2, prefixes2 := stripMetadataPrefixes(conv, stripped)
			rest = rest2
			origin = MergeOrigins(origin, origin2)
			origin = MergeOrigins(origin, fallback)
			origin = MergeOrigins(origin, &Origin{RoutedModel: routedModel})
			prefixes = append(prefixes[:idx], prefixes[idx+1:]...)
			prefixes = append(prefixes, prefixes2...)
		}
	}

	trimmed := strings.TrimSpace(rest)
	sysLoc := systemMarkerRe.FindStringIndex(trimmed)
	discLoc := discordHeaderRe.FindStringIndex(trimmed)

	if sysLoc != nil || discLoc != nil {
		var segments []parsedContent

		systemText := trimmed
		if discLoc != nil {
			systemText = trimmed[:discLoc[0]]
		}
		if sysLoc != nil || strings.TrimSpace(systemText) != "" {
			seg := normalizeSystemBlock(conv, systemText)
			seg.role = RoleUser
			seg.origin = &Origin{Provider: "system", From: "System", Label: "System"}
			segments = append(segments, seg)
		}
		if discLoc != nil {
			segments = append(segments, segmentDiscord(conv, trimmed[discLoc[0]:])...)
		}
		if len(segments) > 0 {
			// Pending diagnostic prefixes attach to the first segment only.
			segments[0].prefixes = prefixes
			first := segments[0]
			first.segments = segments
			return first
		}
	}

	out := parsedContent{
		role:     RoleUser,
		content:  strings.TrimSpace(stripMessageIDTrailer(trimmed)),
		origin:   origin,
		prefixes: prefixes,
	}
	if conv.isHeartbeat(out.content) {
		out.content = conv.HeartbeatAck
		out.special = FormatHeartbeatOK
	}
	return out
}

// autoRouterPrefixIndex finds a diagnostic prefix equal to the auto-router
// tag, case-insensitively.
func autoRouterPrefixIndex(conv Conventions, prefixes []string) int {
	for i, p := range prefixes {
		if strings.EqualFold(strings.TrimSpace(p), conv.AutoRouterTag) {
			return i
		}
	}
	return -1
}

// normalizeSystemBlock reduces a "System: [...]" block to a display line and
// a special-format tag.
func normalizeSystemBlock(conv Conventions, text string) parsedContent {
	body := systemPrefixRe.ReplaceAllString(strings.TrimSpace(text), "")

	var lines []string
	for _, line := range strings.Split(body, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	switch {
	case len(lines) == 0:
		return parsedContent{content: "System update", special: FormatSystemNote}
	case len(lines) == 1 && conv.isHeartbeat(lines[0]):
		return parsedContent{content: conv.HeartbeatAck, special: FormatHeartbeatOK}
	case heartbeatRequestRe.MatchString(body):
		for _, line := range lines {
			if !conv.isHeartbeat(line) {
				return parsedContent{content: line, special: FormatHeartbeatRequest}
			}
		}
		return parsedContent{content: conv.HeartbeatAck, special: FormatHeartbeatOK}
	default:
		return parsedContent{content: lines[0], special: FormatSystemNote}
	}
}
