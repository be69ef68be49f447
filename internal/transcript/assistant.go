package transcript

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ReplyToCurrent marks "reply to the conversation this run came from" in an
// origin target when the assistant used the bare reply_to_current directive.
const ReplyToCurrent = "reply:current"

// Assistant directive tags: [[reply_to_current]] or [[reply_to: target]].
var directiveRe = regexp.MustCompile(`(?i)\[\[\s*(?:reply_to_current|reply_to\s*:\s*([^\]\n]+))\s*\]\]`)

// StripDirectives removes assistant reply directives from text. The explicit
// target keeps the last match; the reply-to-current flag is sticky across
// matches.
func StripDirectives(text string) (stripped, target string, replyCurrent bool) {
	stripped = directiveRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := directiveRe.FindStringSubmatch(m)
		if t := strings.TrimSpace(sub[1]); t != "" {
			target = t
		} else {
			replyCurrent = true
		}
		return ""
	})
	return stripped, target, replyCurrent
}

// parseAssistantContent strips reply directives and detects the JSON
// send-action shape. Unparseable or unrecognized JSON falls back to the
// directive-stripped text with no derived origin.
func parseAssistantContent(conv Conventions, text string) parsedContent {
	stripped, target, replyCurrent := StripDirectives(text)
	trimmed := strings.TrimSpace(stripped)

	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		var payload map[string]any
		if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
			if asString(payload["action"]) == "send" {
				if channel, ok := payload["channel"].(string); ok {
					body, innerTarget, innerReply := StripDirectives(asString(payload["message"]))
					if innerTarget != "" {
						target = innerTarget
					}
					replyCurrent = replyCurrent || innerReply

					to := target
					if to == "" {
						to = normalizeSendTarget(firstString(payload, "to", "target"))
					}
					if to == "" && replyCurrent {
						to = ReplyToCurrent
					}
					return parsedContent{
						role:    RoleAssistant,
						content: strings.TrimSpace(body),
						origin:  MergeOrigins(&Origin{Provider: channel, To: to}, nil),
					}
				}
			}
		}
		return parsedContent{role: RoleAssistant, content: trimmed}
	}

	out := parsedContent{role: RoleAssistant, content: trimmed}
	switch {
	case target != "":
		out.origin = &Origin{To: target}
	case replyCurrent:
		out.origin = &Origin{To: ReplyToCurrent}
	}
	if conv.isHeartbeat(out.content) {
		out.content = conv.HeartbeatAck
		out.special = FormatHeartbeatOK
	}
	return out
}

// normalizeSendTarget canonicalizes a send-payload target. Purely numeric
// targets are channel ids; empty targets resolve to none.
func normalizeSendTarget(target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return ""
	}
	if isDigits(target) {
		return "channel:" + target
	}
	return target
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// parseSendPayload applies the assistant send-origin logic to a "message"
// tool-call payload, recovering the outgoing body and origin.
func parseSendPayload(conv Conventions, payload any) (content string, origin *Origin) {
	m := payloadMap(payload)
	if m == nil {
		return "", nil
	}
	body, target, replyCurrent := StripDirectives(asString(m["message"]))
	channel := asString(m["channel"])
	to := target
	if to == "" {
		to = normalizeSendTarget(firstString(m, "to", "target"))
	}
	if to == "" && replyCurrent {
		to = ReplyToCurrent
	}
	return strings.TrimSpace(body), MergeOrigins(&Origin{Provider: channel, To: to}, nil)
}

// parseSendResultOrigin mirrors parseSendPayload for the result side of a
// "message" tool call: channel maps to provider, to/target to the normalized
// destination.
func parseSendResultOrigin(payload any) *Origin {
	m := payloadMap(payload)
	if m == nil {
		return nil
	}
	return MergeOrigins(&Origin{
		Provider: asString(m["channel"]),
		To:       normalizeSendTarget(firstString(m, "to", "target")),
	}, nil)
}

// payloadMap coerces a tool payload to a map, parsing brace-delimited JSON
// strings along the way.
func payloadMap(payload any) map[string]any {
	switch p := payload.(type) {
	case map[string]any:
		return p
	case string:
		trimmed := strings.TrimSpace(p)
		if !strings.HasPrefix(trimmed, "{") {
			return nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(trimmed), &m); err != nil {
			return nil
		}
		return m
	default:
		return nil
	}
}
