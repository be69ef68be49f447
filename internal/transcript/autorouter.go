package transcript

import (
	"regexp"
	"strings"
)

var (
	// Leading "System: [...]" line, preserved across scaffolding removal.
	systemLineRe = regexp.MustCompile(`^System:\s*\[[^\]]+\][^\n]*\n?`)
	// Tier sentence injected by the auto-router.
	routerTierRe = regexp.MustCompile(`^\s*You are running as\s+(\S+)\s+tier`)
	// conversation_label JSON field inside the routing context block.
	conversationLabelRe = regexp.MustCompile(`"conversation_label"\s*:\s*"([^"]*)"`)
	labelIdentityRe     = regexp.MustCompile(`^(.*?)\s+user\s+id:(\S+)$`)
	// "Conversation info...:" header introducing the scaffolding JSON block.
	conversationInfoRe = regexp.MustCompile(`Conversation info[^\n:]*:`)
	// Transcript-style line: [Provider] [... user id:...].
	transcriptLineRe = regexp.MustCompile(`\[\w+\]\s*\[[^\]]*user\s+id:[^\]]*\]`)
)

// stripAutoRouter removes auto-router scaffolding from text that followed an
// [Auto-Router] metadata prefix. It captures the routed model tier and, when
// the scaffolding embeds a conversation_label identity, a fallback origin.
// When no tier sentence is present the text is returned untouched; when the
// scaffolding block cannot be located the text is also returned untouched but
// the tier and origin hints still apply.
func stripAutoRouter(conv Conventions, text string) (out string, routedModel string, fallback *Origin) {
	sysLine := ""
	rest := text
	if m := systemLineRe.FindString(rest); m != "" {
		sysLine = strings.TrimSpace(m)
		rest = rest[len(m):]
	}

	tier := routerTierRe.FindStringSubmatch(rest)
	if tier == nil {
		return text, "", nil
	}
	routedModel = tier[1]

	if label := conversationLabelRe.FindStringSubmatch(rest); label != nil {
		if id := labelIdentityRe.FindStringSubmatch(strings.TrimSpace(label[1])); id != nil {
			fallback = &Origin{From: id[1], AccountID: id[2]}
		}
	}

	remainder, ok := cutRouterScaffolding(conv, rest)
	if !ok {
		return text, routedModel, fallback
	}
	remainder = strings.TrimLeft(remainder, " \t\r\n")
	if sysLine != "" {
		if remainder == "" {
			remainder = sysLine
		} else {
			remainder = sysLine + "\n" + remainder
		}
	}
	return remainder, routedModel, fallback
}

// cutRouterScaffolding locates the injected routing block and returns the
// text after it. Priority: the "Conversation info...: {...}" JSON block, then
// a transcript-style provider line, then the last routing-instruction marker
// line.
func cutRouterScaffolding(conv Conventions, text string) (string, bool) {
	if loc := conversationInfoRe.FindStringIndex(text); loc != nil {
		if end, ok := skipJSONBlock(text, loc[1]); ok {
			return text[end:], true
		}
	}
	if loc := transcriptLineRe.FindStringIndex(text); loc != nil {
		return text[loc[0]:], true
	}

	lines := strings.Split(text, "\n")
	last := -1
	for i, line := range lines {
		for _, marker := range conv.RouteMarkers {
			if strings.Contains(line, marker) {
				last = i
				break
			}
		}
	}
	if last >= 0 {
		return strings.Join(lines[last+1:], "\n"), true
	}
	return "", false
}

// skipJSONBlock advances past an optionally fenced brace-balanced JSON object
// starting at or after pos. Returns the index just past the object (and any
// closing fence).
func skipJSONBlock(text string, pos int) (int, bool) {
	open := strings.Index(text[pos:], "{")
	if open < 0 {
		return 0, false
	}
	i := pos + open
	depth := 0
	inString := false
	escaped := false
	for ; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end := i + 1
				// Swallow a closing code fence left over from the block.
				trimmed := strings.TrimLeft(text[end:], " \t\r\n")
				if strings.HasPrefix(trimmed, "```") {
					end = len(text) - len(trimmed) + 3
				}
				return end, true
			}
		}
	}
	return 0, false
}
