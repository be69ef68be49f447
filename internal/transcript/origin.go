package transcript

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// A single leading bracket token, e.g. "[Discord alice user id:123] ".
	leadingBracketRe = regexp.MustCompile(`^\[[^\[\]]+\]\s*`)
	// Provider-bracket grammar: [Provider Username], [Provider Username user
	// id:ID], with optional trailing detail before the closing bracket.
	providerBracketRe = regexp.MustCompile(`^\[(\w+)\s+(\S+?)(?:\s+user\s+id:(\S+))?(?:\s+[^\]]*?)?\]$`)
)

// ExtractStructuredOrigin scans the record's own origin field, then
// meta.origin, then metadata.origin. The first candidate carrying at least
// one of provider/from/surface/label wins.
func ExtractStructuredOrigin(raw map[string]any) *Origin {
	candidates := []any{raw["origin"]}
	if meta := asMap(raw["meta"]); meta != nil {
		candidates = append(candidates, meta["origin"])
	}
	if metadata := asMap(raw["metadata"]); metadata != nil {
		candidates = append(candidates, metadata["origin"])
	}
	for _, c := range candidates {
		m := asMap(c)
		if m == nil {
			continue
		}
		if firstString(m, "provider", "from", "surface", "label") == "" {
			continue
		}
		origin := &Origin{
			Provider:    asString(m["provider"]),
			Surface:     asString(m["surface"]),
			ChatType:    firstString(m, "chatType", "chat_type"),
			From:        asString(m["from"]),
			To:          asString(m["to"]),
			AccountID:   firstString(m, "accountId", "account_id"),
			ThreadID:    firstString(m, "threadId", "thread_id"),
			Label:       asString(m["label"]),
			RoutedModel: firstString(m, "routedModel", "routed_model"),
			AvatarURL:   resolveAvatarURL(m),
		}
		if origin.IsZero() {
			return nil
		}
		return origin
	}
	return nil
}

// resolveAvatarURL prefers explicit URL fields; for Discord origins carrying
// a bare avatar hash it synthesizes the CDN URL. Animated hashes (prefix
// "a_") get the gif variant.
func resolveAvatarURL(m map[string]any) string {
	if url := firstString(m, "avatarUrl", "avatar_url", "profileImageUrl"); url != "" {
		return url
	}
	if asString(m["provider"]) != "discord" {
		return ""
	}
	hash := asString(m["avatar"])
	accountID := firstString(m, "accountId", "account_id")
	if hash == "" || len(hash) >= 50 || accountID == "" {
		return ""
	}
	ext := "webp"
	if strings.HasPrefix(hash, "a_") {
		ext = "gif"
	}
	return fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.%s", accountID, hash, ext)
}

// stripMetadataPrefixes consumes adjacent leading bracket tokens. The first
// token matching a recognized provider resolves the origin; later provider
// matches never overwrite it. Unrecognized brackets are preserved verbatim as
// diagnostic metadata prefixes.
func stripMetadataPrefixes(conv Conventions, text string) (rest string, origin *Origin, prefixes []string) {
	rest = text
	for {
		loc := leadingBracketRe.FindStringIndex(rest)
		if loc == nil {
			return rest, origin, prefixes
		}
		token := strings.TrimSpace(rest[:loc[1]])
		rest = rest[loc[1]:]

		if m := providerBracketRe.FindStringSubmatch(token); m != nil {
			provider := strings.ToLower(m[1])
			if conv.Providers[provider] {
				if origin == nil {
					origin = &Origin{Provider: provider, From: m[2], AccountID: m[3]}
				}
				continue
			}
		}
		prefixes = append(prefixes, token)
	}
}
