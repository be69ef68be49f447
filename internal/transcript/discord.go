package transcript

import (
	"regexp"
	"strings"
)

var (
	// Discord speaker header inside an embedded transcript fragment:
	// [Discord alice user id:123 #general].
	discordHeaderRe = regexp.MustCompile(`\[Discord\s+([^\]\s]+)\s+user id:([^\]\s]+)\s+([^\]]*?)\]`)
	// Gateway-injected message id trailer at the end of a body.
	messageIDTrailerRe = regexp.MustCompile(`\n?\s*\[message_id:[^\]]*\]\s*$`)
)

// segmentDiscord splits a multi-speaker Discord transcript fragment into one
// user segment per speaker header. Each segment's body runs to the next
// header (or end of text) with the message id trailer stripped; empty bodies
// are dropped.
func segmentDiscord(conv Conventions, text string) []parsedContent {
	headers := discordHeaderRe.FindAllStringSubmatchIndex(text, -1)
	if len(headers) == 0 {
		return nil
	}

	var segments []parsedContent
	for i, h := range headers {
		bodyStart := h[1]
		bodyEnd := len(text)
		if i+1 < len(headers) {
			bodyEnd = headers[i+1][0]
		}
		body := strings.TrimSpace(stripMessageIDTrailer(text[bodyStart:bodyEnd]))
		if body == "" {
			continue
		}
		seg := parsedContent{
			role:    RoleUser,
			content: body,
			origin: &Origin{
				Provider:  "discord",
				From:      text[h[2]:h[3]],
				AccountID: text[h[4]:h[5]],
			},
		}
		if conv.isHeartbeat(body) {
			seg.content = conv.HeartbeatAck
			seg.special = FormatHeartbeatOK
		}
		segments = append(segments, seg)
	}
	return segments
}

func stripMessageIDTrailer(s string) string {
	return messageIDTrailerRe.ReplaceAllString(s, "")
}
