package transcript

import "strings"

// Conventions captures the deployment-specific textual conventions the
// heuristic parsers key on. The defaults match the gateway's stock prompt
// conventions; deployments that add providers or change sentinels can supply
// their own table.
type Conventions struct {
	// Providers recognized in bracket-style metadata prefixes, lower-cased.
	Providers map[string]bool
	// AutoRouterTag marks injected routing scaffolding, e.g. "[Auto-Router]".
	AutoRouterTag string
	// HeartbeatToken is the heartbeat acknowledgement sentinel body.
	HeartbeatToken string
	// HeartbeatAck replaces the sentinel for display.
	HeartbeatAck string
	// RouteMarkers are substrings identifying routing-instruction lines
	// inside auto-router scaffolding.
	RouteMarkers []string
}

// DefaultConventions returns the stock convention table.
func DefaultConventions() Conventions {
	return Conventions{
		Providers: providerSet(
			"discord", "telegram", "slack", "whatsapp", "signal", "imessage",
			"nostr", "googlechat", "msteams", "email", "matrix", "irc",
			"webchat",
		),
		AutoRouterTag:  "[Auto-Router]",
		HeartbeatToken: "HEARTBEAT_OK",
		HeartbeatAck:   "Heartbeat acknowledged.",
		RouteMarkers: []string{
			"IS correct for:**",
			"**Call route_redo early",
			"If you call route_redo",
			"route_redo({",
		},
	}
}

func providerSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = true
	}
	return set
}

// isHeartbeat reports whether the trimmed body is exactly the heartbeat
// sentinel, case-insensitively.
func (c Conventions) isHeartbeat(body string) bool {
	return strings.EqualFold(strings.TrimSpace(body), c.HeartbeatToken)
}
