package protocol

import (
	"fmt"
	"strings"
)

// handoffMarker is the literal scanned for in tool message content.
const handoffMarker = "HANDOFF_TO_"

// HandoffSentinel renders the delegation marker a handoff tool emits,
// e.g. "[HANDOFF_TO_S] needs a web search".
func HandoffSentinel(target, reason string) string {
	return fmt.Sprintf("[%s%s] %s", handoffMarker, strings.ToUpper(target), reason)
}

// ParseHandoffTarget scans content for the handoff marker and returns the
// lowercase agent identifier that follows it. Only the first occurrence is
// considered.
func ParseHandoffTarget(content string) (string, bool) {
	idx := strings.Index(content, handoffMarker)
	if idx < 0 {
		return "", false
	}
	rest := content[idx+len(handoffMarker):]
	if len(rest) == 0 {
		return "", false
	}
	ch := rest[0]
	if ch < 'A' || ch > 'Z' {
		return "", false
	}
	return strings.ToLower(string(ch)), true
}
