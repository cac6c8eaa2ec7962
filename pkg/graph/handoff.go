package graph

import (
	"github.com/teamh-ai/teamh/pkg/protocol"
)

// DetectHandoff scans only the messages appended after prevCount, newest
// first, for a delegation marker in a Tool message. Historical markers from
// earlier turns are never re-detected. When several new Tool messages carry
// markers, the newest one wins; the rest are ignored.
func DetectHandoff(messages []protocol.Message, prevCount int, known map[string]bool) (string, bool) {
	if prevCount < 0 {
		prevCount = 0
	}
	for i := len(messages) - 1; i >= prevCount; i-- {
		msg := messages[i]
		if msg.Role != protocol.RoleTool {
			continue
		}
		target, ok := protocol.ParseHandoffTarget(msg.Content)
		if !ok {
			continue
		}
		if !known[target] {
			continue
		}
		return target, true
	}
	return "", false
}
