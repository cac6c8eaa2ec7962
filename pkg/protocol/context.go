package protocol

import "context"

// RunContext carries per-request identity through the graph and into tools.
type RunContext struct {
	UserID    string `json:"user_id"`
	ThreadID  string `json:"thread_id"`
	SessionID string `json:"session_id,omitempty"`
}

type runContextKeyType string

const runContextKey runContextKeyType = "teamh:runContext"

// WithRunContext attaches the run identity to a context.
func WithRunContext(ctx context.Context, rc RunContext) context.Context {
	return context.WithValue(ctx, runContextKey, rc)
}

// RunContextFrom extracts the run identity, if present.
func RunContextFrom(ctx context.Context) (RunContext, bool) {
	rc, ok := ctx.Value(runContextKey).(RunContext)
	return rc, ok
}
