package logging

import (
	"context"
	"log/slog"
)

// sessionIDHandler stamps every record with a session id so lines from one
// scan or comparison can be grepped out of the shared log file. An id on the
// record's context wins over the invocation id, and loggers that already
// carry a session_id attribute are left alone.
type sessionIDHandler struct {
	base      slog.Handler
	sessionID string
	bound     bool
}

func newSessionIDHandler(base slog.Handler, sessionID string) slog.Handler {
	if base == nil {
		return NoopHandler{}
	}
	return &sessionIDHandler{
		base:      base,
		sessionID: sessionID,
	}
}

func (h *sessionIDHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *sessionIDHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.bound {
		return h.base.Handle(ctx, record)
	}
	id := h.sessionID
	if fromCtx, ok := SessionIDFromContext(ctx); ok {
		id = fromCtx
	}
	record.AddAttrs(slog.String(FieldSessionID, id))
	return h.base.Handle(ctx, record)
}

func (h *sessionIDHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := h.bound
	for _, attr := range attrs {
		if attr.Key == FieldSessionID {
			bound = true
		}
	}
	return &sessionIDHandler{
		base:      h.base.WithAttrs(attrs),
		sessionID: h.sessionID,
		bound:     bound,
	}
}

func (h *sessionIDHandler) WithGroup(name string) slog.Handler {
	return &sessionIDHandler{
		base:      h.base.WithGroup(name),
		sessionID: h.sessionID,
		bound:     h.bound,
	}
}
