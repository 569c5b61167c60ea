package log

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrFmtHandler decorates records that carry an ErrAttr with the type of the
// innermost error and the stack captured by cockroachdb/errors, so selector
// failures logged through slog keep the same detail as the zerolog backend.
type ErrFmtHandler struct {
	next slog.Handler
}

// WrapByErrFmtHandler wraps next with an ErrFmtHandler.
func WrapByErrFmtHandler(next slog.Handler) slog.Handler {
	return &ErrFmtHandler{next: next}
}

func (h *ErrFmtHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.next.Enabled(ctx, l)
}

func (h *ErrFmtHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key != ErrAttrKey {
			return true
		}
		err, _ = attr.Value.Any().(error)
		return false
	})
	if err != nil {
		r.AddAttrs(slog.String(ErrorTypeKey, fmt.Sprintf("%T", errors.UnwrapAll(err))))
		if st := stacktrace(err); st != "" {
			r.AddAttrs(slog.String(StacktraceAttrKey, st))
		}
	}
	return h.next.Handle(ctx, r)
}

func (h *ErrFmtHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ErrFmtHandler{next: h.next.WithAttrs(attrs)}
}

func (h *ErrFmtHandler) WithGroup(g string) slog.Handler {
	return &ErrFmtHandler{next: h.next.WithGroup(g)}
}

// stacktrace renders the innermost recorded stack, most recent call first.
func stacktrace(err error) string {
	st := errors.GetReportableStackTrace(err)
	if st == nil || len(st.Frames) == 0 {
		return ""
	}
	var b strings.Builder
	for i := len(st.Frames) - 1; i >= 0; i-- {
		f := st.Frames[i]
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", f.Function, f.AbsPath, f.Lineno)
	}
	return b.String()
}
