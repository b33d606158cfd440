package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/smartlight/internal/logging"
)

// corsPolicy is the cross-origin policy for the control API. The local web
// UI and the active_awss command are the only callers.
type corsPolicy struct {
	origin  string
	methods string
	headers string
	maxAge  string
}

func defaultCORS() corsPolicy {
	return corsPolicy{
		origin:  "*",
		methods: strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", "),
		headers: strings.Join([]string{"Content-Type", "Authorization", "Accept", "Last-Event-ID"}, ", "),
		maxAge:  strconv.Itoa(int((24 * time.Hour).Seconds())),
	}
}

func (p corsPolicy) apply(set func(key, value string)) {
	set("Access-Control-Allow-Origin", p.origin)
	set("Access-Control-Allow-Methods", p.methods)
	set("Access-Control-Allow-Headers", p.headers)
	set("Access-Control-Max-Age", p.maxAge)
}

// preflight answers OPTIONS on the mux; huma routing never sees them.
func (p corsPolicy) preflight(mux *http.ServeMux) {
	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, _ *http.Request) {
		p.apply(w.Header().Set)
		w.WriteHeader(http.StatusNoContent)
	})
}

func (p corsPolicy) middleware(ctx huma.Context, next func(huma.Context)) {
	p.apply(ctx.SetHeader)
	if ctx.Method() == http.MethodOptions {
		ctx.SetStatus(http.StatusNoContent)
		return
	}
	next(ctx)
}

// requestLogger logs each request once it completes. Event streams and
// preflights log at debug, failures at warn or error.
func requestLogger(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	next(ctx)

	status := ctx.Status()
	attrs := []slog.Attr{
		slog.String("method", ctx.Method()),
		slog.String("path", ctx.URL().Path),
		slog.String("remote_addr", ctx.RemoteAddr()),
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
	}
	if ua := ctx.Header("User-Agent"); ua != "" {
		attrs = append(attrs, slog.String("user_agent", ua))
	}

	level := slog.LevelInfo
	switch {
	case status >= http.StatusInternalServerError:
		level = slog.LevelError
	case status >= http.StatusBadRequest:
		level = slog.LevelWarn
	case ctx.Method() == http.MethodOptions, ctx.URL().Path == eventsPath:
		level = slog.LevelDebug
	}
	logging.GetLogger("http").LogAttrs(ctx.Context(), level, "HTTP request completed", attrs...)
}
