package webui

import (
	"log/slog"
	"net/http"

	"github.com/NYTimes/gziphandler"
	"github.com/alex65536/formgate/internal/util/httputil"
	"github.com/alex65536/formgate/internal/util/slogx"
	"github.com/gorilla/csrf"
)

type middlewareBuilder struct {
	Log         *slog.Logger
	Prefix      string
	CSRFProtect func(http.Handler) http.Handler
	Compress    func(http.Handler) http.Handler
}

func newMiddlewareBuilder(log *slog.Logger, prefix string, csrfKey []byte, insecure bool) *middlewareBuilder {
	path := prefix
	if path == "" {
		path = "/"
	}
	return &middlewareBuilder{
		Log:    log,
		Prefix: prefix,
		CSRFProtect: csrf.Protect(
			csrfKey,
			csrf.Secure(!insecure),
			csrf.Path(path),
			csrf.SameSite(csrf.SameSiteLaxMode),
			csrf.ErrorHandler(http.HandlerFunc(csrfFailed(log))),
		),
		Compress: gziphandler.GzipHandler,
	}
}

func csrfFailed(log *slog.Logger) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		reason := "unknown"
		if err := csrf.FailureReason(req); err != nil {
			reason = err.Error()
		}
		log.Warn("csrf check failed",
			slog.String("rid", httputil.ExtractReqID(req.Context())),
			slog.String("reason", reason),
		)
		writeHTTPErr(log, w, httputil.MakeError(http.StatusForbidden, "bad csrf token, reload the page"))
	}
}

type middleware struct {
	b    *middlewareBuilder
	h    http.Handler
	kind string
}

func (m *middleware) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	req = httputil.WrapRequest(req)
	m.b.Log.Info("handle request",
		slog.String("rid", httputil.ExtractReqID(req.Context())),
		slog.String("uri", req.RequestURI),
		slog.String("method", req.Method),
		slog.String("addr", req.RemoteAddr),
		slog.String("kind", m.kind),
	)
	switch m.kind {
	case "page":
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Frame-Options", "DENY")
	case "static":
		w.Header().Set("Cache-Control", "max-age=86400, public")
	default:
		panic("must not happen")
	}
	m.h.ServeHTTP(w, req)
}

func (b *middlewareBuilder) wrap(h http.Handler, kind string) http.Handler {
	if kind == "page" {
		h = b.CSRFProtect(h)
	}
	h = &middleware{b: b, h: h, kind: kind}
	h = b.Compress(h)
	return h
}

func (b *middlewareBuilder) WrapPage(h http.Handler) http.Handler {
	return b.wrap(h, "page")
}

func (b *middlewareBuilder) WrapStatic(h http.Handler) http.Handler {
	return b.wrap(h, "static")
}

func writeHTTPErr(log *slog.Logger, w http.ResponseWriter, err error) {
	if err = httputil.WriteErrorResponse(err, w); err != nil {
		log.Info("error writing error response", slogx.Err(err))
	}
}
