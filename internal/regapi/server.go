package regapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alex65536/formgate/internal/util/httputil"
	"github.com/alex65536/formgate/internal/util/slogx"
	"golang.org/x/time/rate"
)

type Server interface {
	Register(ctx context.Context, log *slog.Logger, req *RegisterRequest) (*RegisterResponse, error)
	Login(ctx context.Context, log *slog.Logger, req *LoginRequest) (*LoginResponse, error)
	Rules(ctx context.Context, log *slog.Logger, req *RulesRequest) (*RulesResponse, error)
}

type ServerOptions struct {
	RPSLimit    float64 `toml:"rps-limit"`
	RPSBurst    int     `toml:"rps-burst"`
	TrustProxy  bool    `toml:"trust-proxy"`
	MaxBodySize int64   `toml:"max-body-size"`
	// Limiters idle for this long are forgotten.
	LimiterIdle time.Duration `toml:"limiter-idle"`
}

func (o *ServerOptions) FillDefaults() {
	if o.RPSLimit == 0 {
		o.RPSLimit = 2
	}
	if o.RPSBurst == 0 {
		o.RPSBurst = 10
	}
	if o.MaxBodySize == 0 {
		o.MaxBodySize = 64 * 1024
	}
	if o.LimiterIdle == 0 {
		o.LimiterIdle = 10 * time.Minute
	}
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type limiters struct {
	o     *ServerOptions
	mu    sync.Mutex
	items map[string]*limiterEntry
	gcAt  time.Time
}

func newLimiters(o *ServerOptions) *limiters {
	return &limiters{
		o:     o,
		items: make(map[string]*limiterEntry),
		gcAt:  time.Now().Add(o.LimiterIdle),
	}
}

// Reserve takes a token for ip. If none is available now, it returns the delay after
// which a retry would pass.
func (l *limiters) Reserve(ip string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if now.After(l.gcAt) {
		for k, e := range l.items {
			if now.Sub(e.lastSeen) > l.o.LimiterIdle {
				delete(l.items, k)
			}
		}
		l.gcAt = now.Add(l.o.LimiterIdle)
	}
	e, ok := l.items[ip]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(rate.Limit(l.o.RPSLimit), l.o.RPSBurst)}
		l.items[ip] = e
	}
	e.lastSeen = now
	r := e.lim.ReserveN(now, 1)
	if !r.OK() {
		return 0, false
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return d, false
	}
	return 0, true
}

func statusCode(code ErrorCode) int {
	switch code {
	case ErrValidation:
		return http.StatusUnprocessableEntity
	case ErrUserExists:
		return http.StatusConflict
	case ErrBadCredentials:
		return http.StatusUnauthorized
	case ErrRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}

func writeAPIError(log *slog.Logger, w http.ResponseWriter, apiErr *Error, header http.Header) {
	data, err := json.Marshal(apiErr)
	if err != nil {
		log.Warn("error marshalling error json", slogx.Err(err))
		if err := httputil.WriteErrorResponse(fmt.Errorf("marshal error json"), w); err != nil {
			log.Info("error writing error response", slogx.Err(err))
		}
		return
	}
	for k, vs := range header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode(apiErr.Code))
	if _, err := w.Write(data); err != nil {
		log.Info("error writing error response", slogx.Err(err))
	}
}

func makeHandler[Req any, Rsp any](
	log *slog.Logger,
	o *ServerOptions,
	lims *limiters,
	fn func(context.Context, *slog.Logger, *Req) (*Rsp, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, hReq *http.Request) {
		hReq = httputil.WrapRequest(hReq)
		ip := httputil.ClientIP(hReq, o.TrustProxy)
		log := log.With(
			slog.String("addr", ip),
			slog.String("rid", httputil.ExtractReqID(hReq.Context())),
		)
		header := make(http.Header)

		if err := func() error {
			log.Info("handle regapi request")

			if hReq.Method != http.MethodPost {
				log.Warn("unsupported method", slog.String("http_method", hReq.Method))
				return httputil.MakeError(http.StatusMethodNotAllowed, "method not allowed")
			}

			if delay, ok := lims.Reserve(ip); !ok {
				log.Warn("rate limited", slog.Duration("retry_after", delay))
				header.Set("Retry-After", httputil.RetryAfter(delay))
				return &Error{Code: ErrRateLimited, Message: "too many requests"}
			}

			reqBytes, err := io.ReadAll(http.MaxBytesReader(w, hReq.Body, o.MaxBodySize))
			if err != nil {
				log.Info("error reading request", slogx.Err(err))
				return httputil.MakeError(http.StatusBadRequest, "read request")
			}
			var req Req
			if err := json.Unmarshal(reqBytes, &req); err != nil {
				log.Warn("error unmarshalling json", slogx.Err(err))
				return httputil.MakeError(http.StatusBadRequest, "unmarshal json request")
			}

			rsp, err := fn(hReq.Context(), log, &req)
			if err != nil {
				if apiErr := (*Error)(nil); errors.As(err, &apiErr) {
					return err
				}
				log.Warn("handler failed", slogx.Err(err))
				return httputil.MakeError(http.StatusInternalServerError, "internal server error")
			}

			rspBytes, err := json.Marshal(rsp)
			if err != nil {
				log.Warn("error marshalling json", slogx.Err(err))
				return httputil.MakeError(http.StatusInternalServerError, "marshal json response")
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write(rspBytes); err != nil {
				log.Info("error writing response", slogx.Err(err))
			}
			return nil
		}(); err != nil {
			if apiErr := (*Error)(nil); errors.As(err, &apiErr) {
				log.Info("api error", slog.String("code", apiErr.Code.String()), slog.String("msg", apiErr.Message))
				writeAPIError(log, w, apiErr, header)
				return
			}
			if err := httputil.WriteErrorResponse(err, w); err != nil {
				log.Info("error writing error response", slogx.Err(err))
			}
		}
	}
}

func RegisterServer(s Server, mux *http.ServeMux, o ServerOptions, prefix string, log *slog.Logger) error {
	if s == nil {
		return fmt.Errorf("no server")
	}
	o.FillDefaults()
	if o.RPSLimit < 0 || o.RPSBurst < 0 {
		return fmt.Errorf("negative rate limits")
	}
	lims := newLimiters(&o)
	mux.HandleFunc(prefix+"/register",
		makeHandler(log.With(slog.String("method", "register")), &o, lims, s.Register))
	mux.HandleFunc(prefix+"/login",
		makeHandler(log.With(slog.String("method", "login")), &o, lims, s.Login))
	mux.HandleFunc(prefix+"/rules",
		makeHandler(log.With(slog.String("method", "rules")), &o, lims, s.Rules))
	return nil
}
