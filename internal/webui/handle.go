package webui

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alex65536/formgate/internal/formgate"
	"github.com/alex65536/formgate/internal/userauth"
	"github.com/alex65536/formgate/internal/util/idgen"
	"github.com/gorilla/sessions"
)

type SessionStoreFactory interface {
	NewSessionStore(ctx context.Context, opts SessionOptions) sessions.Store
}

type Config struct {
	UserManager         *userauth.Manager
	SessionStoreFactory SessionStoreFactory

	prefix       string
	opts         *Options
	sessionStore sessions.Store
}

type Options struct {
	Session  SessionOptions   `toml:"session"`
	Gate     formgate.Options `toml:"gate"`
	ServerID string           `toml:"-"`
	// CSRF key, hex-encoded 32 bytes. Comes from the secrets file.
	CSRFKey string `toml:"-"`
	// Allow cookies over plain HTTP. Only for local development.
	Insecure bool `toml:"insecure"`
}

func (o *Options) FillDefaults() {
	o.Session.FillDefaults()
	o.Gate.FillDefaults()
	if o.ServerID == "" {
		o.ServerID = idgen.ID()
	}
}

func must[T any](t T, err error) T {
	if err != nil {
		panic(err)
	}
	return t
}

func Handle(ctx context.Context, log *slog.Logger, mux *http.ServeMux, prefix string, cfg Config, o Options) error {
	o.FillDefaults()
	if cfg.UserManager == nil {
		return fmt.Errorf("no user manager")
	}
	if cfg.SessionStoreFactory == nil {
		return fmt.Errorf("no session store factory")
	}
	csrfKey, err := decodeKey(o.CSRFKey)
	if err != nil {
		return fmt.Errorf("csrf key: %w", err)
	}
	o.Session.Insecure = o.Insecure
	// The gate must agree with the server-side checks of the user manager.
	o.Gate.Limits = cfg.UserManager.Limits()
	o.Gate.Digest = cfg.UserManager.Digest().Name()

	cfg.prefix = prefix
	cfg.opts = &o
	cfg.sessionStore = cfg.SessionStoreFactory.NewSessionStore(ctx, o.Session)

	b := newMiddlewareBuilder(log, prefix, csrfKey, o.Insecure)
	templ := newTemplator(&cfg)
	if err := templ.AddAll(); err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	mux.Handle(prefix+"/css/", b.WrapStatic(http.StripPrefix(prefix, http.FileServerFS(staticData))))
	mux.Handle(prefix+"/{$}", b.WrapPage(must(mainPage(log, &cfg, templ))))
	mux.Handle(prefix+"/register", b.WrapPage(must(registerPage(log, &cfg, templ))))
	mux.Handle(prefix+"/login", b.WrapPage(must(loginPage(log, &cfg, templ))))
	mux.Handle(prefix+"/logout", b.WrapPage(must(logoutPage(log, &cfg, templ))))
	mux.Handle(prefix+"/users", b.WrapPage(must(usersPage(log, &cfg, templ))))
	mux.Handle(prefix+"/", b.WrapPage(must(e404Page(log, &cfg, templ))))
	return nil
}
