package webui

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/alex65536/formgate/internal/userauth"
	"github.com/alex65536/formgate/internal/util/clone"
	"github.com/alex65536/formgate/internal/util/httputil"
	"github.com/alex65536/formgate/internal/util/slogx"
)

const sessionName = "formgate_session"

type userInfo struct {
	ID       string
	Username string
	Epoch    int
}

func makeUserInfo(user *userauth.User) *userInfo {
	if user == nil {
		return nil
	}
	return &userInfo{
		ID:       user.ID,
		Username: user.Username,
		Epoch:    user.Epoch,
	}
}

type dataBuilder interface {
	Build(ctx context.Context, bc builderCtx) (any, error)
}

type pageOptions struct {
	NoUserInfo bool
	NoShowAuth bool
	// Load the user from the database and drop stale sessions.
	FullUser bool
}

type page struct {
	name     string
	cfg      *Config
	pageOpts pageOptions
	log      *slog.Logger
	b        dataBuilder
	tmpl     *template.Template
	errTmpl  *template.Template
}

type pageData struct {
	Data     any
	User     *userInfo
	WithAuth bool
}

type builderCtx struct {
	Log      *slog.Logger
	Config   *Config
	UserInfo *userInfo
	FullUser *userauth.User
	Req      *http.Request
	writer   http.ResponseWriter
}

func (bc *builderCtx) Redirect(path string) error {
	return httputil.MakeRedirectError(http.StatusSeeOther, "redirect", bc.Config.prefix+path)
}

func (bc *builderCtx) ResetSession(newUser *userInfo) {
	log := bc.Log
	store := bc.Config.sessionStore
	session, _ := store.Get(bc.Req, sessionName)
	session.Options.MaxAge = -1
	for k := range session.Values {
		delete(session.Values, k)
	}
	if err := session.Save(bc.Req, bc.writer); err != nil {
		log.Error("expire current session", slogx.Err(err))
	}
	if newUser != nil {
		session, _ = store.New(bc.Req, sessionName)
		bc.Config.opts.Session.SetupSession(session.Options)
		session.Values["user"] = *newUser
		if err := session.Save(bc.Req, bc.writer); err != nil {
			log.Error("apply new session", slogx.Err(err))
		}
	}
	bc.UserInfo = clone.TrivialPtr(newUser)
	bc.FullUser = nil
}

func (p *page) renderError(log *slog.Logger, w http.ResponseWriter, httpErr *httputil.Error) {
	if 300 <= httpErr.Code() && httpErr.Code() <= 399 {
		log.Info("send http redirect",
			slog.Int("code", httpErr.Code()),
			slog.String("msg", httpErr.Message()),
		)
		httpErr.ApplyHeaders(w)
		w.WriteHeader(httpErr.Code())
		return
	}

	log.Info("send http status error",
		slog.Int("code", httpErr.Code()),
		slog.String("msg", httpErr.Message()),
	)
	var b bytes.Buffer
	if err := p.errTmpl.Execute(&b, pageData{
		Data: struct {
			Code    int
			Message string
		}{
			Code:    httpErr.Code(),
			Message: httpErr.Message(),
		},
	}); err != nil {
		log.Error("error rendering page", slogx.Err(err))
		writeHTTPErr(log, w, fmt.Errorf("render page"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	httpErr.ApplyHeaders(w)
	w.WriteHeader(httpErr.Code())
	if _, err := w.Write(b.Bytes()); err != nil {
		log.Error("error writing page data", slogx.Err(err))
		return
	}
}

func (p *page) loadUser(ctx context.Context, log *slog.Logger, req *http.Request) (*userInfo, *userauth.User, bool) {
	session, _ := p.cfg.sessionStore.Get(req, sessionName)
	var userInf *userInfo
	if raw, ok := session.Values["user"].(userInfo); ok {
		userInf = &raw
	}
	if session.IsNew {
		p.cfg.opts.Session.SetupSession(session.Options)
	}
	if !p.pageOpts.FullUser || userInf == nil {
		return userInf, nil, false
	}

	fullUser, err := p.cfg.UserManager.GetUser(ctx, userInf.ID)
	if err != nil {
		if errors.Is(err, userauth.ErrUserNotFound) {
			return nil, nil, true
		}
		log.Error("could not fetch full user", slogx.Err(err))
		return nil, nil, false
	}
	if fullUser.Epoch != userInf.Epoch {
		return nil, nil, true
	}
	return userInf, &fullUser, false
}

func (p *page) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	log := p.log.With(slog.String("rid", httputil.ExtractReqID(ctx)))

	if req.Method != http.MethodGet && req.Method != http.MethodPost {
		log.Warn("method not allowed", slog.String("method", req.Method))
		writeHTTPErr(log, w, httputil.MakeError(http.StatusMethodNotAllowed, "method not allowed"))
		return
	}

	var (
		userInf      *userInfo
		fullUser     *userauth.User
		resetSession bool
	)
	if !p.pageOpts.NoUserInfo {
		userInf, fullUser, resetSession = p.loadUser(ctx, log, req)
	}

	bc := builderCtx{
		Log:      log,
		Config:   p.cfg,
		UserInfo: userInf,
		FullUser: fullUser,
		Req:      req,
		writer:   w,
	}
	if resetSession {
		log.Info("drop stale session")
		bc.ResetSession(nil)
	}

	data, err := p.b.Build(ctx, bc)
	if err != nil {
		if httpErr := (*httputil.Error)(nil); errors.As(err, &httpErr) {
			p.renderError(log, w, httpErr)
			return
		}
		log.Error("error building page data", slogx.Err(err))
		writeHTTPErr(log, w, fmt.Errorf("build page"))
		return
	}

	var b bytes.Buffer
	if err := p.tmpl.Execute(&b, pageData{
		Data:     data,
		User:     bc.UserInfo,
		WithAuth: !p.pageOpts.NoUserInfo && !p.pageOpts.NoShowAuth,
	}); err != nil {
		log.Error("error rendering page", slogx.Err(err))
		writeHTTPErr(log, w, fmt.Errorf("render page"))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(b.Bytes()); err != nil {
		log.Error("error writing page data", slogx.Err(err))
		return
	}
}

func newPage(
	log *slog.Logger,
	cfg *Config,
	pageOpts pageOptions,
	templ *templator,
	builder dataBuilder,
	name string,
) (http.Handler, error) {
	errTmpl, err := templ.Get("error")
	if err != nil {
		return nil, fmt.Errorf("template \"error\": %w", err)
	}
	tmpl := errTmpl
	if name != "" {
		tmpl, err = templ.Get(name)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", name, err)
		}
	}
	return &page{
		name:     name,
		cfg:      cfg,
		pageOpts: pageOpts,
		log:      log.With(slog.String("page", name)),
		b:        builder,
		tmpl:     tmpl,
		errTmpl:  errTmpl,
	}, nil
}

func init() {
	gob.Register(userInfo{})
}
