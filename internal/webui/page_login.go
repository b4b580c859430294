package webui

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/alex65536/formgate/internal/userauth"
	"github.com/alex65536/formgate/internal/util/httputil"
	"github.com/alex65536/formgate/internal/util/slogx"
	"github.com/gorilla/csrf"
)

type loginData struct {
	Username  string
	Errors    []string
	CSRFField template.HTML
}

type loginDataBuilder struct{}

func (loginDataBuilder) Build(ctx context.Context, bc builderCtx) (any, error) {
	req := bc.Req
	cfg := bc.Config
	log := bc.Log

	if bc.UserInfo != nil {
		return nil, bc.Redirect("/")
	}

	switch req.Method {
	case http.MethodGet:
		return &loginData{
			CSRFField: csrf.TemplateField(req),
		}, nil
	case http.MethodPost:
		if err := req.ParseForm(); err != nil {
			return nil, httputil.MakeError(http.StatusBadRequest, "bad form data")
		}
		username, password := req.FormValue("username"), req.FormValue("password")
		// Stored hashes are keyed by the digest, the same one registration sends.
		digested := cfg.UserManager.Digest().Sum(password)
		user, err := cfg.UserManager.Authenticate(ctx, username, digested)
		if err != nil {
			msg := "invalid username or password"
			if !errors.Is(err, userauth.ErrBadCredentials) {
				log.Warn("could not authenticate user", slogx.Err(err))
				msg = "internal server error"
			}
			return &loginData{
				Username:  username,
				Errors:    []string{msg},
				CSRFField: csrf.TemplateField(req),
			}, nil
		}
		log.Info("user logged in", slog.String("user_id", user.ID))
		bc.ResetSession(makeUserInfo(&user))
		return nil, bc.Redirect("/")
	default:
		return nil, httputil.MakeError(http.StatusMethodNotAllowed, "method not allowed")
	}
}

func loginPage(log *slog.Logger, cfg *Config, templ *templator) (http.Handler, error) {
	return newPage(log, cfg, pageOptions{FullUser: true}, templ, loginDataBuilder{}, "login")
}
