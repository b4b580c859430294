package webui

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/alex65536/formgate/internal/formgate"
	"github.com/alex65536/formgate/internal/userauth"
	"github.com/alex65536/formgate/internal/util/httputil"
	"github.com/alex65536/formgate/internal/util/slogx"
	"github.com/gorilla/csrf"
)

// formField exposes a posted form value to the gate.
type formField struct {
	name  formgate.FieldName
	value string
	focus *string
}

func (f *formField) Value() string     { return f.value }
func (f *formField) SetValue(v string) { f.value = v }
func (f *formField) Focus()            { *f.focus = f.name.String() }

type registerData struct {
	Username   string
	Alert      string
	Suggestion string
	Focus      string
	Limits     formgate.Limits
	CSRFField  template.HTML
}

type registerDataBuilder struct{}

func (registerDataBuilder) Build(ctx context.Context, bc builderCtx) (any, error) {
	req := bc.Req
	cfg := bc.Config
	log := bc.Log

	if bc.UserInfo != nil {
		return nil, bc.Redirect("/")
	}

	d := &registerData{
		Focus:     formgate.FieldUsername.String(),
		Limits:    cfg.UserManager.Limits(),
		CSRFField: csrf.TemplateField(req),
	}

	switch req.Method {
	case http.MethodGet:
		return d, nil
	case http.MethodPost:
		if err := req.ParseForm(); err != nil {
			return nil, httputil.MakeError(http.StatusBadRequest, "bad form data")
		}
		d.Username = req.FormValue("username")
		username := &formField{name: formgate.FieldUsername, value: d.Username, focus: &d.Focus}
		password := &formField{name: formgate.FieldPassword, value: req.FormValue("password"), focus: &d.Focus}

		var user userauth.User
		gate, err := formgate.New(log, formgate.Config{
			Notifier: formgate.NotifierFunc(func(msg string) { d.Alert = msg }),
			Digest:   cfg.UserManager.Digest(),
		}, cfg.opts.Gate)
		if err != nil {
			return nil, err
		}
		ok, err := gate.Submit(formgate.FormFunc(func() error {
			var err error
			user, err = cfg.UserManager.Register(ctx, username.Value(), password.Value())
			return err
		}), username, password)
		switch {
		case ok:
			bc.ResetSession(makeUserInfo(&user))
			return nil, bc.Redirect("/")
		case err == nil:
			// Blocked by the gate, alert and focus are already set.
			return d, nil
		case errors.Is(err, userauth.ErrUserAlreadyExists):
			d.Alert = "given username is already taken"
			d.Focus = formgate.FieldUsername.String()
			suggestion, sErr := cfg.UserManager.SuggestUsername(ctx)
			if sErr != nil {
				log.Warn("could not suggest username", slogx.Err(sErr))
			}
			d.Suggestion = suggestion
			return d, nil
		default:
			var vErr *formgate.ValidationError
			if errors.As(err, &vErr) {
				d.Alert = gate.Message(vErr)
				d.Focus = vErr.Field.String()
				return d, nil
			}
			log.Error("could not register user", slogx.Err(err), slog.String("username", d.Username))
			d.Alert = "internal server error"
			return d, nil
		}
	default:
		return nil, httputil.MakeError(http.StatusMethodNotAllowed, "method not allowed")
	}
}

func registerPage(log *slog.Logger, cfg *Config, templ *templator) (http.Handler, error) {
	return newPage(log, cfg, pageOptions{FullUser: true}, templ, registerDataBuilder{}, "register")
}
