package formgate

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/alex65536/formgate/internal/digest"
	"github.com/alex65536/formgate/internal/util/slogx"
)

var ErrPrecondition = errors.New("gate precondition violated")

type Field interface {
	Value() string
	SetValue(v string)
	Focus()
}

type Form interface {
	Submit() error
}

type Notifier interface {
	Alert(msg string)
}

type NotifierFunc func(msg string)

func (f NotifierFunc) Alert(msg string) { f(msg) }

type FormFunc func() error

func (f FormFunc) Submit() error { return f() }

type Options struct {
	Limits Limits `toml:"limits"`
	Digest string `toml:"digest"`
	// Show both length bounds instead of the lower one only.
	DetailedMessages bool `toml:"detailed-messages"`
}

func (o *Options) FillDefaults() {
	o.Limits.FillDefaults()
	if o.Digest == "" {
		o.Digest = digest.DefaultName
	}
}

type Config struct {
	Notifier Notifier
	// If nil, looked up by Options.Digest.
	Digest digest.Func
}

// Gate guards a form submission. It holds no per-call state and may be shared.
type Gate struct {
	o      Options
	notify Notifier
	digest digest.Func
	log    *slog.Logger
}

func New(log *slog.Logger, cfg Config, o Options) (*Gate, error) {
	o.FillDefaults()
	if err := o.Limits.Validate(); err != nil {
		return nil, fmt.Errorf("limits: %w", err)
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("%w: no notifier", ErrPrecondition)
	}
	fn := cfg.Digest
	if fn == nil {
		var err error
		fn, err = digest.Lookup(o.Digest)
		if err != nil {
			return nil, fmt.Errorf("digest: %w", err)
		}
	}
	o.Digest = fn.Name()
	if log == nil {
		log = slogx.DiscardLogger()
	}
	return &Gate{
		o:      o,
		notify: cfg.Notifier,
		digest: fn,
		log:    log,
	}, nil
}

func (g *Gate) Limits() Limits      { return g.o.Limits }
func (g *Gate) Digest() digest.Func { return g.digest }

func (g *Gate) Message(e *ValidationError) string {
	if g.o.DetailedMessages {
		return e.Detail()
	}
	return e.Message()
}

// Submit runs the decision chain over the two fields. On the first violated rule it
// alerts once, focuses the offending field and returns false. Otherwise it replaces the
// password value with its digest, submits the form and returns true.
//
// The gate submits the form by itself, so the caller must not submit on true.
func (g *Gate) Submit(form Form, username, password Field) (bool, error) {
	if form == nil || username == nil || password == nil {
		return false, fmt.Errorf("%w: missing form or field", ErrPrecondition)
	}

	plain := password.Value()
	if err := g.o.Limits.Check(username.Value(), plain); err != nil {
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			return false, fmt.Errorf("check: %w", err)
		}
		g.log.Info("submission blocked",
			slog.String("rule", vErr.Rule.String()),
			slog.String("field", vErr.Field.String()),
		)
		g.notify.Alert(g.Message(vErr))
		switch vErr.Field {
		case FieldUsername:
			username.Focus()
		case FieldPassword:
			password.Focus()
		}
		return false, nil
	}

	password.SetValue(g.digest.Sum(plain))
	if err := form.Submit(); err != nil {
		g.log.Warn("form submission failed", slogx.Err(err))
		return false, fmt.Errorf("submit form: %w", err)
	}
	g.log.Info("form submitted", slog.String("digest", g.digest.Name()))
	return true, nil
}
