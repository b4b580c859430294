// Package termform runs the registration gate over an interactive terminal.
package termform

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alex65536/formgate/internal/formgate"
	"github.com/alex65536/formgate/internal/regapi"
	"github.com/alex65536/formgate/internal/util/style"
	"golang.org/x/term"
)

var (
	ErrInputClosed  = errors.New("input closed")
	ErrTooManyTries = errors.New("too many attempts")
)

type Options struct {
	// Zero means default, negative means unlimited.
	MaxAttempts int `toml:"max-attempts"`
	// Fetch limits and digest from the server instead of using Gate.
	FetchRules bool             `toml:"fetch-rules"`
	Gate       formgate.Options `toml:"gate"`
}

func (o *Options) FillDefaults() {
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 5
	}
	o.Gate.FillDefaults()
}

type Config struct {
	API regapi.API
	In  io.Reader
	Out io.Writer
	// Colored output is used only if Color is set.
	Color bool
}

type Result struct {
	UserID   string
	Username string
}

type field struct {
	name   formgate.FieldName
	label  string
	secret bool
	value  string
	form   *form
}

func (f *field) Value() string     { return f.value }
func (f *field) SetValue(v string) { f.value = v }
func (f *field) Focus()            { f.form.focus = f }

type form struct {
	ctx    context.Context
	cfg    Config
	in     *bufio.Reader
	fields []*field
	focus  *field
	digest string
	result *Result
}

func (f *form) Alert(msg string) {
	_, _ = fmt.Fprintln(f.cfg.Out, style.Wrap(f.cfg.Color, msg, style.Bold, style.Red))
}

func (f *form) Submit() error {
	username, password := f.fields[0], f.fields[1]
	rsp, err := f.cfg.API.Register(f.ctx, &regapi.RegisterRequest{
		Username: username.value,
		Password: password.value,
		Digest:   f.digest,
	})
	if err != nil {
		return err
	}
	f.result = &Result{UserID: rsp.UserID, Username: rsp.Username}
	return nil
}

func (f *form) readLine(secret bool) (string, error) {
	if secret {
		if file, ok := f.cfg.In.(*os.File); ok && style.IsTerminal(file.Fd()) {
			b, err := term.ReadPassword(int(file.Fd()))
			_, _ = fmt.Fprintln(f.cfg.Out)
			if err != nil {
				return "", fmt.Errorf("read password: %w", err)
			}
			return string(b), nil
		}
	}
	line, err := f.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r"), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrInputClosed
		}
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// prompt asks for the focused field and every field after it.
func (f *form) prompt() error {
	start := 0
	for i, fd := range f.fields {
		if fd == f.focus {
			start = i
		}
	}
	for _, fd := range f.fields[start:] {
		if err := f.ctx.Err(); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(f.cfg.Out, "%v: ", fd.label)
		v, err := f.readLine(fd.secret)
		if err != nil {
			return err
		}
		fd.value = v
	}
	return nil
}

// Run prompts for a username and a password until the gate lets them through and the
// server accepts the registration.
func Run(ctx context.Context, log *slog.Logger, cfg Config, o Options) (Result, error) {
	o.FillDefaults()
	if cfg.API == nil || cfg.In == nil || cfg.Out == nil {
		return Result{}, fmt.Errorf("%w: incomplete config", formgate.ErrPrecondition)
	}

	gateOpts := o.Gate
	if o.FetchRules {
		rules, err := cfg.API.Rules(ctx, &regapi.RulesRequest{})
		if err != nil {
			return Result{}, fmt.Errorf("fetch rules: %w", err)
		}
		gateOpts.Limits = rules.Limits
		gateOpts.Digest = rules.Digest
	}

	f := &form{
		ctx: ctx,
		cfg: cfg,
		in:  bufio.NewReader(cfg.In),
	}
	f.fields = []*field{
		{name: formgate.FieldUsername, label: "Username", form: f},
		{name: formgate.FieldPassword, label: "Password", secret: true, form: f},
	}
	f.focus = f.fields[0]

	gate, err := formgate.New(log, formgate.Config{Notifier: f}, gateOpts)
	if err != nil {
		return Result{}, fmt.Errorf("create gate: %w", err)
	}
	f.digest = gate.Digest().Name()

	for attempt := 0; o.MaxAttempts < 0 || attempt < o.MaxAttempts; attempt++ {
		if err := f.prompt(); err != nil {
			return Result{}, err
		}
		ok, err := gate.Submit(f, f.fields[0], f.fields[1])
		if ok {
			return *f.result, nil
		}
		if err == nil {
			continue
		}
		var apiErr *regapi.Error
		if !errors.As(err, &apiErr) || ctx.Err() != nil {
			return Result{}, err
		}
		switch apiErr.Code {
		case regapi.ErrUserExists:
			msg := apiErr.Message
			if apiErr.Suggestion != "" {
				msg += fmt.Sprintf(" (try %v)", apiErr.Suggestion)
			}
			f.Alert(msg)
			f.fields[0].Focus()
		case regapi.ErrValidation:
			f.Alert(apiErr.Message)
			f.fields[0].Focus()
			for _, fd := range f.fields {
				if fd.name.String() == apiErr.Field {
					fd.Focus()
				}
			}
		default:
			return Result{}, err
		}
	}
	return Result{}, ErrTooManyTries
}
