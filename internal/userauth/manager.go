package userauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"

	"github.com/alex65536/formgate/internal/digest"
	"github.com/alex65536/formgate/internal/formgate"
	"github.com/alex65536/formgate/internal/util/clone"
	"github.com/alex65536/formgate/internal/util/idgen"
	"github.com/alex65536/formgate/internal/util/slogx"
	"github.com/alex65536/formgate/internal/util/timeutil"
	petname "github.com/dustinkirkland/golang-petname"
)

type ManagerOptions struct {
	Password          *PasswordOptions `toml:"password"`
	SuggestionWords   int              `toml:"suggestion-words"`
	SuggestionRetries int              `toml:"suggestion-retries"`
}

func (o ManagerOptions) Clone() ManagerOptions {
	o.Password = clone.Ptr(o.Password)
	return o
}

func (o *ManagerOptions) FillDefaults() {
	if o.Password == nil {
		o.Password = &PasswordOptions{}
	}
	o.Password.FillDefaults()
	if o.SuggestionWords == 0 {
		o.SuggestionWords = 2
	}
	if o.SuggestionRetries == 0 {
		o.SuggestionRetries = 8
	}
}

type Manager struct {
	DB
	o      *ManagerOptions
	log    *slog.Logger
	limits formgate.Limits
	digest digest.Func
}

func NewManager(log *slog.Logger, db DB, limits formgate.Limits, fn digest.Func, o ManagerOptions) (*Manager, error) {
	o = o.Clone()
	o.FillDefaults()
	limits.FillDefaults()
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("limits: %w", err)
	}
	if fn == nil {
		fn = digest.Default()
	}
	cnt, err := db.CountUsers(context.Background())
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	log.Info("user manager ready",
		slog.Int64("users", cnt),
		slog.String("digest", fn.Name()),
	)
	return &Manager{
		DB:     db,
		o:      &o,
		log:    log,
		limits: limits,
		digest: fn,
	}, nil
}

func (m *Manager) Limits() formgate.Limits { return m.limits }
func (m *Manager) Digest() digest.Func     { return m.digest }

// Register creates a user from a gated submission. The password must already be the
// client-side digest.
func (m *Manager) Register(ctx context.Context, username, digested string) (User, error) {
	if err := ValidateUsername(m.limits, username); err != nil {
		return User{}, err
	}
	if err := ValidateDigest(m.digest, digested); err != nil {
		return User{}, err
	}
	user := User{
		ID:        idgen.ID(),
		Username:  username,
		CreatedAt: timeutil.NowUTC(),
	}
	if err := m.SetPassword(&user, digested); err != nil {
		return User{}, fmt.Errorf("set password: %w", err)
	}
	if err := m.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrUserAlreadyExists) {
			return User{}, err
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	m.log.Info("user registered", slog.String("user_id", user.ID), slog.String("username", username))
	return user, nil
}

func (m *Manager) Authenticate(ctx context.Context, username, digested string) (User, error) {
	if err := ValidateDigest(m.digest, digested); err != nil {
		return User{}, ErrBadCredentials
	}
	user, err := m.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrBadCredentials
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	if !m.VerifyPassword(&user, digested) {
		return User{}, ErrBadCredentials
	}
	return user, nil
}

func (m *Manager) SetPassword(u *User, digested string) error {
	return u.SetPassword(digested, m.o.Password)
}

func (m *Manager) VerifyPassword(u *User, digested string) bool {
	return u.VerifyPassword(digested, m.o.Password)
}

func (m *Manager) candidate() string {
	name := petname.Generate(m.o.SuggestionWords, "_")
	name += strconv.Itoa(10 + rand.IntN(90))
	if formgate.Length(name) > m.limits.UsernameMax {
		name = name[len(name)-m.limits.UsernameMax:]
	}
	for formgate.Length(name) < m.limits.UsernameMin {
		name += "_"
	}
	return name
}

// SuggestUsername returns a free username that passes the username rules.
func (m *Manager) SuggestUsername(ctx context.Context) (string, error) {
	for range m.o.SuggestionRetries {
		name := m.candidate()
		if err := m.limits.CheckUsername(name); err != nil {
			m.log.Warn("bad username suggestion", slog.String("name", name), slogx.Err(err))
			continue
		}
		_, err := m.GetUserByUsername(ctx, name)
		if errors.Is(err, ErrUserNotFound) {
			return name, nil
		}
		if err != nil {
			return "", fmt.Errorf("get user: %w", err)
		}
	}
	return "", fmt.Errorf("no free username after %v attempts", m.o.SuggestionRetries)
}
