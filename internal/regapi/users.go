package regapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alex65536/formgate/internal/formgate"
	"github.com/alex65536/formgate/internal/userauth"
	"github.com/alex65536/formgate/internal/util/slogx"
)

type userServer struct {
	users *userauth.Manager
}

// NewUserServer serves the API on top of a user manager. The manager re-runs every
// check, nothing sent by the client is trusted.
func NewUserServer(users *userauth.Manager) Server {
	return &userServer{users: users}
}

func (s *userServer) checkDigest(name string) error {
	if want := s.users.Digest().Name(); name != want {
		return &Error{
			Code:    ErrBadDigest,
			Message: fmt.Sprintf("server expects %v digest", want),
		}
	}
	return nil
}

func (s *userServer) Register(ctx context.Context, log *slog.Logger, req *RegisterRequest) (*RegisterResponse, error) {
	if err := s.checkDigest(req.Digest); err != nil {
		return nil, err
	}
	user, err := s.users.Register(ctx, req.Username, req.Password)
	if err != nil {
		var vErr *formgate.ValidationError
		switch {
		case errors.As(err, &vErr):
			return nil, &Error{
				Code:    ErrValidation,
				Message: vErr.Message(),
				Rule:    vErr.Rule.String(),
				Field:   vErr.Field.String(),
			}
		case errors.Is(err, userauth.ErrBadDigest):
			return nil, &Error{Code: ErrBadDigest, Message: "password is not a valid digest"}
		case errors.Is(err, userauth.ErrUserAlreadyExists):
			suggestion, sErr := s.users.SuggestUsername(ctx)
			if sErr != nil {
				log.Warn("could not suggest username", slogx.Err(sErr))
			}
			return nil, &Error{
				Code:       ErrUserExists,
				Message:    "given username is already taken",
				Suggestion: suggestion,
			}
		default:
			return nil, fmt.Errorf("register: %w", err)
		}
	}
	return &RegisterResponse{UserID: user.ID, Username: user.Username}, nil
}

func (s *userServer) Login(ctx context.Context, _ *slog.Logger, req *LoginRequest) (*LoginResponse, error) {
	if err := s.checkDigest(req.Digest); err != nil {
		return nil, err
	}
	user, err := s.users.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, userauth.ErrBadCredentials) {
			return nil, &Error{Code: ErrBadCredentials, Message: "invalid username or password"}
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	return &LoginResponse{UserID: user.ID}, nil
}

func (s *userServer) Rules(context.Context, *slog.Logger, *RulesRequest) (*RulesResponse, error) {
	return &RulesResponse{
		Limits: s.users.Limits(),
		Digest: s.users.Digest().Name(),
	}, nil
}
