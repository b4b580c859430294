package regapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/alex65536/formgate/internal/formgate"
)

type ErrorCode int

const (
	ErrInvalidCode ErrorCode = iota
	ErrValidation
	ErrBadDigest
	ErrUserExists
	ErrBadCredentials
	ErrRateLimited
)

func (c ErrorCode) String() string {
	switch c {
	case ErrValidation:
		return "validation"
	case ErrBadDigest:
		return "bad_digest"
	case ErrUserExists:
		return "user_exists"
	case ErrBadCredentials:
		return "bad_credentials"
	case ErrRateLimited:
		return "rate_limited"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

func MatchesError(err error, code ErrorCode) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	// Set for ErrValidation.
	Rule  string `json:"rule,omitempty"`
	Field string `json:"field,omitempty"`
	// Set for ErrUserExists if a free username was found.
	Suggestion string `json:"suggestion,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("regapi error %v: %v", e.Code, e.Message)
}

// Is matches the rule carried by a validation error, so errors.Is(err, formgate.RuleX)
// works across the wire.
func (e *Error) Is(target error) bool {
	rule, ok := target.(formgate.Rule)
	if !ok || e.Code != ErrValidation {
		return false
	}
	got, ok := formgate.ParseRule(e.Rule)
	return ok && got == rule
}

var _ error = (*Error)(nil)

type RegisterRequest struct {
	Username string `json:"username"`
	// Digest of the plaintext password, never the plaintext itself.
	Password string `json:"password"`
	// Name of the digest algorithm used for Password.
	Digest string `json:"digest"`
}

type RegisterResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Digest   string `json:"digest"`
}

type LoginResponse struct {
	UserID string `json:"user_id"`
}

type RulesRequest struct{}

type RulesResponse struct {
	Limits formgate.Limits `json:"limits"`
	Digest string          `json:"digest"`
}

type API interface {
	Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error)
	Rules(ctx context.Context, req *RulesRequest) (*RulesResponse, error)
}
