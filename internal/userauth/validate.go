package userauth

import (
	"errors"
	"fmt"

	"github.com/alex65536/formgate/internal/digest"
	"github.com/alex65536/formgate/internal/formgate"
)

var ErrBadDigest = errors.New("password is not a well-formed digest")

// ValidateUsername re-runs the username rules of the form gate on the server side.
func ValidateUsername(limits formgate.Limits, username string) error {
	if err := limits.CheckUsername(username); err != nil {
		return fmt.Errorf("username: %w", err)
	}
	return nil
}

// ValidateDigest checks that the submitted password value has been digested by fn on the
// client. Plaintext passwords are rejected.
func ValidateDigest(fn digest.Func, value string) error {
	if !fn.Valid(value) {
		return fmt.Errorf("%w (expected %v)", ErrBadDigest, fn.Name())
	}
	return nil
}
