package formgate

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// Rule identifies a step of the decision chain that blocked a submission.
type Rule int

const (
	RuleEmptyFields Rule = iota + 1
	RuleUsernameLength
	RuleUsernameChars
	RulePasswordLength
)

func (r Rule) String() string {
	switch r {
	case RuleEmptyFields:
		return "empty-fields"
	case RuleUsernameLength:
		return "username-length"
	case RuleUsernameChars:
		return "username-chars"
	case RulePasswordLength:
		return "password-length"
	default:
		return fmt.Sprintf("rule(%d)", int(r))
	}
}

// Error makes a Rule usable as errors.Is target for *ValidationError.
func (r Rule) Error() string { return r.String() }

func ParseRule(s string) (Rule, bool) {
	for r := RuleEmptyFields; r <= RulePasswordLength; r++ {
		if r.String() == s {
			return r, true
		}
	}
	return 0, false
}

// Field names which input receives focus when a rule fails.
type FieldName int

const (
	FieldUsername FieldName = iota + 1
	FieldPassword
)

func (f FieldName) String() string {
	switch f {
	case FieldUsername:
		return "username"
	case FieldPassword:
		return "password"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

type Limits struct {
	UsernameMin int `toml:"username-min" json:"username_min"`
	UsernameMax int `toml:"username-max" json:"username_max"`
	PasswordMin int `toml:"password-min" json:"password_min"`
	PasswordMax int `toml:"password-max" json:"password_max"`
}

func DefaultLimits() Limits {
	var l Limits
	l.FillDefaults()
	return l
}

func (l *Limits) FillDefaults() {
	if l.UsernameMin == 0 {
		l.UsernameMin = 3
	}
	if l.UsernameMax == 0 {
		l.UsernameMax = 24
	}
	if l.PasswordMin == 0 {
		l.PasswordMin = 6
	}
	if l.PasswordMax == 0 {
		l.PasswordMax = 32
	}
}

func (l Limits) Validate() error {
	if l.UsernameMin < 1 || l.UsernameMax < l.UsernameMin {
		return fmt.Errorf("bad username bounds [%v, %v]", l.UsernameMin, l.UsernameMax)
	}
	if l.PasswordMin < 1 || l.PasswordMax < l.PasswordMin {
		return fmt.Errorf("bad password bounds [%v, %v]", l.PasswordMin, l.PasswordMax)
	}
	return nil
}

// ValidationError reports the first rule of the chain that a pair of values violates.
type ValidationError struct {
	Rule   Rule
	Field  FieldName
	limits Limits
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %v", e.Rule, e.Message())
}

func (e *ValidationError) Is(target error) bool {
	r, ok := target.(Rule)
	return ok && r == e.Rule
}

// Message returns the user-facing text. Length rules mention only the lower bound,
// even though the upper bound is enforced as well.
func (e *ValidationError) Message() string {
	switch e.Rule {
	case RuleEmptyFields:
		return "Username and password cannot be empty."
	case RuleUsernameLength:
		return fmt.Sprintf("Username should be at least %d characters long.", e.limits.UsernameMin)
	case RuleUsernameChars:
		return "Username must contain only letters, numbers and underscores."
	case RulePasswordLength:
		return fmt.Sprintf("Password should be at least %d characters long.", e.limits.PasswordMin)
	default:
		panic("bad rule")
	}
}

// Detail is like Message, but states both bounds for the length rules.
func (e *ValidationError) Detail() string {
	switch e.Rule {
	case RuleUsernameLength:
		return fmt.Sprintf("Username should be between %d and %d characters long.",
			e.limits.UsernameMin, e.limits.UsernameMax)
	case RulePasswordLength:
		return fmt.Sprintf("Password should be between %d and %d characters long.",
			e.limits.PasswordMin, e.limits.PasswordMax)
	default:
		return e.Message()
	}
}

func (l Limits) fail(rule Rule, field FieldName) error {
	return &ValidationError{Rule: rule, Field: field, limits: l}
}

var usernameRe = regexp.MustCompile(`^\w+$`)

// Length counts UTF-16 code units, the way browsers report an input's length.
func Length(s string) int {
	n := 0
	for _, c := range s {
		if c >= 0x10000 && c <= utf8.MaxRune {
			n += 2
		} else {
			n++
		}
	}
	return n
}

func (l Limits) checkUsername(username string) error {
	if n := Length(username); n < l.UsernameMin || n > l.UsernameMax {
		return l.fail(RuleUsernameLength, FieldUsername)
	}
	if !usernameRe.MatchString(username) {
		return l.fail(RuleUsernameChars, FieldUsername)
	}
	return nil
}

// Check runs the decision chain and returns the first violation as *ValidationError,
// or nil if both values pass.
func (l Limits) Check(username, password string) error {
	if username == "" || password == "" {
		return l.fail(RuleEmptyFields, FieldUsername)
	}
	if err := l.checkUsername(username); err != nil {
		return err
	}
	if n := Length(password); n < l.PasswordMin || n > l.PasswordMax {
		return l.fail(RulePasswordLength, FieldPassword)
	}
	return nil
}

// CheckUsername runs the username part of the chain alone.
func (l Limits) CheckUsername(username string) error {
	if username == "" {
		return l.fail(RuleEmptyFields, FieldUsername)
	}
	return l.checkUsername(username)
}

func Check(username, password string) error {
	return DefaultLimits().Check(username, password)
}
