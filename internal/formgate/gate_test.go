package formgate

import (
	"errors"
	"fmt"
	"testing"

	"github.com/alex65536/formgate/internal/digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeField struct {
	value   string
	focused int
}

func (f *fakeField) Value() string { return f.value }
func (f *fakeField) SetValue(v string) { f.value = v }
func (f *fakeField) Focus() { f.focused++ }

type fakeForm struct {
	submits int
	err     error
}

func (f *fakeForm) Submit() error {
	f.submits++
	return f.err
}

type countingDigest struct {
	digest.Func
	calls []string
}

func (c *countingDigest) Sum(s string) string {
	c.calls = append(c.calls, s)
	return c.Func.Sum(s)
}

type env struct {
	gate     *Gate
	form     *fakeForm
	username *fakeField
	password *fakeField
	alerts   []string
	digest   *countingDigest
}

func newEnv(t *testing.T, username, password string, o Options) *env {
	e := &env{
		form:     &fakeForm{},
		username: &fakeField{value: username},
		password: &fakeField{value: password},
		digest:   &countingDigest{Func: digest.Default()},
	}
	g, err := New(nil, Config{
		Notifier: NotifierFunc(func(msg string) { e.alerts = append(e.alerts, msg) }),
		Digest:   e.digest,
	}, o)
	require.NoError(t, err)
	e.gate = g
	return e
}

func TestGateScenarios(t *testing.T) {
	for _, tc := range []struct {
		username, password string
		message            string
		focus              FieldName
	}{
		{"ab", "secret1", "Username should be at least 3 characters long.", FieldUsername},
		{"bob", "short", "Password should be at least 6 characters long.", FieldPassword},
		{"bob!", "secret1", "Username must contain only letters, numbers and underscores.", FieldUsername},
		{"", "secret1", "Username and password cannot be empty.", FieldUsername},
		{"bob", "", "Username and password cannot be empty.", FieldUsername},
	} {
		t.Run(fmt.Sprintf("%v/%v", tc.username, tc.password), func(t *testing.T) {
			e := newEnv(t, tc.username, tc.password, Options{})
			ok, err := e.gate.Submit(e.form, e.username, e.password)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, []string{tc.message}, e.alerts)
			assert.Equal(t, 0, e.form.submits)
			assert.Empty(t, e.digest.calls)
			assert.Equal(t, tc.username, e.username.value)
			assert.Equal(t, tc.password, e.password.value)
			switch tc.focus {
			case FieldUsername:
				assert.Equal(t, 1, e.username.focused)
				assert.Equal(t, 0, e.password.focused)
			case FieldPassword:
				assert.Equal(t, 0, e.username.focused)
				assert.Equal(t, 1, e.password.focused)
			}
		})
	}
}

func TestGateSuccess(t *testing.T) {
	e := newEnv(t, "bob_99", "secret1", Options{})
	ok, err := e.gate.Submit(e.form, e.username, e.password)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, e.alerts)
	assert.Equal(t, 1, e.form.submits)
	assert.Equal(t, []string{"secret1"}, e.digest.calls)
	assert.Equal(t, digest.Default().Sum("secret1"), e.password.value)
	assert.NotEqual(t, "secret1", e.password.value)
	assert.Equal(t, "bob_99", e.username.value)
	assert.Zero(t, e.username.focused+e.password.focused)
}

func TestGateSubmitError(t *testing.T) {
	e := newEnv(t, "bob_99", "secret1", Options{})
	e.form.err = errors.New("connection refused")
	ok, err := e.gate.Submit(e.form, e.username, e.password)
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, e.form.err)
	assert.Equal(t, 1, e.form.submits)
	// The plaintext is not restored.
	assert.Equal(t, digest.Default().Sum("secret1"), e.password.value)
}

func TestGateDetailedMessages(t *testing.T) {
	e := newEnv(t, "ab", "secret1", Options{DetailedMessages: true})
	ok, err := e.gate.Submit(e.form, e.username, e.password)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"Username should be between 3 and 24 characters long."}, e.alerts)
}

func TestGatePreconditions(t *testing.T) {
	e := newEnv(t, "bob_99", "secret1", Options{})
	_, err := e.gate.Submit(nil, e.username, e.password)
	assert.ErrorIs(t, err, ErrPrecondition)
	_, err = e.gate.Submit(e.form, nil, e.password)
	assert.ErrorIs(t, err, ErrPrecondition)
	_, err = e.gate.Submit(e.form, e.username, nil)
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Equal(t, 0, e.form.submits)
	assert.Empty(t, e.alerts)

	_, err = New(nil, Config{}, Options{})
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestGateOptions(t *testing.T) {
	notify := NotifierFunc(func(string) {})
	g, err := New(nil, Config{Notifier: notify}, Options{Digest: "sha3-512"})
	require.NoError(t, err)
	assert.Equal(t, "sha3-512", g.Digest().Name())
	assert.Equal(t, DefaultLimits(), g.Limits())

	_, err = New(nil, Config{Notifier: notify}, Options{Digest: "crc32"})
	assert.ErrorIs(t, err, digest.ErrUnknownAlgorithm)

	_, err = New(nil, Config{Notifier: notify}, Options{Limits: Limits{UsernameMin: 30}})
	assert.Error(t, err)
}

func TestGateResubmit(t *testing.T) {
	e := newEnv(t, "bob", "short", Options{})
	ok, err := e.gate.Submit(e.form, e.username, e.password)
	require.NoError(t, err)
	require.False(t, ok)

	e.password.value = "secret1"
	ok, err = e.gate.Submit(e.form, e.username, e.password)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, e.form.submits)
	assert.Equal(t, []string{"secret1"}, e.digest.calls)
	assert.Len(t, e.alerts, 1)
}
