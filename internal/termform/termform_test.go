package termform

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/alex65536/formgate/internal/digest"
	"github.com/alex65536/formgate/internal/formgate"
	"github.com/alex65536/formgate/internal/regapi"
	"github.com/alex65536/formgate/internal/util/slogx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	taken    map[string]bool
	requests []regapi.RegisterRequest
	rules    *regapi.RulesResponse
}

func (a *fakeAPI) Register(_ context.Context, req *regapi.RegisterRequest) (*regapi.RegisterResponse, error) {
	a.requests = append(a.requests, *req)
	if a.taken[req.Username] {
		return nil, &regapi.Error{
			Code:       regapi.ErrUserExists,
			Message:    "given username is already taken",
			Suggestion: "brave_fox42",
		}
	}
	return &regapi.RegisterResponse{UserID: "id-" + req.Username, Username: req.Username}, nil
}

func (a *fakeAPI) Login(context.Context, *regapi.LoginRequest) (*regapi.LoginResponse, error) {
	panic("not used")
}

func (a *fakeAPI) Rules(context.Context, *regapi.RulesRequest) (*regapi.RulesResponse, error) {
	return a.rules, nil
}

func run(t *testing.T, api *fakeAPI, input string, o Options) (Result, string, error) {
	t.Helper()
	var out bytes.Buffer
	res, err := Run(context.Background(), slogx.DiscardLogger(), Config{
		API: api,
		In:  strings.NewReader(input),
		Out: &out,
	}, o)
	return res, out.String(), err
}

func TestRunFirstTry(t *testing.T) {
	api := &fakeAPI{}
	res, out, err := run(t, api, "bob_99\nsecret1\n", Options{})
	require.NoError(t, err)
	assert.Equal(t, Result{UserID: "id-bob_99", Username: "bob_99"}, res)
	assert.Equal(t, "Username: Password: ", out)
	require.Len(t, api.requests, 1)
	assert.Equal(t, digest.Default().Sum("secret1"), api.requests[0].Password)
	assert.Equal(t, "sha512", api.requests[0].Digest)
}

func TestRunRefocus(t *testing.T) {
	api := &fakeAPI{}
	// Short password: only the password is asked again.
	// Bad username: both fields are asked again.
	input := "bob\nshort\nsecret1\n"
	res, out, err := run(t, api, input, Options{})
	require.NoError(t, err)
	assert.Equal(t, "bob", res.Username)
	assert.Equal(t, "Username: Password: Password should be at least 6 characters long.\nPassword: ", out)

	api = &fakeAPI{}
	input = "b!b\nsecret1\nbob\nsecret1\n"
	_, out, err = run(t, api, input, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Username: Password: Username must contain only letters, numbers and underscores.\n"+
		"Username: Password: ", out)
	assert.Len(t, api.requests, 1)
}

func TestRunTaken(t *testing.T) {
	api := &fakeAPI{taken: map[string]bool{"bob": true}}
	res, out, err := run(t, api, "bob\nsecret1\nbob_2\nsecret1\n", Options{})
	require.NoError(t, err)
	assert.Equal(t, "bob_2", res.Username)
	assert.Contains(t, out, "given username is already taken (try brave_fox42)")
	require.Len(t, api.requests, 2)
	// The password is asked again and digested again, never sent in plain.
	for _, r := range api.requests {
		assert.Equal(t, digest.Default().Sum("secret1"), r.Password)
	}
}

func TestRunGivesUp(t *testing.T) {
	api := &fakeAPI{}
	_, _, err := run(t, api, "ab\nx\nab\nx\n", Options{MaxAttempts: 2})
	assert.ErrorIs(t, err, ErrTooManyTries)
	assert.Empty(t, api.requests)

	_, _, err = run(t, api, "ab\nx\n", Options{})
	assert.ErrorIs(t, err, ErrInputClosed)
}

func TestRunFetchRules(t *testing.T) {
	api := &fakeAPI{rules: &regapi.RulesResponse{
		Limits: formgate.Limits{UsernameMin: 3, UsernameMax: 24, PasswordMin: 10, PasswordMax: 32},
		Digest: "blake2b-512",
	}}
	_, out, err := run(t, api, "bob\nsecret1\nsecret1234\n", Options{FetchRules: true})
	require.NoError(t, err)
	assert.Contains(t, out, "Password should be at least 10 characters long.")
	require.Len(t, api.requests, 1)
	assert.Equal(t, "blake2b-512", api.requests[0].Digest)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, nil, Config{API: &fakeAPI{}, In: strings.NewReader("bob\n"), Out: &bytes.Buffer{}}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
