package webui_test

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/alex65536/formgate/internal/database"
	"github.com/alex65536/formgate/internal/digest"
	"github.com/alex65536/formgate/internal/formgate"
	"github.com/alex65536/formgate/internal/userauth"
	"github.com/alex65536/formgate/internal/util/idgen"
	"github.com/alex65536/formgate/internal/util/slogx"
	"github.com/alex65536/formgate/internal/webui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	srv    *httptest.Server
	client *http.Client
	users  *userauth.Manager
}

func mustKey(t *testing.T) string {
	k, err := idgen.SecureKey(32)
	require.NoError(t, err)
	return k
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	log := slogx.DiscardLogger()

	db, err := database.New(log, database.Options{Path: filepath.Join(t.TempDir(), "webui.db")})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	users, err := userauth.NewManager(log, db, formgate.Limits{}, digest.Default(), userauth.ManagerOptions{
		Password: &userauth.PasswordOptions{Time: 1, Memory: 64, KeyLen: 16, SaltLen: 8},
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	require.NoError(t, webui.Handle(ctx, log, mux, "", webui.Config{
		UserManager:         users,
		SessionStoreFactory: db,
	}, webui.Options{
		Session: webui.SessionOptions{
			AuthKey:  mustKey(t),
			CryptKey: mustKey(t),
		},
		CSRFKey:  mustKey(t),
		Insecure: true,
	}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &env{
		srv:    srv,
		client: &http.Client{Jar: jar},
		users:  users,
	}
}

var csrfRe = regexp.MustCompile(`name="gorilla.csrf.Token" value="([^"]+)"`)

func (e *env) get(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := e.client.Get(e.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func (e *env) post(t *testing.T, path string, values url.Values) (int, string) {
	t.Helper()
	_, page := e.get(t, path)
	m := csrfRe.FindStringSubmatch(page)
	require.NotNil(t, m, "no csrf token on %v", path)
	values.Set("gorilla.csrf.Token", m[1])
	resp, err := e.client.PostForm(e.srv.URL+path, values)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func creds(username, password string) url.Values {
	return url.Values{"username": {username}, "password": {password}}
}

func TestRegisterBlocked(t *testing.T) {
	e := newEnv(t)

	for _, tc := range []struct {
		username, password string
		message            string
		focus              string
	}{
		{"ab", "secret1", "Username should be at least 3 characters long.", `id="username"`},
		{"bob", "short", "Password should be at least 6 characters long.", `id="password"`},
		{"bob!", "secret1", "Username must contain only letters, numbers and underscores.", `id="username"`},
		{"", "secret1", "Username and password cannot be empty.", `id="username"`},
	} {
		code, body := e.post(t, "/register", creds(tc.username, tc.password))
		assert.Equal(t, http.StatusOK, code)
		assert.Contains(t, body, tc.message)
		assert.Equal(t, 1, strings.Count(body, `role="alert"`))
		assert.NotContains(t, body, tc.password)
		idx := strings.Index(body, tc.focus)
		require.NotEqual(t, -1, idx)
		end := strings.Index(body[idx:], ">")
		assert.Contains(t, body[idx:idx+end], "autofocus")
	}

	cnt, err := e.users.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Zero(t, cnt)
}

func TestRegisterAndLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	code, body := e.post(t, "/register", creds("bob_99", "secret1"))
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Logged in as <b>bob_99</b>")
	assert.Contains(t, body, "1 registered user(s).")

	// The stored hash is derived from the digest, not from the plaintext.
	_, err := e.users.Authenticate(ctx, "bob_99", digest.Default().Sum("secret1"))
	require.NoError(t, err)

	code, _ = e.get(t, "/logout")
	assert.Equal(t, http.StatusOK, code)
	_, body = e.get(t, "/")
	assert.NotContains(t, body, "Logged in as")

	_, body = e.post(t, "/login", creds("bob_99", "wrong12"))
	assert.Contains(t, body, "invalid username or password")
	_, body = e.post(t, "/login", creds("bob_99", "secret1"))
	assert.Contains(t, body, "Logged in as <b>bob_99</b>")

	_, body = e.get(t, "/users")
	assert.Contains(t, body, "<td>bob_99</td>")
}

func TestRegisterTaken(t *testing.T) {
	e := newEnv(t)
	_, err := e.users.Register(context.Background(), "bob_99", digest.Default().Sum("secret1"))
	require.NoError(t, err)

	code, body := e.post(t, "/register", creds("bob_99", "secret2"))
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "given username is already taken")
	assert.Contains(t, body, "instead.")
}

func TestRegisterFormLimits(t *testing.T) {
	e := newEnv(t)
	_, body := e.get(t, "/register")
	assert.Contains(t, body, `minlength="3" maxlength="24"`)
	assert.Contains(t, body, `minlength="6" maxlength="32"`)
}

func TestCSRFRequired(t *testing.T) {
	e := newEnv(t)
	resp, err := e.client.PostForm(e.srv.URL+"/register", creds("bob_99", "secret1"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestNotFound(t *testing.T) {
	e := newEnv(t)
	code, body := e.get(t, "/nope")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body, "page not found")

	code, body = e.get(t, "/css/style.css")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, ".alert")
}
