package userauth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/alex65536/formgate/internal/digest"
	"github.com/alex65536/formgate/internal/formgate"
	"github.com/alex65536/formgate/internal/util/slogx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memDB struct {
	mu    sync.Mutex
	users map[string]User
}

func newMemDB() *memDB {
	return &memDB{users: make(map[string]User)}
}

func (d *memDB) CreateUser(_ context.Context, user User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Username == user.Username {
			return ErrUserAlreadyExists
		}
	}
	d.users[user.ID] = user
	return nil
}

func (d *memDB) GetUser(_ context.Context, userID string) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (d *memDB) GetUserByUsername(_ context.Context, username string) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (d *memDB) ListUsers(context.Context) ([]User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := make([]User, 0, len(d.users))
	for _, u := range d.users {
		res = append(res, u)
	}
	return res, nil
}

func (d *memDB) CountUsers(context.Context) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.users)), nil
}

func testManager(t *testing.T, o ManagerOptions) (*Manager, *memDB) {
	t.Helper()
	if o.Password == nil {
		o.Password = &PasswordOptions{Time: 1, Memory: 64, KeyLen: 16, SaltLen: 8}
	}
	db := newMemDB()
	m, err := NewManager(slogx.DiscardLogger(), db, formgate.Limits{}, nil, o)
	require.NoError(t, err)
	return m, db
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	m, db := testManager(t, ManagerOptions{})
	d := digest.Default().Sum("secret1")

	user, err := m.Register(ctx, "bob_99", d)
	require.NoError(t, err)
	assert.Equal(t, "bob_99", user.Username)
	assert.Equal(t, 1, user.Epoch)
	assert.Len(t, user.PasswordSalt, 8)
	assert.Len(t, user.PasswordHash, 16)
	assert.False(t, user.CreatedAt.IsZero())

	stored, err := db.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.NotContains(t, string(stored.PasswordHash), d)

	got, err := m.Authenticate(ctx, "bob_99", d)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = m.Authenticate(ctx, "bob_99", digest.Default().Sum("secret2"))
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = m.Authenticate(ctx, "alice", d)
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = m.Authenticate(ctx, "bob_99", "secret1")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = m.Register(ctx, "bob_99", digest.Default().Sum("other1"))
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestRegisterValidates(t *testing.T) {
	ctx := context.Background()
	m, db := testManager(t, ManagerOptions{})
	d := digest.Default().Sum("secret1")

	_, err := m.Register(ctx, "ab", d)
	assert.True(t, errors.Is(err, formgate.RuleUsernameLength))
	_, err = m.Register(ctx, "bob!", d)
	assert.True(t, errors.Is(err, formgate.RuleUsernameChars))
	_, err = m.Register(ctx, "", d)
	assert.True(t, errors.Is(err, formgate.RuleEmptyFields))

	// Plaintext and other algorithms' output are refused.
	_, err = m.Register(ctx, "bob", "secret1")
	assert.ErrorIs(t, err, ErrBadDigest)
	_, err = m.Register(ctx, "bob", strings.ToUpper(d))
	assert.ErrorIs(t, err, ErrBadDigest)

	cnt, err := db.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, cnt)
}

func TestSuggestUsername(t *testing.T) {
	ctx := context.Background()
	m, _ := testManager(t, ManagerOptions{})
	limits := m.Limits()
	for range 50 {
		name, err := m.SuggestUsername(ctx)
		require.NoError(t, err)
		require.NoError(t, limits.CheckUsername(name), name)
		_, err = m.GetUserByUsername(ctx, name)
		assert.ErrorIs(t, err, ErrUserNotFound)
	}
}

func TestSuggestUsernameLongWords(t *testing.T) {
	m, _ := testManager(t, ManagerOptions{SuggestionWords: 6})
	name, err := m.SuggestUsername(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, formgate.Length(name), 24)
}

func TestPasswordEpoch(t *testing.T) {
	m, _ := testManager(t, ManagerOptions{})
	var u User
	require.NoError(t, m.SetPassword(&u, "a"))
	require.NoError(t, m.SetPassword(&u, "b"))
	assert.Equal(t, 2, u.Epoch)
	assert.True(t, m.VerifyPassword(&u, "b"))
	assert.False(t, m.VerifyPassword(&u, "a"))
	assert.False(t, m.VerifyPassword(&User{}, ""))
}
