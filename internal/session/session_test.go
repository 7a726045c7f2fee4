package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneytrack/internal/core"
	"moneytrack/internal/gateway"
)

// fakeDirectory is a scripted IdentityDirectory.
type fakeDirectory struct {
	users     map[string]gateway.Candidate
	lookupErr error
	createErr error
	created   int
	lookups   int
}

func newDirectory() *fakeDirectory {
	return &fakeDirectory{users: map[string]gateway.Candidate{
		"testuser": {Identity: core.Identity{ID: "999", Username: "testuser"}, Secret: "secret1"},
	}}
}

func (d *fakeDirectory) FindByUsername(_ context.Context, username string) (gateway.Candidate, bool, error) {
	d.lookups++
	if d.lookupErr != nil {
		return gateway.Candidate{}, false, d.lookupErr
	}
	c, ok := d.users[username]
	return c, ok, nil
}

func (d *fakeDirectory) CreateIdentity(_ context.Context, username, secret string) (core.Identity, error) {
	if d.createErr != nil {
		return core.Identity{}, d.createErr
	}
	d.created++
	id := core.Identity{ID: core.UserID("new-" + username), Username: username}
	d.users[username] = gateway.Candidate{Identity: id, Secret: secret}
	return id, nil
}

func recordChanges(s *Session) *[]Change {
	var changes []Change
	s.Subscribe(func(_ context.Context, c Change) {
		changes = append(changes, c)
	})
	return &changes
}

func TestSignInSuccess(t *testing.T) {
	store := NewMemoryStore(nil)
	s := New(newDirectory(), store, nil)
	changes := recordChanges(s)
	require.False(t, s.Authenticated())

	id, err := s.SignIn(context.Background(), "testuser", "secret1")
	require.NoError(t, err)
	assert.Equal(t, core.UserID("999"), id.ID)

	assert.True(t, s.Authenticated())
	uid, ok := s.CurrentUserID()
	assert.True(t, ok)
	assert.Equal(t, core.UserID("999"), uid)
	assert.Equal(t, "mock-token-999", s.Current().Token)
	assert.NoError(t, s.Err())
	assert.False(t, s.Loading())

	require.Len(t, *changes, 1)
	assert.False(t, (*changes)[0].Previous.Authenticated())
	assert.True(t, (*changes)[0].Current.Authenticated())

	values, _ := store.Load()
	assert.Equal(t, "mock-token-999", values[KeyToken])
	assert.JSONEq(t, `{"id":"999","username":"testuser"}`, values[KeyUser])
}

func TestSignInInvalidCredentialsLeavesStateUnchanged(t *testing.T) {
	for name, creds := range map[string][2]string{
		"wrong secret":  {"testuser", "nope"},
		"unknown user":  {"ghost", "secret1"},
		"empty secret":  {"testuser", ""},
	} {
		t.Run(name, func(t *testing.T) {
			s := New(newDirectory(), nil, nil)
			changes := recordChanges(s)

			_, err := s.SignIn(context.Background(), creds[0], creds[1])
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
			assert.Equal(t, err, s.Err())
			assert.False(t, s.Authenticated())
			assert.Empty(t, *changes)
			assert.False(t, s.Loading())
		})
	}
}

func TestSignInLookupFailure(t *testing.T) {
	dir := newDirectory()
	dir.lookupErr = &gateway.Error{Op: "lookup", Message: "lookup failed: 503 Service Unavailable"}
	s := New(dir, nil, nil)

	_, err := s.SignIn(context.Background(), "testuser", "secret1")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Nil(t, authErr.Reason)
	var gwErr *gateway.Error
	assert.ErrorAs(t, err, &gwErr)
	assert.False(t, errors.Is(err, ErrInvalidCredentials))
	assert.Equal(t, "sign_in failed: lookup failed: 503 Service Unavailable", err.Error())
	assert.False(t, s.Authenticated())
}

func TestErrClearedOnNextAttempt(t *testing.T) {
	s := New(newDirectory(), nil, nil)
	_, err := s.SignIn(context.Background(), "testuser", "bad")
	require.Error(t, err)
	require.Error(t, s.Err())

	_, err = s.SignIn(context.Background(), "testuser", "secret1")
	require.NoError(t, err)
	assert.NoError(t, s.Err())
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("username taken is checked before secret strength", func(t *testing.T) {
		dir := newDirectory()
		s := New(dir, nil, nil)
		_, err := s.Register(ctx, "testuser", "123")
		assert.ErrorIs(t, err, ErrUsernameTaken)
		assert.Zero(t, dir.created)
		assert.False(t, s.Authenticated())
	})

	t.Run("weak secret", func(t *testing.T) {
		dir := newDirectory()
		s := New(dir, nil, nil)
		changes := recordChanges(s)
		_, err := s.Register(ctx, "newbie", "12345")
		assert.ErrorIs(t, err, ErrWeakSecret)
		assert.Equal(t, "password must be at least 6 characters", err.Error())
		assert.Zero(t, dir.created)
		assert.Empty(t, *changes)
	})

	t.Run("secret length counts characters", func(t *testing.T) {
		dir := newDirectory()
		s := New(dir, nil, nil)
		_, err := s.Register(ctx, "newbie", "ééé")
		assert.ErrorIs(t, err, ErrWeakSecret)
		assert.Zero(t, dir.created)

		_, err = s.Register(ctx, "newbie", "éééééé")
		require.NoError(t, err)
		assert.Equal(t, 1, dir.created)
	})

	t.Run("success signs in", func(t *testing.T) {
		dir := newDirectory()
		s := New(dir, nil, nil)
		changes := recordChanges(s)
		id, err := s.Register(ctx, "newbie", "123456")
		require.NoError(t, err)
		assert.Equal(t, core.UserID("new-newbie"), id.ID)
		assert.Equal(t, 1, dir.created)
		assert.True(t, s.Authenticated())
		assert.Equal(t, "mock-token-new-newbie", s.Current().Token)
		assert.Len(t, *changes, 1)
	})

	t.Run("create failure", func(t *testing.T) {
		dir := newDirectory()
		dir.createErr = errors.New("backend down")
		s := New(dir, nil, nil)
		_, err := s.Register(ctx, "newbie", "123456")
		require.Error(t, err)
		assert.Equal(t, err, s.Err())
		assert.False(t, s.Authenticated())
	})
}

func TestSignOutAlwaysNotifies(t *testing.T) {
	store := NewMemoryStore(nil)
	s := New(newDirectory(), store, nil)
	_, err := s.SignIn(context.Background(), "testuser", "secret1")
	require.NoError(t, err)
	changes := recordChanges(s)

	s.SignOut(context.Background())
	assert.False(t, s.Authenticated())
	_, ok := s.CurrentUserID()
	assert.False(t, ok)
	assert.Empty(t, s.Current().Token)
	assert.Nil(t, s.Current().Identity)

	s.SignOut(context.Background())
	require.Len(t, *changes, 2)
	assert.True(t, (*changes)[0].Previous.Authenticated())
	assert.False(t, (*changes)[0].Current.Authenticated())
	assert.False(t, (*changes)[1].Previous.Authenticated())

	values, _ := store.Load()
	assert.Empty(t, values)
}

func TestObserversRunBeforeReturnWithNewState(t *testing.T) {
	s := New(newDirectory(), nil, nil)
	var sawAuthenticated bool
	s.Subscribe(func(_ context.Context, c Change) {
		// The session lock is released before observers run.
		sawAuthenticated = s.Authenticated() && c.Current.Authenticated()
	})
	_, err := s.SignIn(context.Background(), "testuser", "secret1")
	require.NoError(t, err)
	assert.True(t, sawAuthenticated)
}

func TestUnsubscribe(t *testing.T) {
	s := New(newDirectory(), nil, nil)
	calls := 0
	unsubscribe := s.Subscribe(func(context.Context, Change) { calls++ })
	other := 0
	s.Subscribe(func(context.Context, Change) { other++ })

	s.SignOut(context.Background())
	unsubscribe()
	unsubscribe()
	s.SignOut(context.Background())

	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, other)
}

func TestRestoreFromPersister(t *testing.T) {
	cases := []struct {
		name   string
		values map[string]string
		authed bool
	}{
		{"both keys", map[string]string{KeyToken: "test-token", KeyUser: `{"id":100,"username":"test"}`}, true},
		{"string id", map[string]string{KeyToken: "test-token", KeyUser: `{"id":"abc","username":"test"}`}, true},
		{"no token", map[string]string{KeyToken: "", KeyUser: `{"id":100,"username":"test"}`}, false},
		{"null user", map[string]string{KeyToken: "test-token", KeyUser: "null"}, false},
		{"corrupt user", map[string]string{KeyToken: "test-token", KeyUser: "{not json"}, false},
		{"user without id", map[string]string{KeyToken: "test-token", KeyUser: `{"username":"test"}`}, false},
		{"nothing", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(newDirectory(), NewMemoryStore(tc.values), nil)
			assert.Equal(t, tc.authed, s.Authenticated())
			if tc.authed {
				assert.Equal(t, "test", s.Current().Identity.Username)
				assert.Equal(t, "test-token", s.Current().Token)
			}
		})
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	fs := NewFileStore(path)
	assert.Equal(t, path, fs.Path())

	values, err := fs.Load()
	require.NoError(t, err)
	assert.Empty(t, values)

	s := New(newDirectory(), fs, nil)
	_, err = s.SignIn(context.Background(), "testuser", "secret1")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	restored := New(newDirectory(), NewFileStore(path), nil)
	assert.True(t, restored.Authenticated())
	assert.Equal(t, core.UserID("999"), restored.Current().Identity.ID)

	restored.SignOut(context.Background())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreCorruptFileMeansSignedOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	_, err := NewFileStore(path).Load()
	assert.Error(t, err)

	s := New(newDirectory(), NewFileStore(path), nil)
	assert.False(t, s.Authenticated())
}
