// Package session holds the authentication state of the client and tells
// subscribers whenever it changes.
//
// The credential check is a mock: secrets are compared in plain text with
// what the directory returns and the token is a fabricated "mock-token-<id>".
// It drives state transitions only and offers no security.
package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"unicode/utf8"

	"moneytrack/internal/core"
	"moneytrack/internal/gateway"
	applog "moneytrack/internal/log"
)

const (
	tokenPrefix   = "mock-token-"
	minSecretSize = 6
)

// Snapshot is the session state at one point in time. Identity and Token are
// either both set or both empty.
type Snapshot struct {
	Identity *core.Identity
	Token    string
}

// Authenticated reports whether both identity and token are present.
func (s Snapshot) Authenticated() bool {
	return s.Identity != nil && s.Token != ""
}

// UserID returns the signed-in user's id.
func (s Snapshot) UserID() (core.UserID, bool) {
	if !s.Authenticated() || s.Identity.ID == "" {
		return "", false
	}
	return s.Identity.ID, true
}

// Change describes one session transition.
type Change struct {
	Previous Snapshot
	Current  Snapshot
}

// Observer is called synchronously, on the goroutine that changed the
// session, after the change has been applied.
type Observer func(ctx context.Context, c Change)

type observerEntry struct {
	id int
	fn Observer
}

// Session is the authentication state. Construct it with New; the zero value
// is not usable.
type Session struct {
	directory gateway.IdentityDirectory
	persister Persister
	logger    *applog.Logger

	mu        sync.Mutex
	state     Snapshot
	loading   int
	lastErr   error
	observers []observerEntry
	nextID    int
}

// New restores the session from persister. Missing or corrupt keys leave the
// session signed out.
func New(directory gateway.IdentityDirectory, persister Persister, logger *applog.Logger) *Session {
	if persister == nil {
		persister = NewMemoryStore(nil)
	}
	if logger == nil {
		logger = applog.Discard()
	}
	s := &Session{
		directory: directory,
		persister: persister,
		logger:    logger.WithComponent(applog.ComponentSession),
	}
	s.state = s.restore()
	return s
}

func (s *Session) restore() Snapshot {
	values, err := s.persister.Load()
	if err != nil {
		s.logger.Warn("Ignoring unreadable persisted session", applog.FieldError, err)
		return Snapshot{}
	}
	token := strings.TrimSpace(values[KeyToken])
	raw := strings.TrimSpace(values[KeyUser])
	if token == "" || raw == "" {
		return Snapshot{}
	}
	var u persistedUser
	if err := json.Unmarshal([]byte(raw), &u); err != nil || u.ID == "" {
		s.logger.Debug("Ignoring corrupt persisted user", applog.FieldError, err)
		return Snapshot{}
	}
	identity := core.Identity{ID: core.UserID(u.ID), Username: u.Username}
	s.logger.Debug("Restored session", applog.FieldUserID, u.ID)
	return Snapshot{Identity: &identity, Token: token}
}

type persistedUser struct {
	ID       gateway.WireID `json:"id"`
	Username string         `json:"username"`
}

// Current returns the current state.
func (s *Session) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Authenticated reports whether a user is signed in.
func (s *Session) Authenticated() bool {
	return s.Current().Authenticated()
}

// CurrentUserID returns the signed-in user's id.
func (s *Session) CurrentUserID() (core.UserID, bool) {
	return s.Current().UserID()
}

// Loading reports whether a sign-in or registration is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

// Err returns the error of the last failed sign-in or registration. It is
// cleared when the next attempt starts.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Subscribe registers fn for every subsequent change and returns a function
// that removes it.
func (s *Session) Subscribe(fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, observerEntry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, o := range s.observers {
				if o.id == id {
					s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// SignIn looks up username and compares secret. On failure the state is left
// unchanged and the error is also kept in Err.
func (s *Session) SignIn(ctx context.Context, username, secret string) (core.Identity, error) {
	s.begin()
	defer s.end()

	candidate, found, err := s.directory.FindByUsername(ctx, username)
	if err != nil {
		return core.Identity{}, s.fail(ctx, &AuthError{Op: applog.OpSignIn, Err: err})
	}
	if !found || candidate.Secret != secret {
		return core.Identity{}, s.fail(ctx, &AuthError{Op: applog.OpSignIn, Reason: ErrInvalidCredentials})
	}

	s.establish(ctx, candidate.Identity)
	s.logger.InfoContext(ctx, "Signed in", applog.FieldUserID, candidate.Identity.ID, applog.FieldUsername, username)
	return candidate.Identity, nil
}

// Register creates a new user and signs it in. A taken username is reported
// before a weak secret.
func (s *Session) Register(ctx context.Context, username, secret string) (core.Identity, error) {
	s.begin()
	defer s.end()

	_, found, err := s.directory.FindByUsername(ctx, username)
	if err != nil {
		return core.Identity{}, s.fail(ctx, &AuthError{Op: applog.OpRegister, Err: err})
	}
	if found {
		return core.Identity{}, s.fail(ctx, &AuthError{Op: applog.OpRegister, Reason: ErrUsernameTaken})
	}
	if utf8.RuneCountInString(secret) < minSecretSize {
		return core.Identity{}, s.fail(ctx, &AuthError{Op: applog.OpRegister, Reason: ErrWeakSecret})
	}

	identity, err := s.directory.CreateIdentity(ctx, username, secret)
	if err != nil {
		return core.Identity{}, s.fail(ctx, &AuthError{Op: applog.OpRegister, Err: err})
	}

	s.establish(ctx, identity)
	s.logger.InfoContext(ctx, "Registered", applog.FieldUserID, identity.ID, applog.FieldUsername, username)
	return identity, nil
}

// SignOut clears identity and token. It always succeeds.
func (s *Session) SignOut(ctx context.Context) {
	s.mu.Lock()
	prev := s.state
	s.state = Snapshot{}
	s.mu.Unlock()

	s.persist(ctx, Snapshot{})
	s.logger.InfoContext(ctx, "Signed out")
	s.notify(ctx, Change{Previous: prev, Current: Snapshot{}})
}

func (s *Session) establish(ctx context.Context, identity core.Identity) {
	next := Snapshot{Identity: &identity, Token: tokenPrefix + string(identity.ID)}

	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	s.persist(ctx, next)
	s.notify(ctx, Change{Previous: prev, Current: next})
}

// persist failures are logged, not returned: the in-memory state is
// authoritative for this process.
func (s *Session) persist(ctx context.Context, snap Snapshot) {
	values := map[string]string{}
	if snap.Authenticated() {
		user, err := json.Marshal(persistedUser{ID: gateway.WireID(snap.Identity.ID), Username: snap.Identity.Username})
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to encode session", applog.FieldError, err)
			return
		}
		values[KeyToken] = snap.Token
		values[KeyUser] = string(user)
	}
	if err := s.persister.Save(values); err != nil {
		s.logger.WarnContext(ctx, "Failed to persist session", applog.FieldError, err)
	}
}

func (s *Session) notify(ctx context.Context, c Change) {
	s.mu.Lock()
	observers := make([]observerEntry, len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, o := range observers {
		o.fn(ctx, c)
	}
}

func (s *Session) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading++
	s.lastErr = nil
}

func (s *Session) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--
}

func (s *Session) fail(ctx context.Context, err *AuthError) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.logger.WarnContext(ctx, "Authentication failed", applog.FieldOperation, err.Op, applog.FieldError, err)
	return err
}
