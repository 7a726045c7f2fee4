// Package store keeps the signed-in user's ledger in memory, in step with the
// remote backend and the session.
//
// The store subscribes to session changes. Signing in triggers a refresh,
// signing out clears the records without touching the backend. Every
// operation records its failure in Err/LastError as well as returning it.
//
// Calls are not queued: overlapping operations may run concurrently and the
// last write to the record list wins. A response issued for an identity that
// is no longer current is discarded.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"moneytrack/internal/core"
	"moneytrack/internal/gateway"
	applog "moneytrack/internal/log"
	"moneytrack/internal/session"
)

// ErrNotAuthenticated is returned by Create and Remove when nobody is signed
// in. No backend call is made.
var ErrNotAuthenticated = errors.New("not authenticated")

// Auth is the part of the session the store depends on.
type Auth interface {
	Current() session.Snapshot
	Subscribe(fn session.Observer) (unsubscribe func())
}

// Snapshot is a consistent view of the store handed to listeners.
type Snapshot struct {
	Records   []core.Transaction
	Loading   bool
	LastError string
	Totals    core.Totals
}

// Listener receives the store state after every change.
type Listener func(Snapshot)

type listenerEntry struct {
	id int
	fn Listener
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to date new records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the store logger.
func WithLogger(l *applog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Store is the per-user ledger.
type Store struct {
	auth   Auth
	ledger gateway.Ledger
	now    func() time.Time
	logger *applog.Logger

	mu        sync.Mutex
	owner     core.UserID
	records   []core.Transaction
	loading   int
	lastErr   error
	listeners []listenerEntry
	nextID    int

	unsubscribe func()
}

// New builds a store bound to auth and ledger, subscribes to session changes
// and evaluates the current session once. When a user is already signed in
// this performs the initial refresh before returning.
func New(ctx context.Context, auth Auth, ledger gateway.Ledger, opts ...Option) *Store {
	s := &Store{
		auth:   auth,
		ledger: ledger,
		now:    time.Now,
		logger: applog.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(applog.ComponentStore)

	s.unsubscribe = auth.Subscribe(func(ctx context.Context, c session.Change) {
		s.evaluate(ctx, c.Current)
	})
	s.evaluate(ctx, auth.Current())
	return s
}

// Close stops following the session.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *Store) evaluate(ctx context.Context, snap session.Snapshot) {
	if _, ok := snap.UserID(); !ok {
		s.logger.DebugContext(ctx, "Session ended, clearing records")
		s.mutate(func() {
			s.owner = ""
			s.records = nil
		})
		return
	}
	// Refresh logs and records its own failure.
	_ = s.Refresh(ctx)
}

// Refresh replaces the records with the signed-in user's ledger. When nobody
// is signed in it clears the records and returns nil without calling the
// backend. On failure the records are left untouched.
func (s *Store) Refresh(ctx context.Context) error {
	owner, ok := s.auth.Current().UserID()
	if !ok {
		s.mutate(func() {
			s.owner = ""
			s.records = nil
		})
		return nil
	}

	c := s.begin(owner)
	defer c.release()
	fetched, err := s.ledger.FetchAll(ctx, owner)
	if err != nil {
		return c.fail(ctx, applog.OpRefresh, err)
	}

	records := make([]core.Transaction, 0, len(fetched))
	for _, t := range fetched {
		if t.OwnerID != owner {
			s.logger.WarnContext(ctx, "Dropping record owned by another user",
				applog.FieldRecordID, t.ID, applog.FieldUserID, owner)
			continue
		}
		records = append(records, t)
	}

	stale := c.finish(func() {
		s.records = records
	})
	if stale {
		s.logger.DebugContext(ctx, "Discarded stale refresh", applog.FieldUserID, owner)
		return nil
	}
	s.logger.DebugContext(ctx, "Refreshed records", applog.FieldUserID, owner, applog.FieldRecordCount, len(records))
	return nil
}

// Create records a new transaction dated today. The kind follows the sign of
// amount. On success the record returned by the backend is put at the front
// of the list.
func (s *Store) Create(ctx context.Context, description string, amount decimal.Decimal) (core.Transaction, error) {
	owner, ok := s.auth.Current().UserID()
	if !ok {
		return core.Transaction{}, s.reject(ctx, applog.OpCreate)
	}

	draft := core.Draft{
		OwnerID:     owner,
		Description: description,
		Amount:      amount,
		OccurredOn:  core.DateOf(s.now()),
	}
	c := s.begin(owner)
	defer c.release()
	created, err := s.ledger.Create(ctx, draft)
	if err != nil {
		return core.Transaction{}, c.fail(ctx, applog.OpCreate, err)
	}

	stale := c.finish(func() {
		if created.OwnerID != owner {
			return
		}
		records := make([]core.Transaction, 0, len(s.records)+1)
		records = append(records, created)
		s.records = append(records, s.records...)
	})
	if stale {
		s.logger.DebugContext(ctx, "Created record for a user no longer signed in",
			applog.FieldRecordID, created.ID, applog.FieldUserID, owner)
		return created, nil
	}
	s.logger.InfoContext(ctx, "Created record",
		applog.NewFields().
			WithOperation(applog.OpCreate).
			WithUser(string(owner)).
			WithRecord(string(created.ID), created.Description, created.Amount.String(), created.Kind().String()).
			ToSlice()...)
	return created, nil
}

// Remove deletes id on the backend, then drops every local record with that
// id owned by the current user. Removing an id that is not held locally still
// calls the backend.
func (s *Store) Remove(ctx context.Context, id core.RecordID) error {
	owner, ok := s.auth.Current().UserID()
	if !ok {
		return s.reject(ctx, applog.OpRemove)
	}

	c := s.begin(owner)
	defer c.release()
	if err := s.ledger.Remove(ctx, id); err != nil {
		return c.fail(ctx, applog.OpRemove, err)
	}

	stale := c.finish(func() {
		kept := make([]core.Transaction, 0, len(s.records))
		for _, t := range s.records {
			if t.ID == id && t.OwnerID == owner {
				continue
			}
			kept = append(kept, t)
		}
		s.records = kept
	})
	if stale {
		s.logger.DebugContext(ctx, "Removed record for a user no longer signed in",
			applog.FieldRecordID, id, applog.FieldUserID, owner)
		return nil
	}
	s.logger.InfoContext(ctx, "Removed record", applog.FieldRecordID, id, applog.FieldUserID, owner)
	return nil
}

// Records returns a copy of the current records, most recently added first.
func (s *Store) Records() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecords(s.records)
}

// Loading reports whether any operation is waiting on the backend.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

// Err returns the last failure, or nil. It is cleared when the next
// operation starts.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// LastError returns the message of the last failure, or "".
func (s *Store) LastError() string {
	if err := s.Err(); err != nil {
		return err.Error()
	}
	return ""
}

// Totals computes balance, income and expense over the current records.
func (s *Store) Totals() core.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Summarize(s.records)
}

func (s *Store) Balance() decimal.Decimal {
	return s.Totals().Balance
}

func (s *Store) Income() decimal.Decimal {
	return s.Totals().Income
}

func (s *Store) Expense() decimal.Decimal {
	return s.Totals().Expense
}

// Snapshot returns the whole state at once.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every state change and returns a function that
// removes it. Listeners run on the goroutine that made the change.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// call is one backend operation stamped with the owner it was issued for.
// Exactly one of finish, fail or release settles it; release is deferred by
// every caller so the in-flight mark is dropped even if the backend panics.
type call struct {
	s       *Store
	owner   core.UserID
	settled bool
}

// begin marks an operation for owner as in flight. Records held for another
// owner are dropped first so they never mix with owner's.
func (s *Store) begin(owner core.UserID) *call {
	s.mutate(func() {
		if s.owner != owner {
			s.owner = owner
			s.records = nil
		}
		s.loading++
		s.lastErr = nil
	})
	return &call{s: s, owner: owner}
}

// finish releases the in-flight mark and applies fn unless the store has
// moved on to another owner since the call was issued. It reports whether
// the result was discarded.
func (c *call) finish(fn func()) (stale bool) {
	c.s.mutate(func() {
		c.settled = true
		c.s.loading--
		if c.s.owner != c.owner {
			stale = true
			return
		}
		fn()
	})
	return stale
}

func (c *call) fail(ctx context.Context, op string, err error) error {
	c.s.mutate(func() {
		c.settled = true
		c.s.loading--
		if c.s.owner == c.owner {
			c.s.lastErr = err
		}
	})
	c.s.logger.WarnContext(ctx, "Ledger operation failed",
		applog.NewFields().WithOperation(op).WithUser(string(c.owner)).WithError(err).ToSlice()...)
	return err
}

// release drops the in-flight mark of a call that neither finished nor failed.
func (c *call) release() {
	if c.settled {
		return
	}
	c.s.mutate(func() {
		c.settled = true
		c.s.loading--
	})
}

func (s *Store) reject(ctx context.Context, op string) error {
	s.mutate(func() { s.lastErr = ErrNotAuthenticated })
	s.logger.DebugContext(ctx, "Rejected operation without a session", applog.FieldOperation, op)
	return ErrNotAuthenticated
}

// mutate applies fn under the lock, then notifies listeners outside it.
func (s *Store) mutate(fn func()) {
	s.mu.Lock()
	fn()
	snap := s.snapshotLocked()
	listeners := make([]listenerEntry, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l.fn(snap)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Records:   cloneRecords(s.records),
		Loading:   s.loading > 0,
		LastError: errString(s.lastErr),
		Totals:    core.Summarize(s.records),
	}
}

func cloneRecords(in []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, len(in))
	copy(out, in)
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
