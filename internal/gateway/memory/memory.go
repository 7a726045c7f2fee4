// Package memory is an in-process backend. It can be seeded from a
// json-server style db.json so the client works without a network.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"moneytrack/internal/core"
	"moneytrack/internal/gateway"
)

// Store keeps users and transactions in memory.
type Store struct {
	mu    sync.Mutex
	users []gateway.WireUser
	items []core.Transaction
	newID func() string
}

// Ensure interface conformance
var _ gateway.Backend = (*Store)(nil)

// Seed is the db.json layout.
type Seed struct {
	Users        []gateway.WireUser        `json:"users"`
	Transactions []gateway.WireTransaction `json:"transactions"`
}

func New() *Store {
	return &Store{newID: func() string { return uuid.NewString() }}
}

// NewFromFile seeds the store from a db.json file. A missing file yields an
// empty store; a malformed one is an error.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if strings.TrimSpace(path) == "" {
		return s, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(b, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if err := s.Load(seed); err != nil {
		return nil, fmt.Errorf("load seed file %s: %w", path, err)
	}
	return s, nil
}

// Load appends seed data. Records keep their seeded ids.
func (s *Store) Load(seed Seed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range seed.Users {
		if u.ID == "" || strings.TrimSpace(u.Username) == "" {
			return fmt.Errorf("user without id or username")
		}
		s.users = append(s.users, u)
	}
	for _, w := range seed.Transactions {
		t, err := w.Transaction()
		if err != nil {
			return err
		}
		s.items = append(s.items, t)
	}
	return nil
}

// FetchAll returns the owner's transactions in insertion order.
func (s *Store) FetchAll(_ context.Context, owner core.UserID) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0)
	for _, t := range s.items {
		if t.OwnerID == owner {
			out = append(out, t)
		}
	}
	return out, nil
}

// Create stores the draft with a fresh id.
func (s *Store) Create(_ context.Context, d core.Draft) (core.Transaction, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, gateway.Errorf("create", err, "invalid transaction: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := core.FromDraft(core.RecordID(s.newID()), d)
	s.items = append(s.items, t)
	return t, nil
}

// Remove deletes the transaction with id.
func (s *Store) Remove(_ context.Context, id core.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.items {
		if t.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return gateway.Errorf("remove", gateway.ErrNotFound, "transaction %s not found", id)
}

// FindByUsername returns the first user with that exact name.
func (s *Store) FindByUsername(_ context.Context, username string) (gateway.Candidate, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u.Candidate(), true, nil
		}
	}
	return gateway.Candidate{}, false, nil
}

// CreateIdentity stores a new user. Uniqueness is the caller's check, as it
// is on json-server.
func (s *Store) CreateIdentity(_ context.Context, username, secret string) (core.Identity, error) {
	if strings.TrimSpace(username) == "" {
		return core.Identity{}, gateway.Errorf("register", nil, "username is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := gateway.WireUser{ID: gateway.WireID(s.newID()), Username: username, Password: secret}
	s.users = append(s.users, u)
	return u.Candidate().Identity, nil
}

// SaveFile writes the store back in the db.json layout, replacing path
// atomically.
func (s *Store) SaveFile(path string) error {
	s.mu.Lock()
	seed := Seed{
		Users:        append([]gateway.WireUser{}, s.users...),
		Transactions: make([]gateway.WireTransaction, 0, len(s.items)),
	}
	for _, t := range s.items {
		seed.Transactions = append(seed.Transactions, gateway.TransactionToWire(t))
	}
	s.mu.Unlock()

	b, err := json.MarshalIndent(seed, "", "  ")
	if err != nil {
		return fmt.Errorf("encode seed: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create seed directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write seed file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace seed file: %w", err)
	}
	return nil
}
