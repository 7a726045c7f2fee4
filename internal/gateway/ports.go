// Package gateway defines the boundary between the client and the remote
// backend that owns transactions and identities.
package gateway

import (
	"context"

	"moneytrack/internal/core"
)

// Ports for outbound adapters.
type (
	// Ledger reads and writes transactions on the remote backend. It carries no
	// business rules and never retries; callers decide policy.
	Ledger interface {
		// FetchAll returns every transaction owned by owner.
		FetchAll(ctx context.Context, owner core.UserID) ([]core.Transaction, error)
		// Create stores d and returns the record as stored, with its assigned id.
		Create(ctx context.Context, d core.Draft) (core.Transaction, error)
		// Remove deletes the transaction with the given id.
		Remove(ctx context.Context, id core.RecordID) error
	}

	// IdentityDirectory looks up and creates user identities.
	IdentityDirectory interface {
		// FindByUsername reports whether a user with that name exists.
		FindByUsername(ctx context.Context, username string) (Candidate, bool, error)
		CreateIdentity(ctx context.Context, username, secret string) (core.Identity, error)
	}

	// Backend is everything a client needs from the remote side.
	Backend interface {
		Ledger
		IdentityDirectory
	}
)

// Candidate is a stored user as returned by a directory lookup. Secret is
// compared in plain text: the backends model a mock credential scheme.
type Candidate struct {
	Identity core.Identity
	Secret   string
}
