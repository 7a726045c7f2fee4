package services

import (
	"context"
	"errors"
	"fmt"

	"moneytrack/internal/amqp"
	"moneytrack/internal/core"
	"moneytrack/internal/gateway"
	applog "moneytrack/internal/log"
)

// Repository is the local store the service writes to first.
type Repository interface {
	gateway.Backend
	Get(ctx context.Context, id core.RecordID) (core.Transaction, error)
	Close() error
}

// Publisher announces ledger changes.
type Publisher interface {
	Publish(ctx context.Context, msg *amqp.LedgerChangeMessage) error
	Close() error
}

// LedgerService orchestrates ledger writes across SQLite and AMQP. It is a
// gateway.Backend itself, so the store uses it in place of the repository.
type LedgerService struct {
	repo      Repository
	publisher Publisher
	logger    *applog.Logger
}

var _ gateway.Backend = (*LedgerService)(nil)

// NewLedgerService wires repo and publisher. A nil publisher disables change
// messages.
func NewLedgerService(repo Repository, publisher Publisher, logger *applog.Logger) *LedgerService {
	if logger == nil {
		logger = applog.Discard()
	}
	return &LedgerService{
		repo:      repo,
		publisher: publisher,
		logger:    logger.WithComponent(applog.ComponentStorage),
	}
}

func (s *LedgerService) FetchAll(ctx context.Context, owner core.UserID) ([]core.Transaction, error) {
	return s.repo.FetchAll(ctx, owner)
}

// Create saves the transaction locally and publishes a created message.
func (s *LedgerService) Create(ctx context.Context, d core.Draft) (core.Transaction, error) {
	t, err := s.repo.Create(ctx, d)
	if err != nil {
		return core.Transaction{}, err
	}
	// The local write succeeded; a lost message only delays other watchers.
	s.publish(ctx, amqp.NewLedgerChangeMessage(amqp.ActionCreated, string(t.OwnerID), string(t.ID)))
	return t, nil
}

// Remove deletes the transaction locally and publishes a deleted message
// addressed to its owner.
func (s *LedgerService) Remove(ctx context.Context, id core.RecordID) error {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Remove(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.NewLedgerChangeMessage(amqp.ActionDeleted, string(t.OwnerID), string(id)))
	return nil
}

func (s *LedgerService) FindByUsername(ctx context.Context, username string) (gateway.Candidate, bool, error) {
	return s.repo.FindByUsername(ctx, username)
}

func (s *LedgerService) CreateIdentity(ctx context.Context, username, secret string) (core.Identity, error) {
	return s.repo.CreateIdentity(ctx, username, secret)
}

func (s *LedgerService) publish(ctx context.Context, msg *amqp.LedgerChangeMessage) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping change message", "action", msg.Action)
		return
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish change message",
			"action", msg.Action, applog.FieldRecordID, msg.RecordID, applog.FieldError, err)
	}
}

// Close closes both storage and AMQP connections.
func (s *LedgerService) Close() error {
	var errs []error
	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close ledger service: %w", err)
	}
	return nil
}
