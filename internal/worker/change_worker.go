package worker

import (
	"context"
	"time"

	"moneytrack/internal/amqp"
	"moneytrack/internal/core"
	applog "moneytrack/internal/log"
)

// Refresher reloads the ledger from the backend.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// OwnerFunc reports the user currently signed in.
type OwnerFunc func() (core.UserID, bool)

// ChangeWorker keeps a store current: it refreshes when another process
// changes the signed-in user's ledger, and on a fixed interval to catch
// messages that were missed.
type ChangeWorker struct {
	store    Refresher
	owner    OwnerFunc
	interval time.Duration
	logger   *applog.Logger
}

func NewChangeWorker(store Refresher, owner OwnerFunc, interval time.Duration, logger *applog.Logger) *ChangeWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	return &ChangeWorker{
		store:    store,
		owner:    owner,
		interval: interval,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleChange refreshes when msg concerns the signed-in user. Messages for
// other users are acknowledged and ignored. Refresh failures are not
// returned: the store already records them and requeueing would only repeat
// the same refresh.
func (w *ChangeWorker) HandleChange(ctx context.Context, msg *amqp.LedgerChangeMessage) error {
	owner, ok := w.owner()
	if !ok || string(owner) != msg.OwnerID {
		w.logger.DebugContext(ctx, "Ignoring change for another user",
			applog.FieldUserID, msg.OwnerID, "action", msg.Action)
		return nil
	}

	w.logger.InfoContext(ctx, "Ledger changed elsewhere, refreshing",
		"action", msg.Action, applog.FieldRecordID, msg.RecordID)
	if err := w.store.Refresh(ctx); err != nil {
		w.logger.WarnContext(ctx, "Refresh after change failed", applog.FieldError, err)
	}
	return nil
}

// RunPeriodic refreshes every interval until ctx is done. A non-positive
// interval disables it.
func (w *ChangeWorker) RunPeriodic(ctx context.Context) error {
	if w.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, ok := w.owner(); !ok {
				continue
			}
			if err := w.store.Refresh(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic refresh failed", applog.FieldError, err)
			}
		}
	}
}
