// Package storage is the SQLite backend. Transactions are soft-deleted so a
// removal can still be reported to other processes.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"moneytrack/internal/core"
	"moneytrack/internal/gateway"
	applog "moneytrack/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements gateway.Backend on a local database file.
type SQLiteRepository struct {
	db     *sql.DB
	logger *applog.Logger
}

var _ gateway.Backend = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, logger *applog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentStorage)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if _, err := Migrate(dbPath, logger); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", dbPath, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	// One writer at a time; SQLite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	logger.Info("SQLite backend ready", "path", dbPath)
	return &SQLiteRepository{db: db, logger: logger}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const selectTransactions = `SELECT id, user_id, description, amount, occurred_on
FROM transactions WHERE deleted_at IS NULL`

// FetchAll returns the owner's live transactions in insertion order.
func (r *SQLiteRepository) FetchAll(ctx context.Context, owner core.UserID) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, selectTransactions+` AND user_id = ? ORDER BY id`, string(owner))
	if err != nil {
		return nil, gateway.Errorf("fetch", err, "fetch transactions: %v", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, gateway.Errorf("fetch", err, "read transaction: %v", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, gateway.Errorf("fetch", err, "fetch transactions: %v", err)
	}
	return out, nil
}

// Get returns one live transaction.
func (r *SQLiteRepository) Get(ctx context.Context, id core.RecordID) (core.Transaction, error) {
	n, ok := parseID(id)
	if !ok {
		return core.Transaction{}, notFound("get", id)
	}
	row := r.db.QueryRowContext(ctx, selectTransactions+` AND id = ?`, n)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, notFound("get", id)
	}
	if err != nil {
		return core.Transaction{}, gateway.Errorf("get", err, "get transaction %s: %v", id, err)
	}
	return t, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, d core.Draft) (core.Transaction, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, gateway.Errorf("create", err, "invalid transaction: %v", err)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, description, amount, occurred_on) VALUES (?, ?, ?, ?)`,
		string(d.OwnerID), strings.TrimSpace(d.Description), d.Amount.String(), d.OccurredOn.String())
	if err != nil {
		return core.Transaction{}, gateway.Errorf("create", err, "create transaction: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, gateway.Errorf("create", err, "create transaction: %v", err)
	}

	d.Description = strings.TrimSpace(d.Description)
	t := core.FromDraft(core.RecordID(strconv.FormatInt(id, 10)), d)
	r.logger.InfoContext(ctx, "Transaction saved to SQLite",
		applog.NewFields().
			WithUser(string(t.OwnerID)).
			WithRecord(string(t.ID), t.Description, t.Amount.String(), t.Kind().String()).
			ToSlice()...)
	return t, nil
}

// Remove soft-deletes the transaction.
func (r *SQLiteRepository) Remove(ctx context.Context, id core.RecordID) error {
	n, ok := parseID(id)
	if !ok {
		return notFound("remove", id)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`, n)
	if err != nil {
		return gateway.Errorf("remove", err, "remove transaction %s: %v", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return gateway.Errorf("remove", err, "remove transaction %s: %v", id, err)
	}
	if affected == 0 {
		return notFound("remove", id)
	}
	r.logger.InfoContext(ctx, "Transaction soft deleted", applog.FieldRecordID, id)
	return nil
}

func (r *SQLiteRepository) FindByUsername(ctx context.Context, username string) (gateway.Candidate, bool, error) {
	var (
		id     int64
		name   string
		secret string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password FROM users WHERE username = ?`, username).Scan(&id, &name, &secret)
	if errors.Is(err, sql.ErrNoRows) {
		return gateway.Candidate{}, false, nil
	}
	if err != nil {
		return gateway.Candidate{}, false, gateway.Errorf("lookup", err, "look up user: %v", err)
	}
	return gateway.Candidate{
		Identity: core.Identity{ID: core.UserID(strconv.FormatInt(id, 10)), Username: name},
		Secret:   secret,
	}, true, nil
}

func (r *SQLiteRepository) CreateIdentity(ctx context.Context, username, secret string) (core.Identity, error) {
	if strings.TrimSpace(username) == "" {
		return core.Identity{}, gateway.Errorf("register", nil, "username is required")
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO users (username, password) VALUES (?, ?)`, username, secret)
	if err != nil {
		return core.Identity{}, gateway.Errorf("register", err, "create user: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Identity{}, gateway.Errorf("register", err, "create user: %v", err)
	}
	r.logger.InfoContext(ctx, "User saved to SQLite", applog.FieldUserID, id, applog.FieldUsername, username)
	return core.Identity{ID: core.UserID(strconv.FormatInt(id, 10)), Username: username}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		id          int64
		owner       string
		description string
		amount      string
		occurredOn  string
	)
	if err := s.Scan(&id, &owner, &description, &amount, &occurredOn); err != nil {
		return core.Transaction{}, err
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: amount %q: %w", id, amount, err)
	}
	date, err := core.ParseDate(occurredOn)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, err)
	}
	return core.Transaction{
		ID:          core.RecordID(strconv.FormatInt(id, 10)),
		OwnerID:     core.UserID(owner),
		Description: description,
		Amount:      value,
		OccurredOn:  date,
	}, nil
}

func parseID(id core.RecordID) (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}

func notFound(op string, id core.RecordID) error {
	return gateway.Errorf(op, gateway.ErrNotFound, "transaction %s not found", id)
}
