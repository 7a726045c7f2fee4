// Package google stores the ledger in a Google spreadsheet with one tab for
// transactions and one for users.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"moneytrack/internal/cache"
	"moneytrack/internal/core"
	"moneytrack/internal/gateway"
	applog "moneytrack/internal/log"
)

const sheetIDTTL = time.Hour

// Config selects the spreadsheet and credentials.
type Config struct {
	SpreadsheetID      string
	TransactionsSheet  string
	UsersSheet         string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc               *gsheet.Service
	spreadsheetID     string
	transactionsSheet string
	usersSheet        string
	sheetIDs          cache.Cache[int64]
	newID             func() string
	logger            *applog.Logger
}

var _ gateway.Backend = (*Client)(nil)

// New builds a client from service account credentials. Extra options are
// appended after the credentials, so tests can point it elsewhere.
func New(ctx context.Context, cfg Config, logger *applog.Logger, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentSheets)

	clientOpts := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}
	if len(opts) == 0 {
		creds, err := credentials(cfg)
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts, goption.WithCredentialsJSON(creds))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", cfg.SpreadsheetID)
	return newClient(svc, cfg, logger), nil
}

func newClient(svc *gsheet.Service, cfg Config, logger *applog.Logger) *Client {
	tx := strings.TrimSpace(cfg.TransactionsSheet)
	if tx == "" {
		tx = "Transactions"
	}
	users := strings.TrimSpace(cfg.UsersSheet)
	if users == "" {
		users = "Users"
	}
	return &Client{
		svc:               svc,
		spreadsheetID:     cfg.SpreadsheetID,
		transactionsSheet: tx,
		usersSheet:        users,
		sheetIDs:          cache.NewLRUCache[int64](8, sheetIDTTL),
		newID:             uuid.NewString,
		logger:            logger,
	}
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		return []byte(cfg.ServiceAccountJSON), nil
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		b, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

func (c *Client) FetchAll(ctx context.Context, owner core.UserID) ([]core.Transaction, error) {
	values, err := c.read(ctx, c.transactionsSheet+"!A:F")
	if err != nil {
		return nil, gateway.Errorf("fetch", err, "read %s: %v", c.transactionsSheet, err)
	}
	all, skipped := parseTransactions(values)
	if skipped > 0 {
		c.logger.WarnContext(ctx, "Skipped malformed rows", "sheet", c.transactionsSheet, "count", skipped)
	}
	out := make([]core.Transaction, 0, len(all))
	for _, t := range all {
		if t.OwnerID == owner {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *Client) Create(ctx context.Context, d core.Draft) (core.Transaction, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, gateway.Errorf("create", err, "invalid transaction: %v", err)
	}
	d.Description = strings.TrimSpace(d.Description)
	t := core.FromDraft(core.RecordID(c.newID()), d)
	if err := c.appendRow(ctx, c.transactionsSheet, transactionHeaders, transactionRow(t)); err != nil {
		return core.Transaction{}, gateway.Errorf("create", err, "append to %s: %v", c.transactionsSheet, err)
	}
	c.logger.InfoContext(ctx, "Transaction appended",
		applog.FieldRecordID, t.ID, applog.FieldUserID, t.OwnerID, "sheet", c.transactionsSheet)
	return t, nil
}

// Remove deletes the row holding id.
func (c *Client) Remove(ctx context.Context, id core.RecordID) error {
	values, err := c.read(ctx, c.transactionsSheet+"!A:A")
	if err != nil {
		return gateway.Errorf("remove", err, "read %s: %v", c.transactionsSheet, err)
	}
	row := rowIndexOf(values, string(id))
	if row < 0 {
		return gateway.Errorf("remove", gateway.ErrNotFound, "transaction %s not found", id)
	}

	sheetID, err := cache.GetOrLoad(c.sheetIDs, c.transactionsSheet, func() (int64, error) {
		return c.lookupSheetID(ctx, c.transactionsSheet)
	})
	if err != nil {
		return gateway.Errorf("remove", err, "resolve sheet %s: %v", c.transactionsSheet, err)
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
			SheetId:    sheetID,
			Dimension:  "ROWS",
			StartIndex: int64(row),
			EndIndex:   int64(row + 1),
		}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		// The tab may have been recreated under a new id.
		c.sheetIDs.Delete(c.transactionsSheet)
		return gateway.Errorf("remove", err, "delete row %d of %s: %v", row+1, c.transactionsSheet, err)
	}
	c.logger.InfoContext(ctx, "Transaction row deleted", applog.FieldRecordID, id, "row", row+1)
	return nil
}

func (c *Client) FindByUsername(ctx context.Context, username string) (gateway.Candidate, bool, error) {
	values, err := c.read(ctx, c.usersSheet+"!A:C")
	if err != nil {
		return gateway.Candidate{}, false, gateway.Errorf("lookup", err, "read %s: %v", c.usersSheet, err)
	}
	candidate, found := findUser(values, username)
	return candidate, found, nil
}

func (c *Client) CreateIdentity(ctx context.Context, username, secret string) (core.Identity, error) {
	if strings.TrimSpace(username) == "" {
		return core.Identity{}, gateway.Errorf("register", nil, "username is required")
	}
	id := core.Identity{ID: core.UserID(c.newID()), Username: username}
	if err := c.appendRow(ctx, c.usersSheet, userHeaders, []any{string(id.ID), username, secret}); err != nil {
		return core.Identity{}, gateway.Errorf("register", err, "append to %s: %v", c.usersSheet, err)
	}
	return id, nil
}

func (c *Client) read(ctx context.Context, rng string) ([][]any, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// appendRow writes headers first when the tab is empty. Values are stored
// as entered so amounts keep their exact decimal text.
func (c *Client) appendRow(ctx context.Context, sheet string, headers, row []any) error {
	existing, err := c.read(ctx, sheet+"!A1:A1")
	if err != nil {
		return err
	}
	rows := [][]any{row}
	if len(existing) == 0 {
		rows = [][]any{headers, row}
	}
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, sheet+"!A:A", &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	return err
}

func (c *Client) lookupSheetID(ctx context.Context, title string) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", title)
}
