package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneytrack/internal/config"
	"moneytrack/internal/core"
	"moneytrack/internal/gateway/rest"
	"moneytrack/internal/services"
)

func TestCreateBackendMemorySavesOnCleanup(t *testing.T) {
	ctx := context.Background()
	seed := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(seed, []byte(`{"users":[{"id":1,"username":"alice","password":"secret1"}],"transactions":[]}`), 0o644))

	f := NewFactory(nil)
	res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend, SeedFile: seed})
	require.NoError(t, err)
	require.NotNil(t, res.Cleanup)

	_, err = res.Backend.Create(ctx, core.Draft{
		OwnerID:     "1",
		Description: "Coffee",
		Amount:      decimal.NewFromInt(-3),
		OccurredOn:  core.NewDate(2024, 3, 15),
	})
	require.NoError(t, err)
	require.NoError(t, res.Close())

	again, err := f.CreateBackend(ctx, Config{Type: MemoryBackend, SeedFile: seed})
	require.NoError(t, err)
	got, err := again.Backend.FetchAll(ctx, "1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Coffee", got[0].Description)
}

func TestCreateBackendMemoryWithoutSeed(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend})
	require.NoError(t, err)
	assert.Nil(t, res.Cleanup)
	assert.NoError(t, res.Close())
}

func TestCreateBackendSQLite(t *testing.T) {
	ctx := context.Background()
	res, err := NewFactory(nil).CreateBackend(ctx, Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "data", "ledger.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Close() })

	assert.IsType(t, &services.LedgerService{}, res.Backend)

	id, err := res.Backend.CreateIdentity(ctx, "alice", "secret1")
	require.NoError(t, err)
	created, err := res.Backend.Create(ctx, core.Draft{
		OwnerID:     id.ID,
		Description: "Salary",
		Amount:      decimal.NewFromInt(1000),
		OccurredOn:  core.NewDate(2024, 3, 1),
	})
	require.NoError(t, err)
	require.NoError(t, res.Backend.Remove(ctx, created.ID))
}

func TestCreateBackendREST(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type:        RESTBackend,
		APIBaseURL:  "http://localhost:3000",
		HTTPTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.IsType(t, &rest.Client{}, res.Backend)
	assert.Nil(t, res.Cleanup)
}

func TestCreateBackendErrors(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{name: "unknown type", config: Config{Type: "postgres"}},
		{name: "rest without url", config: Config{Type: RESTBackend}},
		{name: "rest with bad scheme", config: Config{Type: RESTBackend, APIBaseURL: "ftp://x"}},
		{name: "sqlite without path", config: Config{Type: SQLiteBackend}},
		{name: "sheets without spreadsheet", config: Config{Type: SheetsBackend, GoogleServiceAccountJSON: "{}"}},
		{name: "sheets without credentials", config: Config{Type: SheetsBackend, GoogleSpreadsheetID: "abc"}},
		{name: "memory with malformed seed", config: Config{Type: MemoryBackend, SeedFile: writeFile(t, "not json")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewFactory(nil).CreateBackend(context.Background(), tt.config)
			assert.Error(t, err)
			assert.Nil(t, res)
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "bogus"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:             "sheets",
		GoogleSpreadsheetID:     "sheet-1",
		GoogleTransactionsSheet: "Tx",
		GoogleUsersSheet:        "People",
		SeedFile:                "db.json",
		HTTPTimeout:             time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, SheetsBackend, cfg.Type)
	assert.Equal(t, "sheet-1", cfg.GoogleSpreadsheetID)
	assert.Equal(t, "Tx", cfg.GoogleTransactionsSheet)
	assert.Equal(t, "People", cfg.GoogleUsersSheet)
	assert.Equal(t, "db.json", cfg.SeedFile)
}

func TestNewSubscriberDisabled(t *testing.T) {
	sub, err := NewSubscriber(Config{Type: SQLiteBackend}, nil)
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestBackendTypeStrings(t *testing.T) {
	assert.Equal(t, []string{"memory", "sqlite", "sheets", "rest"}, GetBackendTypeStrings())
	assert.False(t, BackendType("").IsValid())
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
