package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"

	"moneytrack/internal/core"
	"moneytrack/internal/gateway"
)

// fakeSheets serves the handful of Sheets API calls the client makes,
// keeping each tab as a list of rows.
type fakeSheets struct {
	mu       sync.Mutex
	tabs     map[string][][]any
	ids      map[string]int64
	metaHits int
	failGet  bool
}

func newFakeSheets() *fakeSheets {
	return &fakeSheets{
		tabs: map[string][][]any{"Transactions": nil, "Users": nil},
		ids:  map[string]int64{"Transactions": 11, "Users": 12},
	}
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/")
	switch {
	case strings.Contains(path, "/values/"):
		rng := path[strings.Index(path, "/values/")+len("/values/"):]
		if r.Method == http.MethodPost && strings.HasSuffix(rng, ":append") {
			f.append(w, r, strings.TrimSuffix(rng, ":append"))
			return
		}
		f.get(w, rng)
	case strings.HasSuffix(path, ":batchUpdate"):
		f.batchUpdate(w, r)
	default:
		f.metaHits++
		var sheets []map[string]any
		for title, id := range f.ids {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"sheetId": id, "title": title}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})
	}
}

func (f *fakeSheets) get(w http.ResponseWriter, rng string) {
	if f.failGet {
		http.Error(w, `{"error":{"code":500,"message":"backend error"}}`, http.StatusInternalServerError)
		return
	}
	tab, cells, _ := strings.Cut(rng, "!")
	rows := f.tabs[tab]
	if cells == "A1:A1" && len(rows) > 1 {
		rows = rows[:1]
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"range": rng, "majorDimension": "ROWS", "values": rows})
}

func (f *fakeSheets) append(w http.ResponseWriter, r *http.Request, rng string) {
	tab, _, _ := strings.Cut(rng, "!")
	var body struct {
		Values [][]any `json:"values"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.tabs[tab] = append(f.tabs[tab], body.Values...)
	_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-1"})
}

func (f *fakeSheets) batchUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Requests []struct {
			DeleteDimension struct {
				Range struct {
					SheetID    int64 `json:"sheetId"`
					StartIndex int64 `json:"startIndex"`
					EndIndex   int64 `json:"endIndex"`
				} `json:"range"`
			} `json:"deleteDimension"`
		} `json:"requests"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	for _, req := range body.Requests {
		rg := req.DeleteDimension.Range
		for title, id := range f.ids {
			if id != rg.SheetID {
				continue
			}
			rows := f.tabs[title]
			f.tabs[title] = append(rows[:rg.StartIndex:rg.StartIndex], rows[rg.EndIndex:]...)
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-1"})
}

func newTestClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := newFakeSheets()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-1"}, nil,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	require.NoError(t, err)
	n := 0
	c.newID = func() string {
		n++
		return "id-" + string(rune('0'+n))
	}
	return c, fake
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	require.Error(t, err)
	assert.Equal(t, "missing GOOGLE_SPREADSHEET_ID", err.Error())
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}

func TestCreateFetchRemove(t *testing.T) {
	ctx := context.Background()
	c, fake := newTestClient(t)

	salary, err := c.Create(ctx, core.Draft{
		OwnerID: "1", Description: "Salary", Amount: decimal.NewFromInt(1000000), OccurredOn: core.NewDate(2024, 1, 5),
	})
	require.NoError(t, err)
	assert.Equal(t, core.RecordID("id-1"), salary.ID)

	_, err = c.Create(ctx, core.Draft{
		OwnerID: "2", Description: "Other", Amount: decimal.NewFromInt(-5), OccurredOn: core.NewDate(2024, 1, 6),
	})
	require.NoError(t, err)

	require.Len(t, fake.tabs["Transactions"], 3, "header written once")

	got, err := c.FetchAll(ctx, "1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Salary", got[0].Description)

	require.NoError(t, c.Remove(ctx, salary.ID))
	got, err = c.FetchAll(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Len(t, fake.tabs["Transactions"], 2)

	err = c.Remove(ctx, salary.ID)
	assert.True(t, gateway.IsNotFound(err))
}

func TestSheetIDIsCached(t *testing.T) {
	ctx := context.Background()
	c, fake := newTestClient(t)

	for i := 0; i < 2; i++ {
		tx, err := c.Create(ctx, core.Draft{
			OwnerID: "1", Description: "x", Amount: decimal.NewFromInt(1), OccurredOn: core.NewDate(2024, 1, 1),
		})
		require.NoError(t, err)
		require.NoError(t, c.Remove(ctx, tx.ID))
	}
	assert.Equal(t, 1, fake.metaHits)
}

func TestIdentities(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	_, found, err := c.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, found)

	id, err := c.CreateIdentity(ctx, "alice", "secret1")
	require.NoError(t, err)

	cand, found, err := c.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, id, cand.Identity)
	assert.Equal(t, "secret1", cand.Secret)
}

func TestReadFailureIsGatewayError(t *testing.T) {
	c, fake := newTestClient(t)
	fake.failGet = true

	_, err := c.FetchAll(context.Background(), "1")
	var gwErr *gateway.Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "fetch", gwErr.Op)
}
