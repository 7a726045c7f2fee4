package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf, Component: ComponentApp}).
		WithComponent(ComponentStore)

	logger.Info("records replaced", FieldRecordCount, 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "records replaced", rec["msg"])
	assert.Equal(t, ComponentStore, rec[FieldComponent])
	assert.Equal(t, float64(3), rec[FieldRecordCount])
	assert.Equal(t, ComponentStore, logger.Component())
}

func TestFromContextFallsBack(t *testing.T) {
	assert.Equal(t, "unknown", FromContext(context.Background()).Component())

	logger := Discard().WithComponent(ComponentSession)
	assert.Same(t, logger, FromContext(WithContext(context.Background(), logger)))
}

func TestLogFieldsToSlice(t *testing.T) {
	fields := NewFields().WithOperation(OpCreate).WithUser("7").WithError(nil)
	assert.Len(t, fields.ToSlice(), 4)
	assert.Equal(t, OpCreate, fields[FieldOperation])
	assert.NotContains(t, fields, FieldError)
}

func TestTransportLogsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf, Component: ComponentGateway})
	client := &http.Client{Transport: &Transport{Logger: logger}}

	resp, err := client.Get(srv.URL + "/api/transactions/9")
	require.NoError(t, err)
	resp.Body.Close()

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "/api/transactions/9", rec[FieldPath])
	assert.Equal(t, float64(http.StatusNotFound), rec[FieldStatusCode])
	assert.Equal(t, ComponentGateway, rec[FieldComponent])
}

func TestTransportStampsRequestID(t *testing.T) {
	seen := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Get(RequestIDHeader)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf})
	client := &http.Client{Transport: &Transport{Logger: logger}}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	generated := <-seen
	assert.Len(t, generated, 16)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, generated, rec[FieldRequestID])

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "caller-id")
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "caller-id", <-seen)
}
