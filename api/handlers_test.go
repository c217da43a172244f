/*
handlers_test.go - Tests for the read-only API

Tests for:
- Health and table counts
- Segment listing, filtering and summary
- Per-customer lookup (found, missing, invalid id)
- CSV export and run listing
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/retail-rfm/retail"
	"github.com/warp/retail-rfm/store/sqlstore"
)

func newTestServer(t *testing.T) (http.Handler, *sqlstore.Store) {
	t.Helper()
	store, err := sqlstore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.ReplaceSegmentation(ctx, []retail.Segmentation{
		{CustomerID: 100, Recency: 3, Frequency: 2, Monetary: decimal.NewFromInt(200),
			RScore: 5, FScore: 5, MScore: 5, RFMScore: "555", Segment: "Champions"},
		{CustomerID: 500, Recency: 50, Frequency: 1, Monetary: decimal.RequireFromString("10.50"),
			RScore: 1, FScore: 1, MScore: 1, RFMScore: "111", Segment: "Lost"},
	}))
	started := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveRun(ctx, retail.Run{ID: "old", Status: retail.RunCompleted, StartedAt: started}))
	require.NoError(t, store.SaveRun(ctx, retail.Run{ID: "new", Status: retail.RunFailed, StartedAt: started.Add(time.Hour), Error: "boom"}))

	logger, _ := test.NewNullLogger()
	return NewRouter(NewHandler(store, logger)), store
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t)

	rec := get(t, h, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[HealthDTO](t, rec)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, sqlstore.DriverSQLite, body.Driver)
	assert.Equal(t, 2, body.Counts.Segments)
}

func TestListSegments(t *testing.T) {
	h, _ := newTestServer(t)

	rec := get(t, h, "/api/segments")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[SegmentsResponse](t, rec)
	require.Equal(t, 2, body.Count)
	assert.Equal(t, int64(100), body.Rows[0].CustomerID)
	assert.Equal(t, "200", body.Rows[0].Monetary)

	rec = get(t, h, "/api/segments?segment=Lost")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[SegmentsResponse](t, rec)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "10.5", body.Rows[0].Monetary)

	rec = get(t, h, "/api/segments?segment=Whales")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSegmentSummary(t *testing.T) {
	h, _ := newTestServer(t)

	rec := get(t, h, "/api/segments/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[SummaryResponse](t, rec)
	assert.Equal(t, 2, body.Customers)
	require.Len(t, body.Segments, 5)
	assert.Equal(t, "Champions", string(body.Segments[0].Segment))
	assert.Equal(t, 1, body.Segments[0].Customers)
	assert.Equal(t, 0, body.Segments[2].Customers)
}

func TestGetCustomerRFM(t *testing.T) {
	h, _ := newTestServer(t)

	rec := get(t, h, "/api/customers/100/rfm")
	require.Equal(t, http.StatusOK, rec.Code)
	var row map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &row))
	assert.Equal(t, "555", row["rfm_score"])
	assert.Equal(t, "Champions", row["segment"])

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/customers/42/rfm").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/customers/abc/rfm").Code)
}

func TestExportCSV(t *testing.T) {
	h, _ := newTestServer(t)

	rec := get(t, h, "/api/segments/export.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "100,3,2,200,5,5,5,555,Champions", lines[1])
}

func TestListRuns(t *testing.T) {
	h, _ := newTestServer(t)

	rec := get(t, h, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[RunsResponse](t, rec)
	require.Len(t, body.Runs, 2)
	assert.Equal(t, "new", body.Runs[0].ID)
	assert.Equal(t, "boom", body.Runs[0].Error)

	rec = get(t, h, "/api/runs?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[RunsResponse](t, rec).Runs, 1)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/runs?limit=-1").Code)
}
