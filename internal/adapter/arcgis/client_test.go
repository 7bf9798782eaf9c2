package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/civic-data-etl/internal/adapter/upstream"
	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	whereCode = "Juris_Code = '43' OR Juris_Code = 43"
	whereName = "Physical_Juris_Name LIKE '%HENRICO%'"
	whereFIPS = "COUNTYFP = '087' OR FIPS = '087'"
)

// fakeService is an in-memory feature service. counts maps a where-expression
// to its reported count; a negative count answers with an error payload.
type fakeService struct {
	mu        sync.Mutex
	counts    map[string]int
	available int // records actually servable, defaults to the count
	failPage  int // offset whose page answers 500, -1 for none
	pageWhere []string
	offsets   []int
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := r.URL.Query()
	where := q.Get("where")
	n, known := f.counts[where]

	if q.Get("returnCountOnly") == "true" {
		if !known || n < 0 {
			writeJSON(w, map[string]any{"error": map[string]any{"code": 400, "message": "Invalid field", "details": []string{where}}})
			return
		}
		writeJSON(w, map[string]any{"count": n})
		return
	}

	offset, _ := strconv.Atoi(q.Get("resultOffset"))
	size, _ := strconv.Atoi(q.Get("resultRecordCount"))
	f.pageWhere = append(f.pageWhere, where)
	f.offsets = append(f.offsets, offset)

	if offset == f.failPage {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}

	limit := n
	if f.available > 0 {
		limit = f.available
	}
	var features []map[string]any
	for i := offset; i < offset+size && i < limit; i++ {
		features = append(features, map[string]any{
			"attributes": map[string]any{"OBJECTID": i, "Juris_Code": 43, "RTE_NAME": "S-VA620"},
			"geometry":   map[string]any{"x": -77.4, "y": 37.5},
		})
	}
	writeJSON(w, map[string]any{
		"fields":   []map[string]string{{"name": "OBJECTID"}, {"name": "RTE_NAME"}, {"name": "Juris_Code"}},
		"features": features,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, svc *fakeService, pageSize int) *Client {
	t.Helper()
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hc := upstream.NewClient("arcgis", 0, logger, observability.NewMetricsForTesting())
	return NewClient(Config{
		URL:          srv.URL + "/query",
		PageSize:     pageSize,
		Where:        []string{whereCode, whereName, whereFIPS},
		CountTimeout: time.Second,
		PageTimeout:  time.Second,
	}, hc, logger)
}

func TestFetch_FirstPositiveWhereIsUsedForEveryPage(t *testing.T) {
	svc := &fakeService{
		counts:   map[string]int{whereCode: -1, whereName: 5, whereFIPS: 9},
		failPage: -1,
	}
	c := newTestClient(t, svc, 2)

	rs, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, rs, 5)
	assert.Equal(t, []string{whereName, whereName, whereName}, svc.pageWhere)
}

func TestFetch_PageCountIsCeilTotalOverSize(t *testing.T) {
	tests := []struct {
		total, size, pages int
	}{
		{total: 4, size: 2, pages: 2},
		{total: 5, size: 2, pages: 3},
		{total: 1, size: 2000, pages: 1},
		{total: 2000, size: 2000, pages: 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("T=%d P=%d", tt.total, tt.size), func(t *testing.T) {
			svc := &fakeService{counts: map[string]int{whereCode: tt.total}, failPage: -1}
			c := newTestClient(t, svc, tt.size)

			rs, err := c.Fetch(context.Background())
			require.NoError(t, err)
			assert.Len(t, rs, tt.total)
			assert.Len(t, svc.offsets, tt.pages)
			for i, off := range svc.offsets {
				assert.Equal(t, i*tt.size, off)
			}
		})
	}
}

func TestFetch_StopsOnShortPage(t *testing.T) {
	// The count claims 10 records but only 3 exist.
	svc := &fakeService{counts: map[string]int{whereCode: 10}, available: 3, failPage: -1}
	c := newTestClient(t, svc, 2)

	rs, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, rs, 3)
	assert.Equal(t, []int{0, 2}, svc.offsets)
}

func TestFetch_StopsOnEmptyPage(t *testing.T) {
	svc := &fakeService{counts: map[string]int{whereCode: 10}, available: 2, failPage: -1}
	c := newTestClient(t, svc, 2)

	rs, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, rs, 2)
	assert.Equal(t, []int{0, 2}, svc.offsets)
}

func TestFetch_FallsBackToSelectAll(t *testing.T) {
	svc := &fakeService{
		counts:   map[string]int{whereCode: 0, whereName: -1, SelectAll: 3},
		failPage: -1,
	}
	c := newTestClient(t, svc, 2000)

	rs, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, rs, 3)
	assert.Equal(t, []string{SelectAll}, svc.pageWhere)
}

func TestFetch_ZeroRecordsIsEmptyNotError(t *testing.T) {
	svc := &fakeService{counts: map[string]int{SelectAll: 0}, failPage: -1}
	c := newTestClient(t, svc, 2000)

	rs, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rs)
	assert.Empty(t, svc.offsets)
}

func TestFetch_SelectAllCountFailureIsError(t *testing.T) {
	svc := &fakeService{counts: map[string]int{}, failPage: -1}
	c := newTestClient(t, svc, 2000)

	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProtocol)
	assert.Contains(t, err.Error(), "Invalid field")
}

func TestFetch_PageFailureDiscardsPartialResult(t *testing.T) {
	svc := &fakeService{counts: map[string]int{whereCode: 6}, failPage: 2}
	c := newTestClient(t, svc, 2)

	rs, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.Nil(t, rs)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Contains(t, err.Error(), "offset 2")
}

func TestFetchPage_FlattensGeometryAndKeepsFieldOrder(t *testing.T) {
	svc := &fakeService{counts: map[string]int{whereCode: 1}, failPage: -1}
	c := newTestClient(t, svc, 10)

	rs, err := c.FetchPage(context.Background(), whereCode, 0, 10)
	require.NoError(t, err)
	require.Len(t, rs, 1)

	r := rs[0]
	assert.Equal(t, []string{"OBJECTID", "RTE_NAME", "Juris_Code", "x", "y"}, r.Keys())
	code, _ := r.Get("Juris_Code")
	assert.Equal(t, int64(43), code)
	x, _ := r.Get("x")
	assert.InDelta(t, -77.4, x, 1e-9)
	assert.Equal(t, "37.5", r.String("y"))
}

func TestCount_MalformedBodyIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hc := upstream.NewClient("arcgis", 0, logger, observability.NewMetricsForTesting())
	c := NewClient(Config{URL: srv.URL}, hc, logger)

	_, err := c.Count(context.Background(), SelectAll)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProtocol)
}

func TestCount_MissingCountIsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hc := upstream.NewClient("arcgis", 0, logger, observability.NewMetricsForTesting())
	c := NewClient(Config{URL: srv.URL}, hc, logger)

	n, err := c.Count(context.Background(), SelectAll)
	require.NoError(t, err)
	assert.Zero(t, n)
}
