package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger-core/internal/observability"
	"github.com/odyssey-erp/ledger-core/jobs"
)

func newTestRouter(t *testing.T) (http.Handler, *Container) {
	t.Helper()
	cfg := &Config{AppEnv: "test", StoreDriver: StoreMemory, RateLimitPerMinute: 1000}
	container, err := NewContainer(context.Background(), cfg, nil, observability.NewMetrics())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })
	return NewRouter(RouterParamsFromContainer(container, jobs.NewHandler(nil, container.Logger))), container
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(ActorHeader, "7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterHealthAndReadiness(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/jobs/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"queue":"default"`)

	rec = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "odyssey_http_requests_total")
}

func TestRouterServesChartThroughAPI(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/v1/groups", `{"name":"Current Assets","nature":"assets"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var group struct {
		ID     int64  `json:"id"`
		Code   string `json:"code"`
		Nature string `json:"nature"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &group))
	require.Equal(t, "1", group.Code)
	require.Equal(t, "ASSETS", group.Nature)

	rec = do(t, h, http.MethodPost, "/api/v1/groups", `{"name":"Odd","nature":"equity"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/ledgers/999", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = do(t, h, http.MethodGet, "/api/v1/chart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Current Assets")
}

func TestRouterSetsSecurityHeaders(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRouterPaginatesLedgers(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/v1/groups", `{"name":"Assets","nature":"ASSETS"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	for _, name := range []string{"Cash", "Bank", "Petty Cash"} {
		rec = do(t, h, http.MethodPost, "/api/v1/ledgers", `{"name":"`+name+`","type":"CASH","group_id":1,"branch_id":1}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/v1/ledgers?per_page=2&page=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Ledgers []struct {
			Name string `json:"name"`
		} `json:"ledgers"`
		Pagination struct {
			Page       int `json:"page"`
			Total      int `json:"total"`
			TotalPages int `json:"total_pages"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Ledgers, 1)
	require.Equal(t, 2, page.Pagination.Page)
	require.Equal(t, 3, page.Pagination.Total)
	require.Equal(t, 2, page.Pagination.TotalPages)

	rec = do(t, h, http.MethodGet, "/api/v1/ledgers?page=9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ledgers":[]`)
}
