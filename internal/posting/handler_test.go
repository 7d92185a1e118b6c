package posting_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger-core/internal/accounting/reports"
	"github.com/odyssey-erp/ledger-core/internal/inventory"
	"github.com/odyssey-erp/ledger-core/internal/platform/httpx"
	"github.com/odyssey-erp/ledger-core/internal/posting"
)

func (f *fixture) router() http.Handler {
	r := chi.NewRouter()
	posting.NewHandler(nil, f.posting).MountRoutes(r)
	inventory.NewHandler(nil, f.stock).MountRoutes(r)
	reports.NewHandler(nil, f.reports).MountRoutes(r)
	return r
}

func (f *fixture) invoiceBody(qty int) []byte {
	f.t.Helper()
	body, err := json.Marshal(map[string]any{
		"branch_id": branch,
		"type":      "sale",
		"date":      day.Format("2006-01-02"),
		"ledger_id": f.customer.ID,
		"items": []map[string]any{{
			"product_id": f.product.ID,
			"godown_id":  f.godownA.ID,
			"quantity":   qty,
			"rate":       "100",
		}},
		"discount": "50",
	})
	require.NoError(f.t, err)
	return body
}

func serve(h http.Handler, method, path string, body []byte, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(posting.IdempotencyHeader, key)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) httpx.ProblemDetail {
	t.Helper()
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	var p httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	return p
}

func TestCreateInvoiceEndpoint(t *testing.T) {
	f := newFixture(t)
	f.open(f.godownA, "10")
	h := f.router()

	rr := serve(h, http.MethodPost, "/invoices", f.invoiceBody(3), "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var res struct {
		Invoice     posting.Invoice  `json:"invoice"`
		Items       []map[string]any `json:"items"`
		TotalAmount decimal.Decimal  `json:"total_amount"`
		GrandTotal  decimal.Decimal  `json:"grand_total"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.Equal(t, "SI-1-000001", res.Invoice.Number)
	require.Equal(t, posting.InvoiceSale, res.Invoice.Type)
	require.Len(t, res.Items, 1)
	require.True(t, res.TotalAmount.Equal(dec("300")), res.TotalAmount.String())
	require.True(t, res.GrandTotal.Equal(dec("250")), res.GrandTotal.String())

	stock := serve(h, http.MethodGet, fmt.Sprintf("/products/%d/stock", f.product.ID), nil, "")
	require.Equal(t, http.StatusOK, stock.Code)
	var view inventory.ProductStock
	require.NoError(t, json.Unmarshal(stock.Body.Bytes(), &view))
	require.True(t, view.Product.Quantity.Equal(dec("7")))

	tb := serve(h, http.MethodGet, fmt.Sprintf("/branches/%d/trial-balance?financial_year=2024", branch), nil, "")
	require.Equal(t, http.StatusOK, tb.Code, tb.Body.String())
	var report reports.TrialBalance
	require.NoError(t, json.Unmarshal(tb.Body.Bytes(), &report))
	require.True(t, report.Difference.IsZero())
}

func TestCreateInvoiceEndpointInsufficientStock(t *testing.T) {
	f := newFixture(t)
	f.open(f.godownA, "2")
	h := f.router()

	rr := serve(h, http.MethodPost, "/invoices", f.invoiceBody(5), "")
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
	p := decodeProblem(t, rr)
	require.Equal(t, http.StatusUnprocessableEntity, p.Status)
	require.Equal(t, "/problems/insufficient-stock", p.Type)
	require.NotContains(t, rr.Body.String(), "SI-1-")
	require.True(t, f.location(f.godownA.ID).Equal(dec("2")))
}

func TestCreateInvoiceEndpointDuplicateIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	f.open(f.godownA, "10")
	h := f.router()

	first := serve(h, http.MethodPost, "/invoices", f.invoiceBody(1), "sale-42")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	again := serve(h, http.MethodPost, "/invoices", f.invoiceBody(1), "sale-42")
	require.Equal(t, http.StatusConflict, again.Code, again.Body.String())
	require.Equal(t, http.StatusConflict, decodeProblem(t, again).Status)
	require.True(t, f.location(f.godownA.ID).Equal(dec("9")))
}

func TestCreateInvoiceEndpointRejectsMalformedBody(t *testing.T) {
	f := newFixture(t)
	h := f.router()

	rr := serve(h, http.MethodPost, "/invoices", []byte(`{"type":"sale","date":"15/03/2024"}`), "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, http.StatusBadRequest, decodeProblem(t, rr).Status)

	rr = serve(h, http.MethodPost, "/invoices", []byte(`{"unknown":1}`), "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
