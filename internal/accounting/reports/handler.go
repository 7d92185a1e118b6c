package reports

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ledger-core/internal/platform/httpx"
)

// Handler exposes report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the report handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ledgers/{id}/book", h.handleLedgerBook)
	r.Get("/branches/{branchID}/trial-balance", h.handleTrialBalance)
	r.Get("/branches/{branchID}/profit-and-loss", h.handleProfitAndLoss)
	r.Get("/branches/{branchID}/balance-sheet", h.handleBalanceSheet)
}

func (h *Handler) handleLedgerBook(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	from, err := httpx.DateQuery(r, "from")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	to, err := httpx.DateQuery(r, "to")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	book, err := h.service.LedgerBook(r.Context(), id, from, to)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, book)
}

func (h *Handler) handleTrialBalance(w http.ResponseWriter, r *http.Request) {
	branchID, fy, ok := h.period(w, r)
	if !ok {
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), branchID, fy)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) handleProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	branchID, fy, ok := h.period(w, r)
	if !ok {
		return
	}
	pl, err := h.service.ProfitAndLoss(r.Context(), branchID, fy)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pl)
}

func (h *Handler) handleBalanceSheet(w http.ResponseWriter, r *http.Request) {
	branchID, fy, ok := h.period(w, r)
	if !ok {
		return
	}
	bs, err := h.service.BalanceSheet(r.Context(), branchID, fy)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bs)
}

func (h *Handler) period(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	branchID, err := httpx.IDParam(r, "branchID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return 0, 0, false
	}
	fy, err := httpx.Int64Query(r, "financial_year")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return 0, 0, false
	}
	return branchID, fy, true
}
