package journal

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ledger-core/internal/platform/httpx"
)

// Handler exposes journal books.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the journal handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers journal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/branches/{branchID}/books", h.handleListBooks)
	r.Post("/books", h.handleOpenBook)
	r.Post("/books/{id}/status", h.handleSetStatus)
}

type bookRequest struct {
	BranchID        int64  `json:"branch_id"`
	FinancialYearID int64  `json:"financial_year_id"`
	Name            string `json:"name"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
}

type statusRequest struct {
	Status   string `json:"status"`
	Override bool   `json:"override"`
}

func (h *Handler) handleOpenBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	start, err := httpx.ParseDate("start_date", req.StartDate)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	end, err := httpx.ParseDate("end_date", req.EndDate)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	book, err := h.service.OpenBook(r.Context(), BookInput{
		BranchID:        req.BranchID,
		FinancialYearID: req.FinancialYearID,
		Name:            req.Name,
		StartDate:       start,
		EndDate:         end,
	})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, book)
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	book, err := h.service.SetBookStatus(r.Context(), id, req.Status, req.Override)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, book)
}

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	branchID, err := httpx.IDParam(r, "branchID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	books, err := h.service.ListBooks(r.Context(), branchID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, books)
}
