package inventory

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.handleListProducts)
	r.Get("/products/{id}", h.handleGetProduct)
	r.Get("/products/{id}/stock", h.handleStock)
	r.Get("/products/{id}/ledger", h.handleItemLedger)
	r.Get("/products/{id}/godowns/{godownID}/replay", h.handleReplay)
	r.Get("/godowns", h.handleListGodowns)
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(60, time.Minute))
		r.Post("/products", h.handleCreateProduct)
		r.Post("/godowns", h.handleCreateGodown)
		r.Post("/stock/opening", h.handleOpening)
		r.Post("/stock/adjustments", h.handleAdjustment)
	})
}

type productRequest struct {
	Name      string          `json:"name"`
	Brand     string          `json:"brand"`
	Category  string          `json:"category"`
	Unit      string          `json:"unit"`
	Price     decimal.Decimal `json:"price"`
	CostPrice decimal.Decimal `json:"cost_price"`
}

type godownRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type movementRequest struct {
	ProductID int64           `json:"product_id"`
	GodownID  int64           `json:"godown_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Thaan     decimal.Decimal `json:"thaan"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Reason    string          `json:"reason"`
	Date      string          `json:"date"`
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	product, err := h.service.CreateProduct(r.Context(), ProductInput(req))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) handleCreateGodown(w http.ResponseWriter, r *http.Request) {
	var req godownRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	godown, err := h.service.CreateGodown(r.Context(), GodownInput(req))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, godown)
}

func (h *Handler) handleOpening(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	date, err := httpx.ParseDate("date", req.Date)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	entry, err := h.service.RecordOpening(r.Context(), OpeningInput{
		ProductID: req.ProductID,
		GodownID:  req.GodownID,
		Quantity:  req.Quantity,
		Thaan:     req.Thaan,
		UnitPrice: req.UnitPrice,
		Date:      date,
	})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	date, err := httpx.ParseDate("date", req.Date)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	entry, err := h.service.Adjust(r.Context(), AdjustmentInput{
		ProductID: req.ProductID,
		GodownID:  req.GodownID,
		Quantity:  req.Quantity,
		Thaan:     req.Thaan,
		Reason:    strings.TrimSpace(req.Reason),
		Date:      date,
	})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) handleListGodowns(w http.ResponseWriter, r *http.Request) {
	godowns, err := h.service.ListGodowns(r.Context())
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, godowns)
}

func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	stock, err := h.service.StockByGodown(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stock)
}

func (h *Handler) handleItemLedger(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	filter := ItemLedgerFilter{ProductID: id, Limit: 500}
	if filter.GodownID, err = httpx.Int64Query(r, "godown_id"); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if filter.From, err = httpx.DateQuery(r, "from"); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if filter.To, err = httpx.DateQuery(r, "to"); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	entries, err := h.service.ItemLedger(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) handleReplay(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	godownID, err := httpx.IDParam(r, "godownID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	res, err := h.service.ReplayLocation(r.Context(), productID, godownID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}
