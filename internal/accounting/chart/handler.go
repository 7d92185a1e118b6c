package chart

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/ledger-core/internal/platform/httpx"
	"github.com/odyssey-erp/ledger-core/internal/shared"
)

// Handler exposes the chart of accounts.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the chart handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers chart routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/chart", h.handleTree)
	r.Get("/ledgers", h.handleListLedgers)
	r.Get("/ledgers/{id}", h.handleGetLedger)
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(60, time.Minute))
		r.Post("/groups", h.handleCreateGroup)
		r.Post("/groups/{id}/move", h.handleMoveGroup)
		r.Delete("/groups/{id}", h.handleDeleteGroup)
		r.Delete("/ledgers/{id}", h.handleDeleteLedger)
	})
}

type groupRequest struct {
	Name     string `json:"name"`
	Nature   string `json:"nature"`
	ParentID *int64 `json:"parent_id"`
}

type moveRequest struct {
	ParentID *int64 `json:"parent_id"`
}

// TreeNode is the JSON shape of one group of the chart.
type TreeNode struct {
	AccountGroup
	Ledgers  []Ledger   `json:"ledgers,omitempty"`
	Children []TreeNode `json:"children,omitempty"`
}

func (h *Handler) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	in := GroupInput{Name: req.Name, ParentID: req.ParentID}
	if strings.TrimSpace(req.Nature) != "" {
		nature, err := ParseNature(req.Nature)
		if err != nil {
			httpx.RespondError(w, r, h.logger, err)
			return
		}
		in.Nature = nature
	}
	group, err := h.service.CreateGroup(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, group)
}

func (h *Handler) handleMoveGroup(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var req moveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	group, err := h.service.MoveGroup(r.Context(), id, req.ParentID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, group)
}

func (h *Handler) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if err := h.service.DeleteGroup(r.Context(), id); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteLedger(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if err := h.service.DeleteLedger(r.Context(), id); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.LoadTree(r.Context())
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	roots := tree.Roots()
	out := make([]TreeNode, 0, len(roots))
	for _, g := range roots {
		out = append(out, treeNode(tree, g.ID))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func treeNode(t *Tree, id int64) TreeNode {
	node, _ := t.Node(id)
	out := TreeNode{AccountGroup: node.Group, Ledgers: node.Ledgers}
	for _, child := range t.Children(id) {
		out.Children = append(out.Children, treeNode(t, child.ID))
	}
	return out
}

func (h *Handler) handleListLedgers(w http.ResponseWriter, r *http.Request) {
	branchID, err := httpx.Int64Query(r, "branch_id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	groupID, err := httpx.Int64Query(r, "group_id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	filter := LedgerFilter{BranchID: branchID, GroupID: groupID}
	if raw := r.URL.Query().Get("type"); raw != "" {
		if filter.Type, err = ParseLedgerType(raw); err != nil {
			httpx.RespondError(w, r, h.logger, err)
			return
		}
	}
	page, err := httpx.Int64Query(r, "page")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	perPage, err := httpx.Int64Query(r, "per_page")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	ledgers, err := h.service.ListLedgers(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	meta := shared.NewPagination(int(page), int(perPage), len(ledgers))
	offset, limit := meta.Window()
	window := []Ledger{}
	if offset < len(ledgers) {
		window = ledgers[offset:min(offset+limit, len(ledgers))]
	}
	httpx.JSON(w, http.StatusOK, ledgerPage{Ledgers: window, Pagination: meta})
}

type ledgerPage struct {
	Ledgers    []Ledger          `json:"ledgers"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	ledger, err := h.service.GetLedger(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ledger)
}
