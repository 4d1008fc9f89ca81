package parker

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lotwise/backend-lotwise/internal/common"
	"github.com/lotwise/backend-lotwise/internal/tenant"
)

// Handler exposes frequent parker management endpoints.
type Handler struct {
	Service *Service
}

type parkerRequest struct {
	Plate             string     `json:"plate"`
	Name              string     `json:"name"`
	Phone             string     `json:"phone"`
	IsVIP             bool       `json:"isVip"`
	MonthlyPassExpiry *time.Time `json:"monthlyPassExpiry"`
	Notes             string     `json:"notes"`
}

// Create handles POST /api/v1/parkers.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.From(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	var req parkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", nil)
		return
	}
	created, err := h.Service.Register(r.Context(), tenantID, CreateInput{
		Plate:             req.Plate,
		Name:              req.Name,
		Phone:             req.Phone,
		IsVIP:             req.IsVIP,
		MonthlyPassExpiry: req.MonthlyPassExpiry,
		Notes:             req.Notes,
	})
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// List handles GET /api/v1/parkers.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.From(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	items, total, err := h.Service.List(r.Context(), tenantID, page, perPage)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	if items == nil {
		items = []FrequentParker{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

// Get handles GET /api/v1/parkers/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.From(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "id must be a UUID", nil)
		return
	}
	p, err := h.Service.Get(r.Context(), tenantID, id)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// Lookup handles GET /api/v1/parkers/lookup?plate=...
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.From(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	plate := r.URL.Query().Get("plate")
	if plate == "" {
		common.JSONError(w, http.StatusBadRequest, "INVALID_PLATE", "plate query parameter is required", nil)
		return
	}
	p, err := h.Service.Lookup(r.Context(), tenantID, plate)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// Update handles PUT /api/v1/parkers/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.From(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "id must be a UUID", nil)
		return
	}
	var req parkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", nil)
		return
	}
	updated, err := h.Service.Update(r.Context(), tenantID, id, UpdateInput{
		Name:              req.Name,
		Phone:             req.Phone,
		IsVIP:             req.IsVIP,
		MonthlyPassExpiry: req.MonthlyPassExpiry,
		Notes:             req.Notes,
	})
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// Delete handles DELETE /api/v1/parkers/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.From(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "id must be a UUID", nil)
		return
	}
	if err := h.Service.Remove(r.Context(), tenantID, id); err != nil {
		common.RenderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
