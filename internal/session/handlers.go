package session

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lotwise/backend-lotwise/internal/common"
	"github.com/lotwise/backend-lotwise/internal/parker"
	"github.com/lotwise/backend-lotwise/internal/tenant"
)

// Handler exposes the session lifecycle endpoints.
type Handler struct {
	Service *Service
}

type openRequest struct {
	Plate     string     `json:"plate"`
	EntryGate string     `json:"entryGate"`
	EntryAt   *time.Time `json:"entryAt"`
}

type closeRequest struct {
	ExitGate string     `json:"exitGate"`
	ExitAt   *time.Time `json:"exitAt"`
}

func resolveTenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID, ok := tenant.From(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return "", false
	}
	return tenantID, true
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "session id must be a UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

// Open handles POST /api/v1/sessions.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r)
	if !ok {
		return
	}
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", nil)
		return
	}
	view, err := h.Service.Open(r.Context(), tenantID, OpenInput{
		Plate:     req.Plate,
		EntryGate: req.EntryGate,
		EntryAt:   req.EntryAt,
	})
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": view})
}

// Get handles GET /api/v1/sessions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r)
	if !ok {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	view, err := h.Service.Get(r.Context(), tenantID, id)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Fee handles GET /api/v1/sessions/{id}/fee: a live quote without closing.
func (h *Handler) Fee(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r)
	if !ok {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	result, err := h.Service.Fee(r.Context(), tenantID, id)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Close handles POST /api/v1/sessions/{id}/close.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r)
	if !ok {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req closeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", nil)
			return
		}
	}
	view, err := h.Service.Close(r.Context(), tenantID, id, CloseInput{
		ExitGate: req.ExitGate,
		ExitAt:   req.ExitAt,
	})
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// List handles GET /api/v1/sessions with status, plate, and range filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r)
	if !ok {
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	filter := ListFilter{
		Status: r.URL.Query().Get("status"),
		Plate:  parker.NormalizePlate(r.URL.Query().Get("plate")),
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "INVALID_RANGE", "from must be RFC3339", nil)
			return
		}
		filter.From = &t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "INVALID_RANGE", "to must be RFC3339", nil)
			return
		}
		filter.To = &t
	}
	views, total, err := h.Service.List(r.Context(), tenantID, filter)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       views,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}
