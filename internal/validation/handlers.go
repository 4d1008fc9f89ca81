package validation

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lotwise/backend-lotwise/internal/common"
	"github.com/lotwise/backend-lotwise/internal/pricing"
	"github.com/lotwise/backend-lotwise/internal/tenant"
)

// Handler exposes validation endpoints nested under sessions.
type Handler struct {
	Service *Service
}

type grantRequest struct {
	ValidatorName   string        `json:"validatorName"`
	DiscountPercent int           `json:"discountPercent"`
	DiscountAmount  pricing.Money `json:"discountAmount"`
}

// Grant handles POST /api/v1/sessions/{id}/validations.
func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.From(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "session id must be a UUID", nil)
		return
	}
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", nil)
		return
	}
	grantedBy, _ := common.OperatorID(r.Context())
	rec, err := h.Service.Grant(r.Context(), tenantID, sessionID, GrantInput{
		ValidatorName:   req.ValidatorName,
		DiscountPercent: req.DiscountPercent,
		DiscountAmount:  req.DiscountAmount,
		GrantedBy:       grantedBy,
	})
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": rec})
}

// List handles GET /api/v1/sessions/{id}/validations.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.From(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "session id must be a UUID", nil)
		return
	}
	recs, err := h.Service.List(r.Context(), tenantID, sessionID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	if recs == nil {
		recs = []Record{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": recs})
}

// Revoke handles DELETE /api/v1/sessions/{id}/validations/{validationId}.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.From(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "session id must be a UUID", nil)
		return
	}
	validationID, err := uuid.Parse(chi.URLParam(r, "validationId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "validation id must be a UUID", nil)
		return
	}
	if err := h.Service.Revoke(r.Context(), tenantID, sessionID, validationID); err != nil {
		common.RenderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
