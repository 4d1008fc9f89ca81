package analytics

import (
	"net/http"
	"time"

	"github.com/lotwise/backend-lotwise/internal/common"
	"github.com/lotwise/backend-lotwise/internal/tenant"
)

// Handler exposes analytics read endpoints.
type Handler struct {
	Svc *Service
}

// Revenue returns the daily revenue rollup for the requested range.
func (h *Handler) Revenue(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return
	}
	tenantID, ok := tenant.From(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	query := r.URL.Query()
	fromStr := query.Get("from")
	toStr := query.Get("to")
	var (
		from time.Time
		to   time.Time
		err  error
	)
	if fromStr != "" && toStr != "" {
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid from date", nil)
			return
		}
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid to date", nil)
			return
		}
	} else {
		from, to = h.Svc.DefaultRangeBounds()
		if raw := query.Get("days"); raw != "" {
			days := common.AtoiDefault(raw, 0)
			if days > 0 {
				from = to.AddDate(0, 0, -days)
			}
		}
	}
	if !from.Before(to) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "from must be before to", nil)
		return
	}
	rows, err := h.Svc.RevenueRange(r.Context(), tenantID, from, to)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", err.Error(), nil)
		return
	}
	if rows == nil {
		rows = []DailyRow{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// Occupancy returns the live count of vehicles currently in the lot.
func (h *Handler) Occupancy(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return
	}
	tenantID, ok := tenant.From(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	occ, err := h.Svc.CurrentOccupancy(r.Context(), tenantID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": occ})
}
