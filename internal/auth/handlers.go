package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lotwise/backend-lotwise/internal/common"
	"github.com/lotwise/backend-lotwise/internal/tenant"
)

// Handler exposes the operator login endpoints.
type Handler struct {
	Service *Service
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.From(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "username and password are required", nil)
		return
	}
	result, err := h.Service.Login(r.Context(), tenantID, req.Username, req.Password)
	if err != nil {
		log.Ctx(r.Context()).Warn().
			Str("tenant", tenantID).
			Str("ip", common.ClientIP(r)).
			Msg("login rejected")
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Me handles GET /api/v1/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := common.OperatorID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	op, err := h.Service.Me(r.Context(), operatorID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": op})
}
