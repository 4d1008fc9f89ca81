package notify

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lotwise/backend-lotwise/internal/common"
	"github.com/lotwise/backend-lotwise/internal/events"
	"github.com/lotwise/backend-lotwise/internal/tenant"
)

// AdminHandler manages webhook endpoints and deliveries for operators.
type AdminHandler struct {
	Store      Store
	Dispatcher *Dispatcher
}

type endpointRequest struct {
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Topics []string `json:"topics"`
	Active *bool    `json:"active"`
}

type endpointResponse struct {
	Endpoint
	Secret string `json:"secret,omitempty"`
}

func validTopics(topics []string) bool {
	known := map[string]bool{}
	for _, t := range events.DefaultTopics() {
		known[t] = true
	}
	for _, t := range topics {
		if !known[t] {
			return false
		}
	}
	return true
}

// ListEndpoints handles GET /api/v1/webhooks/endpoints.
func (h *AdminHandler) ListEndpoints(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.From(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	endpoints, err := h.Store.ListEndpoints(r.Context(), tenantID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	if endpoints == nil {
		endpoints = []Endpoint{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": endpoints})
}

// CreateEndpoint handles POST /api/v1/webhooks/endpoints. The secret is
// returned once on creation and never again.
func (h *AdminHandler) CreateEndpoint(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.From(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	var req endpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", nil)
		return
	}
	if _, err := url.ParseRequestURI(strings.TrimSpace(req.URL)); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_URL", "url must be absolute", nil)
		return
	}
	if len(req.Topics) == 0 {
		req.Topics = events.DefaultTopics()
	}
	if !validTopics(req.Topics) {
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_TOPICS", "unknown topic in subscription", map[string]any{"known": events.DefaultTopics()})
		return
	}
	secret := strings.TrimSpace(req.Secret)
	if secret == "" {
		secret = newSecret()
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	created, err := h.Store.CreateEndpoint(r.Context(), Endpoint{
		TenantID: tenantID,
		URL:      strings.TrimSpace(req.URL),
		Secret:   secret,
		Topics:   req.Topics,
		Active:   active,
	})
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": endpointResponse{Endpoint: created, Secret: secret}})
}

// UpdateEndpoint handles PUT /api/v1/webhooks/endpoints/{id}.
func (h *AdminHandler) UpdateEndpoint(w http.ResponseWriter, r *http.Request) {
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
	existing, err := h.Store.GetEndpoint(r.Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "ENDPOINT_NOT_FOUND", "webhook endpoint not found", nil)
			return
		}
		common.RenderError(w, err)
		return
	}
	var req endpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", nil)
		return
	}
	if req.URL != "" {
		if _, err := url.ParseRequestURI(strings.TrimSpace(req.URL)); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_URL", "url must be absolute", nil)
			return
		}
		existing.URL = strings.TrimSpace(req.URL)
	}
	if req.Secret != "" {
		existing.Secret = strings.TrimSpace(req.Secret)
	}
	if len(req.Topics) > 0 {
		if !validTopics(req.Topics) {
			common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_TOPICS", "unknown topic in subscription", map[string]any{"known": events.DefaultTopics()})
			return
		}
		existing.Topics = req.Topics
	}
	if req.Active != nil {
		existing.Active = *req.Active
	}
	updated, err := h.Store.UpdateEndpoint(r.Context(), existing)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// DeleteEndpoint handles DELETE /api/v1/webhooks/endpoints/{id}.
func (h *AdminHandler) DeleteEndpoint(w http.ResponseWriter, r *http.Request) {
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
	if err := h.Store.DeleteEndpoint(r.Context(), tenantID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "ENDPOINT_NOT_FOUND", "webhook endpoint not found", nil)
			return
		}
		common.RenderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDeliveries handles GET /api/v1/webhooks/deliveries.
func (h *AdminHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.From(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	deliveries, total, err := h.Store.ListDeliveries(r.Context(), tenantID, perPage, (page-1)*perPage)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	if deliveries == nil {
		deliveries = []Delivery{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       deliveries,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

// ReplayDelivery handles POST /api/v1/webhooks/deliveries/{id}/replay: the
// delivery is reset and re-queued as a fresh attempt.
func (h *AdminHandler) ReplayDelivery(w http.ResponseWriter, r *http.Request) {
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
	delivery, err := h.Store.ResetForReplay(r.Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "DELIVERY_NOT_FOUND", "webhook delivery not found", nil)
			return
		}
		common.RenderError(w, err)
		return
	}
	if h.Dispatcher != nil {
		if err := h.Dispatcher.DeliverByID(r.Context(), delivery.ID); err != nil {
			common.JSON(w, http.StatusAccepted, map[string]any{"data": delivery, "note": "replay queued, first attempt failed"})
			return
		}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": delivery})
}

func newSecret() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()
	}
	return "whsec_" + hex.EncodeToString(buf)
}
