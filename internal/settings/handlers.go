package settings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/lotwise/backend-lotwise/internal/common"
	"github.com/lotwise/backend-lotwise/internal/pricing"
	"github.com/lotwise/backend-lotwise/internal/tenant"
)

// Handler exposes the operator-facing settings endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service  *Service
	Validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validate
	if v == nil {
		v = validator.New()
	}
	return &Handler{service: cfg.Service, validate: v}
}

type rateScheduleRequest struct {
	HourlyRate         int64 `json:"hourlyRate" validate:"min=0"`
	FirstHourRate      int64 `json:"firstHourRate" validate:"min=0"`
	DailyMaxRate       int64 `json:"dailyMaxRate" validate:"min=0"`
	GracePeriodMinutes int   `json:"gracePeriodMinutes" validate:"min=0,max=1440"`
	NightRate          int64 `json:"nightRate" validate:"min=0"`
	NightStartHour     int   `json:"nightStartHour" validate:"min=0,max=23"`
	NightEndHour       int   `json:"nightEndHour" validate:"min=0,max=23"`
	WeekendRate        int64 `json:"weekendRate" validate:"min=0"`
}

type businessRequest struct {
	TaxRateBps int32  `json:"taxRateBps" validate:"min=0,max=10000"`
	TaxLabel   string `json:"taxLabel" validate:"max=64"`
	Currency   string `json:"currency" validate:"required,len=3,alpha"`
	Locale     string `json:"locale" validate:"required,max=16"`
}

// GetRates handles GET /api/v1/settings/rates.
func (h *Handler) GetRates(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.From(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	rs, err := h.service.RateSchedule(r.Context(), tenantID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	if rs == nil {
		defaults := pricing.RateSchedule{
			HourlyRate:         pricing.DefaultHourlyRate,
			DailyMaxRate:       pricing.DefaultDailyMaxRate,
			GracePeriodMinutes: pricing.DefaultGraceMinutes,
		}
		common.JSON(w, http.StatusOK, map[string]any{"data": defaults, "configured": false})
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rs, "configured": true})
}

// PutRates handles PUT /api/v1/settings/rates.
func (h *Handler) PutRates(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.From(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	var req rateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid rate schedule", validationDetails(err))
		return
	}
	rs := pricing.RateSchedule{
		HourlyRate:         req.HourlyRate,
		FirstHourRate:      req.FirstHourRate,
		DailyMaxRate:       req.DailyMaxRate,
		GracePeriodMinutes: req.GracePeriodMinutes,
		NightRate:          req.NightRate,
		NightStartHour:     req.NightStartHour,
		NightEndHour:       req.NightEndHour,
		WeekendRate:        req.WeekendRate,
	}
	if err := h.service.UpdateRateSchedule(r.Context(), tenantID, rs); err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rs})
}

// GetBusiness handles GET /api/v1/settings/business.
func (h *Handler) GetBusiness(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.From(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	b, err := h.service.Business(r.Context(), tenantID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	if b == nil {
		defaults := pricing.Business{Currency: pricing.DefaultCurrency, Locale: pricing.DefaultLocale}
		common.JSON(w, http.StatusOK, map[string]any{"data": defaults, "configured": false})
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": b, "configured": true})
}

// PutBusiness handles PUT /api/v1/settings/business.
func (h *Handler) PutBusiness(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.From(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	var req businessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid business settings", validationDetails(err))
		return
	}
	b := pricing.Business{
		TaxRateBps: req.TaxRateBps,
		TaxLabel:   req.TaxLabel,
		Currency:   req.Currency,
		Locale:     req.Locale,
	}
	if err := h.service.UpdateBusiness(r.Context(), tenantID, b); err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": b})
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return map[string]any{"fields": fields}
}
