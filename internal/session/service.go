package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/lotwise/backend-lotwise/internal/common"
	"github.com/lotwise/backend-lotwise/internal/events"
	"github.com/lotwise/backend-lotwise/internal/lock"
	"github.com/lotwise/backend-lotwise/internal/obs"
	"github.com/lotwise/backend-lotwise/internal/parker"
	"github.com/lotwise/backend-lotwise/internal/pricing"
)

// Storage is the persistence surface the service needs. Satisfied by Store.
type Storage interface {
	Insert(ctx context.Context, sess Session) (Session, error)
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (Session, error)
	FindOpenByPlate(ctx context.Context, tenantID, plate string) (Session, error)
	Close(ctx context.Context, tenantID string, id uuid.UUID, exitAt time.Time, exitGate string, fee pricing.Money, detail json.RawMessage) (Session, error)
	SessionOpen(ctx context.Context, tenantID string, id uuid.UUID) (bool, bool, error)
	List(ctx context.Context, tenantID string, f ListFilter) ([]Session, int64, error)
}

// SettingsSource resolves tenant pricing configuration. Nil results mean the
// documented defaults apply.
type SettingsSource interface {
	RateSchedule(ctx context.Context, tenantID string) (*pricing.RateSchedule, error)
	Business(ctx context.Context, tenantID string) (*pricing.Business, error)
}

// ParkerSource resolves a plate into a pricing profile. Unknown plates yield nils.
type ParkerSource interface {
	Profile(ctx context.Context, tenantID, plate string) (*pricing.Parker, *parker.FrequentParker, error)
}

// ValidationSource loads a session's merchant validations in grant order.
type ValidationSource interface {
	ForPricing(ctx context.Context, tenantID string, sessionID uuid.UUID) ([]pricing.Validation, error)
}

// Locker serialises close attempts per session. Satisfied by lock.Locker.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Emitter publishes domain events. Satisfied by *events.Bus.
type Emitter interface {
	Emit(ctx context.Context, tenantID, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// Service orchestrates the session lifecycle: entry, live estimates, and the
// at-most-once close that fixes the fee.
type Service struct {
	Store       Storage
	Settings    SettingsSource
	Parkers     ParkerSource
	Validations ValidationSource
	Lock        Locker
	Bus         Emitter
	LockTTL     time.Duration

	// Now is overridable in tests; defaults to time.Now.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// OpenInput starts a session.
type OpenInput struct {
	Plate     string
	EntryGate string
	EntryAt   *time.Time
}

// Open starts a session for a vehicle. The plate is normalized first; when a
// frequent parker matches, the session links to the registration so VIP and
// pass status apply when the fee is computed.
func (s *Service) Open(ctx context.Context, tenantID string, in OpenInput) (View, error) {
	plate := parker.NormalizePlate(in.Plate)
	if plate == "" {
		return View{}, common.NewAppError("INVALID_PLATE", "plate must not be empty", http.StatusUnprocessableEntity, nil)
	}

	sess := Session{TenantID: tenantID, Plate: plate, EntryGate: in.EntryGate}
	if in.EntryAt != nil {
		sess.EntryAt = in.EntryAt.UTC()
	}
	if s.Parkers != nil {
		if _, record, err := s.Parkers.Profile(ctx, tenantID, plate); err != nil {
			return View{}, err
		} else if record != nil {
			sess.ParkerID = &record.ID
		}
	}

	created, err := s.Store.Insert(ctx, sess)
	if err != nil {
		if errors.Is(err, ErrOpenSessionExists) {
			return View{}, common.NewAppError("SESSION_EXISTS", "an active session already exists for this plate", http.StatusConflict, err)
		}
		return View{}, fmt.Errorf("open session: %w", err)
	}

	obs.SessionsOpenedTotal.WithLabelValues(tenantID).Inc()
	s.emit(ctx, tenantID, events.TopicSessionOpened, created.ID, map[string]any{
		"sessionId": created.ID,
		"plate":     created.Plate,
		"entryAt":   created.EntryAt,
	})
	return View{Session: created, Status: created.Status()}, nil
}

// Get loads a session. Open sessions carry a live fee estimate computed
// against the current clock.
func (s *Service) Get(ctx context.Context, tenantID string, id uuid.UUID) (View, error) {
	sess, err := s.Store.GetByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return View{}, common.NewAppError("SESSION_NOT_FOUND", "parking session not found", http.StatusNotFound, err)
		}
		return View{}, fmt.Errorf("get session: %w", err)
	}
	view := View{Session: sess, Status: sess.Status()}
	if sess.ExitAt == nil {
		result, record, err := s.estimate(ctx, tenantID, sess)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("session_id", sess.ID.String()).Msg("fee estimate failed")
			return view, nil
		}
		view.Estimate = &result
		view.Parker = s.parkerInfo(record)
	}
	return view, nil
}

// estimate is the display quote for an open session: schedule and parker
// modifiers only. Tax and merchant validations are settled at close, so the
// live figure deliberately excludes them.
func (s *Service) estimate(ctx context.Context, tenantID string, sess Session) (pricing.Result, *parker.FrequentParker, error) {
	var (
		schedule *pricing.RateSchedule
		profile  *pricing.Parker
		record   *parker.FrequentParker
		err      error
	)
	if s.Settings != nil {
		if schedule, err = s.Settings.RateSchedule(ctx, tenantID); err != nil {
			return pricing.Result{}, nil, err
		}
	}
	if s.Parkers != nil {
		if profile, record, err = s.Parkers.Profile(ctx, tenantID, sess.Plate); err != nil {
			return pricing.Result{}, nil, err
		}
	}
	pctx := pricing.Resolve(schedule, profile, nil, nil)
	return pricing.Calculate(sess.Stay(), pctx, s.now()), record, nil
}

func (s *Service) parkerInfo(record *parker.FrequentParker) *ParkerInfo {
	if record == nil {
		return nil
	}
	return &ParkerInfo{
		Name:              record.Name,
		IsVIP:             record.IsVIP,
		HasMonthlyPass:    record.HasActivePass(s.now()),
		MonthlyPassExpiry: record.MonthlyPassExpiry,
	}
}

// Fee returns the full quote for a session as if it closed right now: tax
// and validations included. The session itself is not touched.
func (s *Service) Fee(ctx context.Context, tenantID string, id uuid.UUID) (pricing.Result, error) {
	sess, err := s.Store.GetByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return pricing.Result{}, common.NewAppError("SESSION_NOT_FOUND", "parking session not found", http.StatusNotFound, err)
		}
		return pricing.Result{}, fmt.Errorf("get session: %w", err)
	}
	return s.Quote(ctx, tenantID, sess)
}

// Quote computes the fee a session would incur if it ended now (or at its
// recorded exit), under the full pricing context. Close persists exactly
// this result. It never mutates the session.
func (s *Service) Quote(ctx context.Context, tenantID string, sess Session) (pricing.Result, error) {
	var (
		schedule *pricing.RateSchedule
		business *pricing.Business
		profile  *pricing.Parker
		vals     []pricing.Validation
		err      error
	)
	if s.Settings != nil {
		if schedule, err = s.Settings.RateSchedule(ctx, tenantID); err != nil {
			return pricing.Result{}, err
		}
		if business, err = s.Settings.Business(ctx, tenantID); err != nil {
			return pricing.Result{}, err
		}
	}
	if s.Parkers != nil {
		if profile, _, err = s.Parkers.Profile(ctx, tenantID, sess.Plate); err != nil {
			return pricing.Result{}, err
		}
	}
	if s.Validations != nil {
		if vals, err = s.Validations.ForPricing(ctx, tenantID, sess.ID); err != nil {
			return pricing.Result{}, err
		}
	}
	pctx := pricing.Resolve(schedule, profile, business, vals)
	return pricing.Calculate(sess.Stay(), pctx, s.now()), nil
}

// CloseInput finalises a session.
type CloseInput struct {
	ExitGate string
	ExitAt   *time.Time
}

// Close computes the final fee and stamps the exit exactly once. A redis lock
// serialises duplicate kiosk scans, but the conditional UPDATE is the
// authority: whichever attempt loses observes ErrAlreadyClosed and returns
// the stored outcome instead of charging twice.
func (s *Service) Close(ctx context.Context, tenantID string, id uuid.UUID, in CloseInput) (View, error) {
	var view View
	run := func(ctx context.Context) error {
		sess, err := s.Store.GetByID(ctx, tenantID, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return common.NewAppError("SESSION_NOT_FOUND", "parking session not found", http.StatusNotFound, err)
			}
			return fmt.Errorf("load session: %w", err)
		}
		if sess.ExitAt != nil {
			obs.SessionsClosedTotal.WithLabelValues(tenantID, "duplicate").Inc()
			return s.alreadyClosed(sess)
		}

		exitAt := s.now().UTC()
		if in.ExitAt != nil {
			exitAt = in.ExitAt.UTC()
		}
		if exitAt.Before(sess.EntryAt) {
			return common.NewAppError("INVALID_EXIT", "exit must not precede entry", http.StatusUnprocessableEntity, nil)
		}

		working := sess
		working.ExitAt = &exitAt
		result, err := s.Quote(ctx, tenantID, working)
		if err != nil {
			obs.SessionsClosedTotal.WithLabelValues(tenantID, "error").Inc()
			return fmt.Errorf("compute fee: %w", err)
		}
		detail, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode fee detail: %w", err)
		}

		closed, err := s.Store.Close(ctx, tenantID, id, exitAt, in.ExitGate, result.FinalFee, detail)
		if err != nil {
			if errors.Is(err, ErrAlreadyClosed) {
				obs.SessionsClosedTotal.WithLabelValues(tenantID, "duplicate").Inc()
				if current, getErr := s.Store.GetByID(ctx, tenantID, id); getErr == nil {
					return s.alreadyClosed(current)
				}
				return common.NewAppError("SESSION_ALREADY_CLOSED", "session is already closed", http.StatusConflict, err)
			}
			obs.SessionsClosedTotal.WithLabelValues(tenantID, "error").Inc()
			return fmt.Errorf("close session: %w", err)
		}

		obs.SessionsClosedTotal.WithLabelValues(tenantID, "closed").Inc()
		obs.FeesComputedTotal.WithLabelValues(tenantID, feeOutcome(result)).Inc()
		if result.FinalFee > 0 {
			obs.RevenueMinorUnits.WithLabelValues(tenantID).Add(float64(result.FinalFee))
		}

		s.emit(ctx, tenantID, events.TopicSessionClosed, closed.ID, map[string]any{
			"sessionId": closed.ID,
			"plate":     closed.Plate,
			"exitAt":    exitAt,
			"finalFee":  result.FinalFee,
		})
		s.emit(ctx, tenantID, events.TopicFeeComputed, closed.ID, result)

		view = View{Session: closed, Status: closed.Status()}
		return nil
	}

	var err error
	if s.Lock != nil {
		err = s.Lock.WithLock(ctx, lock.SessionCloseKey(tenantID, id.String()), s.lockTTL(), run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return View{}, err
	}
	return view, nil
}

// List returns sessions matching the filter.
func (s *Service) List(ctx context.Context, tenantID string, f ListFilter) ([]View, int64, error) {
	if f.Plate != "" {
		f.Plate = parker.NormalizePlate(f.Plate)
	}
	sessions, total, err := s.Store.List(ctx, tenantID, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}
	views := make([]View, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, View{Session: sess, Status: sess.Status()})
	}
	return views, total, nil
}

// SessionOpen implements validation.SessionChecker.
func (s *Service) SessionOpen(ctx context.Context, tenantID string, id uuid.UUID) (bool, bool, error) {
	return s.Store.SessionOpen(ctx, tenantID, id)
}

func (s *Service) alreadyClosed(sess Session) error {
	details := map[string]any{"sessionId": sess.ID, "exitAt": sess.ExitAt}
	if sess.CalculatedFee != nil {
		details["finalFee"] = *sess.CalculatedFee
	}
	return &common.AppError{
		Code:       "SESSION_ALREADY_CLOSED",
		Message:    "session is already closed",
		HTTPStatus: http.StatusConflict,
		Details:    details,
	}
}

func (s *Service) emit(ctx context.Context, tenantID, topic string, id uuid.UUID, payload any) {
	if s.Bus == nil {
		return
	}
	if _, err := s.Bus.Emit(ctx, tenantID, topic, id, payload); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("topic", topic).Msg("event emit failed")
	}
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL > 0 {
		return s.LockTTL
	}
	return 30 * time.Second
}

func feeOutcome(result pricing.Result) string {
	switch {
	case result.IsGracePeriod:
		return "grace"
	case result.HasMonthlyPass:
		return "pass"
	default:
		return "charged"
	}
}
