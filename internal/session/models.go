package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/lotwise/backend-lotwise/internal/pricing"
)

// Status of a parking session.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Session is one vehicle's stay at a lot, from entry scan to exit. The fee
// and its breakdown are persisted once at close and never recomputed.
type Session struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      string          `json:"-"`
	Plate         string          `json:"plate"`
	ParkerID      *uuid.UUID      `json:"parkerId,omitempty"`
	EntryGate     string          `json:"entryGate,omitempty"`
	ExitGate      string          `json:"exitGate,omitempty"`
	EntryAt       time.Time       `json:"entryAt"`
	ExitAt        *time.Time      `json:"exitAt,omitempty"`
	CalculatedFee *pricing.Money  `json:"calculatedFee,omitempty"`
	FeeDetail     json.RawMessage `json:"feeDetail,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Status derives the session state from the exit timestamp.
func (s Session) Status() string {
	if s.ExitAt == nil {
		return StatusActive
	}
	return StatusCompleted
}

// Stay converts the session into the fee engine's input shape.
func (s Session) Stay() pricing.Stay {
	return pricing.Stay{EntryAt: s.EntryAt, ExitAt: s.ExitAt}
}

// ParkerInfo is the slice of a matched frequent parker registration shown
// alongside an open session, so booth staff see who they are talking to.
type ParkerInfo struct {
	Name              string     `json:"name"`
	IsVIP             bool       `json:"isVip"`
	HasMonthlyPass    bool       `json:"hasMonthlyPass"`
	MonthlyPassExpiry *time.Time `json:"monthlyPassExpiry,omitempty"`
}

// View is the API representation of a session: the stored row plus derived
// state and, for open sessions, a live fee estimate and the matched parker.
type View struct {
	Session
	Status   string          `json:"status"`
	Estimate *pricing.Result `json:"estimate,omitempty"`
	Parker   *ParkerInfo     `json:"parkerInfo,omitempty"`
}

// ListFilter narrows session listings.
type ListFilter struct {
	Status string
	Plate  string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}
