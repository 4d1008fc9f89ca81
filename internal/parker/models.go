package parker

import (
	"time"

	"github.com/google/uuid"
)

// FrequentParker is a registered vehicle owner with optional VIP status or a
// monthly pass. Matched to sessions by normalized plate.
type FrequentParker struct {
	ID                uuid.UUID  `json:"id"`
	TenantID          string     `json:"-"`
	Plate             string     `json:"plate"`
	Name              string     `json:"name"`
	Phone             string     `json:"phone,omitempty"`
	IsVIP             bool       `json:"isVip"`
	MonthlyPassExpiry *time.Time `json:"monthlyPassExpiry,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// HasActivePass reports whether the parker's monthly pass covers the given instant.
func (p FrequentParker) HasActivePass(at time.Time) bool {
	return p.MonthlyPassExpiry != nil && !p.MonthlyPassExpiry.Before(at)
}
