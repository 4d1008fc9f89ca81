package notify

import (
	"time"

	"github.com/google/uuid"
)

// Delivery lifecycle states.
const (
	StatusPending    = "pending"
	StatusDelivering = "delivering"
	StatusDelivered  = "delivered"
	StatusFailed     = "failed"
	StatusDLQ        = "dlq"
)

// Endpoint is a tenant-registered webhook receiver.
type Endpoint struct {
	ID        uuid.UUID `json:"id"`
	TenantID  string    `json:"-"`
	URL       string    `json:"url"`
	Secret    string    `json:"-"`
	Topics    []string  `json:"topics"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Delivery tracks one endpoint's receipt of one domain event.
type Delivery struct {
	ID             uuid.UUID  `json:"id"`
	TenantID       string     `json:"-"`
	EndpointID     uuid.UUID  `json:"endpointId"`
	EventID        uuid.UUID  `json:"eventId"`
	Attempt        int        `json:"attempt"`
	MaxAttempt     int        `json:"maxAttempt"`
	Status         string     `json:"status"`
	LastError      string     `json:"lastError,omitempty"`
	ResponseStatus int        `json:"responseStatus,omitempty"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}
