package pricing

import (
	"encoding/json"
	"fmt"
	"time"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// LineItemKind is the closed set of contributions a line item can make to a fee.
type LineItemKind int

const (
	// KindCharge adds to the fee.
	KindCharge LineItemKind = iota
	// KindDiscount subtracts from the fee.
	KindDiscount
	// KindTax is applied after all charges and discounts.
	KindTax
)

// String returns the wire representation of the kind.
func (k LineItemKind) String() string {
	switch k {
	case KindDiscount:
		return "discount"
	case KindTax:
		return "tax"
	default:
		return "charge"
	}
}

// MarshalJSON renders the kind as its string form.
func (k LineItemKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses the string form back into the kind. Persisted fee
// details are decoded again for audit re-summing and webhook payloads, so
// an unknown tag is an error rather than a silent charge.
func (k *LineItemKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "charge":
		*k = KindCharge
	case "discount":
		*k = KindDiscount
	case "tax":
		*k = KindTax
	default:
		return fmt.Errorf("pricing: unknown line item kind %q", s)
	}
	return nil
}

// LineItem is one itemized contribution to the final fee. Amount is signed:
// positive for charges and tax, negative for discounts.
type LineItem struct {
	Label  string       `json:"label"`
	Amount Money        `json:"amount"`
	Kind   LineItemKind `json:"type"`
}

// Stay captures the engine's view of a parking session: entry instant and,
// once the vehicle has left, the exit instant.
type Stay struct {
	EntryAt time.Time
	ExitAt  *time.Time
}

// RateSchedule is the tenant/branch pricing configuration. All monetary
// fields are integer minor units. A zero FirstHourRate falls back to
// HourlyRate; a zero NightRate or WeekendRate disables that override; a zero
// DailyMaxRate disables capping.
type RateSchedule struct {
	HourlyRate         Money `json:"hourlyRate"`
	FirstHourRate      Money `json:"firstHourRate"`
	DailyMaxRate       Money `json:"dailyMaxRate"`
	GracePeriodMinutes int   `json:"gracePeriodMinutes"`
	NightRate          Money `json:"nightRate"`
	NightStartHour     int   `json:"nightStartHour"`
	NightEndHour       int   `json:"nightEndHour"`
	WeekendRate        Money `json:"weekendRate"`
}

// Parker is the engine-facing slice of a frequent parker profile.
type Parker struct {
	IsVIP             bool
	MonthlyPassExpiry *time.Time
}

// Business carries tenant-level tax and formatting settings. TaxRateBps is
// the tax rate in basis points of a percent (1500 = 15.00%).
type Business struct {
	TaxRateBps int32
	TaxLabel   string
	Currency   string
	Locale     string
}

// Validation is a third-party discount grant attached to a session. Percent
// and fixed amount may both be set; both apply, percent first.
type Validation struct {
	ValidatorName   string `json:"validatorName"`
	DiscountPercent int    `json:"discountPercent"`
	DiscountAmount  Money  `json:"discountAmount"`
}

// Result is the itemized outcome of a fee computation. Summing charge line
// items, subtracting discount magnitudes, and adding tax reproduces FinalFee.
type Result struct {
	DurationMinutes   int        `json:"durationMinutes"`
	DurationFormatted string     `json:"durationFormatted"`
	LineItems         []LineItem `json:"lineItems"`
	Subtotal          Money      `json:"subtotal"`
	Discount          Money      `json:"discount"`
	Tax               Money      `json:"tax"`
	FinalFee          Money      `json:"finalFee"`
	Currency          string     `json:"currency"`
	CurrencySymbol    string     `json:"currencySymbol"`
	Locale            string     `json:"locale"`
	IsGracePeriod     bool       `json:"isGracePeriod"`
	HasMonthlyPass    bool       `json:"hasMonthlyPass"`
	Breakdown         string     `json:"breakdown"`
}
