package pricing

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

// 2025-06-09 is a Monday, 2025-06-14 a Saturday.
var (
	monday   = time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC)
	saturday = time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC)
)

func stayOf(entry time.Time, minutes int) Stay {
	exit := entry.Add(time.Duration(minutes) * time.Minute)
	return Stay{EntryAt: entry, ExitAt: &exit}
}

func baseSchedule() *RateSchedule {
	return &RateSchedule{
		HourlyRate:         500,
		FirstHourRate:      500,
		DailyMaxRate:       3000,
		GracePeriodMinutes: 15,
	}
}

func TestCalculateGracePeriod(t *testing.T) {
	res := Calculate(stayOf(monday, 10), Resolve(baseSchedule(), nil, nil, nil), monday)
	if !res.IsGracePeriod {
		t.Fatal("expected grace period")
	}
	if res.FinalFee != 0 {
		t.Fatalf("expected zero fee, got %d", res.FinalFee)
	}
	if len(res.LineItems) != 0 {
		t.Fatalf("expected no line items, got %d", len(res.LineItems))
	}
}

func TestCalculateTwoHours(t *testing.T) {
	res := Calculate(stayOf(monday, 90), Resolve(baseSchedule(), nil, nil, nil), monday)
	if res.FinalFee != 1000 {
		t.Fatalf("expected 1000, got %d", res.FinalFee)
	}
	if len(res.LineItems) != 2 {
		t.Fatalf("expected first + additional hour items, got %d", len(res.LineItems))
	}
	if res.LineItems[0].Label != "First hour" || res.LineItems[0].Amount != 500 {
		t.Fatalf("unexpected first hour item: %+v", res.LineItems[0])
	}
}

func TestCalculateMonthlyPass(t *testing.T) {
	expiry := monday.AddDate(0, 0, 7)
	parker := &Parker{MonthlyPassExpiry: &expiry}
	res := Calculate(stayOf(monday, 90), Resolve(baseSchedule(), parker, nil, nil), monday)
	if !res.HasMonthlyPass {
		t.Fatal("expected monthly pass")
	}
	if res.FinalFee != 0 {
		t.Fatalf("expected zero fee, got %d", res.FinalFee)
	}
	if len(res.LineItems) != 1 || res.LineItems[0].Amount != 0 {
		t.Fatalf("expected single informational item, got %+v", res.LineItems)
	}
}

func TestCalculateValidationAndTax(t *testing.T) {
	business := &Business{TaxRateBps: 1500, TaxLabel: "VAT", Currency: "USD", Locale: "en-US"}
	validations := []Validation{{ValidatorName: "Mall", DiscountPercent: 50}}
	res := Calculate(stayOf(monday, 90), Resolve(baseSchedule(), nil, business, validations), monday)
	if res.Discount != 500 {
		t.Fatalf("expected discount 500, got %d", res.Discount)
	}
	if res.Subtotal != 500 {
		t.Fatalf("expected subtotal 500, got %d", res.Subtotal)
	}
	if res.Tax != 75 {
		t.Fatalf("expected tax 75, got %d", res.Tax)
	}
	if res.FinalFee != 575 {
		t.Fatalf("expected 575, got %d", res.FinalFee)
	}
}

func TestCalculateStackingOrder(t *testing.T) {
	// Validations apply before VIP, VIP before tax. Fixed order, not policy.
	business := &Business{TaxRateBps: 1500, Currency: "USD", Locale: "en-US"}
	validations := []Validation{{ValidatorName: "Mall", DiscountPercent: 50}}
	parker := &Parker{IsVIP: true}
	res := Calculate(stayOf(monday, 90), Resolve(baseSchedule(), parker, business, validations), monday)
	if res.Subtotal != 450 {
		t.Fatalf("expected subtotal 450, got %d", res.Subtotal)
	}
	if res.Tax != 67 {
		t.Fatalf("expected tax 67, got %d", res.Tax)
	}
	if res.FinalFee != 517 {
		t.Fatalf("expected 517, got %d", res.FinalFee)
	}
}

func TestCalculateDailyCap(t *testing.T) {
	res := Calculate(stayOf(monday, 1800), Resolve(baseSchedule(), nil, nil, nil), monday)
	if res.FinalFee != 6000 {
		t.Fatalf("expected capped fee 6000, got %d", res.FinalFee)
	}
	var capItem *LineItem
	for i := range res.LineItems {
		if res.LineItems[i].Kind == KindDiscount {
			capItem = &res.LineItems[i]
		}
	}
	if capItem == nil || capItem.Amount != -9000 {
		t.Fatalf("expected cap savings of 9000, got %+v", capItem)
	}
}

func TestCalculateNightBeatsWeekend(t *testing.T) {
	schedule := baseSchedule()
	schedule.NightRate = 300
	schedule.NightStartHour = 22
	schedule.NightEndHour = 6
	schedule.WeekendRate = 400
	entry := time.Date(2025, 6, 14, 23, 30, 0, 0, time.UTC) // Saturday night
	res := Calculate(stayOf(entry, 45), Resolve(schedule, nil, nil, nil), entry)
	if res.LineItems[0].Label != "First hour (night rate)" {
		t.Fatalf("expected night rate label, got %q", res.LineItems[0].Label)
	}
	if res.LineItems[0].Amount != 300 {
		t.Fatalf("expected night rate 300, got %d", res.LineItems[0].Amount)
	}
}

func TestCalculateNightWindowWrapsMidnight(t *testing.T) {
	schedule := baseSchedule()
	schedule.NightRate = 300
	schedule.NightStartHour = 22
	schedule.NightEndHour = 6
	entry := time.Date(2025, 6, 9, 2, 0, 0, 0, time.UTC)
	res := Calculate(stayOf(entry, 45), Resolve(schedule, nil, nil, nil), entry)
	if res.LineItems[0].Label != "First hour (night rate)" {
		t.Fatalf("expected night rate for 02:00 entry, got %q", res.LineItems[0].Label)
	}
}

func TestCalculateWeekendRate(t *testing.T) {
	schedule := baseSchedule()
	schedule.WeekendRate = 700
	res := Calculate(stayOf(saturday, 45), Resolve(schedule, nil, nil, nil), saturday)
	if res.LineItems[0].Label != "First hour (weekend rate)" || res.LineItems[0].Amount != 700 {
		t.Fatalf("expected weekend first hour, got %+v", res.LineItems[0])
	}
}

func TestCalculateNeverNegative(t *testing.T) {
	validations := []Validation{{ValidatorName: "Promo", DiscountAmount: 100000}}
	res := Calculate(stayOf(monday, 90), Resolve(baseSchedule(), nil, nil, validations), monday)
	if res.FinalFee != 0 {
		t.Fatalf("expected floor at zero, got %d", res.FinalFee)
	}
	if res.Tax != 0 {
		t.Fatalf("expected no tax on non-positive subtotal, got %d", res.Tax)
	}
}

func TestCalculateReconstructable(t *testing.T) {
	business := &Business{TaxRateBps: 1500, Currency: "USD", Locale: "en-US"}
	validations := []Validation{
		{ValidatorName: "Mall", DiscountPercent: 25, DiscountAmount: 50},
		{ValidatorName: "Cinema", DiscountPercent: 10},
	}
	parker := &Parker{IsVIP: true}
	res := Calculate(stayOf(monday, 200), Resolve(baseSchedule(), parker, business, validations), monday)

	var charges, discounts, tax int64
	for _, it := range res.LineItems {
		switch it.Kind {
		case KindCharge:
			charges += it.Amount
		case KindDiscount:
			discounts += -it.Amount
		case KindTax:
			tax += it.Amount
		}
	}
	if charges-discounts != res.Subtotal {
		t.Fatalf("charges %d - discounts %d != subtotal %d", charges, discounts, res.Subtotal)
	}
	if discounts != res.Discount {
		t.Fatalf("discount magnitudes %d != reported discount %d", discounts, res.Discount)
	}
	if res.Subtotal+tax != res.FinalFee {
		t.Fatalf("subtotal %d + tax %d != final %d", res.Subtotal, tax, res.FinalFee)
	}
}

func TestCalculateDeterministic(t *testing.T) {
	business := &Business{TaxRateBps: 1100, TaxLabel: "GST", Currency: "SGD", Locale: "en-SG"}
	validations := []Validation{{ValidatorName: "Hotel", DiscountPercent: 15}}
	ctx := Resolve(baseSchedule(), &Parker{IsVIP: true}, business, validations)
	stay := stayOf(monday, 310)
	a := Calculate(stay, ctx, monday)
	b := Calculate(stay, ctx, monday)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected identical results, got %+v vs %+v", a, b)
	}
}

func TestResultSurvivesJSONStorage(t *testing.T) {
	business := &Business{TaxRateBps: 1500, Currency: "USD", Locale: "en-US"}
	validations := []Validation{{ValidatorName: "Mall", DiscountPercent: 25}}
	res := Calculate(stayOf(monday, 200), Resolve(baseSchedule(), &Parker{IsVIP: true}, business, validations), monday)

	encoded, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("encode result: %v", err)
	}
	var decoded Result
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !reflect.DeepEqual(res, decoded) {
		t.Fatalf("stored detail diverged: %+v vs %+v", res, decoded)
	}

	var item LineItem
	if err := json.Unmarshal([]byte(`{"label":"x","amount":1,"type":"refund"}`), &item); err == nil {
		t.Fatal("expected unknown kind to be rejected")
	}
}

func TestCalculateDefaultsWhenScheduleMissing(t *testing.T) {
	res := Calculate(stayOf(monday, 90), Resolve(nil, nil, nil, nil), monday)
	if res.FinalFee != 1000 {
		t.Fatalf("expected defaults to charge 1000, got %d", res.FinalFee)
	}
	if res.Currency != DefaultCurrency {
		t.Fatalf("expected default currency, got %q", res.Currency)
	}
}
