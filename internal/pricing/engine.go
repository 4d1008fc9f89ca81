package pricing

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Calculate produces the itemized fee for a stay. It is a total, pure
// function over well-formed input: no I/O, no shared state, deterministic,
// safe to call concurrently. The step order below is load-bearing; it
// determines both the monetary outcome and the line-item presentation.
//
// All arithmetic is on integer minor units and every division floors, so the
// computed revenue never exceeds the theoretically exact value.
func Calculate(stay Stay, ctx Context, now time.Time) Result {
	minutes, formatted := Duration(stay.EntryAt, stay.ExitAt, now)

	res := Result{
		DurationMinutes:   minutes,
		DurationFormatted: formatted,
		Currency:          ctx.Business.Currency,
		CurrencySymbol:    Symbol(ctx.Business.Currency),
		Locale:            ctx.Business.Locale,
	}
	fmtMoney := func(v Money) string {
		return FormatAmount(v, ctx.Business.Currency, ctx.Business.Locale)
	}

	// Grace period: short stays are free and produce no line items.
	if minutes <= ctx.Schedule.GracePeriodMinutes {
		res.IsGracePeriod = true
		res.Breakdown = "Grace period (no charge)"
		return res
	}

	// Monthly pass dominates everything else.
	if ctx.Parker.MonthlyPassExpiry != nil && ctx.Parker.MonthlyPassExpiry.After(now) {
		res.HasMonthlyPass = true
		res.LineItems = []LineItem{{Label: "Monthly pass", Amount: 0, Kind: KindCharge}}
		res.Breakdown = "Monthly pass (no charge)"
		return res
	}

	totalHours := (minutes + 59) / 60
	var items []LineItem
	var running Money

	// First hour: night beats weekend beats the first-hour rate.
	if totalHours >= 1 {
		label := "First hour"
		rate := ctx.firstHourRate()
		entry := stay.EntryAt
		switch {
		case ctx.Schedule.NightRate > 0 && inNightWindow(entry.Hour(), ctx.Schedule.NightStartHour, ctx.Schedule.NightEndHour):
			label = "First hour (night rate)"
			rate = ctx.Schedule.NightRate
		case ctx.Schedule.WeekendRate > 0 && isWeekend(entry.Weekday()):
			label = "First hour (weekend rate)"
			rate = ctx.Schedule.WeekendRate
		}
		items = append(items, LineItem{Label: label, Amount: rate, Kind: KindCharge})
		running += rate
	}

	// Additional hours always use the flat hourly rate.
	if totalHours > 1 {
		extra := Money(totalHours-1) * ctx.Schedule.HourlyRate
		label := fmt.Sprintf("Additional hours (%d × %s)", totalHours-1, fmtMoney(ctx.Schedule.HourlyRate))
		items = append(items, LineItem{Label: label, Amount: extra, Kind: KindCharge})
		running += extra
	}

	var discountTotal Money

	// Daily cap clamps the base before any percentage or fixed discounts.
	if ctx.Schedule.DailyMaxRate > 0 {
		days := (minutes + 24*60 - 1) / (24 * 60)
		maxFee := Money(days) * ctx.Schedule.DailyMaxRate
		if running > maxFee {
			savings := running - maxFee
			items = append(items, LineItem{Label: "Daily maximum cap", Amount: -savings, Kind: KindDiscount})
			discountTotal += savings
			running = maxFee
		}
	}

	// Validation discounts apply in grant order; percent before fixed, and
	// each adjustment updates the subtotal seen by the next one.
	for _, v := range ctx.Validations {
		if v.DiscountPercent > 0 {
			cut := running * Money(v.DiscountPercent) / 100
			if cut > 0 {
				label := fmt.Sprintf("Validation - %s (%d%%)", v.ValidatorName, v.DiscountPercent)
				items = append(items, LineItem{Label: label, Amount: -cut, Kind: KindDiscount})
				discountTotal += cut
				running -= cut
			}
		}
		if v.DiscountAmount > 0 {
			label := fmt.Sprintf("Validation - %s", v.ValidatorName)
			items = append(items, LineItem{Label: label, Amount: -v.DiscountAmount, Kind: KindDiscount})
			discountTotal += v.DiscountAmount
			running -= v.DiscountAmount
		}
	}

	// VIP: flat 10% on the post-validation subtotal.
	if ctx.Parker.IsVIP {
		cut := running * 10 / 100
		if cut > 0 {
			items = append(items, LineItem{Label: "VIP discount (10%)", Amount: -cut, Kind: KindDiscount})
			discountTotal += cut
			running -= cut
		}
	}

	// Tax on the post-discount subtotal, basis points of a percent.
	var tax Money
	if ctx.Business.TaxRateBps > 0 && running > 0 {
		tax = running * Money(ctx.Business.TaxRateBps) / 10000
		label := fmt.Sprintf("%s (%s%%)", taxLabel(ctx.Business.TaxLabel), formatBps(ctx.Business.TaxRateBps))
		items = append(items, LineItem{Label: label, Amount: tax, Kind: KindTax})
	}

	final := running + tax
	if final < 0 {
		final = 0
	}

	res.LineItems = items
	res.Subtotal = running
	res.Discount = discountTotal
	res.Tax = tax
	res.FinalFee = final
	res.Breakdown = breakdown(items, final, fmtMoney)
	return res
}

// inNightWindow reports whether hour falls in [start, end), wrapping past
// midnight when start > end. Equal bounds disable the window.
func inNightWindow(hour, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

func isWeekend(day time.Weekday) bool {
	return day == time.Saturday || day == time.Sunday
}

func taxLabel(label string) string {
	if strings.TrimSpace(label) == "" {
		return "Tax"
	}
	return label
}

// formatBps renders basis-points-of-a-percent as a human percentage, trimming
// trailing zeros: 1500 -> "15", 1250 -> "12.5".
func formatBps(bps int32) string {
	whole := bps / 100
	frac := bps % 100
	if frac == 0 {
		return strconv.FormatInt(int64(whole), 10)
	}
	s := fmt.Sprintf("%d.%02d", whole, frac)
	return strings.TrimRight(s, "0")
}

func breakdown(items []LineItem, final Money, fmtMoney func(Money) string) string {
	parts := make([]string, 0, len(items)+1)
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s: %s", it.Label, fmtMoney(it.Amount)))
	}
	parts = append(parts, fmt.Sprintf("Total: %s", fmtMoney(final)))
	return strings.Join(parts, " | ")
}
