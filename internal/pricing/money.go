package pricing

import (
	"fmt"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// currencySymbols backs the fallback formatter and the CurrencySymbol result
// field for the currencies the platform is deployed with.
var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"IDR": "Rp",
	"SGD": "S$",
	"MYR": "RM",
	"PHP": "₱",
	"THB": "฿",
	"INR": "₹",
	"AUD": "A$",
	"CAD": "C$",
}

// Symbol returns the display symbol for a currency code, falling back to the
// code itself when unknown.
func Symbol(code string) string {
	if sym, ok := currencySymbols[code]; ok {
		return sym
	}
	return code
}

// FormatAmount renders a minor-unit amount for the given currency and locale.
// Unsupported currency/locale pairs fall back to "{symbol}{units.cents}".
// Formatting never fails; the engine relies on that.
func FormatAmount(minor Money, code, locale string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return fallbackFormat(minor, code)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return fallbackFormat(minor, code)
	}
	p := message.NewPrinter(tag)
	return p.Sprint(currency.NarrowSymbol(unit.Amount(float64(minor) / 100)))
}

func fallbackFormat(minor Money, code string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%s%d.%02d", sign, Symbol(code), minor/100, minor%100)
}
