package pricing

import (
	"strings"
	"testing"
)

func TestFormatAmountFallbackUnknownCurrency(t *testing.T) {
	if got := FormatAmount(1234, "ZZ", "en-US"); got != "ZZ12.34" {
		t.Fatalf("expected fallback format, got %q", got)
	}
}

func TestFormatAmountFallbackBadLocale(t *testing.T) {
	if got := FormatAmount(150, "USD", "!!"); got != "$1.50" {
		t.Fatalf("expected symbol fallback, got %q", got)
	}
}

func TestFormatAmountFallbackNegative(t *testing.T) {
	if got := FormatAmount(-150, "USD", "!!"); got != "-$1.50" {
		t.Fatalf("expected signed fallback, got %q", got)
	}
}

func TestFormatAmountLocaleAware(t *testing.T) {
	got := FormatAmount(1234, "USD", "en-US")
	if !strings.Contains(got, "12.34") {
		t.Fatalf("expected formatted amount to contain 12.34, got %q", got)
	}
}

func TestSymbol(t *testing.T) {
	if Symbol("IDR") != "Rp" {
		t.Fatalf("unexpected IDR symbol %q", Symbol("IDR"))
	}
	if Symbol("XYZ") != "XYZ" {
		t.Fatalf("unknown codes fall back to themselves, got %q", Symbol("XYZ"))
	}
}
