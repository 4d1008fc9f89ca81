package parker

import "testing"

func TestNormalizePlate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"abc 123", "ABC123"},
		{"AB-12-CD", "AB12CD"},
		{" b 920 xyz ", "B920XYZ"},
		{"ABC123", "ABC123"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizePlate(tc.in); got != tc.want {
			t.Fatalf("NormalizePlate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
