package google

import "testing"

func TestSheetNameFor(t *testing.T) {
	cases := []struct {
		base string
		year int
		want string
	}{
		{"Gastos", 2026, "2026 Gastos"},
		{"  Gastos  ", 2026, "2026 Gastos"},
		{"2025 Gastos", 2026, "2025 Gastos"},
		{"", 2026, ""},
	}
	for _, tc := range cases {
		if got := sheetNameFor(tc.base, tc.year); got != tc.want {
			t.Errorf("sheetNameFor(%q, %d) = %q, want %q", tc.base, tc.year, got, tc.want)
		}
	}
}
