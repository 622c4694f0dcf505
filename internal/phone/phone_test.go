package phone

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+55 (11) 98765-4321", "5511987654321"},
		{"5511987654321", "5511987654321"},
		{"(11) 98765-4321", "5511987654321"}, // bare mobile gets country code
		{"11 3456-7890", "551134567890"},     // bare landline gets country code
		{"551134567890", "551134567890"},
		{"", ""},
		{"abc", ""},
		{"123", "123"}, // too short for a national number, kept as-is
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizePunctuationInvariance(t *testing.T) {
	variants := []string{
		"11987654321",
		"(11) 98765-4321",
		"11 98765 4321",
		"11.98765.4321",
	}
	want := Normalize(variants[0])
	for _, v := range variants {
		if got := Normalize(v); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", v, got, want)
		}
	}
}
