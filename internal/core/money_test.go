package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"12.34", 1234, false},
		{"12,34", 1234, false},
		{"12", 1200, false},
		{"0,5", 50, false},
		{"12.345", 1234, false},
		{"12.346", 1235, false},
		{"", 0, true},
		{"-1", 0, true},
		{"+1", 0, true},
		{"abc", 0, true},
		{"1.2.3", 0, true},
		{"0", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%q: got %d want %d", tc.in, got, tc.want)
		}
	}
}

func TestMoneyBRL(t *testing.T) {
	if got := (Money{Cents: 15075}).BRL(); got != "R$ 150,75" {
		t.Fatalf("got %q", got)
	}
	if got := (Money{Cents: 100}).BRL(); got != "R$ 1,00" {
		t.Fatalf("got %q", got)
	}
	if got := (Money{Cents: 5}).BRL(); got != "R$ 0,05" {
		t.Fatalf("got %q", got)
	}
}

func TestMoneyReais(t *testing.T) {
	if got := (Money{Cents: 1234}).Reais(); got != 12.34 {
		t.Fatalf("got %v", got)
	}
}
