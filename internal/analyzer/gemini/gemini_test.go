package gemini

import (
	"context"
	"strings"
	"testing"
)

func TestParseResult(t *testing.T) {
	t.Run("full answer", func(t *testing.T) {
		res, err := parseResult(`{"value": "150.75", "description": "mesa de jantar", "category": "Marcenaria"}`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res == nil {
			t.Fatalf("expected result")
		}
		if res.Value.Cents != 15075 {
			t.Fatalf("cents = %d", res.Value.Cents)
		}
		if res.CategoryName != "Marcenaria" {
			t.Fatalf("category = %q", res.CategoryName)
		}
	})

	t.Run("comma decimal", func(t *testing.T) {
		res, err := parseResult(`{"value": "42,50", "description": "tinta", "category": "Obra"}`)
		if err != nil || res == nil {
			t.Fatalf("res=%v err=%v", res, err)
		}
		if res.Value.Cents != 4250 {
			t.Fatalf("cents = %d", res.Value.Cents)
		}
	})

	t.Run("no expense recognized", func(t *testing.T) {
		res, err := parseResult(`{"value": ""}`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res != nil {
			t.Fatalf("expected nil result, got %+v", res)
		}
	})

	t.Run("code fences stripped", func(t *testing.T) {
		res, err := parseResult("```json\n{\"value\": \"10\", \"description\": \"x\", \"category\": \"Obra\"}\n```")
		if err != nil || res == nil {
			t.Fatalf("res=%v err=%v", res, err)
		}
		if res.Value.Cents != 1000 {
			t.Fatalf("cents = %d", res.Value.Cents)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		if _, err := parseResult(`not json`); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("bad value", func(t *testing.T) {
		_, err := parseResult(`{"value": "-3"}`)
		if err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestExtractionPromptMentionsCategories(t *testing.T) {
	p := extractionPrompt("nota da loja", []string{"Marcenaria", "Obra"})
	if !strings.Contains(p, "Marcenaria, Obra") {
		t.Fatalf("prompt missing categories: %s", p)
	}
	if !strings.Contains(p, "nota da loja") {
		t.Fatalf("prompt missing caption context: %s", p)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(context.Background(), "", ""); err == nil {
		t.Fatalf("expected error for missing key")
	}
}
