// Package gemini implements the analyzer port on the Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"gastos/internal/analyzer"
	"gastos/internal/core"
)

const DefaultModel = "gemini-2.5-flash"

type Analyzer struct {
	client *genai.Client
	model  string
}

var _ analyzer.Analyzer = (*Analyzer)(nil)

func New(ctx context.Context, apiKey, model string) (*Analyzer, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Analyzer{client: client, model: model}, nil
}

func (a *Analyzer) AnalyzeImage(ctx context.Context, data []byte, mimeType, caption string, categories []string) (*analyzer.Result, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	parts := []*genai.Part{
		genai.NewPartFromBytes(data, mimeType),
		genai.NewPartFromText(extractionPrompt(caption, categories)),
	}
	return a.extract(ctx, parts)
}

func (a *Analyzer) AnalyzeText(ctx context.Context, text string, categories []string) (*analyzer.Result, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(extractionPrompt(text, categories)),
	}
	return a.extract(ctx, parts)
}

func (a *Analyzer) TranscribeAudio(ctx context.Context, data []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "audio/ogg"
	}
	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(data, mimeType),
		genai.NewPartFromText("Transcreva esta mensagem de áudio literalmente. Responda somente com o texto transcrito, sem comentários."),
	}, genai.RoleUser)}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, nil)
	if err != nil {
		return "", upstream("transcribe audio", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (a *Analyzer) extract(ctx context.Context, parts []*genai.Part) (*analyzer.Result, error) {
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, upstream("analyze", err)
	}
	return parseResult(resp.Text())
}

func extractionPrompt(context string, categories []string) string {
	var b strings.Builder
	b.WriteString("Você lê comprovantes de despesas de um grupo familiar.\n")
	b.WriteString("Extraia exatamente uma despesa do conteúdo enviado.\n")
	b.WriteString("Responda com JSON: {\"value\": \"<decimal, ex: 150.75>\", \"description\": \"<curta>\", \"category\": \"<uma das categorias>\"}.\n")
	b.WriteString("Se não houver despesa reconhecível, responda {\"value\": \"\"}.\n")
	b.WriteString("Categorias conhecidas: " + strings.Join(categories, ", ") + ".\n")
	b.WriteString("Use o nome da categoria exatamente como listado.\n")
	if strings.TrimSpace(context) != "" {
		b.WriteString("Contexto adicional: " + context + "\n")
	}
	return b.String()
}

// parseResult maps the model's JSON answer to a Result. An empty value field
// means "no expense recognized" and yields (nil, nil).
func parseResult(raw string) (*analyzer.Result, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var out struct {
		Value       string `json:"value"`
		Description string `json:"description"`
		Category    string `json:"category"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("parse analyzer response: %w", err)
	}
	if strings.TrimSpace(out.Value) == "" {
		return nil, nil
	}
	cents, err := core.ParseDecimalToCents(out.Value)
	if err != nil {
		return nil, fmt.Errorf("parse analyzer value %q: %w", out.Value, err)
	}
	return &analyzer.Result{
		Value:        core.Money{Cents: cents},
		Description:  strings.TrimSpace(out.Description),
		CategoryName: strings.TrimSpace(out.Category),
	}, nil
}

func upstream(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(core.ErrUpstreamUnavailable, err))
}
