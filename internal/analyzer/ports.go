// Package analyzer defines the port to the AI collaborator that reads
// receipts out of media and text.
package analyzer

import (
	"context"

	"gastos/internal/core"
)

// Result is one recognized expense candidate. CategoryName is whatever the
// model picked from the offered list; callers resolve it against storage.
type Result struct {
	Value        core.Money
	Description  string
	CategoryName string
}

// Analyzer extracts expense candidates from attachments. A nil Result with a
// nil error means the input was readable but contained no recognizable
// expense; callers drop the message silently in that case.
type Analyzer interface {
	AnalyzeImage(ctx context.Context, data []byte, mimeType, caption string, categories []string) (*Result, error)
	AnalyzeText(ctx context.Context, text string, categories []string) (*Result, error)
	TranscribeAudio(ctx context.Context, data []byte, mimeType string) (string, error)
}
