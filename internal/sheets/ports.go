package sheets

import (
	"context"
	"time"
)

// Entry is one ledger row bound for the spreadsheet mirror.
type Entry struct {
	Date        time.Time
	Description string
	AmountCents int64
	Category    string
}

// EntryWriter is the outbound port to the spreadsheet mirror.
type EntryWriter interface {
	Append(ctx context.Context, e Entry) (rowRef string, err error)
}
