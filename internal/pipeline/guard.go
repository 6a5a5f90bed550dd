package pipeline

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-pipeline/internal/frame"
)

// FinalRow is the guarded five-column output contract shared by every
// processor implementation. This is the only row shape the persistence
// layer accepts.
type FinalRow struct {
	Description string
	Date        civil.Date
	Amount      decimal.Decimal
	Category    string
	SubCategory string
}

// FinalTable is the ordered pipeline output.
type FinalTable []FinalRow

// EnforceSchema validates a result against the output contract and repairs
// what is repairable. Empty categories are defaulted to the sentinel (and
// counted); structural defects like an invalid date or an empty table raise
// a SchemaViolationError, which is fatal and precedes any persistence.
func EnforceSchema(res *Result) error {
	if res == nil || len(res.Table) == 0 {
		return &SchemaViolationError{Field: "table", Reason: "no rows produced"}
	}
	for i := range res.Table {
		row := &res.Table[i]
		if !row.Date.IsValid() {
			return &SchemaViolationError{Field: "date", Reason: "invalid date in output row"}
		}
		if row.Category == "" {
			row.Category = UncategorizedCategory
			row.SubCategory = ""
			res.Defaulted++
		}
	}
	return nil
}

type guardedProcessor struct {
	inner Processor
}

// Guarded wraps a processor so every result passes schema enforcement
// before reaching a caller. All processors are wired through this wrapper.
func Guarded(p Processor) Processor {
	return &guardedProcessor{inner: p}
}

func (g *guardedProcessor) Process(ctx context.Context, raw *frame.RawFrame, onProgress ProgressFunc) (*Result, error) {
	res, err := g.inner.Process(ctx, raw, onProgress)
	if err != nil {
		return nil, err
	}
	if err := EnforceSchema(res); err != nil {
		return nil, err
	}
	return res, nil
}
