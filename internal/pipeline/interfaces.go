package pipeline

import (
	"context"

	"github.com/dvloznov/statement-pipeline/internal/frame"
)

// InferenceService is the external natural-language inference dependency.
// Implementations send one prompt and return the raw model text. Timeouts
// and connection refusals surface as errors; callers decide about retries.
type InferenceService interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ProgressFunc receives pipeline progress: a fraction in [0,1] and a short
// human-readable message. A nil ProgressFunc is a no-op.
type ProgressFunc func(fraction float64, message string)

func (f ProgressFunc) report(fraction float64, message string) {
	if f != nil {
		f(fraction, message)
	}
}

// HierarchySource provides the category hierarchy read before
// categorization. The persistence layer owns the read-write side.
type HierarchySource interface {
	CategoryPairs(ctx context.Context) ([]CategoryPair, error)
}

// Processor converts a raw frame into the guarded five-column result.
// Both the AI-driven and the rule-based implementations satisfy it, and
// both are expected to be wrapped with Guarded before use.
type Processor interface {
	Process(ctx context.Context, raw *frame.RawFrame, onProgress ProgressFunc) (*Result, error)
}

// Result aggregates the pipeline outcome so callers can report
// "N of M rows processed, K defaulted, J dropped".
type Result struct {
	Table     FinalTable
	RowsIn    int // rows in the raw frame
	RowsOut   int // rows surviving extraction
	Dropped   int // rows dropped for per-row defects
	Defaulted int // rows that fell back to the Uncategorized sentinel
}
