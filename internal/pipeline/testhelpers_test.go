package pipeline

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-pipeline/internal/frame"
)

// fakeInference routes Complete calls to a test-provided function.
type fakeInference struct {
	completeFn func(ctx context.Context, prompt string) (string, error)
	calls      int
}

func (f *fakeInference) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.completeFn(ctx, prompt)
}

// fakeHierarchy serves a fixed set of category pairs.
type fakeHierarchy struct {
	pairs []CategoryPair
	err   error
}

func (f *fakeHierarchy) CategoryPairs(ctx context.Context) ([]CategoryPair, error) {
	return f.pairs, f.err
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testFrame(t *testing.T, columns []string, rows [][]string) *frame.RawFrame {
	t.Helper()
	f := frame.New(columns)
	for _, r := range rows {
		if err := f.AppendRow(r); err != nil {
			t.Fatalf("AppendRow: %v", err)
		}
	}
	return f
}

func dualColumnStructure() *StructuralInfo {
	return &StructuralInfo{
		Date: DateInfo{ColumnName: "Date", Layout: "01/02/2006"},
		Amount: AmountInfo{
			Representation: DualColumnDebitCredit,
			DebitColumn:    "Debit",
			CreditColumn:   "Credit",
		},
	}
}
