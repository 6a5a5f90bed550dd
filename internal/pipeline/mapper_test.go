package pipeline

import (
	"context"
	"errors"
	"testing"
)

func TestMap(t *testing.T) {
	raw := testFrame(t,
		[]string{"Date", "Narrative", "Debit", "Credit", "Balance"},
		[][]string{{"01/15/2024", "COFFEE SHOP", "4.50", "", "995.50"}},
	)
	structural := dualColumnStructure()

	tests := []struct {
		name     string
		response string
		err      error
		want     string
	}{
		{"model identifies column", `{"description_column": "Narrative"}`, nil, "Narrative"},
		{"model names unknown column, keyword fallback", `{"description_column": "Memo2024"}`, nil, "Narrative"},
		{"model returns empty, keyword fallback", `{"description_column": ""}`, nil, "Narrative"},
		{"inference failure, keyword fallback", "", errors.New("timeout"), "Narrative"},
		{"malformed response, keyword fallback", "not json at all", nil, "Narrative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inf := &fakeInference{completeFn: func(ctx context.Context, prompt string) (string, error) {
				return tt.response, tt.err
			}}
			m := NewSemanticMapper(inf, SampleSpec{}, testLogger())

			mapping, err := m.Map(context.Background(), raw, structural)
			if err != nil {
				t.Fatalf("Map: %v", err)
			}
			if mapping.DescriptionColumn != tt.want {
				t.Errorf("DescriptionColumn = %q, want %q", mapping.DescriptionColumn, tt.want)
			}
		})
	}
}

func TestMap_NoCandidate(t *testing.T) {
	// No keyword match among remaining columns and the model declines.
	raw := testFrame(t,
		[]string{"Date", "Ref", "Debit", "Credit"},
		[][]string{{"01/15/2024", "X91", "4.50", ""}},
	)
	inf := &fakeInference{completeFn: func(ctx context.Context, prompt string) (string, error) {
		return `{"description_column": ""}`, nil
	}}
	m := NewSemanticMapper(inf, SampleSpec{}, testLogger())

	mapping, err := m.Map(context.Background(), raw, dualColumnStructure())
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if mapping.DescriptionColumn != "" {
		t.Errorf("DescriptionColumn = %q, want empty", mapping.DescriptionColumn)
	}
}

func TestRemainingColumns(t *testing.T) {
	raw := testFrame(t,
		[]string{"Date", "Narrative", "Debit", "Credit", "Balance"},
		[][]string{{"01/15/2024", "COFFEE", "4.50", "", "995.50"}},
	)
	got := remainingColumns(raw, dualColumnStructure())
	want := []string{"Narrative", "Balance"}
	if len(got) != len(want) {
		t.Fatalf("remainingColumns = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("remainingColumns[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
