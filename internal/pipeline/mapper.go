package pipeline

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-pipeline/internal/frame"
)

// descriptionKeywords drive the deterministic fallback when the inference
// service cannot identify a description column. Matched case-insensitively
// as substrings of column names, in priority order.
var descriptionKeywords = []string{"description", "narrative", "details", "transaction", "memo"}

// SemanticMapper runs the second pipeline pass: identifying the description
// column among those not consumed by structural analysis. Unlike the
// analyzer, its failures are never fatal; the extractor can synthesize a
// description from the remaining textual columns.
type SemanticMapper struct {
	inference InferenceService
	sample    SampleSpec
	log       zerolog.Logger
}

func NewSemanticMapper(inference InferenceService, sample SampleSpec, log zerolog.Logger) *SemanticMapper {
	if sample == (SampleSpec{}) {
		sample = DefaultSampleSpec
	}
	return &SemanticMapper{inference: inference, sample: sample, log: log}
}

// Map returns the semantic mapping for the frame. The returned mapping may
// have an empty DescriptionColumn; Map itself only errors on an empty frame.
func (m *SemanticMapper) Map(ctx context.Context, raw *frame.RawFrame, structural *StructuralInfo) (*SemanticMapping, error) {
	if raw.Len() == 0 {
		return nil, ErrEmptyFrame
	}

	remaining := remainingColumns(raw, structural)
	if len(remaining) == 0 {
		m.log.Warn().Msg("no columns left after structural analysis, description will be empty")
		return &SemanticMapping{}, nil
	}

	if col, ok := m.fromModel(ctx, raw, remaining); ok {
		return &SemanticMapping{DescriptionColumn: col}, nil
	}

	// Keyword fallback keeps the pipeline moving when inference misbehaves.
	for _, kw := range descriptionKeywords {
		for _, c := range remaining {
			if strings.Contains(strings.ToLower(c), kw) {
				m.log.Info().Str("column", c).Str("keyword", kw).Msg("description column picked by keyword fallback")
				return &SemanticMapping{DescriptionColumn: c}, nil
			}
		}
	}

	m.log.Warn().Msg("no description column identified, extractor will concatenate textual columns")
	return &SemanticMapping{}, nil
}

func (m *SemanticMapper) fromModel(ctx context.Context, raw *frame.RawFrame, remaining []string) (string, bool) {
	sample := raw.Select(remaining).Sample(m.sample.Head, m.sample.Middle, m.sample.Tail, m.sample.Seed)
	prompt := buildSemanticPrompt(sample)

	resp, err := m.inference.Complete(ctx, prompt)
	if err != nil {
		m.log.Warn().Err(err).Msg("semantic mapping inference failed")
		return "", false
	}

	var mapping SemanticMapping
	if err := decodeModelJSON(resp, &mapping); err != nil {
		m.log.Warn().Err(err).Msg("semantic mapping response malformed")
		return "", false
	}

	col := strings.TrimSpace(mapping.DescriptionColumn)
	if col == "" {
		return "", false
	}
	if !raw.HasColumn(col) {
		m.log.Warn().Str("column", col).Msg("model named a description column not present in frame")
		return "", false
	}
	return col, true
}

// remainingColumns lists the frame's columns minus those the structural
// pass consumed, preserving frame order.
func remainingColumns(raw *frame.RawFrame, structural *StructuralInfo) []string {
	consumed := map[string]bool{}
	for _, c := range structural.ConsumedColumns() {
		consumed[c] = true
	}
	var out []string
	for _, c := range raw.Columns() {
		if !consumed[c] {
			out = append(out, c)
		}
	}
	return out
}
