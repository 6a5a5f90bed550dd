package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-pipeline/internal/frame"
)

// SampleSpec controls how the analyzer samples large frames before sending
// them to the inference service.
type SampleSpec struct {
	Head   int
	Middle int
	Tail   int
	Seed   int64
}

// DefaultSampleSpec matches the sizes used in production: enough head and
// tail rows to expose headers and footers, plus a random middle slice.
var DefaultSampleSpec = SampleSpec{Head: 20, Middle: 10, Tail: 20}

// StructuralAnalyzer runs the first pipeline pass: discovering the date
// column, its layout, and the amount representation of a raw statement.
type StructuralAnalyzer struct {
	inference InferenceService
	sample    SampleSpec
	log       zerolog.Logger
}

// NewStructuralAnalyzer builds an analyzer with the given sampling spec.
// A zero-value spec falls back to DefaultSampleSpec.
func NewStructuralAnalyzer(inference InferenceService, sample SampleSpec, log zerolog.Logger) *StructuralAnalyzer {
	if sample == (SampleSpec{}) {
		sample = DefaultSampleSpec
	}
	return &StructuralAnalyzer{inference: inference, sample: sample, log: log}
}

// Analyze discovers the structural layout of the frame. Any failure here is
// fatal to the pipeline: a StructuralDiscoveryError is returned and nothing
// downstream runs.
func (a *StructuralAnalyzer) Analyze(ctx context.Context, raw *frame.RawFrame) (*StructuralInfo, error) {
	if raw.Len() == 0 {
		return nil, ErrEmptyFrame
	}

	sample := raw.Sample(a.sample.Head, a.sample.Middle, a.sample.Tail, a.sample.Seed)
	prompt := buildStructuralPrompt(sample)

	resp, err := a.inference.Complete(ctx, prompt)
	if err != nil {
		return nil, &StructuralDiscoveryError{Reason: "inference call failed", Err: err}
	}

	var info StructuralInfo
	if err := decodeModelJSON(resp, &info); err != nil {
		return nil, &StructuralDiscoveryError{Reason: "malformed model response", Err: err}
	}
	if err := info.Validate(); err != nil {
		return nil, &StructuralDiscoveryError{Reason: "incomplete structural info", Err: err}
	}
	if err := a.checkColumns(raw, &info); err != nil {
		return nil, &StructuralDiscoveryError{Reason: "model named unknown columns", Err: err}
	}

	a.log.Info().
		Str("date_column", info.Date.ColumnName).
		Str("date_layout", info.Date.Layout).
		Str("representation", string(info.Amount.Representation)).
		Msg("structural analysis complete")

	return &info, nil
}

// checkColumns verifies every column the model named actually exists in the
// frame. Hallucinated column names must fail here, not mid-extraction.
func (a *StructuralAnalyzer) checkColumns(raw *frame.RawFrame, info *StructuralInfo) error {
	for _, c := range info.ConsumedColumns() {
		if !raw.HasColumn(c) {
			return fmt.Errorf("column %q not present in frame", c)
		}
	}
	return nil
}
