package pipeline

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-pipeline/internal/frame"
)

// Progress milestones for the three-pass pipeline. Categorization reports
// continuously between categorizeStart and done.
const (
	progressStart      = 0.0
	progressStructural = 0.33
	progressSemantic   = 0.66
	progressDone       = 1.0
)

// AIProcessor is the inference-driven processor: structural analysis, then
// semantic mapping, then deterministic extraction, then batched
// categorization. Construct it with NewAIProcessor and wrap with Guarded.
type AIProcessor struct {
	analyzer    *StructuralAnalyzer
	mapper      *SemanticMapper
	extractor   *Extractor
	categorizer *Categorizer
	hierarchy   HierarchySource
	log         zerolog.Logger
}

// AIProcessorConfig bundles the tunables for NewAIProcessor. Zero values
// fall back to the package defaults.
type AIProcessorConfig struct {
	Sample     SampleSpec
	BatchSize  int
	MaxRetries int
}

func NewAIProcessor(inference InferenceService, hierarchy HierarchySource, cfg AIProcessorConfig, log zerolog.Logger) *AIProcessor {
	return &AIProcessor{
		analyzer:    NewStructuralAnalyzer(inference, cfg.Sample, log),
		mapper:      NewSemanticMapper(inference, cfg.Sample, log),
		extractor:   NewExtractor(log),
		categorizer: NewCategorizer(inference, cfg.BatchSize, cfg.MaxRetries, log),
		hierarchy:   hierarchy,
		log:         log,
	}
}

// Process runs the full pipeline over a raw frame. Fatal failures are
// structural discovery errors, hierarchy read errors and context
// cancellation; everything else degrades row by row.
func (p *AIProcessor) Process(ctx context.Context, raw *frame.RawFrame, onProgress ProgressFunc) (*Result, error) {
	if raw == nil || raw.Len() == 0 {
		return nil, ErrEmptyFrame
	}
	onProgress.report(progressStart, "analyzing statement structure")

	structural, err := p.analyzer.Analyze(ctx, raw)
	if err != nil {
		return nil, err
	}
	onProgress.report(progressStructural, "mapping columns")

	mapping, err := p.mapper.Map(ctx, raw, structural)
	if err != nil {
		return nil, err
	}

	extracted, err := p.extractor.Extract(raw, structural, mapping)
	if err != nil {
		return nil, err
	}
	onProgress.report(progressSemantic, "categorizing transactions")

	result := &Result{
		RowsIn:  raw.Len(),
		RowsOut: len(extracted.Transactions),
		Dropped: extracted.Dropped,
	}
	if len(extracted.Transactions) == 0 {
		// Guarded rejects an empty table; returning early keeps the error
		// uniform across processors.
		return result, nil
	}

	pairs, err := p.hierarchy.CategoryPairs(ctx)
	if err != nil {
		return nil, err
	}
	hierarchy := HierarchyFromPairs(pairs)

	categorized, err := p.categorizer.Categorize(ctx, extracted.Transactions, hierarchy,
		func(frac float64, msg string) {
			onProgress.report(progressSemantic+frac*(progressDone-progressSemantic), msg)
		})
	if err != nil {
		return nil, err
	}

	result.Defaulted = categorized.Defaulted
	result.Table = make(FinalTable, len(categorized.Transactions))
	for i, tx := range categorized.Transactions {
		result.Table[i] = FinalRow{
			Description: tx.Description,
			Date:        tx.Date,
			Amount:      tx.Amount,
			Category:    tx.Category,
			SubCategory: tx.SubCategory,
		}
	}

	onProgress.report(progressDone, "processing complete")
	p.log.Info().
		Int("rows_in", result.RowsIn).
		Int("rows_out", result.RowsOut).
		Int("dropped", result.Dropped).
		Int("defaulted", result.Defaulted).
		Msg("pipeline complete")
	return result, nil
}
