package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

const (
	// DefaultBatchSize bounds prompt size and blast radius: a failed batch
	// only ever defaults its own rows.
	DefaultBatchSize = 25
	// DefaultMaxRetries is the number of re-attempts per batch after the
	// initial call.
	DefaultMaxRetries = 1
)

// Categorizer runs the third pipeline pass: labeling extracted transactions
// against the category hierarchy snapshot, in batches, with bounded retries.
// A batch whose retries are exhausted is defaulted to the sentinel rather
// than failing the run.
type Categorizer struct {
	inference  InferenceService
	batchSize  int
	maxRetries int
	log        zerolog.Logger
}

func NewCategorizer(inference InferenceService, batchSize, maxRetries int, log zerolog.Logger) *Categorizer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Categorizer{inference: inference, batchSize: batchSize, maxRetries: maxRetries, log: log}
}

type categoryLabel struct {
	Category    string `json:"category"`
	SubCategory string `json:"subcategory"`
}

// CategorizeResult carries the labeled rows, in input order, plus the count
// of rows forced onto the sentinel: exhausted batches and coerced labels.
// A deliberate "Uncategorized" answer from the model does not count.
type CategorizeResult struct {
	Transactions []CategorizedTransaction
	Defaulted    int
}

// Categorize labels every transaction. onProgress receives the fraction of
// rows completed in [0,1]; the orchestrator rescales it into the overall
// pipeline range. Only cancellation of the caller's context aborts the
// pass; a timed-out service call is an ordinary batch failure and defaults
// the batch once retries are exhausted.
func (c *Categorizer) Categorize(ctx context.Context, txs []NormalizedTransaction, hierarchy CategoryHierarchy, onProgress ProgressFunc) (*CategorizeResult, error) {
	res := &CategorizeResult{Transactions: make([]CategorizedTransaction, 0, len(txs))}

	for start := 0; start < len(txs); start += c.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+c.batchSize, len(txs))
		batch := txs[start:end]
		batchNum := start/c.batchSize + 1

		labels, coerced, err := c.categorizeBatch(ctx, batch, hierarchy)
		if err != nil && ctx.Err() != nil {
			return nil, err
		}
		message := fmt.Sprintf("batch %d ok, %d of %d transactions categorized", batchNum, end, len(txs))
		if err != nil {
			c.log.Warn().Err(err).
				Int("batch_start", start).
				Int("batch_size", len(batch)).
				Msg("batch categorization exhausted retries, defaulting")
			labels = make([]categoryLabel, len(batch))
			for i := range labels {
				labels[i] = categoryLabel{Category: UncategorizedCategory}
			}
			coerced = len(batch)
			message = fmt.Sprintf("batch %d failed, %d rows defaulted", batchNum, len(batch))
		}
		res.Defaulted += coerced

		for i, tx := range batch {
			res.Transactions = append(res.Transactions, CategorizedTransaction{
				NormalizedTransaction: tx,
				Category:              labels[i].Category,
				SubCategory:           labels[i].SubCategory,
			})
		}

		onProgress.report(float64(end)/float64(len(txs)), message)
	}
	return res, nil
}

// categorizeBatch attempts one batch up to 1+maxRetries times. A structurally
// valid response (right length, no empty categories) is accepted; unknown
// category names are then coerced per row rather than retried. The second
// return is the number of rows coerced to the sentinel.
func (c *Categorizer) categorizeBatch(ctx context.Context, batch []NormalizedTransaction, hierarchy CategoryHierarchy) ([]categoryLabel, int, error) {
	descriptions := make([]string, len(batch))
	for i, tx := range batch {
		descriptions[i] = tx.Description
	}
	prompt := buildCategorizationPrompt(hierarchy, descriptions)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		resp, err := c.inference.Complete(ctx, prompt)
		if err != nil {
			lastErr = err
			continue
		}
		labels, coerced, err := c.validateBatch(resp, len(batch), hierarchy)
		if err != nil {
			lastErr = err
			continue
		}
		return labels, coerced, nil
	}
	return nil, 0, lastErr
}

func (c *Categorizer) validateBatch(resp string, want int, hierarchy CategoryHierarchy) ([]categoryLabel, int, error) {
	var labels []categoryLabel
	if err := decodeModelJSON(resp, &labels); err != nil {
		return nil, 0, err
	}
	if len(labels) != want {
		return nil, 0, fmt.Errorf("expected %d labels, got %d", want, len(labels))
	}
	coerced := 0
	for i := range labels {
		labels[i].Category = strings.TrimSpace(labels[i].Category)
		labels[i].SubCategory = strings.TrimSpace(labels[i].SubCategory)
		if labels[i].Category == "" {
			return nil, 0, fmt.Errorf("label %d has empty category", i)
		}
		// Unknown names are a per-row defect, not a batch defect: coerce
		// instead of burning a retry on the whole batch. A deliberate
		// "Uncategorized" from the model is a valid answer, not a default.
		if labels[i].Category != UncategorizedCategory && !hierarchy.Contains(labels[i].Category) {
			c.log.Warn().Str("category", labels[i].Category).Msg("model invented a category, coercing to sentinel")
			labels[i] = categoryLabel{Category: UncategorizedCategory}
			coerced++
		}
	}
	return labels, coerced, nil
}
