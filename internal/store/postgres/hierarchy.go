package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvloznov/statement-pipeline/internal/pipeline"
)

// HierarchyReader serves the category hierarchy snapshot the categorizer
// prompts with. Reads are cached with a TTL: the taxonomy changes rarely
// and the pipeline reads it once per run anyway.
type HierarchyReader struct {
	pool *pgxpool.Pool
	ttl  time.Duration

	mu      sync.Mutex
	cached  []pipeline.CategoryPair
	fetched time.Time
}

// NewHierarchyReader builds a reader; a zero ttl disables caching.
func NewHierarchyReader(pool *pgxpool.Pool, ttl time.Duration) *HierarchyReader {
	return &HierarchyReader{pool: pool, ttl: ttl}
}

// CategoryPairs returns every (name, parent) pair in the taxonomy. Root
// categories come back with an empty parent.
func (h *HierarchyReader) CategoryPairs(ctx context.Context) ([]pipeline.CategoryPair, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cached != nil && h.ttl > 0 && time.Since(h.fetched) < h.ttl {
		return h.cached, nil
	}

	rows, err := h.pool.Query(ctx, `
		SELECT c.name, COALESCE(p.name, '')
		FROM categories c
		LEFT JOIN categories p ON p.id = c.parent_id
		ORDER BY COALESCE(p.name, ''), c.name`)
	if err != nil {
		return nil, classifyError("list categories", fmt.Errorf("postgres: list categories: %w", err))
	}
	defer rows.Close()

	var pairs []pipeline.CategoryPair
	for rows.Next() {
		var p pipeline.CategoryPair
		if err := rows.Scan(&p.Name, &p.Parent); err != nil {
			return nil, fmt.Errorf("postgres: scan category row: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("list categories", fmt.Errorf("postgres: iterate categories: %w", err))
	}

	h.cached = pairs
	h.fetched = time.Now()
	return pairs, nil
}
