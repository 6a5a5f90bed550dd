package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is the query surface shared by pgx.Tx and pgxpool.Pool that the
// resolver needs.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CategoryResolver maps (name, parent) label pairs to category ids,
// creating missing rows on the way. Matching is exact and case-sensitive:
// "dining" and "Dining" are different categories. The resolver memoizes
// per instance, so use one resolver per transaction.
type CategoryResolver struct {
	cache map[string]int64
}

func NewCategoryResolver() *CategoryResolver {
	return &CategoryResolver{cache: map[string]int64{}}
}

// ResolveOrCreate returns the id for the named category under the given
// parent, creating parent then child as needed. An empty parent resolves a
// root category. Idempotent: re-resolving an existing pair returns the same
// id and writes nothing.
func (r *CategoryResolver) ResolveOrCreate(ctx context.Context, q querier, name, parent string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("postgres: category name is empty")
	}

	key := parent + "\x00" + name
	if id, ok := r.cache[key]; ok {
		return id, nil
	}

	var parentID *int64
	if parent != "" {
		pid, err := r.resolveRoot(ctx, q, parent)
		if err != nil {
			return 0, err
		}
		parentID = &pid
	}

	var id int64
	var err error
	if parentID == nil {
		id, err = r.resolveRoot(ctx, q, name)
	} else {
		id, err = r.resolveChild(ctx, q, name, *parentID)
	}
	if err != nil {
		return 0, err
	}
	r.cache[key] = id
	return id, nil
}

func (r *CategoryResolver) resolveRoot(ctx context.Context, q querier, name string) (int64, error) {
	key := "\x00" + name
	if id, ok := r.cache[key]; ok {
		return id, nil
	}
	var id int64
	err := q.QueryRow(ctx,
		`SELECT id FROM categories WHERE name = $1 AND parent_id IS NULL`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		err = q.QueryRow(ctx,
			`INSERT INTO categories (name) VALUES ($1)
			 ON CONFLICT (name) WHERE parent_id IS NULL DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`, name).Scan(&id)
	}
	if err != nil {
		return 0, classifyError("resolve category", fmt.Errorf("resolve root category %q: %w", name, err))
	}
	r.cache[key] = id
	return id, nil
}

func (r *CategoryResolver) resolveChild(ctx context.Context, q querier, name string, parentID int64) (int64, error) {
	var id int64
	err := q.QueryRow(ctx,
		`SELECT id FROM categories WHERE name = $1 AND parent_id = $2`, name, parentID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		err = q.QueryRow(ctx,
			`INSERT INTO categories (name, parent_id) VALUES ($1, $2)
			 ON CONFLICT (name, parent_id) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`, name, parentID).Scan(&id)
	}
	if err != nil {
		return 0, classifyError("resolve category", fmt.Errorf("resolve category %q: %w", name, err))
	}
	return id, nil
}
