package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id        BIGSERIAL PRIMARY KEY,
		name      TEXT NOT NULL,
		parent_id BIGINT REFERENCES categories(id),
		UNIQUE (name, parent_id)
	)`,
	// Postgres UNIQUE treats NULLs as distinct, so root categories need
	// their own partial index to stay unique.
	`CREATE UNIQUE INDEX IF NOT EXISTS categories_root_name_key
		ON categories (name) WHERE parent_id IS NULL`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id               BIGSERIAL PRIMARY KEY,
		description      TEXT NOT NULL,
		transaction_date DATE NOT NULL,
		amount           NUMERIC(14,2) NOT NULL,
		category_id      BIGINT NOT NULL REFERENCES categories(id)
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_date_idx
		ON transactions (transaction_date)`,
	`CREATE INDEX IF NOT EXISTS transactions_category_idx
		ON transactions (category_id)`,
}

// defaultCategories seeds the taxonomy a fresh installation starts with.
// The categorizer only suggests names present in this table, so an empty
// table would send everything to the sentinel.
var defaultCategories = map[string][]string{
	"Income":         {"Salary", "Interest", "Refunds"},
	"Groceries":      nil,
	"Dining":         {"Coffee", "Restaurants", "Takeaway"},
	"Transportation": {"Public Transit", "Fuel", "Parking"},
	"Housing":        {"Rent", "Mortgage"},
	"Utilities":      nil,
	"Entertainment":  {"Streaming", "Events"},
	"Shopping":       nil,
	"Health":         nil,
	"Insurance":      nil,
	"Fees":           nil,
	"Cash":           nil,
	"Transfers":      nil,
	"Uncategorized":  nil,
}

// Bootstrap creates the schema if absent. Statements are idempotent, so
// running the migrate command repeatedly is safe.
func Bootstrap(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return classifyError("bootstrap", fmt.Errorf("postgres: bootstrap schema: %w", err))
		}
	}
	return nil
}

// SeedDefaultCategories inserts the default taxonomy inside one
// transaction, resolving each pair through the same path the pipeline uses
// so re-seeding never duplicates rows.
func SeedDefaultCategories(ctx context.Context, pool *pgxpool.Pool) error {
	txc, err := Begin(ctx, pool)
	if err != nil {
		return err
	}
	defer txc.Rollback(ctx)

	resolver := NewCategoryResolver()
	for parent, subs := range defaultCategories {
		if _, err := resolver.ResolveOrCreate(ctx, txc.Tx(), parent, ""); err != nil {
			return err
		}
		for _, sub := range subs {
			if _, err := resolver.ResolveOrCreate(ctx, txc.Tx(), sub, parent); err != nil {
				return err
			}
		}
	}
	return txc.Commit(ctx)
}
