package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-pipeline/internal/pipeline"
)

// Write strategy thresholds. Small batches go out as one multi-row INSERT,
// medium ones as a pipelined batch, large ones as COPY chunks committed
// independently.
const (
	singleInsertMaxRows = 100
	batchedInsertMax    = 1000
	chunkSize           = 500
)

// WriteStrategy names the mechanism chosen for a batch.
type WriteStrategy string

const (
	StrategySingleInsert  WriteStrategy = "single_insert"
	StrategyBatchedInsert WriteStrategy = "batched_insert"
	StrategyChunkedCopy   WriteStrategy = "chunked_copy"
)

// BatchOutcome is the terminal state of a SaveBatch call.
type BatchOutcome string

const (
	// BatchCommitted: every row persisted.
	BatchCommitted BatchOutcome = "committed"
	// BatchRolledBack: nothing persisted.
	BatchRolledBack BatchOutcome = "rolled_back"
	// BatchPartiallyCommitted: chunked strategy only; some chunks
	// committed while others failed.
	BatchPartiallyCommitted BatchOutcome = "partially_committed"
)

// ChunkOutcome reports one chunk of the chunked strategy. Index counts
// chunks, not rows; Rows is the chunk's row count.
type ChunkOutcome struct {
	Index     int
	Rows      int
	Committed bool
	Err       error
}

// OperationResult reports what SaveBatch did. For the single-transaction
// strategies a failure means zero rows persisted; for the chunked strategy
// RowsWritten counts rows in committed chunks and Chunks enumerates every
// chunk's fate.
type OperationResult struct {
	Outcome     BatchOutcome
	Strategy    WriteStrategy
	RowsWritten int
	// FailedRow is the batch-relative index of the row that violated a
	// constraint, or -1 when the database did not attribute the failure
	// to a specific row.
	FailedRow int
	Chunks    []ChunkOutcome
}

// Coordinator owns the atomic persistence of processed statements:
// category resolution and row writes inside a transaction, all-or-nothing
// per transaction. It classifies failures but never retries; retrying a
// rolled-back write is the caller's decision.
type Coordinator struct {
	db  Beginner
	log zerolog.Logger
}

func NewCoordinator(db Beginner, log zerolog.Logger) *Coordinator {
	return &Coordinator{db: db, log: log}
}

// SaveBatch persists the table. Small and medium tables are one atomic
// transaction: all rows committed or none. Large tables are split into
// chunks committed independently, so a late chunk failure never unwinds
// earlier chunks; the result enumerates what happened to each.
func (c *Coordinator) SaveBatch(ctx context.Context, table pipeline.FinalTable) (*OperationResult, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("postgres: refusing to save an empty table")
	}

	switch strategy := pickStrategy(len(table)); strategy {
	case StrategyChunkedCopy:
		return c.saveChunked(ctx, table)
	default:
		return c.saveAtomic(ctx, table, strategy)
	}
}

// saveAtomic writes the whole table inside one transaction.
func (c *Coordinator) saveAtomic(ctx context.Context, table pipeline.FinalTable, strategy WriteStrategy) (*OperationResult, error) {
	res := &OperationResult{Outcome: BatchRolledBack, Strategy: strategy, FailedRow: -1}

	txc, err := Begin(ctx, c.db)
	if err != nil {
		return res, err
	}
	defer txc.Rollback(ctx)

	categoryIDs, err := c.resolveCategories(ctx, txc.Tx(), table)
	if err == nil {
		if strategy == StrategySingleInsert {
			err = insertSingle(ctx, txc.Tx(), table, categoryIDs)
		} else {
			err = insertBatched(ctx, txc.Tx(), table, categoryIDs, &res.FailedRow)
		}
	}
	if err != nil {
		if rbErr := txc.Rollback(ctx); rbErr != nil {
			c.log.Error().Err(rbErr).Msg("rollback failed")
		}
		c.log.Warn().Err(err).Str("strategy", string(strategy)).Int("failed_row", res.FailedRow).Msg("batch rolled back")
		return res, err
	}

	if err := txc.Commit(ctx); err != nil {
		return res, err
	}

	res.Outcome = BatchCommitted
	res.RowsWritten = len(table)
	c.log.Info().Int("rows", len(table)).Str("strategy", string(strategy)).Msg("batch committed")
	return res, nil
}

// saveChunked writes the table as independent 500-row transactions via
// COPY. Every chunk is attempted; the first error is returned alongside
// the per-chunk report.
func (c *Coordinator) saveChunked(ctx context.Context, table pipeline.FinalTable) (*OperationResult, error) {
	res := &OperationResult{Strategy: StrategyChunkedCopy, FailedRow: -1}
	var firstErr error

	for start, index := 0, 0; start < len(table); start, index = start+chunkSize, index+1 {
		end := min(start+chunkSize, len(table))
		chunk := table[start:end]

		err := c.saveChunk(ctx, chunk)
		outcome := ChunkOutcome{Index: index, Rows: len(chunk), Committed: err == nil, Err: err}
		res.Chunks = append(res.Chunks, outcome)
		if err != nil {
			c.log.Warn().Err(err).Int("chunk", index).Msg("chunk rolled back")
			if firstErr == nil {
				firstErr = err
			}
			// Cancellation aside, later chunks may still succeed.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			continue
		}
		res.RowsWritten += len(chunk)
	}

	switch {
	case firstErr == nil:
		res.Outcome = BatchCommitted
	case res.RowsWritten > 0:
		res.Outcome = BatchPartiallyCommitted
	default:
		res.Outcome = BatchRolledBack
	}
	c.log.Info().
		Int("rows_written", res.RowsWritten).
		Int("chunks", len(res.Chunks)).
		Str("outcome", string(res.Outcome)).
		Msg("chunked save finished")
	return res, firstErr
}

func (c *Coordinator) saveChunk(ctx context.Context, chunk pipeline.FinalTable) error {
	txc, err := Begin(ctx, c.db)
	if err != nil {
		return err
	}
	defer txc.Rollback(ctx)

	categoryIDs, err := c.resolveCategories(ctx, txc.Tx(), chunk)
	if err != nil {
		return err
	}

	columns := []string{"description", "transaction_date", "amount", "category_id"}
	rows := make([][]any, len(chunk))
	for i, row := range chunk {
		rows[i] = []any{row.Description, dateValue(row), row.Amount, categoryIDs[i]}
	}
	if _, err := txc.Tx().CopyFrom(ctx, pgx.Identifier{"transactions"}, columns, pgx.CopyFromRows(rows)); err != nil {
		return classifyError("copy", fmt.Errorf("copy %d rows: %w", len(chunk), err))
	}
	return txc.Commit(ctx)
}

// resolveCategories maps each row to its most specific category id: the
// subcategory when present, the parent otherwise. Resolution happens
// inside the write transaction so auto-created categories roll back with
// it.
func (c *Coordinator) resolveCategories(ctx context.Context, tx pgx.Tx, table pipeline.FinalTable) ([]int64, error) {
	resolver := NewCategoryResolver()
	ids := make([]int64, len(table))
	for i, row := range table {
		name, parent := row.Category, ""
		if row.SubCategory != "" {
			name, parent = row.SubCategory, row.Category
		}
		id, err := resolver.ResolveOrCreate(ctx, tx, name, parent)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func pickStrategy(rows int) WriteStrategy {
	switch {
	case rows < singleInsertMaxRows:
		return StrategySingleInsert
	case rows <= batchedInsertMax:
		return StrategyBatchedInsert
	default:
		return StrategyChunkedCopy
	}
}

const insertSQL = `INSERT INTO transactions (description, transaction_date, amount, category_id) VALUES `

func insertSingle(ctx context.Context, tx pgx.Tx, table pipeline.FinalTable, categoryIDs []int64) error {
	var b strings.Builder
	b.WriteString(insertSQL)
	args := make([]any, 0, len(table)*4)
	for i, row := range table {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d)", i*4+1, i*4+2, i*4+3, i*4+4)
		args = append(args, row.Description, dateValue(row), row.Amount, categoryIDs[i])
	}
	if _, err := tx.Exec(ctx, b.String(), args...); err != nil {
		return classifyError("insert", fmt.Errorf("insert %d transactions: %w", len(table), err))
	}
	return nil
}

// insertBatched pipelines one statement per row so a constraint failure
// can be attributed to the row that caused it.
func insertBatched(ctx context.Context, tx pgx.Tx, table pipeline.FinalTable, categoryIDs []int64, failedRow *int) error {
	batch := &pgx.Batch{}
	for i, row := range table {
		batch.Queue(insertSQL+"($1, $2, $3, $4)",
			row.Description, dateValue(row), row.Amount, categoryIDs[i])
	}
	results := tx.SendBatch(ctx, batch)
	defer results.Close()
	for i := range table {
		if _, err := results.Exec(); err != nil {
			cerr := classifyError("batched insert", fmt.Errorf("insert row %d: %w", i, err))
			var ce *ConstraintError
			if errors.As(cerr, &ce) {
				ce.Row = i
				*failedRow = i
			}
			return cerr
		}
	}
	return nil
}

func dateValue(row pipeline.FinalRow) time.Time {
	return time.Date(row.Date.Year, row.Date.Month, row.Date.Day, 0, 0, 0, 0, time.UTC)
}
