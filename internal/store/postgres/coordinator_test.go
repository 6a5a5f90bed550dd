package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-pipeline/internal/pipeline"
)

func makeTable(n int) pipeline.FinalTable {
	table := make(pipeline.FinalTable, n)
	for i := range table {
		table[i] = pipeline.FinalRow{
			Description: fmt.Sprintf("TX %d", i),
			Date:        civil.Date{Year: 2024, Month: 1, Day: 15},
			Amount:      decimal.New(-450, -2),
			Category:    "Dining",
			SubCategory: "Coffee",
		}
	}
	return table
}

func TestPickStrategy(t *testing.T) {
	tests := []struct {
		rows int
		want WriteStrategy
	}{
		{1, StrategySingleInsert},
		{99, StrategySingleInsert},
		{100, StrategyBatchedInsert},
		{1000, StrategyBatchedInsert},
		{1001, StrategyChunkedCopy},
		{5000, StrategyChunkedCopy},
	}
	for _, tt := range tests {
		if got := pickStrategy(tt.rows); got != tt.want {
			t.Errorf("pickStrategy(%d) = %q, want %q", tt.rows, got, tt.want)
		}
	}
}

func TestSaveBatch_SingleInsert(t *testing.T) {
	tx := &fakeTx{}
	c := NewCoordinator(&fakeDB{tx: tx}, zerolog.Nop())

	res, err := c.SaveBatch(context.Background(), makeTable(3))
	if err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}
	if res.Outcome != BatchCommitted || res.Strategy != StrategySingleInsert || res.RowsWritten != 3 {
		t.Errorf("result = %+v", res)
	}
	if !tx.committedOnce() {
		t.Errorf("commits = %d, want 1", tx.commits)
	}
	if len(tx.execSQL) != 1 {
		t.Fatalf("Exec calls = %d, want 1 multi-row insert", len(tx.execSQL))
	}
	if !strings.Contains(tx.execSQL[0], "($9, $10, $11, $12)") {
		t.Errorf("insert SQL missing third row placeholders: %s", tx.execSQL[0])
	}
}

func TestSaveBatch_BatchedInsert(t *testing.T) {
	tx := &fakeTx{}
	c := NewCoordinator(&fakeDB{tx: tx}, zerolog.Nop())

	res, err := c.SaveBatch(context.Background(), makeTable(150))
	if err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}
	if res.Strategy != StrategyBatchedInsert || res.RowsWritten != 150 {
		t.Errorf("result = %+v", res)
	}
	if tx.batchLen != 150 {
		t.Errorf("batch length = %d, want 150", tx.batchLen)
	}
	if !tx.committedOnce() {
		t.Errorf("commits = %d, want 1", tx.commits)
	}
}

func TestSaveBatch_BatchedInsertNamesFailedRow(t *testing.T) {
	// Constraint violation on row 42 of a medium batch: whole transaction
	// rolls back, nothing persists, and the error names the row.
	tx := &fakeTx{
		batchErr:    &pgconn.PgError{Code: "23503", ConstraintName: "transactions_category_id_fkey"},
		batchFailAt: 42,
	}
	c := NewCoordinator(&fakeDB{tx: tx}, zerolog.Nop())

	res, err := c.SaveBatch(context.Background(), makeTable(150))
	var ce *ConstraintError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want ConstraintError", err)
	}
	if ce.Row != 42 || ce.Kind != ConstraintForeignKey {
		t.Errorf("ConstraintError = %+v", ce)
	}
	if res.Outcome != BatchRolledBack || res.RowsWritten != 0 || res.FailedRow != 42 {
		t.Errorf("result = %+v", res)
	}
	if tx.commits != 0 || tx.rollbacks == 0 {
		t.Errorf("commits = %d, rollbacks = %d", tx.commits, tx.rollbacks)
	}
}

func TestSaveBatch_ChunkedCopy(t *testing.T) {
	tx := &fakeTx{}
	db := &fakeDB{tx: tx}
	c := NewCoordinator(db, zerolog.Nop())

	res, err := c.SaveBatch(context.Background(), makeTable(1100))
	if err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}
	if res.Outcome != BatchCommitted || res.Strategy != StrategyChunkedCopy || res.RowsWritten != 1100 {
		t.Errorf("result = %+v", res)
	}
	want := []int{500, 500, 100}
	if len(tx.copyCalls) != len(want) {
		t.Fatalf("copy chunks = %v, want %v", tx.copyCalls, want)
	}
	for i := range want {
		if tx.copyCalls[i] != want[i] {
			t.Errorf("chunk %d = %d rows, want %d", i, tx.copyCalls[i], want[i])
		}
	}
	// Each chunk is its own transaction.
	if db.begins != 3 || tx.commits != 3 {
		t.Errorf("begins = %d, commits = %d, want 3 each", db.begins, tx.commits)
	}
	for i, ch := range res.Chunks {
		if !ch.Committed || ch.Err != nil || ch.Index != i {
			t.Errorf("chunk outcome %d = %+v", i, ch)
		}
	}
}

func TestSaveBatch_ChunkFailureDoesNotUnwindPriorChunks(t *testing.T) {
	tx := &fakeTx{
		copyErr:       &pgconn.PgError{Code: "23502", ColumnName: "description"},
		copyFailCalls: map[int]bool{1: true},
	}
	db := &fakeDB{tx: tx}
	c := NewCoordinator(db, zerolog.Nop())

	res, err := c.SaveBatch(context.Background(), makeTable(1100))
	var ce *ConstraintError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want ConstraintError", err)
	}
	if res.Outcome != BatchPartiallyCommitted {
		t.Errorf("Outcome = %q, want partially committed", res.Outcome)
	}
	if res.RowsWritten != 600 {
		t.Errorf("RowsWritten = %d, want 600 (chunks 0 and 2)", res.RowsWritten)
	}
	if len(res.Chunks) != 3 {
		t.Fatalf("chunk outcomes = %d, want 3 (all chunks attempted)", len(res.Chunks))
	}
	if res.Chunks[0].Committed != true || res.Chunks[1].Committed != false || res.Chunks[2].Committed != true {
		t.Errorf("chunk outcomes = %+v", res.Chunks)
	}
	if tx.commits != 2 {
		t.Errorf("commits = %d, want 2", tx.commits)
	}
}

func TestSaveBatch_ConstraintRollsBack(t *testing.T) {
	tx := &fakeTx{execErr: &pgconn.PgError{Code: "23502", ColumnName: "description"}}
	c := NewCoordinator(&fakeDB{tx: tx}, zerolog.Nop())

	res, err := c.SaveBatch(context.Background(), makeTable(3))
	var ce *ConstraintError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want ConstraintError", err)
	}
	if ce.Retryable() {
		t.Error("constraint failures must not be retryable")
	}
	if res.Outcome != BatchRolledBack || res.RowsWritten != 0 {
		t.Errorf("result = %+v", res)
	}
	if tx.rollbacks == 0 || tx.commits != 0 {
		t.Errorf("rollbacks = %d, commits = %d", tx.rollbacks, tx.commits)
	}
}

func TestSaveBatch_ConnectivityIsRetryable(t *testing.T) {
	tx := &fakeTx{copyErr: &pgconn.PgError{Code: "08006"}}
	c := NewCoordinator(&fakeDB{tx: tx}, zerolog.Nop())

	res, err := c.SaveBatch(context.Background(), makeTable(2000))
	var ce *ConnectivityError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want ConnectivityError", err)
	}
	if !ce.Retryable() {
		t.Error("connectivity failures must be retryable by the caller")
	}
	if res.Outcome != BatchRolledBack || res.RowsWritten != 0 {
		t.Errorf("result = %+v", res)
	}
	if tx.commits != 0 {
		t.Error("no chunk may commit when every copy fails")
	}
}

func TestSaveBatch_CategoryResolutionFailureRollsBack(t *testing.T) {
	tx := &fakeTx{queryErr: &pgconn.PgError{Code: "23505", ConstraintName: "categories_name_parent_id_key"}}
	c := NewCoordinator(&fakeDB{tx: tx}, zerolog.Nop())

	_, err := c.SaveBatch(context.Background(), makeTable(3))
	var ce *ConstraintError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want ConstraintError", err)
	}
	if tx.rollbacks == 0 {
		t.Error("failed resolution must roll back the transaction")
	}
	if len(tx.execSQL) != 0 {
		t.Error("no inserts may run after resolution fails")
	}
}

func TestSaveBatch_EmptyTable(t *testing.T) {
	c := NewCoordinator(&fakeDB{tx: &fakeTx{}}, zerolog.Nop())
	if _, err := c.SaveBatch(context.Background(), nil); err == nil {
		t.Error("Expected error for empty table")
	}
}

func TestSaveBatch_BeginFailure(t *testing.T) {
	c := NewCoordinator(&fakeDB{beginErr: &pgconn.PgError{Code: "08001"}}, zerolog.Nop())

	res, err := c.SaveBatch(context.Background(), makeTable(3))
	var ce *ConnectivityError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want ConnectivityError", err)
	}
	if res.Outcome != BatchRolledBack {
		t.Errorf("Outcome = %q, want rolled back", res.Outcome)
	}
}
