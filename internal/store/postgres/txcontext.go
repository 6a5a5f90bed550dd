package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxState tracks the lifecycle of a TransactionContext.
type TxState string

const (
	TxBegun      TxState = "begun"
	TxCommitted  TxState = "committed"
	TxRolledBack TxState = "rolled_back"
)

// ErrTxDone is returned when a completed transaction context is used again.
// A context is single-use: Begun moves to exactly one of Committed or
// RolledBack and stays there.
var ErrTxDone = errors.New("postgres: transaction already completed")

// TransactionContext wraps one pgx transaction with an explicit state
// machine so double commits and commit-after-rollback are programming
// errors instead of silent pgx behavior.
type TransactionContext struct {
	tx    pgx.Tx
	state TxState
}

// Begin opens a transaction on db and returns its context in the Begun
// state. Begin failures are classified as connectivity errors.
func Begin(ctx context.Context, db Beginner) (*TransactionContext, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, classifyError("begin", fmt.Errorf("begin transaction: %w", err))
	}
	return &TransactionContext{tx: tx, state: TxBegun}, nil
}

// Tx exposes the underlying transaction for query execution. Callers must
// not commit or roll back through it directly.
func (t *TransactionContext) Tx() pgx.Tx { return t.tx }

// State returns the current lifecycle state.
func (t *TransactionContext) State() TxState { return t.state }

// Commit finishes the transaction. On commit failure the state moves to
// RolledBack, matching what the server actually did.
func (t *TransactionContext) Commit(ctx context.Context) error {
	if t.state != TxBegun {
		return ErrTxDone
	}
	if err := t.tx.Commit(ctx); err != nil {
		t.state = TxRolledBack
		return classifyError("commit", fmt.Errorf("commit transaction: %w", err))
	}
	t.state = TxCommitted
	return nil
}

// Rollback aborts the transaction. Rolling back an already-completed
// context is a no-op so it is safe in defer.
func (t *TransactionContext) Rollback(ctx context.Context) error {
	if t.state != TxBegun {
		return nil
	}
	t.state = TxRolledBack
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return classifyError("rollback", fmt.Errorf("rollback transaction: %w", err))
	}
	return nil
}
