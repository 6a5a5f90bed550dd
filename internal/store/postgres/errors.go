package postgres

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ConstraintKind names the integrity constraint class that rejected a write.
type ConstraintKind string

const (
	ConstraintNotNull    ConstraintKind = "not_null"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintUnique     ConstraintKind = "unique"
)

// ConstraintError marks a write rejected by the database's integrity rules.
// Retrying the same payload can only fail the same way, so it is never
// retryable; the payload has to change first.
type ConstraintError struct {
	Kind       ConstraintKind
	Constraint string
	// Row is the batch-relative index of the offending row, -1 when the
	// failure cannot be attributed to one row.
	Row int
	Err error
}

func (e *ConstraintError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("constraint violation (%s, %s) on row %d: %v", e.Kind, e.Constraint, e.Row, e.Err)
	}
	return fmt.Sprintf("constraint violation (%s, %s): %v", e.Kind, e.Constraint, e.Err)
}

func (e *ConstraintError) Unwrap() error   { return e.Err }
func (e *ConstraintError) Retryable() bool { return false }

// ConnectivityError marks a transient infrastructure failure: unreachable
// server, dropped connection, lock or statement timeout, shutdown. Callers
// may retry the whole operation; the coordinator itself never does.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("database connectivity failure during %s: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error   { return e.Err }
func (e *ConnectivityError) Retryable() bool { return true }

// classifyError maps a raw pgx error to the store's taxonomy. Errors that
// fit neither class pass through unchanged.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23502":
			return &ConstraintError{Kind: ConstraintNotNull, Constraint: pgErr.ColumnName, Row: -1, Err: err}
		case "23503":
			return &ConstraintError{Kind: ConstraintForeignKey, Constraint: pgErr.ConstraintName, Row: -1, Err: err}
		case "23505":
			return &ConstraintError{Kind: ConstraintUnique, Constraint: pgErr.ConstraintName, Row: -1, Err: err}
		}
		// Class 08: connection exceptions. 55P03 lock timeout, 57014 query
		// canceled, 57P01 admin shutdown: all transient from our side.
		if strings.HasPrefix(pgErr.Code, "08") ||
			pgErr.Code == "55P03" || pgErr.Code == "57014" || pgErr.Code == "57P01" {
			return &ConnectivityError{Op: op, Err: err}
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &ConnectivityError{Op: op, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &ConnectivityError{Op: op, Err: err}
	}
	return err
}
