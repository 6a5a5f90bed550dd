package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeRow satisfies pgx.Row for resolver queries.
type fakeRow struct {
	scanFn func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scanFn(dest...) }

// fakeBatchResults satisfies pgx.BatchResults, failing after failAt Execs
// when failAt >= 0.
type fakeBatchResults struct {
	execs  int
	failAt int
	err    error
}

func (b *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	if b.failAt >= 0 && b.execs == b.failAt {
		return pgconn.CommandTag{}, b.err
	}
	b.execs++
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (b *fakeBatchResults) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }
func (b *fakeBatchResults) QueryRow() pgx.Row {
	return fakeRow{scanFn: func(dest ...any) error { return errors.New("not implemented") }}
}
func (b *fakeBatchResults) Close() error { return nil }

// fakeTx embeds the pgx.Tx interface so only the methods the coordinator
// exercises need implementations; anything else panics loudly.
type fakeTx struct {
	pgx.Tx

	execSQL   []string
	execErr   error
	queryRows int64
	queryErr  error

	batchLen    int
	batchErr    error
	batchFailAt int

	copyCalls []int
	copyErr   error
	// copyFailCalls limits copyErr to the named CopyFrom invocations
	// (0-based); nil fails every call.
	copyFailCalls map[int]bool

	commits   int
	rollbacks int
	commitErr error
}

func (t *fakeTx) committedOnce() bool { return t.commits == 1 }

func (t *fakeTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	t.execSQL = append(t.execSQL, sql)
	if t.execErr != nil {
		return pgconn.CommandTag{}, t.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return fakeRow{scanFn: func(dest ...any) error {
		if t.queryErr != nil {
			return t.queryErr
		}
		t.queryRows++
		if id, ok := dest[0].(*int64); ok {
			*id = t.queryRows
			return nil
		}
		return errors.New("unexpected scan destination")
	}}
}

func (t *fakeTx) SendBatch(ctx context.Context, batch *pgx.Batch) pgx.BatchResults {
	t.batchLen = batch.Len()
	failAt := -1
	if t.batchErr != nil {
		failAt = t.batchFailAt
	}
	return &fakeBatchResults{failAt: failAt, err: t.batchErr}
}

func (t *fakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	call := len(t.copyCalls)
	var n int64
	for rowSrc.Next() {
		n++
	}
	t.copyCalls = append(t.copyCalls, int(n))
	if t.copyErr != nil && (t.copyFailCalls == nil || t.copyFailCalls[call]) {
		return 0, t.copyErr
	}
	return n, nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.commits++
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rollbacks++
	return nil
}

// fakeDB hands out the same fakeTx for every Begin so tests can observe
// all activity on one recorder.
type fakeDB struct {
	tx       *fakeTx
	begins   int
	beginErr error
}

func (d *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	d.begins++
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	return d.tx, nil
}
