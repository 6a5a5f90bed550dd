// Package bigquery streams committed transactions into BigQuery for
// analytics. The export runs after the PostgreSQL commit and is best
// effort: a failed export never rolls back the primary write.
package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/dvloznov/statement-pipeline/internal/pipeline"
)

// TransactionRow is the analytics shape of one committed transaction.
type TransactionRow struct {
	TransactionID   string              `bigquery:"transaction_id"`
	ExportRunID     string              `bigquery:"export_run_id"`
	TransactionDate civil.Date          `bigquery:"transaction_date"`
	Description     string              `bigquery:"description"`
	Amount          *big.Rat            `bigquery:"amount"`
	CategoryName    string              `bigquery:"category_name"`
	SubcategoryName bigquery.NullString `bigquery:"subcategory_name"`
	ExportedTS      time.Time           `bigquery:"exported_ts"`
}

// Exporter writes to one dataset.table via the streaming inserter.
type Exporter struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// NewExporter builds a client for the project. An empty credentialsFile
// falls back to application default credentials.
func NewExporter(ctx context.Context, projectID, dataset, table, credentialsFile string) (*Exporter, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery: create client: %w", err)
	}
	return &Exporter{client: client, dataset: dataset, table: table}, nil
}

func (e *Exporter) Close() error { return e.client.Close() }

// Export streams the table under a fresh run id, which it returns so the
// caller can log or reconcile the export later.
func (e *Exporter) Export(ctx context.Context, table pipeline.FinalTable) (string, error) {
	if len(table) == 0 {
		return "", nil
	}
	runID := uuid.NewString()
	now := time.Now().UTC()

	rows := make([]*TransactionRow, len(table))
	for i, r := range table {
		rows[i] = &TransactionRow{
			TransactionID:   uuid.NewString(),
			ExportRunID:     runID,
			TransactionDate: r.Date,
			Description:     r.Description,
			Amount:          r.Amount.Rat(),
			CategoryName:    r.Category,
			SubcategoryName: bigquery.NullString{StringVal: r.SubCategory, Valid: r.SubCategory != ""},
			ExportedTS:      now,
		}
	}

	inserter := e.client.Dataset(e.dataset).Table(e.table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return "", fmt.Errorf("bigquery: insert %d rows: %w", len(rows), err)
	}
	return runID, nil
}

// CategoryTotal is one aggregation row from TotalsByCategory.
type CategoryTotal struct {
	CategoryName string   `bigquery:"category_name"`
	Total        *big.Rat `bigquery:"total"`
}

// TotalsByCategory sums exported amounts per category over a date range.
func (e *Exporter) TotalsByCategory(ctx context.Context, from, to civil.Date) ([]CategoryTotal, error) {
	q := e.client.Query(fmt.Sprintf(`
		SELECT category_name, SUM(amount) AS total
		FROM %s.%s
		WHERE transaction_date BETWEEN @from AND @to
		GROUP BY category_name
		ORDER BY total`, e.dataset, e.table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "from", Value: from},
		{Name: "to", Value: to},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("bigquery: totals query: %w", err)
	}
	var out []CategoryTotal
	for {
		var row CategoryTotal
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bigquery: read totals row: %w", err)
		}
		out = append(out, row)
	}
	return out, nil
}

// Decimal converts a BigQuery NUMERIC value back to decimal for display.
func Decimal(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Decimal{}
	}
	return decimal.NewFromBigRat(r, 2)
}
