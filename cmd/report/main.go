package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/statement-pipeline/internal/config"
	bqexport "github.com/dvloznov/statement-pipeline/internal/export/bigquery"
	"github.com/dvloznov/statement-pipeline/internal/logger"
)

var (
	from = flag.String("from", "", "start date, YYYY-MM-DD (required)")
	to   = flag.String("to", "", "end date, YYYY-MM-DD (required)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if !cfg.Export.Enabled {
		log.Fatal().Msg("Error: analytics export is not configured")
	}
	fromDate, err := civil.ParseDate(*from)
	if err != nil {
		log.Fatal().Err(err).Msg("Error: --from must be YYYY-MM-DD")
	}
	toDate, err := civil.ParseDate(*to)
	if err != nil {
		log.Fatal().Err(err).Msg("Error: --to must be YYYY-MM-DD")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	exporter, err := bqexport.NewExporter(ctx,
		cfg.Export.ProjectID, cfg.Export.Dataset, cfg.Export.Table, cfg.Export.CredentialsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create exporter")
	}
	defer exporter.Close()

	totals, err := exporter.TotalsByCategory(ctx, fromDate, toDate)
	if err != nil {
		log.Fatal().Err(err).Msg("totals query failed")
	}
	fmt.Print(formatTotals(totals))
}

func formatTotals(totals []bqexport.CategoryTotal) string {
	if len(totals) == 0 {
		return "no transactions in range\n"
	}
	var b strings.Builder
	for _, t := range totals {
		fmt.Fprintf(&b, "%-30s %12s\n", t.CategoryName, bqexport.Decimal(t.Total).StringFixed(2))
	}
	return b.String()
}
