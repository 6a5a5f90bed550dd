package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-pipeline/internal/config"
	bqexport "github.com/dvloznov/statement-pipeline/internal/export/bigquery"
	"github.com/dvloznov/statement-pipeline/internal/frame"
	"github.com/dvloznov/statement-pipeline/internal/inference"
	"github.com/dvloznov/statement-pipeline/internal/logger"
	"github.com/dvloznov/statement-pipeline/internal/pipeline"
	"github.com/dvloznov/statement-pipeline/internal/source"
	"github.com/dvloznov/statement-pipeline/internal/store/postgres"
)

var (
	input     = flag.String("input", "", "statement CSV: local path or gs://bucket/object (required)")
	ruleBased = flag.Bool("rule-based", false, "use the offline rule-based processor instead of the model")
	dryRun    = flag.Bool("dry-run", false, "process the statement but skip persistence")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if *input == "" {
		log.Fatal().Msg("Error: --input is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("ingestion failed")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	data, err := source.Fetch(ctx, *input)
	if err != nil {
		return err
	}
	raw, err := frame.FromCSVBytes(data)
	if err != nil {
		return err
	}
	log.Info().Str("input", *input).Int("rows", raw.Len()).Msg("statement loaded")

	pool, err := postgres.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	processor, err := buildProcessor(ctx, cfg, pool, log)
	if err != nil {
		return err
	}

	result, err := processor.Process(ctx, raw, func(fraction float64, message string) {
		log.Info().Int("percent", int(fraction*100)).Msg(message)
	})
	if err != nil {
		return err
	}

	if *dryRun {
		log.Info().Msg("dry run, skipping persistence")
		printReport(result, nil)
		return nil
	}

	coordinator := postgres.NewCoordinator(pool, log)
	saved, err := coordinator.SaveBatch(ctx, result.Table)
	if err != nil {
		return err
	}

	if cfg.Export.Enabled {
		if err := exportBatch(ctx, cfg, result.Table, log); err != nil {
			// The primary write is committed; the export can be replayed.
			log.Error().Err(err).Msg("analytics export failed")
		}
	}

	printReport(result, saved)
	return nil
}

func buildProcessor(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, log zerolog.Logger) (pipeline.Processor, error) {
	if *ruleBased {
		return pipeline.Guarded(pipeline.NewRuleBasedProcessor(log)), nil
	}
	client, err := inference.New(ctx, cfg.Inference.Model, cfg.Inference.Timeout)
	if err != nil {
		return nil, err
	}
	hierarchy := postgres.NewHierarchyReader(pool, cfg.Pipeline.HierarchyCacheTTL)
	ai := pipeline.NewAIProcessor(client, hierarchy, pipeline.AIProcessorConfig{
		Sample: pipeline.SampleSpec{
			Head:   cfg.Pipeline.SampleHead,
			Middle: cfg.Pipeline.SampleMiddle,
			Tail:   cfg.Pipeline.SampleTail,
			Seed:   time.Now().UnixNano(),
		},
		BatchSize:  cfg.Pipeline.BatchSize,
		MaxRetries: cfg.Pipeline.MaxRetries,
	}, log)
	return pipeline.Guarded(ai), nil
}

func exportBatch(ctx context.Context, cfg *config.Config, table pipeline.FinalTable, log zerolog.Logger) error {
	exporter, err := bqexport.NewExporter(ctx,
		cfg.Export.ProjectID, cfg.Export.Dataset, cfg.Export.Table, cfg.Export.CredentialsFile)
	if err != nil {
		return err
	}
	defer exporter.Close()

	runID, err := exporter.Export(ctx, table)
	if err != nil {
		return err
	}
	log.Info().Str("export_run_id", runID).Int("rows", len(table)).Msg("analytics export complete")
	return nil
}

func printReport(result *pipeline.Result, saved *postgres.OperationResult) {
	fmt.Printf("%d of %d rows processed, %d defaulted, %d dropped\n",
		result.RowsOut, result.RowsIn, result.Defaulted, result.Dropped)
	if saved != nil {
		fmt.Printf("%d rows written (%s, %s)\n", saved.RowsWritten, saved.Strategy, saved.Outcome)
	}
}
