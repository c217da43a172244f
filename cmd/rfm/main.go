/*
main.go - Batch entry point for the RFM segmentation pipeline

PURPOSE:
  Reads the transaction export, rebuilds the entity tables, computes the
  RFM segmentation and writes the result file.

SEQUENCE:
  1. Load configuration (.env + environment, flags override)
  2. Read the export (ISO-8859-1 CSV)
  3. Open the store (sqlite3 or postgres), released on exit
  4. Run the pipeline phases
  5. Project rfm_segmentation and export it (.csv or .xlsx)

COMMAND-LINE FLAGS:
  -input   Transaction export (default: $RFM_INPUT or online_retail.csv)
  -output  Result file (default: $RFM_OUTPUT or rfm_results.csv)
  -strict  Abort on the first malformed row

EXAMPLES:
  # SQLite file database
  DB_PATH=./rfm.db ./rfm -input online_retail.csv

  # PostgreSQL, spreadsheet output
  DB_DRIVER=postgres DB_HOST=localhost DB_NAME=retail ./rfm -output out/rfm.xlsx

EXIT CODES:
  0 success, 1 any failure (config, read, store, pipeline, export)
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/warp/retail-rfm/config"
	"github.com/warp/retail-rfm/export"
	"github.com/warp/retail-rfm/pipeline"
	"github.com/warp/retail-rfm/rfm"
	"github.com/warp/retail-rfm/source"
	"github.com/warp/retail-rfm/store/sqlstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	input := flag.String("input", cfg.Pipeline.Input, "Transaction export (CSV)")
	output := flag.String("output", cfg.Pipeline.Output, "Result file (.csv or .xlsx)")
	strict := flag.Bool("strict", cfg.Pipeline.Strict, "Abort on the first malformed row")
	flag.Parse()

	logger := config.NewLogger(cfg.Logging)
	log := logger.WithField("component", "rfm")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	raw, err := source.ReadFile(*input, source.Options{Strict: *strict})
	if err != nil {
		log.WithError(err).WithField("path", *input).Error("failed to read input")
		os.Exit(1)
	}
	log.WithField("rows", len(raw.Rows)).Info("input read")

	store, err := sqlstore.Open(ctx, cfg.DB.StoreOptions())
	if err != nil {
		log.WithError(err).WithField("target", cfg.DB.Target()).Error("failed to open store")
		os.Exit(1)
	}
	log.WithField("driver", cfg.DB.Driver).WithField("target", cfg.DB.Target()).Info("connected")

	code := run(ctx, store, raw, *input, *output, *strict, log)
	if err := store.Close(); err != nil {
		log.WithError(err).Warn("closing store failed")
	}
	os.Exit(code)
}

func run(ctx context.Context, store *sqlstore.Store, raw source.Result,
	input, output string, strict bool, logger logrus.FieldLogger) int {
	p := pipeline.New(store, store, logger)
	p.Strict = strict

	res, err := p.Run(ctx, pipeline.Input{Source: input, Rows: raw.Rows, ParseErrors: raw.Errors})
	if err != nil {
		return 1
	}

	rows, err := rfm.ReadResults(ctx, store)
	if err != nil {
		logger.WithError(err).Error("failed to read results")
		return 1
	}
	if err := export.ToFile(output, rows); err != nil {
		logger.WithError(err).WithField("path", output).Error("export failed")
		return 1
	}

	logger.WithFields(logrus.Fields{
		"run_id": res.Run.ID,
		"rows":   len(rows),
		"path":   output,
	}).Info("rfm results exported")
	return 0
}
