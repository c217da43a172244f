/*
Package pipeline runs the segmentation batch from raw rows to the derived table.

PHASES (strictly sequential, each committed before the next):
  1. normalize      raw rows -> four candidate sets
  2. reset          drop and recreate the entity tables
  3. customers      LoadCustomers
  4. products       LoadProducts
  5. invoices       LoadInvoices (needs customers)
  6. invoice_items  LoadInvoiceItems (needs invoices and products)
  7. rfm            compute and atomically replace rfm_segmentation

FAILURE:
  Any phase error aborts the run. Nothing is rolled back across phases;
  the next run starts from a clean slate because of the reset phase.
  A failing phase never touches rfm_segmentation, so readers keep the
  previous result until a run completes.

RUN AUDIT:
  When Runs is set, a retail.Run is saved as "running" at start and
  updated to "completed" or "failed" at the end.

SEE ALSO:
  - retail/normalize.go: Phase 1
  - rfm/engine.go: Phase 7
  - cmd/rfm/main.go: Reads the export and writes the result file
*/
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/retail-rfm/retail"
	"github.com/warp/retail-rfm/rfm"
)

// Pipeline holds the collaborators of one batch run.
type Pipeline struct {
	Store  retail.Store
	Runs   retail.RunStore // optional
	Engine *rfm.Engine
	Logger logrus.FieldLogger

	// Strict aborts on the first parse error instead of skipping the row.
	Strict bool

	// NewID generates run ids. Defaults to random UUIDs.
	NewID func() string
}

// Input is the raw side of a run.
type Input struct {
	Source string
	Rows   []retail.RawRow
	// ParseErrors are rows the reader already skipped.
	ParseErrors []*retail.ParseError
}

// Result is what a completed run produced.
type Result struct {
	Run     retail.Run
	Report  retail.NormalizeReport
	Records []rfm.Record
}

// New creates a pipeline with a fresh engine.
func New(store retail.Store, runs retail.RunStore, logger logrus.FieldLogger) *Pipeline {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pipeline{
		Store:  store,
		Runs:   runs,
		Engine: rfm.NewEngine(logger),
		Logger: logger,
	}
}

// Run executes every phase in order.
func (p *Pipeline) Run(ctx context.Context, in Input) (Result, error) {
	run := retail.Run{
		ID:        p.newID(),
		Source:    in.Source,
		Status:    retail.RunRunning,
		StartedAt: time.Now().UTC(),
	}
	log := p.Logger.WithField("run_id", run.ID)
	log.WithField("source", in.Source).Info("pipeline started")

	if err := p.saveRun(ctx, run); err != nil {
		return Result{Run: run}, err
	}

	res, err := p.run(ctx, log, in, &run)
	if err != nil {
		run.Status = retail.RunFailed
		run.Error = err.Error()
	} else {
		run.Status = retail.RunCompleted
	}
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	if counts, cerr := p.Store.Counts(ctx); cerr == nil {
		run.Counts = counts
	}
	res.Run = run

	if serr := p.saveRun(ctx, run); serr != nil && err == nil {
		err = serr
	}

	if err != nil {
		log.WithError(err).Error("pipeline failed")
		return res, err
	}
	log.WithFields(logrus.Fields{
		"customers": run.Counts.Customers,
		"invoices":  run.Counts.Invoices,
		"segments":  run.Counts.Segments,
		"duration":  finished.Sub(run.StartedAt).String(),
	}).Info("pipeline completed")
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, log logrus.FieldLogger, in Input, run *retail.Run) (Result, error) {
	var res Result

	if p.Strict && len(in.ParseErrors) > 0 {
		return res, in.ParseErrors[0]
	}

	norm, report, err := retail.Normalize(in.Rows, retail.NormalizeOptions{Strict: p.Strict})
	report.Read += len(in.ParseErrors)
	report.Skipped += len(in.ParseErrors)
	report.Errors = append(append([]*retail.ParseError(nil), in.ParseErrors...), report.Errors...)
	res.Report = report
	run.RowsRead, run.Discarded, run.Skipped = report.Read, report.Discarded, report.Skipped
	if err != nil {
		return res, fmt.Errorf("normalize: %w", err)
	}
	for _, perr := range report.Errors {
		log.WithFields(logrus.Fields{"row": perr.Row, "field": perr.Field}).Warn(perr.Error())
	}
	log.WithFields(logrus.Fields{
		"read":      report.Read,
		"discarded": report.Discarded,
		"skipped":   report.Skipped,
		"revenue":   report.Revenue.String(),
	}).Info("rows normalized")

	phases := []struct {
		name string
		n    int
		fn   func(context.Context) error
	}{
		{"reset", 0, p.Store.Reset},
		{"customers", len(norm.Customers), func(ctx context.Context) error { return p.Store.LoadCustomers(ctx, norm.Customers) }},
		{"products", len(norm.Products), func(ctx context.Context) error { return p.Store.LoadProducts(ctx, norm.Products) }},
		{"invoices", len(norm.Invoices), func(ctx context.Context) error { return p.Store.LoadInvoices(ctx, norm.Invoices) }},
		{"invoice_items", len(norm.InvoiceItems), func(ctx context.Context) error { return p.Store.LoadInvoiceItems(ctx, norm.InvoiceItems) }},
	}
	for _, ph := range phases {
		start := time.Now()
		if err := ph.fn(ctx); err != nil {
			return res, fmt.Errorf("%s: %w", ph.name, err)
		}
		log.WithFields(logrus.Fields{
			"phase":    ph.name,
			"rows":     ph.n,
			"duration": time.Since(start).String(),
		}).Info("phase complete")
	}

	records, err := p.Engine.Run(ctx, p.Store)
	if err != nil {
		return res, fmt.Errorf("rfm: %w", err)
	}
	res.Records = records
	return res, nil
}

func (p *Pipeline) saveRun(ctx context.Context, run retail.Run) error {
	if p.Runs == nil {
		return nil
	}
	if err := p.Runs.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (p *Pipeline) newID() string {
	if p.NewID != nil {
		return p.NewID()
	}
	return uuid.NewString()
}
