package rfm

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/retail-rfm/retail"
)

// Record is one customer's RFM result. Buckets are kept for inspection;
// only scores are persisted.
type Record struct {
	CustomerID int64
	Recency    int
	Frequency  int
	Monetary   decimal.Decimal

	RBucket int
	FBucket int
	MBucket int

	RScore   int
	FScore   int
	MScore   int
	RFMScore string
	Segment  Segment
}

// Engine computes the segmentation. Now supplies the evaluation time.
type Engine struct {
	Now    func() time.Time
	Logger logrus.FieldLogger
}

// NewEngine returns an engine evaluated at the current time.
func NewEngine(logger logrus.FieldLogger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{Now: time.Now, Logger: logger}
}

// Compute scores every customer that appears in lines.
func (e *Engine) Compute(lines []retail.InvoiceLine) []Record {
	return ComputeAt(lines, e.now())
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

// ComputeAt scores every customer in lines against evalAt.
// Records are ordered by customer id.
func ComputeAt(lines []retail.InvoiceLine, evalAt time.Time) []Record {
	metrics := Aggregate(lines, evalAt)

	rBuckets := rank(metrics, recencyAsc)
	fBuckets := rank(metrics, frequencyDesc)
	mBuckets := rank(metrics, monetaryDesc)

	records := make([]Record, len(metrics))
	for i, m := range metrics {
		r, f, mon := Score(rBuckets[i]), Score(fBuckets[i]), Score(mBuckets[i])
		records[i] = Record{
			CustomerID: m.CustomerID,
			Recency:    m.Recency,
			Frequency:  m.Frequency,
			Monetary:   m.Monetary,
			RBucket:    rBuckets[i],
			FBucket:    fBuckets[i],
			MBucket:    mBuckets[i],
			RScore:     r,
			FScore:     f,
			MScore:     mon,
			RFMScore:   ComposeScore(r, f, mon),
			Segment:    Classify(r, f, mon),
		}
	}
	return records
}

// Run reads the join from the store, computes the segmentation and replaces
// the derived table in one step.
func (e *Engine) Run(ctx context.Context, store retail.SegmentationStore) ([]Record, error) {
	start := time.Now()

	lines, err := store.InvoiceLines(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice lines: %w", err)
	}

	records := e.Compute(lines)
	if err := store.ReplaceSegmentation(ctx, ToSegmentation(records)); err != nil {
		return nil, fmt.Errorf("failed to replace segmentation: %w", err)
	}

	e.Logger.WithFields(logrus.Fields{
		"lines":     len(lines),
		"customers": len(records),
		"duration":  time.Since(start).String(),
	}).Info("rfm segmentation computed")

	return records, nil
}

// ToSegmentation converts records to persisted rows.
func ToSegmentation(records []Record) []retail.Segmentation {
	rows := make([]retail.Segmentation, len(records))
	for i, r := range records {
		rows[i] = retail.Segmentation{
			CustomerID: r.CustomerID,
			Recency:    r.Recency,
			Frequency:  r.Frequency,
			Monetary:   r.Monetary,
			RScore:     r.RScore,
			FScore:     r.FScore,
			MScore:     r.MScore,
			RFMScore:   r.RFMScore,
			Segment:    string(r.Segment),
		}
	}
	return rows
}

// SegmentSummary aggregates the segmentation per segment.
type SegmentSummary struct {
	Segment   Segment         `json:"segment"`
	Customers int             `json:"customers"`
	Monetary  decimal.Decimal `json:"monetary"`
}

// Summarize returns one entry per segment in rule order, including empty ones.
func Summarize(rows []retail.Segmentation) []SegmentSummary {
	idx := make(map[Segment]int, len(Segments))
	summary := make([]SegmentSummary, len(Segments))
	for i, s := range Segments {
		idx[s] = i
		summary[i] = SegmentSummary{Segment: s, Monetary: decimal.Zero}
	}
	for _, r := range rows {
		i, ok := idx[Segment(r.Segment)]
		if !ok {
			continue
		}
		summary[i].Customers++
		summary[i].Monetary = summary[i].Monetary.Add(r.Monetary)
	}
	return summary
}
