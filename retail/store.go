/*
store.go - Persistence contract for normalized entities and the derived segmentation

PURPOSE:
  Defines the interface between the pipeline and the relational store.
  Implementations: store/sqlstore (sqlite3, postgres) and retail/store (memory).

UPSERT CONTRACT:
  UpsertCustomer/UpsertProduct/UpsertInvoice insert a row unless its primary
  key already exists, in which case nothing happens (first write wins).
  InsertInvoiceItem always appends.

LOAD ORDER:
  Customers and products, then invoices, then invoice items. The store does
  not reorder; a reference to a key that is not stored yet is a
  ReferentialError.

BATCH LOADS:
  Load* methods apply one phase in a single transaction. Either the whole
  phase is visible or (on error) none of it is.

DERIVED TABLE:
  ReplaceSegmentation swaps the derived rfm_segmentation rows in one
  transaction, so readers never see a partial rebuild.

SEE ALSO:
  - rfm/engine.go: Reads InvoiceLines, writes the segmentation
  - pipeline/pipeline.go: Drives the phases in order
*/
package retail

import (
	"context"

	"github.com/shopspring/decimal"
)

// Segmentation is one persisted row of the derived rfm_segmentation table.
type Segmentation struct {
	CustomerID int64
	Recency    int
	Frequency  int
	Monetary   decimal.Decimal
	RScore     int
	FScore     int
	MScore     int
	RFMScore   string
	Segment    string
}

// EntityStore persists the four normalized entities.
type EntityStore interface {
	// Reset drops and recreates every table.
	Reset(ctx context.Context) error

	UpsertCustomer(ctx context.Context, c Customer) error
	UpsertProduct(ctx context.Context, p Product) error
	UpsertInvoice(ctx context.Context, inv Invoice) error
	InsertInvoiceItem(ctx context.Context, item InvoiceItem) error

	LoadCustomers(ctx context.Context, cs []Customer) error
	LoadProducts(ctx context.Context, ps []Product) error
	LoadInvoices(ctx context.Context, invs []Invoice) error
	LoadInvoiceItems(ctx context.Context, items []InvoiceItem) error

	Counts(ctx context.Context) (Counts, error)
}

// SegmentationStore is the read/write surface of the RFM engine.
type SegmentationStore interface {
	// InvoiceLines returns the customer/invoice/item/product join,
	// ordered by customer id then invoice number.
	InvoiceLines(ctx context.Context) ([]InvoiceLine, error)

	// ReplaceSegmentation atomically replaces the derived table.
	ReplaceSegmentation(ctx context.Context, rows []Segmentation) error

	// ReadSegmentation returns the derived table ordered by customer id.
	ReadSegmentation(ctx context.Context) ([]Segmentation, error)
}

// Store is everything the pipeline needs.
type Store interface {
	EntityStore
	SegmentationStore
}
