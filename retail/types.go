/*
Package retail provides the normalized entity model for a retail transaction export.

PURPOSE:
  Raw transaction lines (one per invoice line in the export) are turned into
  four relational entities: customers, products, invoices and invoice items.
  Everything downstream (entity store, RFM engine) works on these types.

KEY CONCEPTS IN THIS FILE (types.go):
  - RawRow: One line of the export, with nullable customer and description
  - Customer/Product/Invoice/InvoiceItem: Normalized entity rows
  - InvoiceLine: Flattened join used by the RFM engine

DESIGN PRINCIPLES:
  1. Precision: Prices and totals use decimal.Decimal
  2. First write wins: Entities are never updated once stored
  3. No implicit validation: Negative quantities and prices pass through

SEE ALSO:
  - normalize.go: RawRow -> Normalized
  - store.go: EntityStore contract
  - errors.go: Parse/referential/connectivity errors
*/
package retail

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RAW INPUT
// =============================================================================

// RawRow is a single typed record from the transaction export.
// InvoiceDate is kept as text; parsing happens during normalization.
// Line is the 1-based position in the source, used in error reports.
type RawRow struct {
	Line        int
	InvoiceNo   string
	StockCode   string
	Description *string
	Quantity    int64
	InvoiceDate string
	UnitPrice   decimal.Decimal
	CustomerID  *int64
	Country     string
}

// =============================================================================
// ENTITIES
// =============================================================================

type Customer struct {
	CustomerID int64
	Country    string
}

type Product struct {
	StockCode   string
	Description string
	UnitPrice   decimal.Decimal
}

type Invoice struct {
	InvoiceNo   string
	InvoiceDate time.Time
	CustomerID  int64
}

// InvoiceItem has no key of its own. Every surviving raw row becomes one item.
type InvoiceItem struct {
	InvoiceNo string
	StockCode string
	Quantity  int64
}

// InvoiceLine is one row of the customer/invoice/item/product join.
type InvoiceLine struct {
	CustomerID  int64
	InvoiceNo   string
	InvoiceDate time.Time
	Quantity    int64
	UnitPrice   decimal.Decimal
}

// Total returns quantity × unit price.
func (l InvoiceLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// Counts holds row counts per persisted table.
type Counts struct {
	Customers    int `json:"customers"`
	Products     int `json:"products"`
	Invoices     int `json:"invoices"`
	InvoiceItems int `json:"invoice_items"`
	Segments     int `json:"segments"`
}
