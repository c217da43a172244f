package retail

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceDateLayouts are tried in order when parsing InvoiceDate.
// The first one is the layout of the public online retail export.
var InvoiceDateLayouts = []string{
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02",
}

// NormalizeOptions controls the parse error policy.
// With Strict unset a row with a bad date is skipped and recorded in the
// report; with Strict set the first bad row aborts normalization.
type NormalizeOptions struct {
	Strict bool
}

// Normalized holds the four candidate sets in first-appearance order.
type Normalized struct {
	Customers    []Customer
	Products     []Product
	Invoices     []Invoice
	InvoiceItems []InvoiceItem
}

// NormalizeReport summarizes one normalization pass.
type NormalizeReport struct {
	Read      int
	Discarded int // missing customer id or description
	Skipped   int // parse errors
	Errors    []*ParseError
	// Revenue is the sum of line totals over surviving rows.
	Revenue decimal.Decimal
}

// Normalize turns raw rows into deduplicated entity rows.
func Normalize(rows []RawRow, opts NormalizeOptions) (Normalized, NormalizeReport, error) {
	var (
		out    Normalized
		report = NormalizeReport{Read: len(rows), Revenue: decimal.Zero}

		seenCustomers = make(map[Customer]struct{})
		seenProducts  = make(map[string]struct{})
		seenInvoices  = make(map[invoiceKey]struct{})
	)

	for i, row := range rows {
		if row.CustomerID == nil || row.Description == nil {
			report.Discarded++
			continue
		}

		line := row.Line
		if line == 0 {
			line = i + 1
		}
		date, err := ParseInvoiceDate(row.InvoiceDate)
		if err != nil {
			perr := &ParseError{Row: line, Field: "InvoiceDate", Value: row.InvoiceDate, Err: err}
			if opts.Strict {
				return Normalized{}, report, perr
			}
			report.Skipped++
			report.Errors = append(report.Errors, perr)
			continue
		}

		report.Revenue = report.Revenue.Add(LineTotal(row.Quantity, row.UnitPrice))

		c := Customer{CustomerID: *row.CustomerID, Country: row.Country}
		if _, ok := seenCustomers[c]; !ok {
			seenCustomers[c] = struct{}{}
			out.Customers = append(out.Customers, c)
		}

		pk := productKey(row.StockCode, *row.Description, row.UnitPrice)
		if _, ok := seenProducts[pk]; !ok {
			seenProducts[pk] = struct{}{}
			out.Products = append(out.Products, Product{
				StockCode:   row.StockCode,
				Description: *row.Description,
				UnitPrice:   row.UnitPrice,
			})
		}

		ik := invoiceKey{no: row.InvoiceNo, at: date.UnixNano(), customer: *row.CustomerID}
		if _, ok := seenInvoices[ik]; !ok {
			seenInvoices[ik] = struct{}{}
			out.Invoices = append(out.Invoices, Invoice{
				InvoiceNo:   row.InvoiceNo,
				InvoiceDate: date,
				CustomerID:  *row.CustomerID,
			})
		}

		out.InvoiceItems = append(out.InvoiceItems, InvoiceItem{
			InvoiceNo: row.InvoiceNo,
			StockCode: row.StockCode,
			Quantity:  row.Quantity,
		})
	}

	return out, report, nil
}

// ParseInvoiceDate parses s with the first matching layout, in UTC.
func ParseInvoiceDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range InvoiceDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("no matching layout")
}

// LineTotal is quantity × unit price. It informs monetary but is not stored.
func LineTotal(quantity int64, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(quantity))
}

type invoiceKey struct {
	no       string
	at       int64
	customer int64
}

func productKey(code, desc string, price decimal.Decimal) string {
	return code + "\x00" + desc + "\x00" + price.String()
}

// ParseCustomerID accepts "17850" and the float-typed "17850.0".
// Empty input yields nil.
func ParseCustomerID(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &id, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	if !d.Equal(d.Truncate(0)) {
		return nil, fmt.Errorf("not an integer")
	}
	id := d.IntPart()
	return &id, nil
}
