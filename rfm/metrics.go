/*
Package rfm computes Recency/Frequency/Monetary customer segmentation.

PURPOSE:
  Turns the customer/invoice/item/product join into one Record per customer
  with at least one invoice: raw metrics, quintile buckets, 1-5 scores, a
  three-digit score string and a named segment.

ALGORITHM:
  1. Aggregate: recency (whole days since last invoice), frequency (distinct
     invoices), monetary (sum of quantity × unit price)
  2. Rank into 5 buckets along recency ASC, frequency DESC, monetary DESC
     with NTILE(5) semantics
  3. score = 6 - bucket
  4. rfm_score = r, f, m digits
  5. Segment by first matching rule

TIE-BREAKING:
  Customers with equal sort keys keep ascending customer id order. The
  result is fully deterministic for a given input and evaluation time.

SEE ALSO:
  - quintile.go: NTILE bucket assignment
  - segment.go: Classification rules
  - engine.go: Store-facing entry point
*/
package rfm

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/retail-rfm/retail"
)

// Metrics are the raw per-customer RFM measures.
type Metrics struct {
	CustomerID  int64
	LastInvoice time.Time
	Recency     int
	Frequency   int
	Monetary    decimal.Decimal
}

// Aggregate groups lines by customer. The result is ordered by customer id.
// Recency is the number of whole days from the latest invoice to evalAt.
func Aggregate(lines []retail.InvoiceLine, evalAt time.Time) []Metrics {
	type acc struct {
		m        Metrics
		invoices map[string]struct{}
	}

	byCustomer := make(map[int64]*acc)
	for _, l := range lines {
		a, ok := byCustomer[l.CustomerID]
		if !ok {
			a = &acc{
				m:        Metrics{CustomerID: l.CustomerID, LastInvoice: l.InvoiceDate, Monetary: decimal.Zero},
				invoices: make(map[string]struct{}),
			}
			byCustomer[l.CustomerID] = a
		}
		if l.InvoiceDate.After(a.m.LastInvoice) {
			a.m.LastInvoice = l.InvoiceDate
		}
		a.invoices[l.InvoiceNo] = struct{}{}
		a.m.Monetary = a.m.Monetary.Add(l.Total())
	}

	result := make([]Metrics, 0, len(byCustomer))
	for _, a := range byCustomer {
		a.m.Frequency = len(a.invoices)
		a.m.Recency = RecencyDays(evalAt, a.m.LastInvoice)
		result = append(result, a.m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CustomerID < result[j].CustomerID })
	return result
}

// RecencyDays is the whole number of days between last and evalAt, truncated.
func RecencyDays(evalAt, last time.Time) int {
	return int(evalAt.Sub(last) / (24 * time.Hour))
}
