// Package store provides an in-memory retail.Store.
package store

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/warp/retail-rfm/retail"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	customers    map[int64]retail.Customer
	products     map[string]retail.Product
	invoices     map[string]retail.Invoice
	invoiceItems []retail.InvoiceItem
	segmentation []retail.Segmentation
	runs         map[string]retail.Run
}

var (
	_ retail.Store    = (*Memory)(nil)
	_ retail.RunStore = (*Memory)(nil)
)

func NewMemory() *Memory {
	m := &Memory{runs: make(map[string]retail.Run)}
	m.resetLocked()
	return m
}

func (m *Memory) resetLocked() {
	m.customers = make(map[int64]retail.Customer)
	m.products = make(map[string]retail.Product)
	m.invoices = make(map[string]retail.Invoice)
	m.invoiceItems = nil
}

// Reset clears the entity tables. The segmentation is only ever replaced.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	return nil
}

func (m *Memory) UpsertCustomer(_ context.Context, c retail.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCustomerLocked(c)
	return nil
}

func (m *Memory) UpsertProduct(_ context.Context, p retail.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertProductLocked(p)
	return nil
}

func (m *Memory) UpsertInvoice(_ context.Context, inv retail.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkInvoiceLocked(inv); err != nil {
		return err
	}
	m.upsertInvoiceLocked(inv)
	return nil
}

func (m *Memory) InsertInvoiceItem(_ context.Context, item retail.InvoiceItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkItemLocked(item); err != nil {
		return err
	}
	m.invoiceItems = append(m.invoiceItems, item)
	return nil
}

func (m *Memory) LoadCustomers(_ context.Context, cs []retail.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range cs {
		m.upsertCustomerLocked(c)
	}
	return nil
}

func (m *Memory) LoadProducts(_ context.Context, ps []retail.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range ps {
		m.upsertProductLocked(p)
	}
	return nil
}

// LoadInvoices checks every reference before writing anything (atomic batch).
func (m *Memory) LoadInvoices(_ context.Context, invs []retail.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range invs {
		if err := m.checkInvoiceLocked(inv); err != nil {
			return err
		}
	}
	for _, inv := range invs {
		m.upsertInvoiceLocked(inv)
	}
	return nil
}

// LoadInvoiceItems checks every reference before writing anything (atomic batch).
func (m *Memory) LoadInvoiceItems(_ context.Context, items []retail.InvoiceItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		if err := m.checkItemLocked(item); err != nil {
			return err
		}
	}
	m.invoiceItems = append(m.invoiceItems, items...)
	return nil
}

func (m *Memory) upsertCustomerLocked(c retail.Customer) {
	if _, ok := m.customers[c.CustomerID]; !ok {
		m.customers[c.CustomerID] = c
	}
}

func (m *Memory) upsertProductLocked(p retail.Product) {
	if _, ok := m.products[p.StockCode]; !ok {
		m.products[p.StockCode] = p
	}
}

func (m *Memory) upsertInvoiceLocked(inv retail.Invoice) {
	if _, ok := m.invoices[inv.InvoiceNo]; !ok {
		m.invoices[inv.InvoiceNo] = inv
	}
}

func (m *Memory) checkInvoiceLocked(inv retail.Invoice) error {
	if _, ok := m.customers[inv.CustomerID]; !ok {
		return &retail.ReferentialError{
			Entity: "invoices",
			Ref:    "customers",
			Key:    strconv.FormatInt(inv.CustomerID, 10),
		}
	}
	return nil
}

func (m *Memory) checkItemLocked(item retail.InvoiceItem) error {
	if _, ok := m.invoices[item.InvoiceNo]; !ok {
		return &retail.ReferentialError{Entity: "invoice_items", Ref: "invoices", Key: item.InvoiceNo}
	}
	if _, ok := m.products[item.StockCode]; !ok {
		return &retail.ReferentialError{Entity: "invoice_items", Ref: "products", Key: item.StockCode}
	}
	return nil
}

func (m *Memory) Counts(_ context.Context) (retail.Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return retail.Counts{
		Customers:    len(m.customers),
		Products:     len(m.products),
		Invoices:     len(m.invoices),
		InvoiceItems: len(m.invoiceItems),
		Segments:     len(m.segmentation),
	}, nil
}

// =============================================================================
// SEGMENTATION
// =============================================================================

func (m *Memory) InvoiceLines(_ context.Context) ([]retail.InvoiceLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lines := make([]retail.InvoiceLine, 0, len(m.invoiceItems))
	for _, item := range m.invoiceItems {
		inv := m.invoices[item.InvoiceNo]
		lines = append(lines, retail.InvoiceLine{
			CustomerID:  inv.CustomerID,
			InvoiceNo:   inv.InvoiceNo,
			InvoiceDate: inv.InvoiceDate,
			Quantity:    item.Quantity,
			UnitPrice:   m.products[item.StockCode].UnitPrice,
		})
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].CustomerID != lines[j].CustomerID {
			return lines[i].CustomerID < lines[j].CustomerID
		}
		return lines[i].InvoiceNo < lines[j].InvoiceNo
	})
	return lines, nil
}

func (m *Memory) ReplaceSegmentation(_ context.Context, rows []retail.Segmentation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segmentation = append([]retail.Segmentation(nil), rows...)
	return nil
}

func (m *Memory) ReadSegmentation(_ context.Context) ([]retail.Segmentation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := append([]retail.Segmentation(nil), m.segmentation...)
	sort.Slice(result, func(i, j int) bool { return result[i].CustomerID < result[j].CustomerID })
	return result, nil
}

// =============================================================================
// RUNS
// =============================================================================

func (m *Memory) SaveRun(_ context.Context, run retail.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

// ListRuns returns the most recent runs first.
func (m *Memory) ListRuns(_ context.Context, limit int) ([]retail.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]retail.Run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID > runs[j].ID
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
