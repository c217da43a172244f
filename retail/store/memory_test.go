package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/retail-rfm/retail"
	"github.com/warp/retail-rfm/retail/store"
)

func seed(t *testing.T, m *store.Memory) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, m.LoadCustomers(ctx, []retail.Customer{{CustomerID: 17850, Country: "United Kingdom"}}))
	require.NoError(t, m.LoadProducts(ctx, []retail.Product{
		{StockCode: "85123A", Description: "WHITE HANGING HEART T-LIGHT HOLDER", UnitPrice: decimal.RequireFromString("2.55")},
	}))
	require.NoError(t, m.LoadInvoices(ctx, []retail.Invoice{
		{InvoiceNo: "536365", InvoiceDate: time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC), CustomerID: 17850},
	}))
	require.NoError(t, m.LoadInvoiceItems(ctx, []retail.InvoiceItem{{InvoiceNo: "536365", StockCode: "85123A", Quantity: 6}}))
}

func TestMemory_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	require.NoError(t, m.UpsertCustomer(ctx, retail.Customer{CustomerID: 1, Country: "France"}))
	require.NoError(t, m.UpsertCustomer(ctx, retail.Customer{CustomerID: 1, Country: "Germany"}))
	require.NoError(t, m.UpsertProduct(ctx, retail.Product{StockCode: "P", Description: "a", UnitPrice: decimal.NewFromInt(1)}))
	require.NoError(t, m.UpsertProduct(ctx, retail.Product{StockCode: "P", Description: "b", UnitPrice: decimal.NewFromInt(2)}))

	counts, err := m.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Customers)
	assert.Equal(t, 1, counts.Products)
}

func TestMemory_ReferentialErrors(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	err := m.UpsertInvoice(ctx, retail.Invoice{InvoiceNo: "1", CustomerID: 42})
	require.Error(t, err)
	var ref *retail.ReferentialError
	require.True(t, errors.As(err, &ref))
	assert.Equal(t, "customers", ref.Ref)
	assert.Equal(t, "42", ref.Key)

	err = m.InsertInvoiceItem(ctx, retail.InvoiceItem{InvoiceNo: "missing", StockCode: "X", Quantity: 1})
	assert.True(t, retail.IsReferential(err))
}

func TestMemory_BatchLoadIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.LoadCustomers(ctx, []retail.Customer{{CustomerID: 1}}))

	err := m.LoadInvoices(ctx, []retail.Invoice{
		{InvoiceNo: "ok", CustomerID: 1},
		{InvoiceNo: "bad", CustomerID: 2},
	})
	require.True(t, retail.IsReferential(err))

	counts, err := m.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Invoices)
}

func TestMemory_InvoiceLinesAndReset(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seed(t, m)
	seed(t, m)

	lines, err := m.InvoiceLines(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 2, "items are appended on every load")
	assert.Equal(t, "15.3", lines[0].Total().String())

	require.NoError(t, m.ReplaceSegmentation(ctx, []retail.Segmentation{{CustomerID: 17850}}))
	require.NoError(t, m.Reset(ctx))

	counts, err := m.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, retail.Counts{Segments: 1}, counts)
}

func TestMemory_ListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.SaveRun(ctx, retail.Run{ID: "a", StartedAt: base}))
	require.NoError(t, m.SaveRun(ctx, retail.Run{ID: "b", StartedAt: base.Add(time.Hour)}))
	require.NoError(t, m.SaveRun(ctx, retail.Run{ID: "a", StartedAt: base, Status: retail.RunCompleted}))

	runs, err := m.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID)
	assert.Equal(t, retail.RunCompleted, runs[1].Status)

	runs, err = m.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
