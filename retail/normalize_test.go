package retail_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/retail-rfm/retail"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func strPtr(s string) *string { return &s }
func idPtr(id int64) *int64    { return &id }

func raw(invoice, code, desc string, qty int64, date, price string, customer int64, country string) retail.RawRow {
	return retail.RawRow{
		InvoiceNo:   invoice,
		StockCode:   code,
		Description: strPtr(desc),
		Quantity:    qty,
		InvoiceDate: date,
		UnitPrice:   decimal.RequireFromString(price),
		CustomerID:  idPtr(customer),
		Country:     country,
	}
}

// =============================================================================
// FILTERING
// =============================================================================

func TestNormalize_DropsRowsWithoutCustomerOrDescription(t *testing.T) {
	noCustomer := raw("536365", "85123A", "WHITE HANGING HEART", 6, "12/1/2010 8:26", "2.55", 17850, "United Kingdom")
	noCustomer.CustomerID = nil
	noDescription := raw("536366", "22633", "HAND WARMER", 6, "12/1/2010 8:28", "1.85", 13047, "United Kingdom")
	noDescription.Description = nil
	kept := raw("536367", "84879", "ASSORTED BIRD ORNAMENT", 32, "12/1/2010 8:34", "1.69", 13047, "United Kingdom")

	norm, report, err := retail.Normalize([]retail.RawRow{noCustomer, noDescription, kept}, retail.NormalizeOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Read)
	assert.Equal(t, 2, report.Discarded)
	assert.Equal(t, 0, report.Skipped)

	assert.Equal(t, []retail.Customer{{CustomerID: 13047, Country: "United Kingdom"}}, norm.Customers)
	require.Len(t, norm.Products, 1)
	assert.Equal(t, "84879", norm.Products[0].StockCode)
	require.Len(t, norm.Invoices, 1)
	assert.Equal(t, "536367", norm.Invoices[0].InvoiceNo)
	assert.Equal(t, []retail.InvoiceItem{{InvoiceNo: "536367", StockCode: "84879", Quantity: 32}}, norm.InvoiceItems)
}

func TestNormalize_KeepsNegativeQuantitiesAndPrices(t *testing.T) {
	rows := []retail.RawRow{
		raw("C536379", "D", "Discount", -1, "12/1/2010 9:41", "27.50", 14527, "United Kingdom"),
		raw("A563185", "B", "Adjust bad debt", 1, "8/12/2011 14:50", "-11062.06", 14527, "United Kingdom"),
	}

	norm, report, err := retail.Normalize(rows, retail.NormalizeOptions{})
	require.NoError(t, err)

	assert.Len(t, norm.InvoiceItems, 2)
	assert.Equal(t, int64(-1), norm.InvoiceItems[0].Quantity)
	assert.True(t, norm.Products[1].UnitPrice.IsNegative())
	assert.Equal(t, "-11089.56", report.Revenue.String())
}

// =============================================================================
// DEDUPLICATION
// =============================================================================

func TestNormalize_DeduplicatesEntitiesButNotItems(t *testing.T) {
	rows := []retail.RawRow{
		raw("536365", "85123A", "WHITE HANGING HEART", 6, "12/1/2010 8:26", "2.55", 17850, "United Kingdom"),
		raw("536365", "71053", "WHITE METAL LANTERN", 6, "12/1/2010 8:26", "3.39", 17850, "United Kingdom"),
		raw("536365", "85123A", "WHITE HANGING HEART", 6, "12/1/2010 8:26", "2.55", 17850, "United Kingdom"),
		raw("536366", "85123A", "WHITE HANGING HEART", 2, "12/1/2010 8:28", "2.55", 17850, "United Kingdom"),
	}

	norm, _, err := retail.Normalize(rows, retail.NormalizeOptions{})
	require.NoError(t, err)

	assert.Len(t, norm.Customers, 1)
	assert.Len(t, norm.Products, 2)
	assert.Len(t, norm.Invoices, 2)
	assert.Len(t, norm.InvoiceItems, 4, "every surviving raw row becomes one item")

	assert.Equal(t, "536365", norm.Invoices[0].InvoiceNo)
	assert.Equal(t, time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC), norm.Invoices[0].InvoiceDate)
	assert.Equal(t, "536366", norm.Invoices[1].InvoiceNo)
}

func TestNormalize_DistinctTriplesKeepConflictingAttributes(t *testing.T) {
	// Same stock code with two prices is two distinct triples; the store keeps the first.
	rows := []retail.RawRow{
		raw("1", "POST", "POSTAGE", 1, "2011-01-04 10:00:00", "18.00", 12347, "Iceland"),
		raw("2", "POST", "POSTAGE", 1, "2011-01-05 10:00:00", "40.00", 12347, "Iceland"),
		raw("3", "POST", "POSTAGE", 1, "2011-01-06 10:00:00", "18.0", 12347, "Portugal"),
	}

	norm, _, err := retail.Normalize(rows, retail.NormalizeOptions{})
	require.NoError(t, err)

	require.Len(t, norm.Products, 2)
	assert.Equal(t, "18", norm.Products[0].UnitPrice.String())
	assert.Equal(t, "40", norm.Products[1].UnitPrice.String())
	assert.Equal(t, []retail.Customer{
		{CustomerID: 12347, Country: "Iceland"},
		{CustomerID: 12347, Country: "Portugal"},
	}, norm.Customers)
}

// =============================================================================
// PARSE ERRORS
// =============================================================================

func TestNormalize_BadDateSkippedByDefault(t *testing.T) {
	bad := raw("536365", "85123A", "WHITE HANGING HEART", 6, "not a date", "2.55", 17850, "United Kingdom")
	bad.Line = 7
	good := raw("536366", "22633", "HAND WARMER", 6, "12/1/2010 8:28", "1.85", 17850, "United Kingdom")

	norm, report, err := retail.Normalize([]retail.RawRow{bad, good}, retail.NormalizeOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 7, report.Errors[0].Row)
	assert.Equal(t, "InvoiceDate", report.Errors[0].Field)
	assert.Len(t, norm.Invoices, 1)
	assert.Len(t, norm.Products, 1, "skipped row contributes nothing")
}

func TestNormalize_BadDateAbortsInStrictMode(t *testing.T) {
	rows := []retail.RawRow{
		raw("536365", "85123A", "WHITE HANGING HEART", 6, "12/1/2010 8:26", "2.55", 17850, "United Kingdom"),
		raw("536366", "22633", "HAND WARMER", 6, "31/31/2010", "1.85", 17850, "United Kingdom"),
	}

	_, _, err := retail.Normalize(rows, retail.NormalizeOptions{Strict: true})
	require.Error(t, err)
	assert.True(t, retail.IsParse(err))

	var perr *retail.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 2, perr.Row)
}

func TestParseInvoiceDate_Layouts(t *testing.T) {
	want := time.Date(2011, 12, 9, 12, 50, 0, 0, time.UTC)
	for _, s := range []string{
		"12/9/2011 12:50",
		"12/09/2011 12:50:00",
		"2011-12-09 12:50:00",
		"2011-12-09T12:50:00Z",
	} {
		got, err := retail.ParseInvoiceDate(s)
		require.NoError(t, err, s)
		assert.True(t, want.Equal(got), "%s parsed as %s", s, got)
	}

	_, err := retail.ParseInvoiceDate("")
	assert.Error(t, err)
}

func TestParseCustomerID(t *testing.T) {
	id, err := retail.ParseCustomerID("17850")
	require.NoError(t, err)
	assert.Equal(t, int64(17850), *id)

	id, err = retail.ParseCustomerID("17850.0")
	require.NoError(t, err)
	assert.Equal(t, int64(17850), *id)

	id, err = retail.ParseCustomerID("  ")
	require.NoError(t, err)
	assert.Nil(t, id)

	_, err = retail.ParseCustomerID("17850.5")
	assert.Error(t, err)
	_, err = retail.ParseCustomerID("abc")
	assert.Error(t, err)
}

func TestErrorClassification(t *testing.T) {
	ref := &retail.ReferentialError{Entity: "invoices", Ref: "customers", Key: "42"}
	assert.True(t, retail.IsReferential(ref))
	assert.False(t, retail.IsParse(ref))
	assert.Equal(t, `invoices references missing customers "42"`, ref.Error())

	conn := &retail.ConnectivityError{Op: "ping database", Err: errors.New("refused")}
	assert.True(t, retail.IsConnectivity(conn))
	assert.ErrorContains(t, conn, "refused")
}
