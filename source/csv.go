/*
Package source reads the retail transaction export into typed raw rows.

FORMAT:
  Comma-separated with a header row. Columns are located by name, so their
  order does not matter:
    InvoiceNo, StockCode, Description, Quantity, InvoiceDate,
    UnitPrice, CustomerID, Country

ENCODING:
  The export is ISO-8859-1 (Latin-1). Input is decoded to UTF-8 before
  parsing unless Options.UTF8 is set.

NULLS:
  Empty CustomerID or Description is read as nil. Such a row is returned
  without parsing its numeric fields; retail.Normalize discards it.

ERRORS:
  Non-numeric Quantity, UnitPrice or CustomerID produce a *retail.ParseError,
  as does a record the CSV reader rejects (Field "record"). With
  Options.Strict the first one aborts reading; otherwise the row is skipped
  and the error is returned in Result.Errors.
*/
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/retail-rfm/retail"
	"golang.org/x/text/encoding/charmap"
)

// Columns are the header names the reader requires.
var Columns = []string{
	"InvoiceNo", "StockCode", "Description", "Quantity",
	"InvoiceDate", "UnitPrice", "CustomerID", "Country",
}

var ErrMissingColumn = errors.New("missing column")

type Options struct {
	Strict bool
	UTF8   bool
}

// Result holds the parsed rows and any skipped-row errors.
type Result struct {
	Rows   []retail.RawRow
	Errors []*retail.ParseError
}

// ReadFile opens path and reads it with ReadCSV.
func ReadFile(path string, opts Options) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f, opts)
}

// ReadCSV parses the export from r.
func ReadCSV(r io.Reader, opts Options) (Result, error) {
	if !opts.UTF8 {
		r = charmap.ISO8859_1.NewDecoder().Reader(r)
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return Result{}, fmt.Errorf("read header: %w", err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return Result{}, err
	}

	var res Result
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++

		var row retail.RawRow
		var perr *retail.ParseError
		var csvErr *csv.ParseError
		switch {
		case errors.As(err, &csvErr):
			perr = &retail.ParseError{Row: line, Field: "record", Err: csvErr.Err}
		case err != nil:
			return res, fmt.Errorf("read line %d: %w", line, err)
		default:
			row, perr = parseRecord(rec, idx, line)
		}
		if perr != nil {
			if opts.Strict {
				return res, perr
			}
			res.Errors = append(res.Errors, perr)
			continue
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(trimBOM(h))] = i
	}
	for _, c := range Columns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}
	return idx, nil
}

// trimBOM drops a UTF-8 byte order mark, raw or as decoded from Latin-1.
func trimBOM(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.TrimPrefix(s, "\u00ef\u00bb\u00bf")
}

func parseRecord(rec []string, idx map[string]int, line int) (retail.RawRow, *retail.ParseError) {
	field := func(name string) string {
		i := idx[name]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	row := retail.RawRow{
		Line:        line,
		InvoiceNo:   field("InvoiceNo"),
		StockCode:   field("StockCode"),
		InvoiceDate: field("InvoiceDate"),
		Country:     field("Country"),
	}

	d := field("Description")
	if d == "" || field("CustomerID") == "" {
		// Incomplete: keep whatever is present and leave the rest nil.
		if d != "" {
			row.Description = &d
		}
		if id, err := retail.ParseCustomerID(field("CustomerID")); err == nil {
			row.CustomerID = id
		}
		return row, nil
	}
	row.Description = &d

	qty, err := strconv.ParseInt(field("Quantity"), 10, 64)
	if err != nil {
		return row, &retail.ParseError{Row: line, Field: "Quantity", Value: field("Quantity"), Err: err}
	}
	row.Quantity = qty

	price, err := decimal.NewFromString(field("UnitPrice"))
	if err != nil {
		return row, &retail.ParseError{Row: line, Field: "UnitPrice", Value: field("UnitPrice"), Err: err}
	}
	row.UnitPrice = price

	id, err := retail.ParseCustomerID(field("CustomerID"))
	if err != nil {
		return row, &retail.ParseError{Row: line, Field: "CustomerID", Value: field("CustomerID"), Err: err}
	}
	row.CustomerID = id

	return row, nil
}
