// Package export writes the RFM result set to delimited or spreadsheet files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/retail-rfm/retail"
	"github.com/warp/retail-rfm/rfm"
	"github.com/xuri/excelize/v2"
)

const SheetName = "rfm_segmentation"

// WriteCSV writes a header row and one line per result row.
func WriteCSV(w io.Writer, rows []rfm.ResultRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rfm.Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the result set to a single-sheet workbook at path.
func WriteXLSX(path string, rows []rfm.ResultRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	header := make([]any, len(rfm.Header))
	for i, h := range rfm.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		monetary, err := decimal.NewFromString(r.Monetary)
		if err != nil {
			return fmt.Errorf("customer %d: invalid monetary %q: %w", r.CustomerID, r.Monetary, err)
		}
		values := []any{
			r.CustomerID, r.Recency, r.Frequency, monetary.InexactFloat64(),
			r.RScore, r.FScore, r.MScore, r.RFMScore, r.Segment,
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

// ToFile writes rows to path, choosing XLSX for .xlsx and CSV otherwise.
// Failing to create the target is reported as *retail.ConnectivityError.
func ToFile(path string, rows []rfm.ResultRow) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &retail.ConnectivityError{Op: "create export directory", Err: err}
		}
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		if err := WriteXLSX(path, rows); err != nil {
			return &retail.ConnectivityError{Op: "write " + path, Err: err}
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return &retail.ConnectivityError{Op: "create " + path, Err: err}
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return &retail.ConnectivityError{Op: "write " + path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &retail.ConnectivityError{Op: "close " + path, Err: err}
	}
	return nil
}
