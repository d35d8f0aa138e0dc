// Package export renders extraction results as spreadsheets.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"research-portal/internal/financial"
)

// FinancialSheet is the worksheet name used by FinancialXLSX.
const FinancialSheet = "Financial Data"

// NotFound fills the value cell of items whose value is nil.
const NotFound = "Not found"

// FinancialHeaders are the column headers, in order.
var FinancialHeaders = []string{"category", "lineItem", "value", "currency", "unit", "period", "confidence", "notes"}

// ContentType is the MIME type of the produced workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// FinancialXLSX writes one row per line item under a header row.
func FinancialXLSX(items []financial.LineItem) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), FinancialSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetSheetRow(FinancialSheet, "A1", &FinancialHeaders); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, item := range items {
		var value any = NotFound
		if item.Value != nil {
			value = *item.Value
		}
		row := []any{
			item.Category,
			item.LineItem,
			value,
			item.Currency,
			item.Unit,
			item.Period,
			item.Confidence,
			item.Notes,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(FinancialSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	_ = f.SetColWidth(FinancialSheet, "A", "B", 24)
	_ = f.SetColWidth(FinancialSheet, "C", "G", 14)
	_ = f.SetColWidth(FinancialSheet, "H", "H", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
