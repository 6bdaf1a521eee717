package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/zombor/cfd-invoice/internal/bill"
)

const (
	billsSheet = "Bills"
	itemsSheet = "Items"
)

var billHeaders = []string{
	"ID",
	"Scanned At",
	"Document Type",
	"Document Number",
	"Date",
	"Sender",
	"Sender Address",
	"Sender Tax ID",
	"Receiver",
	"Receiver Address",
	"Receiver Tax ID",
	"Currency",
	"Subtotal",
	"Tax",
	"Total",
	"Notes",
}

var itemHeaders = []string{
	"Bill ID",
	"Line",
	"Description",
	"Quantity",
	"Rate",
	"Amount",
}

// Workbook builds an XLSX workbook with one row per bill on the Bills sheet and
// one row per line item on the Items sheet. Values are written as extracted.
func Workbook(entries []bill.Entry) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", billsSheet); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, fmt.Errorf("creating sheet: %w", err)
	}

	writeRow(f, billsSheet, 1, toCells(billHeaders))
	writeRow(f, itemsSheet, 1, toCells(itemHeaders))

	itemRow := 2
	for i, e := range entries {
		r := e.Data
		writeRow(f, billsSheet, i+2, []any{
			e.ID,
			e.CreatedAt().Format("2006-01-02 15:04:05"),
			r.DocumentType,
			r.DocumentNumber,
			r.Date,
			r.Sender.Name,
			r.Sender.Address,
			r.Sender.TaxID,
			r.Receiver.Name,
			r.Receiver.Address,
			r.Receiver.TaxID,
			r.Currency,
			r.Subtotal,
			r.TaxAmount,
			r.TotalAmount,
			r.Notes,
		})

		for n, item := range r.Items {
			writeRow(f, itemsSheet, itemRow, []any{e.ID, n + 1, item.Description, item.Quantity, item.Rate, item.Amount})
			itemRow++
		}
	}

	_ = f.SetColWidth(billsSheet, "A", "A", 38) // id
	_ = f.SetColWidth(billsSheet, "B", "E", 18)
	_ = f.SetColWidth(billsSheet, "F", "K", 28) // parties
	_ = f.SetColWidth(billsSheet, "P", "P", 48) // notes
	_ = f.SetColWidth(itemsSheet, "A", "A", 38)
	_ = f.SetColWidth(itemsSheet, "C", "C", 40) // description

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing xlsx: %w", err)
	}

	slog.Info("Exported workbook", "bills", len(entries), "items", itemRow-2, "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toCells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
