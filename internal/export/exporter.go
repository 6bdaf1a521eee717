package export

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/zombor/cfd-invoice/internal/bill"
	"github.com/zombor/cfd-invoice/internal/render"
)

// ErrNothingToExport is returned when there are no bills to write
var ErrNothingToExport = errors.New("nothing to export")

// Exporter writes printable bills and workbooks to Storage
type Exporter struct {
	storage Storage
	logger  *slog.Logger
}

// NewExporter creates an Exporter over storage
func NewExporter(storage Storage, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{storage: storage, logger: logger}
}

// Print writes the printable preview of record to filename and returns the written path
func (e *Exporter) Print(filename string, record *bill.Record, footer render.Footer) (string, error) {
	if record == nil {
		return "", ErrNothingToExport
	}
	if filepath.Ext(filename) == "" {
		filename += ".txt"
	}

	var buf bytes.Buffer
	render.Bill(&buf, record, footer)

	path, err := e.storage.Save(filename, buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("saving printed bill: %w", err)
	}

	e.logger.Info("Printed bill", "path", path, "type", record.DocumentType)
	return path, nil
}

// Workbook writes entries as an XLSX workbook to filename and returns the written path
func (e *Exporter) Workbook(filename string, entries []bill.Entry) (string, error) {
	if len(entries) == 0 {
		return "", ErrNothingToExport
	}
	if !strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		filename += ".xlsx"
	}

	data, err := Workbook(entries)
	if err != nil {
		return "", err
	}

	path, err := e.storage.Save(filename, data)
	if err != nil {
		return "", fmt.Errorf("saving workbook: %w", err)
	}

	e.logger.Info("Saved workbook", "path", path, "bills", len(entries))
	return path, nil
}
