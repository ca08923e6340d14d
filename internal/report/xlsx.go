// Package report renders batch validation results as an XLSX workbook for
// human reviewers: one sheet of exceptions to work through, one sheet of
// cleanly processed invoices for reference.
package report

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"apinvoice/internal/classify"
	"apinvoice/pkg/models"
)

// Entry is one validated file in a batch run.
type Entry struct {
	Filename string
	Record   *models.InvoiceFieldRecord
	Verdict  *models.ValidationVerdict
	Err      error // normalization or I/O failure; routed to the exceptions sheet
}

// Service produces XLSX review workbooks.
type Service struct {
	log zerolog.Logger
}

// NewService creates a report service.
func NewService(log zerolog.Logger) *Service {
	return &Service{log: log}
}

const (
	sheetExceptions = "Exceptions"
	sheetProcessed  = "Processed"
)

// BuildXLSX returns a review workbook for the given batch entries. Exception
// rows keep verdict order within each invoice; files that failed
// normalization appear as single rows needing manual handling.
func (s *Service) BuildXLSX(entries []Entry) ([]byte, error) {
	f := excelize.NewFile()

	if err := s.writeExceptions(f, entries); err != nil {
		return nil, err
	}
	if err := s.writeProcessed(f, entries); err != nil {
		return nil, err
	}

	// Drop excelize's default sheet and activate the exceptions view.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	index, err := f.GetSheetIndex(sheetExceptions)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Service) writeExceptions(f *excelize.File, entries []Entry) error {
	if _, err := f.NewSheet(sheetExceptions); err != nil {
		return err
	}

	headers := []string{
		"Exception ID",
		"Invoice ID",
		"File",
		"Supplier",
		"Total",
		"Currency",
		"Exception Type",
		"Severity",
		"Message",
		"Status",
	}
	if err := writeRow(f, sheetExceptions, 1, strRow(headers)); err != nil {
		return err
	}

	row := 2
	for _, e := range entries {
		if e.Err != nil {
			cells := []interface{}{
				"", "", e.Filename, "", "", "",
				"NORMALIZATION_ERROR", string(models.SeverityHigh), e.Err.Error(), classify.StatusPending,
			}
			if err := writeRow(f, sheetExceptions, row, cells); err != nil {
				return err
			}
			row++
			continue
		}
		if e.Verdict == nil || !e.Verdict.IsException {
			continue
		}

		supplier, total, currency := recordSummary(e.Record, e.Verdict)
		for _, exc := range e.Verdict.Exceptions {
			cells := []interface{}{
				exc.ExceptionID,
				e.Verdict.InvoiceID,
				e.Filename,
				supplier,
				total,
				currency,
				string(exc.Type),
				string(exc.Severity),
				exc.Message,
				exc.Status,
			}
			if err := writeRow(f, sheetExceptions, row, cells); err != nil {
				return err
			}
			row++
		}
	}

	s.log.Debug().Int("rows", row-2).Msg("Exceptions sheet written")
	return nil
}

func (s *Service) writeProcessed(f *excelize.File, entries []Entry) error {
	if _, err := f.NewSheet(sheetProcessed); err != nil {
		return err
	}

	headers := []string{"Invoice ID", "File", "Supplier", "Invoice Date", "Total", "Currency"}
	if err := writeRow(f, sheetProcessed, 1, strRow(headers)); err != nil {
		return err
	}

	row := 2
	for _, e := range entries {
		if e.Err != nil || e.Verdict == nil || e.Verdict.IsException {
			continue
		}
		supplier, total, currency := recordSummary(e.Record, e.Verdict)
		invoiceDate := ""
		if e.Record != nil && e.Record.InvoiceDate != nil {
			invoiceDate = e.Record.InvoiceDate.String()
		}
		cells := []interface{}{
			e.Verdict.InvoiceID,
			e.Filename,
			supplier,
			invoiceDate,
			total,
			currency,
		}
		if err := writeRow(f, sheetProcessed, row, cells); err != nil {
			return err
		}
		row++
	}

	s.log.Debug().Int("rows", row-2).Msg("Processed sheet written")
	return nil
}

func recordSummary(rec *models.InvoiceFieldRecord, verdict *models.ValidationVerdict) (supplier, total, currency string) {
	if rec != nil {
		supplier = rec.SupplierName
	}
	if verdict.ReconciledTotals.TotalAmount != nil {
		total = verdict.ReconciledTotals.TotalAmount.StringFixed(2)
	}
	currency = verdict.ReconciledTotals.Currency
	return supplier, total, currency
}

func strRow(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}
