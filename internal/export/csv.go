// Package export writes a run's mismatch report as CSV or XLSX.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"gstrecon/internal/domain"
	"gstrecon/internal/gstin"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// mismatchColumns is the header row shared by the CSV and XLSX reports.
var mismatchColumns = []string{
	"Invoice Number",
	"Invoice Date",
	"Supplier GSTIN",
	"Vendor Name",
	"Status",
	"Root Cause",
	"Severity",
	"Risk Score",
	"Risk Level",
	"Amount Difference",
	"Tax Difference",
	"Source 1",
	"Source 2",
	"Details",
}

// Writer wraps csv.Writer for exporting mismatches as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(mismatchColumns)
}

// WriteMismatches writes one row per mismatch.
func (w *Writer) WriteMismatches(ms []domain.MismatchRecord) error {
	for i := range ms {
		if err := w.csv.Write(mismatchToRow(&ms[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

// WriteCSV writes a complete CSV report (BOM, header, rows) to out.
func WriteCSV(out io.Writer, ms []domain.MismatchRecord) error {
	if _, err := out.Write(BOM); err != nil {
		return err
	}
	w := NewWriter(out)
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if err := w.WriteMismatches(ms); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func mismatchToRow(m *domain.MismatchRecord) []string {
	return []string{
		m.InvoiceNumber,
		m.InvoiceDate.Format(gstin.ISODate),
		m.SupplierGSTIN,
		m.VendorName,
		string(m.Status),
		string(m.RootCause),
		string(m.Severity),
		strconv.Itoa(m.RiskScore),
		string(m.RiskLevel),
		m.AmountDiff.StringFixed(2),
		m.TaxDiff.StringFixed(2),
		m.Source1.Label(),
		m.Source2.Label(),
		m.Explanation,
	}
}
