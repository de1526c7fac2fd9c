package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"gstrecon/internal/domain"
	"gstrecon/internal/gstin"
)

const (
	sheetSummary    = "Summary"
	sheetMismatches = "Mismatches"
	sheetVendors    = "Vendors"
)

var vendorColumns = []string{
	"Supplier GSTIN",
	"Vendor Name",
	"Invoices",
	"Mismatches",
	"Total Value",
	"Risk Score",
	"Trend",
	"Predicted Risk",
	"Compliance Score",
}

// Report is the content of a workbook export.
type Report struct {
	Label      string
	Stats      domain.ReconciliationStats
	Mismatches []domain.MismatchRecord
	Vendors    []domain.VendorRiskRecord
}

// WriteXLSX renders r as a three-sheet workbook (summary, mismatches, vendors).
func WriteXLSX(out io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return fmt.Errorf("export.WriteXLSX: %w", err)
	}
	for _, name := range []string{sheetMismatches, sheetVendors} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("export.WriteXLSX: %w", err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export.WriteXLSX: %w", err)
	}

	summary := [][]interface{}{
		{"Run", r.Label},
		{"Total Invoices", r.Stats.TotalInvoices},
		{"Matched", r.Stats.Matched},
		{"Mismatches", r.Stats.Mismatches},
		{"Missing", r.Stats.Missing},
		{"Total ITC Claimed", r.Stats.TotalITCClaimed.InexactFloat64()},
		{"Leakage Risk", r.Stats.LeakageRisk.InexactFloat64()},
		{"Compliance Score", r.Stats.ComplianceScore},
		{"High Risk Vendors", r.Stats.HighRiskVendors},
	}
	for i, row := range summary {
		if err := setRow(f, sheetSummary, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheetSummary, "A1", fmt.Sprintf("A%d", len(summary)), bold); err != nil {
		return fmt.Errorf("export.WriteXLSX: %w", err)
	}

	if err := writeHeader(f, sheetMismatches, mismatchColumns, bold); err != nil {
		return err
	}
	for i := range r.Mismatches {
		m := &r.Mismatches[i]
		row := []interface{}{
			m.InvoiceNumber,
			m.InvoiceDate.Format(gstin.ISODate),
			m.SupplierGSTIN,
			m.VendorName,
			string(m.Status),
			string(m.RootCause),
			string(m.Severity),
			m.RiskScore,
			string(m.RiskLevel),
			m.AmountDiff.InexactFloat64(),
			m.TaxDiff.InexactFloat64(),
			m.Source1.Label(),
			m.Source2.Label(),
			m.Explanation,
		}
		if err := setRow(f, sheetMismatches, i+2, row); err != nil {
			return err
		}
	}

	if err := writeHeader(f, sheetVendors, vendorColumns, bold); err != nil {
		return err
	}
	for i := range r.Vendors {
		v := &r.Vendors[i]
		row := []interface{}{
			v.GSTIN,
			v.Name,
			v.InvoiceCount,
			v.MismatchCount,
			v.TotalValue.InexactFloat64(),
			v.RiskScore,
			string(v.Trend),
			string(v.PredictedRisk),
			v.ComplianceScore,
		}
		if err := setRow(f, sheetVendors, i+2, row); err != nil {
			return err
		}
	}

	if err := f.Write(out); err != nil {
		return fmt.Errorf("export.WriteXLSX: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, columns []string, style int) error {
	row := make([]interface{}, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	if err := setRow(f, sheet, 1, row); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return fmt.Errorf("export.writeHeader: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("export.writeHeader: %w", err)
	}
	lastCol, _, err := excelize.SplitCellName(last)
	if err != nil {
		return fmt.Errorf("export.writeHeader: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 20); err != nil {
		return fmt.Errorf("export.writeHeader: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, n int, row []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return fmt.Errorf("export.setRow: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("export.setRow %s!%s: %w", sheet, cell, err)
	}
	return nil
}
