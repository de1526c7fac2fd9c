package export_test

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"gstrecon/internal/domain"
	"gstrecon/internal/export"
)

func sampleMismatches() []domain.MismatchRecord {
	return []domain.MismatchRecord{
		{
			Key:           "inv:29ABCDE1234F1ZW|INV-003|2024-07-07",
			Status:        domain.StatusMismatch,
			InvoiceNumber: "INV-003",
			InvoiceDate:   time.Date(2024, 7, 7, 0, 0, 0, 0, time.UTC),
			SupplierGSTIN: "29ABCDE1234F1ZW",
			VendorName:    "Acme, Traders",
			AmountDiff:    decimal.NewFromInt(1500),
			TaxDiff:       decimal.NewFromInt(270),
			RootCause:     domain.CauseAmountMismatch,
			Severity:      domain.SeverityIncidental,
			RiskScore:     42,
			RiskLevel:     domain.RiskMedium,
			Source1:       domain.SourceGSTR1,
			Source2:       domain.SourceGSTR2B,
			Explanation:   "taxable differs",
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.WriteCSV(&buf, sampleMismatches()))

	raw := buf.Bytes()
	require.True(t, bytes.HasPrefix(raw, export.BOM))

	rows, err := csv.NewReader(bytes.NewReader(raw[len(export.BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Len(t, rows[0], 14)
	assert.Equal(t, "Invoice Number", rows[0][0])
	assert.Equal(t, "Details", rows[0][13])

	row := rows[1]
	assert.Equal(t, "INV-003", row[0])
	assert.Equal(t, "2024-07-07", row[1])
	assert.Equal(t, "Acme, Traders", row[3])
	assert.Equal(t, "Amount mismatch — requires manual review", row[5])
	assert.Equal(t, "42", row[7])
	assert.Equal(t, "1500.00", row[9])
	assert.Equal(t, "270.00", row[10])
	assert.Equal(t, "GSTR-1", row[11])
	assert.Equal(t, "GSTR-2B", row[12])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.WriteCSV(&buf, nil))
	rows, err := csv.NewReader(bytes.NewReader(buf.Bytes()[len(export.BOM):])).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	err := export.WriteXLSX(&buf, &export.Report{
		Label:      "July 2024",
		Stats:      domain.ReconciliationStats{TotalInvoices: 4, Matched: 3, Mismatches: 1},
		Mismatches: sampleMismatches(),
		Vendors: []domain.VendorRiskRecord{
			{GSTIN: "29ABCDE1234F1ZW", Name: "Acme", InvoiceCount: 4, MismatchCount: 1, RiskScore: 30, Trend: domain.TrendStable, PredictedRisk: domain.RiskLow, ComplianceScore: 75},
		},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Mismatches", "Vendors"}, f.GetSheetList())

	summary, err := f.GetRows("Summary")
	require.NoError(t, err)
	assert.Equal(t, []string{"Run", "July 2024"}, summary[0])

	mismatches, err := f.GetRows("Mismatches")
	require.NoError(t, err)
	require.Len(t, mismatches, 2)
	assert.Equal(t, "INV-003", mismatches[1][0])
	assert.Equal(t, string(domain.CauseAmountMismatch), mismatches[1][5])

	vendors, err := f.GetRows("Vendors")
	require.NoError(t, err)
	require.Len(t, vendors, 2)
	assert.Equal(t, "Acme", vendors[1][1])
}

func TestParseFormat(t *testing.T) {
	f, err := export.ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, domain.ExportCSV, f)

	f, err = export.ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, domain.ExportXLSX, f)

	_, err = export.ParseFormat("pdf")
	assert.ErrorIs(t, err, domain.ErrInvalidExportFormat)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "July 2024", "July_2024"},
		{"special_chars", "Q1 / FY24-25 (draft)", "Q1_FY24-25_draft"},
		{"empty", "   ", "reconciliation"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, export.SanitizeFilename(tc.in))
		})
	}
}

func TestBuildFilename(t *testing.T) {
	at := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "July_2024_mismatches_2024-08-01.xlsx", export.BuildFilename("July 2024", domain.ExportXLSX, at))
	assert.Equal(t, "text/csv; charset=utf-8", export.ContentType(domain.ExportCSV))
}
