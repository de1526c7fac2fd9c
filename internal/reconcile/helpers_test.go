package reconcile_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gstrecon/internal/domain"
	"gstrecon/internal/reconcile"
)

const (
	gstinKA = "29ABCDE1234F1ZW"
	gstinMH = "27FGHIJ5678K2Z0"
	gstinTN = "33KLMNO9012L3ZK"
	gstinDL = "07UVWXY7890N5ZT"
)

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// raw builds an inter-state row (IGST only).
func raw(src domain.SourceType, gstinNo, invNo, date, taxable, tax string) domain.RawRecord {
	return domain.RawRecord{
		Source:        src,
		SourceFile:    string(src) + ".csv",
		SupplierGSTIN: gstinNo,
		VendorName:    "Vendor " + gstinNo[2:7],
		InvoiceNumber: invNo,
		InvoiceDate:   date,
		TaxableAmount: amt(taxable),
		IGST:          amt(tax),
	}
}

func withRow(r domain.RawRecord, row int) domain.RawRecord {
	r.RowIndex = row
	return r
}

func withIRN(r domain.RawRecord, irn string) domain.RawRecord {
	r.IRN = irn
	return r
}

func run(t *testing.T, records ...domain.RawRecord) *domain.Snapshot {
	t.Helper()
	snap, err := reconcile.NewEngine(reconcile.DefaultConfig()).Run(context.Background(), records, nil)
	require.NoError(t, err)
	require.NotNil(t, snap)
	return snap
}

func issuesOf(snap *domain.Snapshot, kind domain.IssueKind) []domain.Issue {
	var out []domain.Issue
	for _, is := range snap.Issues {
		if is.Kind == kind {
			out = append(out, is)
		}
	}
	return out
}
