package reconcile_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gstrecon/internal/domain"
	"gstrecon/internal/reconcile"
)

func TestNormalizer_NormalizeRecord(t *testing.T) {
	n := reconcile.NewNormalizer()

	r := raw(domain.SourceGSTR1, " 29abcde1234f1zw ", " inv / 0042 ", "05-07-2024", "1000.005", "180.004")
	r.VendorName = "  Acme   Traders "
	inv, err := n.NormalizeRecord(&r)
	require.NoError(t, err)

	assert.Equal(t, gstinKA, inv.SupplierGSTIN)
	assert.Equal(t, "INV/0042", inv.InvoiceNumber)
	assert.Equal(t, time.Date(2024, 7, 5, 0, 0, 0, 0, time.UTC), inv.InvoiceDate)
	assert.Equal(t, "Acme Traders", inv.VendorName)
	assert.Equal(t, "B2B", inv.SupplyType)
	assert.True(t, inv.TaxableAmount.Equal(amt("1000.01")), inv.TaxableAmount.String())
	assert.True(t, inv.IGST.Equal(amt("180")))
	assert.True(t, inv.TotalAmount.Equal(amt("1180.01")), inv.TotalAmount.String())
	assert.Equal(t, domain.IdentityKey("inv:29ABCDE1234F1ZW|INV/0042|2024-07-05"), inv.Key)
	assert.Equal(t, inv.Key, inv.NaturalKey)
	assert.False(t, inv.KeyedByIRN())
}

func TestNormalizer_IRNAndTotal(t *testing.T) {
	n := reconcile.NewNormalizer()
	irn := strings.Repeat("AB", 32)
	total := amt("2000")

	r := withIRN(raw(domain.SourceEInvoice, gstinKA, "E-1", "2024-07-05", "1500", "270"), irn)
	r.TotalAmount = &total
	r.SupplyType = "sezwp"
	inv, err := n.NormalizeRecord(&r)
	require.NoError(t, err)

	assert.Equal(t, strings.ToLower(irn), inv.IRN)
	assert.Equal(t, domain.IdentityKey("irn:"+strings.ToLower(irn)), inv.Key)
	assert.Equal(t, domain.IdentityKey("inv:29ABCDE1234F1ZW|E-1|2024-07-05"), inv.NaturalKey)
	assert.True(t, inv.TotalAmount.Equal(total))
	assert.Equal(t, "SEZWP", inv.SupplyType)
}

func TestNormalizer_Malformed(t *testing.T) {
	n := reconcile.NewNormalizer()
	negative := amt("-1")

	tests := []struct {
		name  string
		mod   func(r *domain.RawRecord)
		field string
	}{
		{"unknown_source", func(r *domain.RawRecord) { r.Source = "GSTR9" }, "source"},
		{"bad_checksum", func(r *domain.RawRecord) { r.SupplierGSTIN = "29ABCDE1234F1Z5" }, "supplier_gstin"},
		{"short_gstin", func(r *domain.RawRecord) { r.SupplierGSTIN = "29ABCDE" }, "supplier_gstin"},
		{"empty_invoice_number", func(r *domain.RawRecord) { r.InvoiceNumber = "  " }, "invoice_number"},
		{"long_invoice_number", func(r *domain.RawRecord) { r.InvoiceNumber = "INV/2024-25/000017" }, "invoice_number"},
		{"bad_date", func(r *domain.RawRecord) { r.InvoiceDate = "31/31/2024" }, "invoice_date"},
		{"bad_irn", func(r *domain.RawRecord) { r.IRN = "xyz" }, "irn"},
		{"bad_supply_type", func(r *domain.RawRecord) { r.SupplyType = "RETAIL" }, "supply_type"},
		{"negative_taxable", func(r *domain.RawRecord) { r.TaxableAmount = negative }, "taxable_amount"},
		{"negative_cgst", func(r *domain.RawRecord) { r.CGST = negative }, "cgst"},
		{"negative_total", func(r *domain.RawRecord) { r.TotalAmount = &negative }, "total_amount"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := withRow(raw(domain.SourceGSTR1, gstinKA, "M-1", "2024-07-05", "100", "18"), 12)
			tc.mod(&r)
			_, err := n.NormalizeRecord(&r)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMalformedRecord))
			var mre *domain.MalformedRecordError
			require.ErrorAs(t, err, &mre)
			assert.Equal(t, tc.field, mre.Field)
			assert.Equal(t, 12, mre.RowIndex)
			assert.Equal(t, "GSTR1.csv", mre.SourceFile)
		})
	}
}

func TestNormalizer_BatchKeepsGoodRecords(t *testing.T) {
	good := raw(domain.SourceGSTR1, gstinKA, "OK-1", "2024-07-05", "100", "18")
	bad := raw(domain.SourceGSTR1, "INVALID", "OK-2", "2024-07-05", "100", "18")

	out, errs := reconcile.NewNormalizer().Normalize([]domain.RawRecord{good, bad, good})
	assert.Len(t, out, 2)
	assert.Len(t, errs, 1)
}
