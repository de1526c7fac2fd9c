package reconcile

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"gstrecon/internal/domain"
	"gstrecon/internal/gstin"
)

const defaultSupplyType = "B2B"

// Normalizer turns raw source rows into canonical invoices. It never fails as a whole:
// each rejected row comes back as a *domain.MalformedRecordError.
type Normalizer struct{}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize converts a batch. Accepted records keep their input order.
func (n *Normalizer) Normalize(raw []domain.RawRecord) ([]domain.CanonicalInvoice, []error) {
	out := make([]domain.CanonicalInvoice, 0, len(raw))
	var errs []error
	for i := range raw {
		inv, err := n.NormalizeRecord(&raw[i])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, inv)
	}
	return out, errs
}

// NormalizeRecord validates and canonicalizes a single row.
func (n *Normalizer) NormalizeRecord(r *domain.RawRecord) (domain.CanonicalInvoice, error) {
	bad := func(field, reason string) (domain.CanonicalInvoice, error) {
		return domain.CanonicalInvoice{}, &domain.MalformedRecordError{
			SourceFile: r.SourceFile,
			RowIndex:   r.RowIndex,
			Field:      field,
			Reason:     reason,
		}
	}

	if !r.Source.Valid() {
		return bad("source", "unknown source tag "+string(r.Source))
	}

	g := gstin.NormalizeGSTIN(r.SupplierGSTIN)
	if err := gstin.Validate(g); err != nil {
		return bad("supplier_gstin", err.Error())
	}

	invNo := gstin.NormalizeInvoiceNumber(r.InvoiceNumber)
	if invNo == "" {
		return bad("invoice_number", "must not be empty")
	}
	if utf8.RuneCountInString(invNo) > gstin.MaxInvoiceNumberLen {
		return bad("invoice_number", fmt.Sprintf("longer than %d characters", gstin.MaxInvoiceNumberLen))
	}

	date, err := gstin.ParseDate(r.InvoiceDate)
	if err != nil {
		return bad("invoice_date", err.Error())
	}

	irn, err := gstin.NormalizeIRN(r.IRN)
	if err != nil {
		return bad("irn", err.Error())
	}

	supplyType := normalizeSupplyType(r.SupplyType)
	if !domain.SupplyTypes[supplyType] {
		return bad("supply_type", "unsupported supply type "+supplyType)
	}

	amounts := []struct {
		field string
		value decimal.Decimal
	}{
		{"taxable_amount", r.TaxableAmount},
		{"cgst", r.CGST},
		{"sgst", r.SGST},
		{"igst", r.IGST},
	}
	for _, a := range amounts {
		if a.value.IsNegative() {
			return bad(a.field, "must not be negative")
		}
	}

	inv := domain.CanonicalInvoice{
		Source:        r.Source,
		SourceFile:    r.SourceFile,
		RowIndex:      r.RowIndex,
		SupplierGSTIN: g,
		VendorName:    trimName(r.VendorName),
		SupplyType:    supplyType,
		InvoiceNumber: invNo,
		InvoiceDate:   date,
		TaxableAmount: paise(r.TaxableAmount),
		CGST:          paise(r.CGST),
		SGST:          paise(r.SGST),
		IGST:          paise(r.IGST),
		IRN:           irn,
	}
	if r.TotalAmount != nil {
		if r.TotalAmount.IsNegative() {
			return bad("total_amount", "must not be negative")
		}
		inv.TotalAmount = paise(*r.TotalAmount)
	} else {
		inv.TotalAmount = inv.TaxableAmount.Add(inv.Tax())
	}

	inv.NaturalKey = NaturalKey(g, invNo, date)
	inv.Key = inv.NaturalKey
	if irn != "" {
		inv.Key = IRNKey(irn)
	}
	return inv, nil
}

// NaturalKey builds the identity of an invoice without an IRN.
func NaturalKey(supplierGSTIN, invoiceNumber string, date time.Time) domain.IdentityKey {
	return domain.IdentityKey("inv:" + supplierGSTIN + "|" + invoiceNumber + "|" + date.Format(gstin.ISODate))
}

// IRNKey builds the identity of an invoice registered on the IRP.
func IRNKey(irn string) domain.IdentityKey {
	return domain.IdentityKey("irn:" + irn)
}

func paise(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func normalizeSupplyType(s string) string {
	s = gstin.NormalizeInvoiceNumber(s)
	if s == "" {
		return defaultSupplyType
	}
	return s
}

func trimName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
