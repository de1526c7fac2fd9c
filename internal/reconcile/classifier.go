package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"

	"gstrecon/internal/domain"
	"gstrecon/internal/gstin"
)

// Classifier explains a non-matched group: which two sources conflict, by how much,
// and the most likely root cause.
type Classifier struct {
	cfg Config
}

// NewClassifier creates a Classifier.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify builds the mismatch record of g. Risk fields are left for the scorer.
func (c *Classifier) Classify(g *domain.ReconciliationGroup) domain.MismatchRecord {
	m := domain.MismatchRecord{
		Key:           g.Key,
		Status:        g.Status,
		InvoiceNumber: g.InvoiceNumber,
		InvoiceDate:   g.InvoiceDate,
		SupplierGSTIN: g.SupplierGSTIN,
		VendorName:    g.VendorName,
	}

	if g.Status == domain.StatusMissing {
		c.classifyMissing(g, &m)
		return m
	}

	a, b := conflictingPair(g)
	m.Source1, m.Source2 = a.Source, b.Source
	m.AmountDiff = a.TaxableAmount.Sub(b.TaxableAmount).Abs()
	m.TaxDiff = a.Tax().Sub(b.Tax()).Abs()

	switch {
	case g.GSTINConflict:
		m.RootCause = domain.CauseGSTINMismatch
		m.Explanation = fmt.Sprintf("Invoice %s is filed under GSTIN %s in %s but %s in %s; confirm the vendor's registration before claiming ITC.",
			g.InvoiceNumber, a.SupplierGSTIN, a.Source.Label(), b.SupplierGSTIN, b.Source.Label())
	case c.isRounding(a, b, m.TaxDiff):
		m.RootCause = domain.CauseRoundingError
		m.Explanation = fmt.Sprintf("Invoice %s from %s (%s): taxable values agree but tax differs by %s between %s (%s) and %s (%s).",
			g.InvoiceNumber, vendorLabel(g), g.SupplierGSTIN, rupees(m.TaxDiff),
			a.Source.Label(), rupees(a.Tax()), b.Source.Label(), rupees(b.Tax()))
	case datesDiffer(g):
		m.RootCause = domain.CauseWrongPeriod
		m.Explanation = fmt.Sprintf("Invoice %s from %s (%s) is dated %s in %s but %s in %s (tax period %s vs %s).",
			g.InvoiceNumber, vendorLabel(g), g.SupplierGSTIN,
			a.InvoiceDate.Format(gstin.ISODate), a.Source.Label(), b.InvoiceDate.Format(gstin.ISODate), b.Source.Label(),
			gstin.TaxPeriod(a.InvoiceDate), gstin.TaxPeriod(b.InvoiceDate))
	default:
		m.RootCause = domain.CauseAmountMismatch
		m.Explanation = fmt.Sprintf("Invoice %s from %s (%s): %s reports taxable %s and tax %s, %s reports taxable %s and tax %s; difference %s taxable, %s tax.",
			g.InvoiceNumber, vendorLabel(g), g.SupplierGSTIN,
			a.Source.Label(), rupees(a.TaxableAmount), rupees(a.Tax()),
			b.Source.Label(), rupees(b.TaxableAmount), rupees(b.Tax()),
			rupees(m.AmountDiff), rupees(m.TaxDiff))
	}
	m.Severity = severityOf(m.RootCause)
	return m
}

func (c *Classifier) classifyMissing(g *domain.ReconciliationGroup, m *domain.MismatchRecord) {
	present := g.Reference()
	absent := domain.SourceGSTR2B
	m.RootCause = domain.CauseMissingInGSTR2B
	if g.MissingSide == domain.SideBuyer {
		absent = domain.SourcePurchaseRegister
		m.RootCause = domain.CauseMissingInBooks
	}
	m.Source1, m.Source2 = present.Source, absent
	m.AmountDiff = present.TaxableAmount
	m.TaxDiff = present.Tax()
	m.Severity = severityOf(m.RootCause)
	m.Explanation = fmt.Sprintf("Invoice %s from %s (%s) appears in %s but not in %s; taxable %s and tax %s are unreconciled.",
		g.InvoiceNumber, vendorLabel(g), g.SupplierGSTIN, present.Source.Label(), absent.Label(),
		rupees(m.AmountDiff), rupees(m.TaxDiff))
}

// isRounding holds when taxable values agree and the tax gap stays inside the rounding band
// of the higher-precedence source's tax.
func (c *Classifier) isRounding(a, b *domain.CanonicalInvoice, taxDiff decimal.Decimal) bool {
	if !c.cfg.WithinTolerance(a.TaxableAmount, b.TaxableAmount) {
		return false
	}
	if c.cfg.WithinTolerance(a.Tax(), b.Tax()) {
		return false
	}
	return taxDiff.LessThanOrEqual(a.Tax().Mul(c.cfg.RoundingBand))
}

// conflictingPair picks the two effective records that disagree the most. Records are
// already in precedence order, so ties keep the higher-precedence pair.
func conflictingPair(g *domain.ReconciliationGroup) (a, b *domain.CanonicalInvoice) {
	a, b = &g.Records[0], &g.Records[0]
	if len(g.Records) > 1 {
		b = &g.Records[1]
	}
	for i := 0; i < len(g.Records); i++ {
		for j := i + 1; j < len(g.Records); j++ {
			if pairBeats(&g.Records[i], &g.Records[j], a, b) {
				a, b = &g.Records[i], &g.Records[j]
			}
		}
	}
	return a, b
}

func pairBeats(x1, x2, y1, y2 *domain.CanonicalInvoice) bool {
	if c := x1.TaxableAmount.Sub(x2.TaxableAmount).Abs().Cmp(y1.TaxableAmount.Sub(y2.TaxableAmount).Abs()); c != 0 {
		return c > 0
	}
	if c := x1.Tax().Sub(x2.Tax()).Abs().Cmp(y1.Tax().Sub(y2.Tax()).Abs()); c != 0 {
		return c > 0
	}
	return conflicts(x1, x2) > conflicts(y1, y2)
}

func conflicts(a, b *domain.CanonicalInvoice) int {
	n := 0
	if a.SupplierGSTIN != b.SupplierGSTIN {
		n++
	}
	if !a.InvoiceDate.Equal(b.InvoiceDate) {
		n++
	}
	return n
}

func datesDiffer(g *domain.ReconciliationGroup) bool {
	for i := 1; i < len(g.Records); i++ {
		if gstin.DaysBetween(g.Records[0].InvoiceDate, g.Records[i].InvoiceDate) > 0 {
			return true
		}
	}
	return false
}

func severityOf(cause domain.RootCause) domain.SeverityHint {
	switch cause {
	case domain.CauseMissingInGSTR2B, domain.CauseGSTINMismatch:
		return domain.SeverityDeliberate
	default:
		return domain.SeverityIncidental
	}
}

func vendorLabel(g *domain.ReconciliationGroup) string {
	if g.VendorName == "" {
		return "unnamed vendor"
	}
	return g.VendorName
}

func rupees(d decimal.Decimal) string {
	return "₹" + d.StringFixed(2)
}
