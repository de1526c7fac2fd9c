package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IdentityKey identifies one real-world invoice across every source it appears in.
type IdentityKey string

// RawRecord is one invoice row as delivered by the ingestion layer, tagged with its source.
type RawRecord struct {
	Source        SourceType       `json:"source"`
	SourceFile    string           `json:"source_file"`
	RowIndex      int              `json:"row_index"`
	SupplierGSTIN string           `json:"supplier_gstin"`
	VendorName    string           `json:"vendor_name"`
	InvoiceNumber string           `json:"invoice_number"`
	InvoiceDate   string           `json:"invoice_date"`
	SupplyType    string           `json:"supply_type,omitempty"`
	TaxableAmount decimal.Decimal  `json:"taxable_amount"`
	CGST          decimal.Decimal  `json:"cgst"`
	SGST          decimal.Decimal  `json:"sgst"`
	IGST          decimal.Decimal  `json:"igst"`
	TotalAmount   *decimal.Decimal `json:"total_amount,omitempty"`
	IRN           string           `json:"irn,omitempty"`
}

// CanonicalInvoice is a normalized source record. It is never modified after normalization.
type CanonicalInvoice struct {
	Key           IdentityKey     `json:"key"`
	NaturalKey    IdentityKey     `json:"natural_key"`
	Source        SourceType      `json:"source"`
	SourceFile    string          `json:"source_file"`
	RowIndex      int             `json:"row_index"`
	SupplierGSTIN string          `json:"supplier_gstin"`
	VendorName    string          `json:"vendor_name"`
	SupplyType    string          `json:"supply_type"`
	InvoiceNumber string          `json:"invoice_number"`
	InvoiceDate   time.Time       `json:"invoice_date"`
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	CGST          decimal.Decimal `json:"cgst"`
	SGST          decimal.Decimal `json:"sgst"`
	IGST          decimal.Decimal `json:"igst"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	IRN           string          `json:"irn,omitempty"`
}

// Tax returns CGST + SGST + IGST.
func (c *CanonicalInvoice) Tax() decimal.Decimal {
	return c.CGST.Add(c.SGST).Add(c.IGST)
}

// KeyedByIRN reports whether the record's identity came from its IRN.
func (c *CanonicalInvoice) KeyedByIRN() bool {
	return c.IRN != ""
}

// Ref returns the locator of the record in its source file.
func (c *CanonicalInvoice) Ref() RecordRef {
	return RecordRef{Source: c.Source, SourceFile: c.SourceFile, RowIndex: c.RowIndex, InvoiceDate: c.InvoiceDate}
}

// RecordRef points back at a source row.
type RecordRef struct {
	Source      SourceType `json:"source"`
	SourceFile  string     `json:"source_file"`
	RowIndex    int        `json:"row_index"`
	InvoiceDate time.Time  `json:"invoice_date"`
}

// ReconciliationGroup holds every record sharing one identity.
// Records has at most one entry per source; superseded duplicate filings are kept aside.
type ReconciliationGroup struct {
	Key           IdentityKey        `json:"key"`
	Status        GroupStatus        `json:"status"`
	SupplierGSTIN string             `json:"supplier_gstin"`
	VendorName    string             `json:"vendor_name"`
	InvoiceNumber string             `json:"invoice_number"`
	InvoiceDate   time.Time          `json:"invoice_date"`
	IRN           string             `json:"irn,omitempty"`
	GSTINConflict bool               `json:"gstin_conflict"`
	MissingSide   Side               `json:"missing_side,omitempty"`
	Records       []CanonicalInvoice `json:"records"`
	Superseded    []CanonicalInvoice `json:"superseded,omitempty"`
}

// Record returns the effective record for a source, if present.
func (g *ReconciliationGroup) Record(src SourceType) (*CanonicalInvoice, bool) {
	for i := range g.Records {
		if g.Records[i].Source == src {
			return &g.Records[i], true
		}
	}
	return nil, false
}

// Sources returns the sources present in the group, in record order.
func (g *ReconciliationGroup) Sources() []SourceType {
	out := make([]SourceType, 0, len(g.Records))
	for i := range g.Records {
		out = append(out, g.Records[i].Source)
	}
	return out
}

// HasSupplierSide reports whether any supplier-filed return holds the invoice.
func (g *ReconciliationGroup) HasSupplierSide() bool {
	for i := range g.Records {
		if g.Records[i].Source.SupplierSide() {
			return true
		}
	}
	return false
}

// HasBuyerSide reports whether any buyer-side source holds the invoice.
func (g *ReconciliationGroup) HasBuyerSide() bool {
	for i := range g.Records {
		if !g.Records[i].Source.SupplierSide() {
			return true
		}
	}
	return false
}

// GSTINs returns every supplier GSTIN the group's records name: the resolved one first,
// then the others in record order.
func (g *ReconciliationGroup) GSTINs() []string {
	out := []string{g.SupplierGSTIN}
	seen := map[string]bool{g.SupplierGSTIN: true}
	for i := range g.Records {
		gst := g.Records[i].SupplierGSTIN
		if gst == "" || seen[gst] {
			continue
		}
		seen[gst] = true
		out = append(out, gst)
	}
	return out
}

// Size counts every record assigned to the group, duplicates included.
func (g *ReconciliationGroup) Size() int {
	return len(g.Records) + len(g.Superseded)
}

var referenceOrder = []SourceType{
	SourcePurchaseRegister,
	SourceEInvoice,
	SourceGSTR3B,
	SourceGSTR2B,
	SourceGSTR1,
}

// Reference returns the record whose amounts represent the group in vendor and ITC totals.
// The buyer's own books are preferred since ITC is claimed from them.
func (g *ReconciliationGroup) Reference() *CanonicalInvoice {
	for _, src := range referenceOrder {
		if r, ok := g.Record(src); ok {
			return r
		}
	}
	if len(g.Records) == 0 {
		return nil
	}
	return &g.Records[0]
}

// DuplicateFiling records a source that held the same invoice more than once.
type DuplicateFiling struct {
	Key     IdentityKey `json:"key"`
	Source  SourceType  `json:"source"`
	Kept    RecordRef   `json:"kept"`
	Dropped []RecordRef `json:"dropped"`
}

// MismatchRecord explains one non-matched group.
type MismatchRecord struct {
	Key           IdentityKey     `db:"identity_key" json:"key"`
	Status        GroupStatus     `db:"status" json:"status"`
	InvoiceNumber string          `db:"invoice_number" json:"invoice_number"`
	InvoiceDate   time.Time       `db:"invoice_date" json:"invoice_date"`
	SupplierGSTIN string          `db:"supplier_gstin" json:"gstin"`
	VendorName    string          `db:"vendor_name" json:"vendor_name"`
	AmountDiff    decimal.Decimal `db:"amount_diff" json:"amount_diff"`
	TaxDiff       decimal.Decimal `db:"tax_diff" json:"tax_diff"`
	RootCause     RootCause       `db:"root_cause" json:"root_cause"`
	Severity      SeverityHint    `db:"severity" json:"severity"`
	RiskScore     int             `db:"risk_score" json:"risk_score"`
	RiskLevel     RiskLevel       `db:"risk_level" json:"risk_level"`
	Source1       SourceType      `db:"source1" json:"source1"`
	Source2       SourceType      `db:"source2" json:"source2"`
	Explanation   string          `db:"explanation" json:"details"`
}

// VendorHistory summarizes one supplier's invoices within a run; it feeds the scorer.
type VendorHistory struct {
	GSTIN         string
	InvoiceCount  int
	MismatchCount int
	TotalValue    decimal.Decimal
	MedianTaxable decimal.Decimal
	MedianTax     decimal.Decimal
}

// MismatchRatio returns MismatchCount / InvoiceCount, or 0 without history.
func (h *VendorHistory) MismatchRatio() float64 {
	if h.InvoiceCount == 0 {
		return 0
	}
	return float64(h.MismatchCount) / float64(h.InvoiceCount)
}

// VendorRiskRecord is the per-supplier risk summary of a run.
type VendorRiskRecord struct {
	GSTIN           string          `db:"gstin" json:"gstin"`
	Name            string          `db:"vendor_name" json:"name"`
	InvoiceCount    int             `db:"invoice_count" json:"invoice_count"`
	MismatchCount   int             `db:"mismatch_count" json:"mismatch_count"`
	TotalValue      decimal.Decimal `db:"total_value" json:"total_value"`
	RiskScore       int             `db:"risk_score" json:"risk_score"`
	PriorRiskScore  *int            `db:"prior_risk_score" json:"prior_risk_score,omitempty"`
	Trend           RiskTrend       `db:"trend" json:"trend"`
	PredictedRisk   RiskLevel       `db:"predicted_risk" json:"predicted_risk"`
	ComplianceScore int             `db:"compliance_score" json:"compliance_score"`
}

// SortVendorsByRisk orders vendors by risk score, highest first, then by GSTIN.
func SortVendorsByRisk(vs []VendorRiskRecord) {
	sort.SliceStable(vs, func(i, j int) bool {
		if vs[i].RiskScore != vs[j].RiskScore {
			return vs[i].RiskScore > vs[j].RiskScore
		}
		return vs[i].GSTIN < vs[j].GSTIN
	})
}

// ReconciliationStats is the platform-wide snapshot of one run.
type ReconciliationStats struct {
	TotalInvoices   int             `db:"total_invoices" json:"total_invoices"`
	Matched         int             `db:"matched" json:"matched"`
	Mismatches      int             `db:"mismatches" json:"mismatches"`
	Missing         int             `db:"missing" json:"missing"`
	TotalITCClaimed decimal.Decimal `db:"total_itc_claimed" json:"total_itc_claimed"`
	LeakageRisk     decimal.Decimal `db:"leakage_risk" json:"leakage_risk"`
	ComplianceScore int             `db:"compliance_score" json:"compliance_score"`
	HighRiskVendors int             `db:"high_risk_vendors" json:"high_risk_vendors"`
}

// Issue is a non-fatal, per-record or per-group problem surfaced next to a run's output.
type Issue struct {
	Kind       IssueKind   `json:"kind"`
	SourceFile string      `json:"source_file,omitempty"`
	RowIndex   int         `json:"row_index,omitempty"`
	Key        IdentityKey `json:"key,omitempty"`
	GSTIN      string      `json:"gstin,omitempty"`
	Message    string      `json:"message"`
}

// Snapshot is the immutable output of one reconciliation run.
type Snapshot struct {
	Groups     []ReconciliationGroup `json:"groups"`
	Mismatches []MismatchRecord      `json:"mismatches"`
	Vendors    []VendorRiskRecord    `json:"vendors"`
	Stats      ReconciliationStats   `json:"stats"`
	Duplicates []DuplicateFiling     `json:"duplicates"`
	Issues     []Issue               `json:"issues"`
}

// Run is a persisted reconciliation run.
type Run struct {
	ID          uuid.UUID           `json:"id"`
	Fingerprint string              `json:"fingerprint"`
	Label       string              `json:"label"`
	RecordCount int                 `json:"record_count"`
	Stats       ReconciliationStats `json:"stats"`
	Issues      []Issue             `json:"issues"`
	Duplicates  []DuplicateFiling   `json:"duplicates"`
	ReportKey   string              `json:"report_key,omitempty"`
	DurationMs  int64               `json:"duration_ms"`
	CreatedAt   time.Time           `json:"created_at"`
}
