package domain

// SourceType identifies which GST return or book a record came from.
type SourceType string

const (
	SourceGSTR1            SourceType = "GSTR1"
	SourceGSTR2B           SourceType = "GSTR2B"
	SourceGSTR3B           SourceType = "GSTR3B"
	SourcePurchaseRegister SourceType = "PurchaseRegister"
	SourceEInvoice         SourceType = "eInvoice"
)

// SourcePrecedence orders sources when one record has to stand for a group.
var SourcePrecedence = []SourceType{
	SourceEInvoice,
	SourceGSTR1,
	SourceGSTR2B,
	SourcePurchaseRegister,
	SourceGSTR3B,
}

var sourceLabels = map[SourceType]string{
	SourceGSTR1:            "GSTR-1",
	SourceGSTR2B:           "GSTR-2B",
	SourceGSTR3B:           "GSTR-3B",
	SourcePurchaseRegister: "Purchase Register",
	SourceEInvoice:         "e-Invoice",
}

// Valid reports whether s is a known source tag.
func (s SourceType) Valid() bool {
	_, ok := sourceLabels[s]
	return ok
}

// Label returns the return name as printed on the GST portal.
func (s SourceType) Label() string {
	if l, ok := sourceLabels[s]; ok {
		return l
	}
	return string(s)
}

// SupplierSide reports whether the source is a return filed by the supplier
// (GSTR-1, or GSTR-2B which is drafted from it).
func (s SourceType) SupplierSide() bool {
	return s == SourceGSTR1 || s == SourceGSTR2B
}

// Rank is the position of s in SourcePrecedence; unknown sources sort last.
func (s SourceType) Rank() int {
	for i, p := range SourcePrecedence {
		if p == s {
			return i
		}
	}
	return len(SourcePrecedence)
}

// GroupStatus is the reconciliation outcome of one invoice identity.
type GroupStatus string

const (
	StatusMatched  GroupStatus = "Matched"
	StatusMismatch GroupStatus = "Mismatch"
	StatusMissing  GroupStatus = "Missing"
)

// Side names one half of a supplier/buyer pairing.
type Side string

const (
	SideNone     Side = ""
	SideSupplier Side = "supplier"
	SideBuyer    Side = "buyer"
)

// RiskLevel is the banded form of a 0-100 risk score.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "High"
	RiskMedium RiskLevel = "Medium"
	RiskLow    RiskLevel = "Low"
)

// Valid reports whether l is one of the three bands.
func (l RiskLevel) Valid() bool {
	return l == RiskHigh || l == RiskMedium || l == RiskLow
}

// SeverityHint is the classifier's prior on whether a discrepancy looks deliberate.
type SeverityHint string

const (
	SeverityDeliberate SeverityHint = "deliberate"
	SeverityIncidental SeverityHint = "incidental"
)

// RiskTrend compares a vendor's score with the previous run.
type RiskTrend string

const (
	TrendUp     RiskTrend = "up"
	TrendDown   RiskTrend = "down"
	TrendStable RiskTrend = "stable"
)

// RootCause is the classifier's explanation category for a mismatch.
type RootCause string

const (
	CauseMissingInGSTR2B RootCause = "Invoice missing in GSTR-2B — possible supplier suppression"
	CauseMissingInBooks  RootCause = "Invoice not recorded in Purchase Register — unclaimed ITC"
	CauseGSTINMismatch   RootCause = "GSTIN mismatch — incorrect vendor registration"
	CauseRoundingError   RootCause = "Rounding error in tax calculation"
	CauseWrongPeriod     RootCause = "Filed in wrong tax period"
	CauseAmountMismatch  RootCause = "Amount mismatch — requires manual review"
)

// IssueKind categorizes a non-fatal problem found during a run.
type IssueKind string

const (
	IssueMalformedRecord     IssueKind = "malformed_record"
	IssueIdentityCollision   IssueKind = "identity_collision"
	IssueScoringInputInvalid IssueKind = "scoring_input_invalid"
	IssueDuplicateFiling     IssueKind = "duplicate_filing"
)

// SupplyTypes lists the GSTR-1 table categories accepted on input.
var SupplyTypes = map[string]bool{
	"B2B":    true,
	"B2BUR":  true,
	"B2CL":   true,
	"B2CS":   true,
	"EXPWP":  true,
	"EXPWOP": true,
	"SEZWP":  true,
	"SEZWOP": true,
	"DE":     true,
}

// ExportFormat is a downloadable mismatch report format.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
)
