package domain

// MismatchFilter narrows and orders a run's mismatch listing.
type MismatchFilter struct {
	RiskLevel RiskLevel
	RootCause RootCause
	Query     string
	SortBy    string
	SortDesc  bool
	Offset    int
	Limit     int
}

// MismatchSortColumns maps accepted sort keys to stored columns.
var MismatchSortColumns = map[string]string{
	"risk_score":     "risk_score",
	"amount_diff":    "amount_diff",
	"tax_diff":       "tax_diff",
	"invoice_number": "invoice_number",
	"vendor_name":    "vendor_name",
	"invoice_date":   "invoice_date",
}

// VendorFilter narrows a run's vendor listing. Results are ordered by risk score, highest first.
type VendorFilter struct {
	RiskLevel RiskLevel
	Query     string
	Offset    int
	Limit     int
}

// GroupFilter narrows a run's group listing.
type GroupFilter struct {
	Status GroupStatus
	Offset int
	Limit  int
}

// GraphOptions bound a graph projection.
type GraphOptions struct {
	Layer         GraphLayer
	Query         string
	TaxpayerGSTIN string
	MaxVendors    int
	MaxInvoices   int
}
