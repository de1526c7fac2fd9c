package domain

import "github.com/shopspring/decimal"

// MonthlyTrend is one month of a run's mismatch trend, keyed by invoice month (YYYY-MM).
type MonthlyTrend struct {
	Month      string          `json:"month"`
	Invoices   int             `json:"invoices"`
	Mismatches int             `json:"mismatches"`
	TaxAtRisk  decimal.Decimal `json:"value"`
}

// RiskBucket counts mismatches in one risk band.
type RiskBucket struct {
	Level RiskLevel `json:"level"`
	Name  string    `json:"name"`
	Count int       `json:"value"`
}

// CauseBucket counts mismatches sharing a root cause.
type CauseBucket struct {
	Cause     RootCause       `json:"root_cause"`
	Count     int             `json:"count"`
	TaxAtRisk decimal.Decimal `json:"tax_at_risk"`
}

// Insights are the dashboard aggregates of one run.
type Insights struct {
	Stats            ReconciliationStats `json:"stats"`
	Trend            []MonthlyTrend      `json:"trend"`
	RiskDistribution []RiskBucket        `json:"risk_distribution"`
	RootCauses       []CauseBucket       `json:"root_causes"`
	TopVendors       []VendorRiskRecord  `json:"top_vendors"`
}

// GraphNodeType tags a node of the invoice graph.
type GraphNodeType string

const (
	NodeTaxpayer GraphNodeType = "taxpayer"
	NodeVendor   GraphNodeType = "vendor"
	NodeInvoice  GraphNodeType = "invoice"
	NodeIRN      GraphNodeType = "irn"
)

// GraphEdgeType tags an edge of the invoice graph.
type GraphEdgeType string

const (
	EdgeSupplied   GraphEdgeType = "supplied"
	EdgeITCClaimed GraphEdgeType = "itcClaimed"
	EdgeMatched    GraphEdgeType = "matched"
	EdgeMismatch   GraphEdgeType = "mismatch"
)

// GraphNode is one entity of the invoice graph.
type GraphNode struct {
	ID    string         `json:"id"`
	Type  GraphNodeType  `json:"type"`
	Label string         `json:"label"`
	Data  map[string]any `json:"data"`
}

// GraphEdge links two graph nodes.
type GraphEdge struct {
	ID     string        `json:"id"`
	Source string        `json:"source"`
	Target string        `json:"target"`
	Label  string        `json:"label"`
	Type   GraphEdgeType `json:"type"`
}

// Graph is a projection of a run's groups onto taxpayer, vendor, invoice and IRN nodes.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// GraphLayer selects which invoices a graph projection keeps.
type GraphLayer string

const (
	LayerAll        GraphLayer = "all"
	LayerMismatches GraphLayer = "mismatches"
	LayerHighRisk   GraphLayer = "highRisk"
)
