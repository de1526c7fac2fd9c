// Package report derives dashboard views from a stored run: the monthly mismatch trend,
// risk and root-cause breakdowns, and the invoice graph.
package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"gstrecon/internal/domain"
)

const monthLayout = "2006-01"

// Trend buckets invoices and mismatches by invoice month, oldest first.
func Trend(groups []domain.ReconciliationGroup, mismatches []domain.MismatchRecord) []domain.MonthlyTrend {
	byMonth := make(map[string]*domain.MonthlyTrend)
	get := func(month string) *domain.MonthlyTrend {
		t, ok := byMonth[month]
		if !ok {
			t = &domain.MonthlyTrend{Month: month, TaxAtRisk: decimal.Zero}
			byMonth[month] = t
		}
		return t
	}

	for i := range groups {
		get(groups[i].InvoiceDate.Format(monthLayout)).Invoices++
	}
	for i := range mismatches {
		t := get(mismatches[i].InvoiceDate.Format(monthLayout))
		t.Mismatches++
		t.TaxAtRisk = t.TaxAtRisk.Add(mismatches[i].TaxDiff)
	}

	out := make([]domain.MonthlyTrend, 0, len(byMonth))
	for _, t := range byMonth {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// RiskDistribution counts mismatches per risk band. All three bands are always present.
func RiskDistribution(mismatches []domain.MismatchRecord) []domain.RiskBucket {
	out := []domain.RiskBucket{
		{Level: domain.RiskHigh, Name: "High Risk"},
		{Level: domain.RiskMedium, Name: "Medium Risk"},
		{Level: domain.RiskLow, Name: "Low Risk"},
	}
	for i := range mismatches {
		for j := range out {
			if out[j].Level == mismatches[i].RiskLevel {
				out[j].Count++
			}
		}
	}
	return out
}

// RootCauses groups mismatches by cause, most frequent first.
func RootCauses(mismatches []domain.MismatchRecord) []domain.CauseBucket {
	byCause := make(map[domain.RootCause]*domain.CauseBucket)
	for i := range mismatches {
		b, ok := byCause[mismatches[i].RootCause]
		if !ok {
			b = &domain.CauseBucket{Cause: mismatches[i].RootCause, TaxAtRisk: decimal.Zero}
			byCause[mismatches[i].RootCause] = b
		}
		b.Count++
		b.TaxAtRisk = b.TaxAtRisk.Add(mismatches[i].TaxDiff)
	}

	out := make([]domain.CauseBucket, 0, len(byCause))
	for _, b := range byCause {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Cause < out[j].Cause
	})
	return out
}

// TopVendors returns up to n vendors by descending risk score.
func TopVendors(vendors []domain.VendorRiskRecord, n int) []domain.VendorRiskRecord {
	out := make([]domain.VendorRiskRecord, len(vendors))
	copy(out, vendors)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RiskScore != out[j].RiskScore {
			return out[i].RiskScore > out[j].RiskScore
		}
		return out[i].GSTIN < out[j].GSTIN
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// BuildInsights assembles the dashboard view of a run.
func BuildInsights(stats domain.ReconciliationStats, groups []domain.ReconciliationGroup, mismatches []domain.MismatchRecord, vendors []domain.VendorRiskRecord, topN int) *domain.Insights {
	return &domain.Insights{
		Stats:            stats,
		Trend:            Trend(groups, mismatches),
		RiskDistribution: RiskDistribution(mismatches),
		RootCauses:       RootCauses(mismatches),
		TopVendors:       TopVendors(vendors, topN),
	}
}
