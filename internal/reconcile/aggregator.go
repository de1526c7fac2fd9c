package reconcile

import (
	"math"

	"github.com/shopspring/decimal"

	"gstrecon/internal/domain"
)

// Aggregate derives run statistics from the three result sets. It holds no state and can be
// recomputed at any time.
func Aggregate(groups []domain.ReconciliationGroup, mismatches []domain.MismatchRecord, vendors []domain.VendorRiskRecord) domain.ReconciliationStats {
	stats := domain.ReconciliationStats{
		TotalInvoices:   len(groups),
		TotalITCClaimed: decimal.Zero,
		LeakageRisk:     decimal.Zero,
	}

	for i := range groups {
		switch groups[i].Status {
		case domain.StatusMatched:
			stats.Matched++
		case domain.StatusMismatch:
			stats.Mismatches++
		case domain.StatusMissing:
			stats.Missing++
		}
		if ref := groups[i].Reference(); ref != nil {
			stats.TotalITCClaimed = stats.TotalITCClaimed.Add(ref.Tax())
		}
	}

	for i := range mismatches {
		stats.LeakageRisk = stats.LeakageRisk.Add(mismatches[i].TaxDiff)
	}

	for i := range vendors {
		if vendors[i].PredictedRisk == domain.RiskHigh {
			stats.HighRiskVendors++
		}
	}

	if stats.TotalInvoices > 0 {
		stats.ComplianceScore = int(math.Round(float64(stats.Matched) / float64(stats.TotalInvoices) * 100))
	}
	return stats
}
