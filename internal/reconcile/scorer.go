package reconcile

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"gstrecon/internal/domain"
)

// Scorer turns mismatches and vendor histories into 0-100 risk scores.
type Scorer struct {
	cfg Config
}

// NewScorer creates a Scorer.
func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score rates one mismatch against its vendor's history. When the vendor has no history
// the history term is zero and a *domain.ScoringInputError is returned with the score,
// which is still valid.
func (s *Scorer) Score(m *domain.MismatchRecord, h *domain.VendorHistory) (int, domain.RiskLevel, error) {
	var err error
	var history float64
	if h == nil || h.InvoiceCount == 0 {
		err = &domain.ScoringInputError{GSTIN: m.SupplierGSTIN, Key: m.Key}
	} else {
		history = h.MismatchRatio()
	}

	var medianTaxable, medianTax decimal.Decimal
	if h != nil {
		medianTaxable, medianTax = h.MedianTaxable, h.MedianTax
	}

	severity := s.cfg.IncidentalSeverity
	if m.Severity == domain.SeverityDeliberate {
		severity = 1
	}

	w := s.cfg.Weights
	raw := w.Amount*relative(m.AmountDiff, medianTaxable) +
		w.Tax*relative(m.TaxDiff, medianTax) +
		w.Severity*severity +
		w.History*history
	score := clip(int(math.Round(raw)))
	return score, s.cfg.Level(score), err
}

// AggregateVendorRisk summarizes a vendor from its history and scored mismatches.
// prior is the vendor's score in the previous run, nil if there was none.
func (s *Scorer) AggregateVendorRisk(name string, h *domain.VendorHistory, mismatches []domain.MismatchRecord, prior *int) domain.VendorRiskRecord {
	ratio := h.MismatchRatio()

	var mean float64
	if len(mismatches) > 0 {
		total := 0
		for i := range mismatches {
			total += mismatches[i].RiskScore
		}
		mean = float64(total) / float64(len(mismatches))
	}

	raw := s.cfg.VendorRatioWeight*math.Min(1, ratio*s.cfg.RatioAmplifier) +
		s.cfg.VendorMismatchWeight*mean/100
	score := clip(int(math.Round(raw)))

	return domain.VendorRiskRecord{
		GSTIN:           h.GSTIN,
		Name:            name,
		InvoiceCount:    h.InvoiceCount,
		MismatchCount:   h.MismatchCount,
		TotalValue:      h.TotalValue,
		RiskScore:       score,
		PriorRiskScore:  prior,
		Trend:           s.trend(score, prior),
		PredictedRisk:   s.cfg.Level(score),
		ComplianceScore: clip(int(math.Round(100 * (1 - ratio)))),
	}
}

func (s *Scorer) trend(score int, prior *int) domain.RiskTrend {
	if prior == nil {
		return domain.TrendStable
	}
	switch d := score - *prior; {
	case d > s.cfg.TrendBand:
		return domain.TrendUp
	case d < -s.cfg.TrendBand:
		return domain.TrendDown
	default:
		return domain.TrendStable
	}
}

// BuildVendorHistories derives per-GSTIN history from a run's groups, using each group's
// reference record for values. A group whose records disagree on the supplier GSTIN counts
// toward every GSTIN it names.
func BuildVendorHistories(groups []domain.ReconciliationGroup) map[string]*domain.VendorHistory {
	taxable := make(map[string][]decimal.Decimal)
	tax := make(map[string][]decimal.Decimal)
	out := make(map[string]*domain.VendorHistory)

	for i := range groups {
		g := &groups[i]
		ref := g.Reference()
		for _, gst := range g.GSTINs() {
			h, ok := out[gst]
			if !ok {
				h = &domain.VendorHistory{GSTIN: gst}
				out[gst] = h
			}
			h.InvoiceCount++
			if g.Status != domain.StatusMatched {
				h.MismatchCount++
			}
			h.TotalValue = h.TotalValue.Add(ref.TotalAmount)
			taxable[gst] = append(taxable[gst], ref.TaxableAmount)
			tax[gst] = append(tax[gst], ref.Tax())
		}
	}

	for k, h := range out {
		h.MedianTaxable = median(taxable[k])
		h.MedianTax = median(tax[k])
	}
	return out
}

func median(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}

// relative returns min(1, diff/base); a positive diff against a zero base counts as 1.
func relative(diff, base decimal.Decimal) float64 {
	if !diff.IsPositive() {
		return 0
	}
	if !base.IsPositive() {
		return 1
	}
	return math.Min(1, diff.Div(base).InexactFloat64())
}

func clip(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
