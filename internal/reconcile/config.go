// Package reconcile matches invoice records across GST return sources, explains
// the discrepancies it finds and scores the resulting vendor risk.
//
// Every stage is a pure function of its inputs. Engine wires them together for one run.
package reconcile

import (
	"runtime"

	"github.com/shopspring/decimal"

	"gstrecon/internal/domain"
)

// Weights are the per-factor weights of a mismatch risk score. They sum to 100.
type Weights struct {
	Amount   float64
	Tax      float64
	Severity float64
	History  float64
}

// Config holds the tolerances, weights and thresholds of a run.
type Config struct {
	// AbsTolerance and RelTolerance bound the amount difference still treated as equal;
	// the larger of the two applies.
	AbsTolerance decimal.Decimal
	RelTolerance decimal.Decimal
	// RoundingBand is the share of expected tax a tax-only difference may reach
	// and still be read as a rounding error.
	RoundingBand decimal.Decimal

	Weights            Weights
	IncidentalSeverity float64
	HighThreshold      int
	MediumThreshold    int

	VendorRatioWeight    float64
	VendorMismatchWeight float64
	RatioAmplifier       float64
	TrendBand            int

	LooseGSTINMatch bool
	Workers         int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		AbsTolerance:         decimal.NewFromInt(1),
		RelTolerance:         decimal.RequireFromString("0.0001"),
		RoundingBand:         decimal.RequireFromString("0.02"),
		Weights:              Weights{Amount: 30, Tax: 20, Severity: 30, History: 20},
		IncidentalSeverity:   0.35,
		HighThreshold:        70,
		MediumThreshold:      40,
		VendorRatioWeight:    70,
		VendorMismatchWeight: 30,
		RatioAmplifier:       2.5,
		TrendBand:            5,
		LooseGSTINMatch:      true,
		Workers:              runtime.GOMAXPROCS(0),
	}
}

func (c Config) workers() int {
	if c.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return c.Workers
}

// WithinTolerance reports whether a and b differ by no more than the configured
// tolerance. The boundary is inclusive.
func (c Config) WithinTolerance(a, b decimal.Decimal) bool {
	diff := a.Sub(b).Abs()
	scale := decimal.Max(a.Abs(), b.Abs())
	limit := decimal.Max(c.AbsTolerance, c.RelTolerance.Mul(scale))
	return diff.LessThanOrEqual(limit)
}

// Level bands a 0-100 score.
func (c Config) Level(score int) domain.RiskLevel {
	switch {
	case score >= c.HighThreshold:
		return domain.RiskHigh
	case score >= c.MediumThreshold:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
