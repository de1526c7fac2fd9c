package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"gstrecon/internal/domain"
)

// Engine runs the full pipeline over one batch. It keeps no state between runs and is safe
// for concurrent use.
type Engine struct {
	cfg        Config
	normalizer *Normalizer
	matcher    *Matcher
	classifier *Classifier
	scorer     *Scorer
}

// NewEngine creates an Engine.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:        cfg,
		normalizer: NewNormalizer(),
		matcher:    NewMatcher(cfg),
		classifier: NewClassifier(cfg),
		scorer:     NewScorer(cfg),
	}
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Run reconciles raw records. prior maps a vendor GSTIN to its score in the previous run
// and may be nil. Record-level problems are reported in Snapshot.Issues; the only error
// returned is the context's.
func (e *Engine) Run(ctx context.Context, raw []domain.RawRecord, prior map[string]int) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, errs := e.normalizer.Normalize(raw)
	var issues []domain.Issue
	for _, err := range errs {
		issues = append(issues, malformedIssue(err))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matched := e.matcher.Match(records)
	issues = append(issues, matched.Issues...)
	groups := matched.Groups

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	histories := BuildVendorHistories(groups)

	var open []int
	for i := range groups {
		if groups[i].Status != domain.StatusMatched {
			open = append(open, i)
		}
	}

	mismatches := make([]domain.MismatchRecord, len(open))
	scoreErrs := make([]error, len(open))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.cfg.workers())
	for slot, gi := range open {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			g := &groups[gi]
			m := e.classifier.Classify(g)
			m.RiskScore, m.RiskLevel, scoreErrs[slot] = e.scorer.Score(&m, histories[g.SupplierGSTIN])
			mismatches[slot] = m
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for slot, err := range scoreErrs {
		if err == nil {
			continue
		}
		issues = append(issues, domain.Issue{
			Kind:    domain.IssueScoringInputInvalid,
			Key:     mismatches[slot].Key,
			GSTIN:   mismatches[slot].SupplierGSTIN,
			Message: err.Error(),
		})
	}

	vendors := e.vendorRisks(groups, mismatches, histories, prior)
	stats := Aggregate(groups, mismatches, vendors)

	return &domain.Snapshot{
		Groups:     nonNil(groups),
		Mismatches: nonNil(mismatches),
		Vendors:    nonNil(vendors),
		Stats:      stats,
		Duplicates: nonNil(matched.Duplicates),
		Issues:     nonNil(issues),
	}, nil
}

// vendorRisks builds one record per GSTIN in histories. A group's mismatch is charged to
// every GSTIN the group names. The result is ordered by risk score, highest first.
func (e *Engine) vendorRisks(groups []domain.ReconciliationGroup, mismatches []domain.MismatchRecord, histories map[string]*domain.VendorHistory, prior map[string]int) []domain.VendorRiskRecord {
	names := make(map[string]string)
	charged := make(map[domain.IdentityKey][]string, len(groups))
	for i := range groups {
		g := &groups[i]
		if names[g.SupplierGSTIN] == "" {
			names[g.SupplierGSTIN] = g.VendorName
		}
		for j := range g.Records {
			if r := &g.Records[j]; names[r.SupplierGSTIN] == "" {
				names[r.SupplierGSTIN] = r.VendorName
			}
		}
		charged[g.Key] = g.GSTINs()
	}
	byVendor := make(map[string][]domain.MismatchRecord)
	for i := range mismatches {
		m := mismatches[i]
		gstins, ok := charged[m.Key]
		if !ok {
			gstins = []string{m.SupplierGSTIN}
		}
		for _, g := range gstins {
			byVendor[g] = append(byVendor[g], m)
		}
	}

	gstins := make([]string, 0, len(histories))
	for g := range histories {
		gstins = append(gstins, g)
	}
	sort.Strings(gstins)

	out := make([]domain.VendorRiskRecord, 0, len(gstins))
	for _, g := range gstins {
		var p *int
		if v, ok := prior[g]; ok {
			p = &v
		}
		out = append(out, e.scorer.AggregateVendorRisk(names[g], histories[g], byVendor[g], p))
	}
	domain.SortVendorsByRisk(out)
	return out
}

func malformedIssue(err error) domain.Issue {
	var mre *domain.MalformedRecordError
	if errors.As(err, &mre) {
		return domain.Issue{
			Kind:       domain.IssueMalformedRecord,
			SourceFile: mre.SourceFile,
			RowIndex:   mre.RowIndex,
			Message:    fmt.Sprintf("%s: %s", mre.Field, mre.Reason),
		}
	}
	return domain.Issue{Kind: domain.IssueMalformedRecord, Message: err.Error()}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
