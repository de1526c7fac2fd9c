package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"gstrecon/internal/domain"
	"gstrecon/internal/gstin"
)

// MatchOutput is everything the matcher derives from one batch of canonical records.
type MatchOutput struct {
	Groups     []domain.ReconciliationGroup
	Duplicates []domain.DuplicateFiling
	Issues     []domain.Issue
}

// Matcher groups canonical records by invoice identity and decides each group's status.
type Matcher struct {
	cfg Config
}

// NewMatcher creates a Matcher.
func NewMatcher(cfg Config) *Matcher {
	return &Matcher{cfg: cfg}
}

// Match groups the full batch in one pass. The result does not depend on input order;
// groups come back sorted by key.
func (m *Matcher) Match(records []domain.CanonicalInvoice) MatchOutput {
	sorted := make([]domain.CanonicalInvoice, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return recordLess(&sorted[i], &sorted[j]) })

	// A record without an IRN joins the IRN group of the same natural invoice.
	alias := make(map[domain.IdentityKey]domain.IdentityKey)
	for i := range sorted {
		r := &sorted[i]
		if !r.KeyedByIRN() {
			continue
		}
		if cur, ok := alias[r.NaturalKey]; !ok || r.Key < cur {
			alias[r.NaturalKey] = r.Key
		}
	}

	buckets := make(map[domain.IdentityKey][]domain.CanonicalInvoice)
	for i := range sorted {
		k := sorted[i].Key
		if !sorted[i].KeyedByIRN() {
			if a, ok := alias[sorted[i].NaturalKey]; ok {
				k = a
			}
		}
		buckets[k] = append(buckets[k], sorted[i])
	}

	if m.cfg.LooseGSTINMatch {
		m.joinLoose(buckets)
	}

	keys := make([]domain.IdentityKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := MatchOutput{Groups: make([]domain.ReconciliationGroup, 0, len(keys))}
	for _, k := range keys {
		g, dups, issues := m.buildGroup(k, buckets[k])
		out.Groups = append(out.Groups, g)
		out.Duplicates = append(out.Duplicates, dups...)
		out.Issues = append(out.Issues, issues...)
	}
	return out
}

// joinLoose pairs a supplier-only bucket with a buyer-only bucket when they carry the same
// invoice number and date under different GSTINs, their taxable amounts agree within
// tolerance, and neither has another candidate.
func (m *Matcher) joinLoose(buckets map[domain.IdentityKey][]domain.CanonicalInvoice) {
	supplierOnly := make(map[string][]domain.IdentityKey)
	buyerOnly := make(map[string][]domain.IdentityKey)
	for k, recs := range buckets {
		sup, buy := sides(recs)
		if sup == buy {
			continue
		}
		rep := representative(recs)
		lk := rep.InvoiceNumber + "|" + rep.InvoiceDate.Format(gstin.ISODate)
		if sup {
			supplierOnly[lk] = append(supplierOnly[lk], k)
		} else {
			buyerOnly[lk] = append(buyerOnly[lk], k)
		}
	}

	for lk, sks := range supplierOnly {
		bks := buyerOnly[lk]
		if len(sks) != 1 || len(bks) != 1 {
			continue
		}
		s, b := sks[0], bks[0]
		if isIRNKey(s) && isIRNKey(b) {
			continue
		}
		sr, br := representative(buckets[s]), representative(buckets[b])
		if sr.SupplierGSTIN == br.SupplierGSTIN {
			continue
		}
		if !m.cfg.WithinTolerance(sr.TaxableAmount, br.TaxableAmount) {
			continue
		}
		into, from := s, b
		if isIRNKey(b) {
			into, from = b, s
		}
		buckets[into] = append(buckets[into], buckets[from]...)
		delete(buckets, from)
	}
}

func (m *Matcher) buildGroup(key domain.IdentityKey, recs []domain.CanonicalInvoice) (domain.ReconciliationGroup, []domain.DuplicateFiling, []domain.Issue) {
	if len(recs) == 0 {
		panic(fmt.Sprintf("reconcile: group %s has no records", key))
	}

	bySource := make(map[domain.SourceType][]domain.CanonicalInvoice)
	for i := range recs {
		bySource[recs[i].Source] = append(bySource[recs[i].Source], recs[i])
	}

	g := domain.ReconciliationGroup{Key: key}
	var dups []domain.DuplicateFiling
	var issues []domain.Issue

	for _, src := range domain.SourcePrecedence {
		list := bySource[src]
		if len(list) == 0 {
			continue
		}
		sort.SliceStable(list, func(i, j int) bool { return newer(&list[i], &list[j]) })
		g.Records = append(g.Records, list[0])
		if len(list) == 1 {
			continue
		}
		g.Superseded = append(g.Superseded, list[1:]...)
		dup := domain.DuplicateFiling{Key: key, Source: src, Kept: list[0].Ref()}
		for i := 1; i < len(list); i++ {
			dup.Dropped = append(dup.Dropped, list[i].Ref())
		}
		dups = append(dups, dup)
		issues = append(issues, domain.Issue{
			Kind:       domain.IssueDuplicateFiling,
			SourceFile: list[0].SourceFile,
			RowIndex:   list[0].RowIndex,
			Key:        key,
			GSTIN:      list[0].SupplierGSTIN,
			Message: fmt.Sprintf("%d duplicate %s filing(s) superseded by %s row %d",
				len(list)-1, src.Label(), list[0].SourceFile, list[0].RowIndex),
		})
	}

	primary := &g.Records[0]
	for i := range g.Records {
		if g.Records[i].KeyedByIRN() {
			primary = &g.Records[i]
			break
		}
	}
	g.SupplierGSTIN = primary.SupplierGSTIN
	g.InvoiceNumber = primary.InvoiceNumber
	g.InvoiceDate = primary.InvoiceDate
	g.VendorName = primary.VendorName
	for i := range g.Records {
		r := &g.Records[i]
		if g.VendorName == "" {
			g.VendorName = r.VendorName
		}
		if g.IRN == "" {
			g.IRN = r.IRN
		}
		if r.SupplierGSTIN != g.SupplierGSTIN {
			g.GSTINConflict = true
		}
	}
	if g.GSTINConflict {
		issues = append(issues, domain.Issue{
			Kind:    domain.IssueIdentityCollision,
			Key:     key,
			GSTIN:   g.SupplierGSTIN,
			Message: fmt.Sprintf("records disagree on supplier GSTIN (%s); using %s from %s", strings.Join(distinctGSTINs(g.Records), ", "), g.SupplierGSTIN, primary.Source.Label()),
		})
	}

	g.Status, g.MissingSide = m.status(&g)
	return g, dups, issues
}

func (m *Matcher) status(g *domain.ReconciliationGroup) (domain.GroupStatus, domain.Side) {
	if !g.HasSupplierSide() {
		return domain.StatusMissing, domain.SideSupplier
	}
	if !g.HasBuyerSide() && len(g.Records) == 1 {
		return domain.StatusMissing, domain.SideBuyer
	}
	for i := 0; i < len(g.Records); i++ {
		for j := i + 1; j < len(g.Records); j++ {
			if !m.agree(&g.Records[i], &g.Records[j]) {
				return domain.StatusMismatch, domain.SideNone
			}
		}
	}
	return domain.StatusMatched, domain.SideNone
}

func (m *Matcher) agree(a, b *domain.CanonicalInvoice) bool {
	return a.SupplierGSTIN == b.SupplierGSTIN &&
		a.InvoiceDate.Equal(b.InvoiceDate) &&
		m.cfg.WithinTolerance(a.TaxableAmount, b.TaxableAmount) &&
		m.cfg.WithinTolerance(a.Tax(), b.Tax())
}

func recordLess(a, b *domain.CanonicalInvoice) bool {
	if a.Key != b.Key {
		return a.Key < b.Key
	}
	if a.Source.Rank() != b.Source.Rank() {
		return a.Source.Rank() < b.Source.Rank()
	}
	if a.SourceFile != b.SourceFile {
		return a.SourceFile < b.SourceFile
	}
	return a.RowIndex < b.RowIndex
}

// newer orders duplicate filings of one source, most recent first.
func newer(a, b *domain.CanonicalInvoice) bool {
	if !a.InvoiceDate.Equal(b.InvoiceDate) {
		return a.InvoiceDate.After(b.InvoiceDate)
	}
	if a.RowIndex != b.RowIndex {
		return a.RowIndex > b.RowIndex
	}
	return a.SourceFile > b.SourceFile
}

func sides(recs []domain.CanonicalInvoice) (supplier, buyer bool) {
	for i := range recs {
		if recs[i].Source.SupplierSide() {
			supplier = true
		} else {
			buyer = true
		}
	}
	return supplier, buyer
}

// representative is the highest-precedence record of a bucket.
func representative(recs []domain.CanonicalInvoice) *domain.CanonicalInvoice {
	best := &recs[0]
	for i := 1; i < len(recs); i++ {
		if recordLessByPrecedence(&recs[i], best) {
			best = &recs[i]
		}
	}
	return best
}

func recordLessByPrecedence(a, b *domain.CanonicalInvoice) bool {
	if a.Source.Rank() != b.Source.Rank() {
		return a.Source.Rank() < b.Source.Rank()
	}
	return newer(a, b)
}

func isIRNKey(k domain.IdentityKey) bool {
	return strings.HasPrefix(string(k), "irn:")
}

func distinctGSTINs(recs []domain.CanonicalInvoice) []string {
	seen := make(map[string]bool)
	var out []string
	for i := range recs {
		if !seen[recs[i].SupplierGSTIN] {
			seen[recs[i].SupplierGSTIN] = true
			out = append(out, recs[i].SupplierGSTIN)
		}
	}
	sort.Strings(out)
	return out
}
