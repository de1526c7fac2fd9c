package report

import (
	"strings"

	"gstrecon/internal/domain"
)

const taxpayerNodeID = "taxpayer"

// BuildGraph projects groups onto the invoice graph. Vendors appear in group order and
// are capped by opts.MaxVendors; invoices are capped by opts.MaxInvoices. Zero caps
// mean unlimited.
func BuildGraph(groups []domain.ReconciliationGroup, mismatches []domain.MismatchRecord, opts domain.GraphOptions) *domain.Graph {
	risk := make(map[domain.IdentityKey]*domain.MismatchRecord, len(mismatches))
	for i := range mismatches {
		risk[mismatches[i].Key] = &mismatches[i]
	}

	label := opts.TaxpayerGSTIN
	if label == "" {
		label = "Your GSTIN"
	}
	g := &domain.Graph{
		Nodes: []domain.GraphNode{{
			ID:    taxpayerNodeID,
			Type:  domain.NodeTaxpayer,
			Label: label,
			Data:  map[string]any{"gstin": opts.TaxpayerGSTIN},
		}},
		Edges: []domain.GraphEdge{},
	}

	query := strings.ToLower(strings.TrimSpace(opts.Query))
	vendorIdx := make(map[string]int)
	irnSeen := make(map[string]bool)
	invoices := 0

	for i := range groups {
		grp := &groups[i]
		m := risk[grp.Key]
		if !keep(grp, m, opts.Layer, query) {
			continue
		}
		if opts.MaxInvoices > 0 && invoices >= opts.MaxInvoices {
			break
		}

		vid := "vendor:" + grp.SupplierGSTIN
		idx, ok := vendorIdx[grp.SupplierGSTIN]
		if !ok {
			if opts.MaxVendors > 0 && len(vendorIdx) >= opts.MaxVendors {
				continue
			}
			idx = len(g.Nodes)
			vendorIdx[grp.SupplierGSTIN] = idx
			g.Nodes = append(g.Nodes, domain.GraphNode{
				ID:    vid,
				Type:  domain.NodeVendor,
				Label: vendorName(grp),
				Data:  map[string]any{"gstin": grp.SupplierGSTIN, "invoices": 0},
			})
			g.Edges = append(g.Edges, domain.GraphEdge{
				ID:     "supplied:" + grp.SupplierGSTIN,
				Source: vid,
				Target: taxpayerNodeID,
				Label:  "Supplied to",
				Type:   domain.EdgeSupplied,
			})
		}
		g.Nodes[idx].Data["invoices"] = g.Nodes[idx].Data["invoices"].(int) + 1

		iid := "invoice:" + string(grp.Key)
		data := map[string]any{
			"status":       grp.Status,
			"invoice_date": grp.InvoiceDate.Format("2006-01-02"),
			"sources":      grp.Sources(),
		}
		if ref := grp.Reference(); ref != nil {
			data["total"] = ref.TotalAmount.StringFixed(2)
		}
		if m != nil {
			data["risk_level"] = m.RiskLevel
			data["root_cause"] = m.RootCause
		}
		g.Nodes = append(g.Nodes, domain.GraphNode{ID: iid, Type: domain.NodeInvoice, Label: grp.InvoiceNumber, Data: data})
		invoices++

		edge := domain.GraphEdge{ID: "claim:" + string(grp.Key), Source: vid, Target: iid, Label: "ITC Claimed", Type: domain.EdgeITCClaimed}
		if grp.Status != domain.StatusMatched {
			edge.Label, edge.Type = "Mismatch", domain.EdgeMismatch
		}
		g.Edges = append(g.Edges, edge)

		if grp.IRN == "" {
			continue
		}
		nid := "irn:" + grp.IRN
		if !irnSeen[grp.IRN] {
			irnSeen[grp.IRN] = true
			g.Nodes = append(g.Nodes, domain.GraphNode{ID: nid, Type: domain.NodeIRN, Label: grp.IRN[:12], Data: map[string]any{"irn": grp.IRN}})
		}
		irnEdge := domain.GraphEdge{ID: "irn:" + string(grp.Key), Source: iid, Target: nid, Label: "IRN verified", Type: domain.EdgeMatched}
		if grp.Status != domain.StatusMatched {
			irnEdge.Label, irnEdge.Type = "IRN conflict", domain.EdgeMismatch
		}
		g.Edges = append(g.Edges, irnEdge)
	}
	return g
}

func keep(g *domain.ReconciliationGroup, m *domain.MismatchRecord, layer domain.GraphLayer, query string) bool {
	switch layer {
	case domain.LayerMismatches:
		if g.Status == domain.StatusMatched {
			return false
		}
	case domain.LayerHighRisk:
		if m == nil || m.RiskLevel != domain.RiskHigh {
			return false
		}
	}
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(g.InvoiceNumber), query) ||
		strings.Contains(strings.ToLower(g.VendorName), query) ||
		strings.Contains(strings.ToLower(g.SupplierGSTIN), query)
}

func vendorName(g *domain.ReconciliationGroup) string {
	if g.VendorName != "" {
		return g.VendorName
	}
	return g.SupplierGSTIN
}
