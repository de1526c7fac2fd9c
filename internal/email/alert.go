// Package email renders risk alert messages shared by the delivery backends.
package email

import (
	"fmt"
	"html"
	"strings"

	"gstrecon/internal/domain"
	"gstrecon/internal/port"
)

// Subject returns the alert subject line.
func Subject(a *port.RiskAlert) string {
	return fmt.Sprintf("[GST Reconciliation] %d high-risk vendor(s) in %s", countHigh(a.Vendors), runName(a))
}

// TextBody renders the plain-text alert.
func TextBody(a *port.RiskAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reconciliation run %s (%s) flagged high-risk vendors.\n\n", runName(a), a.RunID)
	fmt.Fprintf(&b, "Invoices: %d  Matched: %d  Mismatches: %d  Missing: %d\n",
		a.Stats.TotalInvoices, a.Stats.Matched, a.Stats.Mismatches, a.Stats.Missing)
	fmt.Fprintf(&b, "Leakage risk: ₹%s  Compliance: %d%%\n\n", a.Stats.LeakageRisk.StringFixed(2), a.Stats.ComplianceScore)
	for i := range a.Vendors {
		v := &a.Vendors[i]
		if v.PredictedRisk != domain.RiskHigh {
			continue
		}
		fmt.Fprintf(&b, "- %s (%s): score %d, %d of %d invoices mismatched\n",
			vendorName(v), v.GSTIN, v.RiskScore, v.MismatchCount, v.InvoiceCount)
	}
	if a.ReportURL != "" {
		fmt.Fprintf(&b, "\nFull report: %s\n", a.ReportURL)
	}
	return b.String()
}

// HTMLBody renders the HTML alert.
func HTMLBody(a *port.RiskAlert) string {
	var rows strings.Builder
	for i := range a.Vendors {
		v := &a.Vendors[i]
		if v.PredictedRisk != domain.RiskHigh {
			continue
		}
		fmt.Fprintf(&rows, `<tr><td style="padding:6px 12px;">%s</td><td style="padding:6px 12px;font-family:monospace;">%s</td><td style="padding:6px 12px;text-align:right;">%d</td><td style="padding:6px 12px;text-align:right;">%d / %d</td></tr>`,
			html.EscapeString(vendorName(v)), html.EscapeString(v.GSTIN), v.RiskScore, v.MismatchCount, v.InvoiceCount)
	}

	link := ""
	if a.ReportURL != "" {
		link = fmt.Sprintf(`<p><a href="%s" style="color:#2563EB;">Download the mismatch report</a></p>`, html.EscapeString(a.ReportURL))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;color:#1f2937;">
<h2 style="color:#EF4444;">High-risk vendors in %s</h2>
<p>%d invoices reconciled: %d matched, %d mismatched, %d missing. Leakage risk &#8377;%s, compliance %d%%.</p>
<table style="border-collapse:collapse;">
<tr><th style="padding:6px 12px;text-align:left;">Vendor</th><th style="padding:6px 12px;text-align:left;">GSTIN</th><th style="padding:6px 12px;">Score</th><th style="padding:6px 12px;">Mismatched</th></tr>
%s
</table>
%s
</body>
</html>`,
		html.EscapeString(runName(a)),
		a.Stats.TotalInvoices, a.Stats.Matched, a.Stats.Mismatches, a.Stats.Missing,
		a.Stats.LeakageRisk.StringFixed(2), a.Stats.ComplianceScore,
		rows.String(), link)
}

func countHigh(vendors []domain.VendorRiskRecord) int {
	n := 0
	for i := range vendors {
		if vendors[i].PredictedRisk == domain.RiskHigh {
			n++
		}
	}
	return n
}

func runName(a *port.RiskAlert) string {
	if a.RunLabel != "" {
		return a.RunLabel
	}
	return a.RunID.String()
}

func vendorName(v *domain.VendorRiskRecord) string {
	if v.Name != "" {
		return v.Name
	}
	return "Unnamed vendor"
}
