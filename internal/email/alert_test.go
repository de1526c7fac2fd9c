package email_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gstrecon/internal/domain"
	"gstrecon/internal/email"
	"gstrecon/internal/email/noop"
	"gstrecon/internal/port"
)

func sampleAlert() *port.RiskAlert {
	return &port.RiskAlert{
		To:       []string{"tax@acme.in"},
		RunID:    uuid.MustParse("6f1c2a4e-8d5b-4c3a-9e7f-0a1b2c3d4e5f"),
		RunLabel: "July <2024>",
		Stats: domain.ReconciliationStats{
			TotalInvoices: 10, Matched: 6, Mismatches: 1, Missing: 3,
			LeakageRisk: decimal.NewFromInt(5400), ComplianceScore: 60,
		},
		Vendors: []domain.VendorRiskRecord{
			{GSTIN: "27FGHIJ5678K2Z0", Name: "Risky & Sons", RiskScore: 96, PredictedRisk: domain.RiskHigh, MismatchCount: 4, InvoiceCount: 10},
			{GSTIN: "29ABCDE1234F1ZW", Name: "Calm Co", RiskScore: 10, PredictedRisk: domain.RiskLow},
		},
		ReportURL: "https://example.com/report.xlsx",
	}
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "[GST Reconciliation] 1 high-risk vendor(s) in July <2024>", email.Subject(sampleAlert()))
}

func TestTextBody(t *testing.T) {
	body := email.TextBody(sampleAlert())
	assert.Contains(t, body, "Risky & Sons (27FGHIJ5678K2Z0): score 96, 4 of 10 invoices mismatched")
	assert.NotContains(t, body, "Calm Co")
	assert.Contains(t, body, "₹5400.00")
	assert.Contains(t, body, "https://example.com/report.xlsx")
}

func TestHTMLBody_Escapes(t *testing.T) {
	body := email.HTMLBody(sampleAlert())
	assert.Contains(t, body, "Risky &amp; Sons")
	assert.Contains(t, body, "July &lt;2024&gt;")
	assert.NotContains(t, body, "Calm Co")
}

func TestNoopSender(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)

	require.NoError(t, noop.NewNoopSender(log).SendRiskAlert(context.Background(), sampleAlert()))
	assert.Contains(t, buf.String(), "high-risk vendor")
}
