package port

import (
	"context"

	"github.com/google/uuid"

	"gstrecon/internal/domain"
)

// RiskAlert is the content of a high-risk vendor notification.
type RiskAlert struct {
	To        []string
	RunID     uuid.UUID
	RunLabel  string
	Stats     domain.ReconciliationStats
	Vendors   []domain.VendorRiskRecord
	ReportURL string
}

// EmailSender defines the contract for sending emails.
type EmailSender interface {
	SendRiskAlert(ctx context.Context, alert *RiskAlert) error
}
