package port

import (
	"context"

	"github.com/google/uuid"

	"gstrecon/internal/domain"
)

// RunRepository defines the contract for reconciliation run persistence.
// A run and its snapshot are written together and never updated afterwards,
// except for the archived report key.
type RunRepository interface {
	Create(ctx context.Context, run *domain.Run, snap *domain.Snapshot) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (*domain.Run, error)
	List(ctx context.Context, offset, limit int) ([]domain.Run, int, error)
	ListGroups(ctx context.Context, runID uuid.UUID, filter *domain.GroupFilter) ([]domain.ReconciliationGroup, int, error)
	ListMismatches(ctx context.Context, runID uuid.UUID, filter *domain.MismatchFilter) ([]domain.MismatchRecord, int, error)
	ListVendors(ctx context.Context, runID uuid.UUID, filter *domain.VendorFilter) ([]domain.VendorRiskRecord, int, error)
	// LatestVendorScores returns vendor risk scores from the most recent stored run.
	LatestVendorScores(ctx context.Context) (map[string]int, error)
	SetReportKey(ctx context.Context, id uuid.UUID, key string) error
	Delete(ctx context.Context, id uuid.UUID) error
}
