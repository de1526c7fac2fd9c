package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"gstrecon/internal/domain"
	"gstrecon/internal/service"
)

// MockReconciliationService is a mock implementation of service.ReconciliationService.
type MockReconciliationService struct {
	mock.Mock
}

func (m *MockReconciliationService) Preview(ctx context.Context, records []domain.RawRecord) (*domain.Snapshot, error) {
	args := m.Called(ctx, records)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Snapshot), args.Error(1)
}

func (m *MockReconciliationService) Create(ctx context.Context, input *service.CreateRunInput) (*service.CreateRunResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CreateRunResult), args.Error(1)
}

func (m *MockReconciliationService) Get(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Run), args.Error(1)
}

func (m *MockReconciliationService) List(ctx context.Context, offset, limit int) ([]domain.Run, int, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Run), args.Int(1), args.Error(2)
}

func (m *MockReconciliationService) ListMismatches(ctx context.Context, id uuid.UUID, filter *domain.MismatchFilter) ([]domain.MismatchRecord, int, error) {
	args := m.Called(ctx, id, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.MismatchRecord), args.Int(1), args.Error(2)
}

func (m *MockReconciliationService) ListVendors(ctx context.Context, id uuid.UUID, filter *domain.VendorFilter) ([]domain.VendorRiskRecord, int, error) {
	args := m.Called(ctx, id, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.VendorRiskRecord), args.Int(1), args.Error(2)
}

func (m *MockReconciliationService) ListGroups(ctx context.Context, id uuid.UUID, filter *domain.GroupFilter) ([]domain.ReconciliationGroup, int, error) {
	args := m.Called(ctx, id, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.ReconciliationGroup), args.Int(1), args.Error(2)
}

func (m *MockReconciliationService) Insights(ctx context.Context, id uuid.UUID) (*domain.Insights, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Insights), args.Error(1)
}

func (m *MockReconciliationService) Graph(ctx context.Context, id uuid.UUID, opts domain.GraphOptions) (*domain.Graph, error) {
	args := m.Called(ctx, id, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Graph), args.Error(1)
}

func (m *MockReconciliationService) Export(ctx context.Context, id uuid.UUID, format domain.ExportFormat) (*service.ExportFile, error) {
	args := m.Called(ctx, id, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExportFile), args.Error(1)
}

func (m *MockReconciliationService) ReportURL(ctx context.Context, id uuid.UUID) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockReconciliationService) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
