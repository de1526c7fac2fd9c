package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"gstrecon/internal/domain"
)

// MockRunRepo is a mock implementation of port.RunRepository.
type MockRunRepo struct {
	mock.Mock
}

func (m *MockRunRepo) Create(ctx context.Context, run *domain.Run, snap *domain.Snapshot) error {
	args := m.Called(ctx, run, snap)
	return args.Error(0)
}

func (m *MockRunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Run), args.Error(1)
}

func (m *MockRunRepo) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.Run, error) {
	args := m.Called(ctx, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Run), args.Error(1)
}

func (m *MockRunRepo) List(ctx context.Context, offset, limit int) ([]domain.Run, int, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Run), args.Int(1), args.Error(2)
}

func (m *MockRunRepo) ListGroups(ctx context.Context, runID uuid.UUID, filter *domain.GroupFilter) ([]domain.ReconciliationGroup, int, error) {
	args := m.Called(ctx, runID, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.ReconciliationGroup), args.Int(1), args.Error(2)
}

func (m *MockRunRepo) ListMismatches(ctx context.Context, runID uuid.UUID, filter *domain.MismatchFilter) ([]domain.MismatchRecord, int, error) {
	args := m.Called(ctx, runID, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.MismatchRecord), args.Int(1), args.Error(2)
}

func (m *MockRunRepo) ListVendors(ctx context.Context, runID uuid.UUID, filter *domain.VendorFilter) ([]domain.VendorRiskRecord, int, error) {
	args := m.Called(ctx, runID, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.VendorRiskRecord), args.Int(1), args.Error(2)
}

func (m *MockRunRepo) LatestVendorScores(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockRunRepo) SetReportKey(ctx context.Context, id uuid.UUID, key string) error {
	args := m.Called(ctx, id, key)
	return args.Error(0)
}

func (m *MockRunRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
