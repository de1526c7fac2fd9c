package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockRunCache is a mock implementation of port.RunCache.
type MockRunCache struct {
	mock.Mock
}

func (m *MockRunCache) Get(ctx context.Context, fingerprint string) (uuid.UUID, bool, error) {
	args := m.Called(ctx, fingerprint)
	return args.Get(0).(uuid.UUID), args.Bool(1), args.Error(2)
}

func (m *MockRunCache) Set(ctx context.Context, fingerprint string, runID uuid.UUID) error {
	args := m.Called(ctx, fingerprint, runID)
	return args.Error(0)
}

func (m *MockRunCache) Invalidate(ctx context.Context, fingerprint string) error {
	args := m.Called(ctx, fingerprint)
	return args.Error(0)
}

func (m *MockRunCache) Lock(ctx context.Context, fingerprint string) (func(context.Context) error, error) {
	args := m.Called(ctx, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func(context.Context) error), args.Error(1)
}
