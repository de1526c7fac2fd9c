package mocks

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"gstrecon/internal/port"
)

// MockReportArchive is a mock implementation of port.ReportArchive.
type MockReportArchive struct {
	mock.Mock
}

func (m *MockReportArchive) Put(ctx context.Context, key string, body io.Reader, contentType string) (*port.ArchivedObject, error) {
	args := m.Called(ctx, key, body, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.ArchivedObject), args.Error(1)
}

func (m *MockReportArchive) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockReportArchive) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, key, expiry)
	return args.String(0), args.Error(1)
}
