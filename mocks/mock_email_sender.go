package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"gstrecon/internal/port"
)

// MockEmailSender is a mock implementation of port.EmailSender.
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendRiskAlert(ctx context.Context, alert *port.RiskAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}
