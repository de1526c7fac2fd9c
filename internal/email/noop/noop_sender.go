package noop

import (
	"context"

	"github.com/sirupsen/logrus"

	"gstrecon/internal/email"
	"gstrecon/internal/port"
)

type noopSender struct {
	log logrus.FieldLogger
}

// NewNoopSender creates an EmailSender that only logs the alerts it would have sent.
func NewNoopSender(log logrus.FieldLogger) port.EmailSender {
	return &noopSender{log: log}
}

func (s *noopSender) SendRiskAlert(_ context.Context, alert *port.RiskAlert) error {
	s.log.WithFields(logrus.Fields{
		"component": "email.noop",
		"run_id":    alert.RunID.String(),
		"to":        alert.To,
	}).Info(email.Subject(alert))
	return nil
}
