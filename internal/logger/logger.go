// Package logger builds the process-wide logrus logger.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"gstrecon/internal/config"
)

// New creates a logger from cfg. Format "json" selects the JSON formatter; anything else
// gets the text formatter with full timestamps. Unknown levels fall back to info.
func New(cfg config.LogConfig) *logrus.Logger {
	return NewWithOutput(cfg, os.Stdout)
}

// NewWithOutput is New writing to out.
func NewWithOutput(cfg config.LogConfig, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// LogError logs err with the component and operation it came from. data is attached
// when non-nil.
func LogError(log logrus.FieldLogger, component, op string, data any, err error) {
	fields := logrus.Fields{
		"component": component,
		"op":        op,
	}
	if data != nil {
		fields["data"] = data
	}
	log.WithFields(fields).Error(err.Error())
}
