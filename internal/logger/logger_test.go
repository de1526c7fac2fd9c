package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gstrecon/internal/config"
	"gstrecon/internal/logger"
)

func TestNewWithOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithOutput(config.LogConfig{Level: "warn", Format: "json"}, &buf)

	assert.Equal(t, logrus.WarnLevel, log.GetLevel())
	log.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.LogError(log, "service", "Create", map[string]int{"records": 3}, errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["msg"])
	assert.Equal(t, "service", entry["component"])
	assert.Equal(t, "Create", entry["op"])
	assert.NotNil(t, entry["data"])
}

func TestNewWithOutput_UnknownLevel(t *testing.T) {
	log := logger.NewWithOutput(config.LogConfig{Level: "chatty", Format: "text"}, &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	_, ok := log.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)
}
