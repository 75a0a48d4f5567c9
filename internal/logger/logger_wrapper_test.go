package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leandrodaf/notebridge/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFieldsReachZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewFromZap(zap.New(core))

	log.Info("client connected",
		log.Field().String("remote", "127.0.0.1:5555"),
		log.Field().Int("device", 3),
		log.Field().Uint32("timestamp", 1000),
		log.Field().Error("error", errors.New("boom")),
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "client connected", entries[0].Message)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "127.0.0.1:5555", ctx["remote"])
	assert.Equal(t, int64(3), ctx["device"])
	assert.Equal(t, uint32(1000), ctx["timestamp"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestSetLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewFromZap(zap.New(core))

	log.SetLevel(contracts.WarnLevel)
	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")
	log.Error("shown")

	assert.Equal(t, 2, logs.Len())
}

func TestFileDestination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	log := NewZapLogger()
	log.SetDestination(contracts.FileLog, path)
	log.Info("server listening", log.Field().String("addr", "127.0.0.1:9001"))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "server listening")
	assert.Contains(t, string(b), "127.0.0.1:9001")
}

func TestNopLogger(t *testing.T) {
	log := NewNopLogger()
	log.SetLevel(contracts.DebugLevel)
	log.SetDestination(contracts.FileLog, filepath.Join(t.TempDir(), "unused.log"))
	log.Info("discarded", log.Field().Bool("ok", true))
}
