package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNamedStageLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	set(zap.New(core))
	t.Cleanup(func() { require.NoError(t, Init(false)) })

	Named("app").Named("mit").Infow("loaded data", "rows", 12)
	Debugw("configuration", "quantities", 2)
	Errorw("calibration run failed", "error", "boom")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "app.mit", entries[0].LoggerName)
	assert.Equal(t, int64(12), entries[0].ContextMap()["rows"])
	assert.Equal(t, zap.DebugLevel, entries[1].Level)
	assert.Equal(t, zap.ErrorLevel, entries[2].Level)
}

func TestInit(t *testing.T) {
	require.NoError(t, Init(true))
	assert.NotNil(t, GetZapLogger())
	Infof("version %s", "test")
	Sync()
	require.NoError(t, Init(false))
}
