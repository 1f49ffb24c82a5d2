package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/go-drift/nativehost/pkg/bridge"
	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/errors"
	"github.com/go-drift/nativehost/pkg/executor"
)

func TestLog(t *testing.T) {
	rec := errors.InstallRecorder(t.Cleanup)
	core, logs := observer.New(zapcore.InfoLevel)
	exec := executor.New()
	t.Cleanup(exec.Stop)

	m := Package(zap.New(core)).ModuleFactory()(Name, bridge.NewInvoker(exec), nil)
	require.NotNil(t, m)
	ctx := context.Background()

	_, err := m.Call(ctx, "log", "warn", "low battery", dynamic.ObjectOf("level", 5))
	require.NoError(t, err)
	_, err = m.Call(ctx, "log", "debug", "filtered")
	require.NoError(t, err)
	_, err = m.Call(ctx, "log", "shout", "bad level")
	require.NoError(t, err)
	require.NoError(t, exec.RunSyncTask(ctx, executor.ThreadMain, func(context.Context) {}))

	entries := logs.AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, "low battery", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "script", entries[0].LoggerName)
	assert.Equal(t, int64(5), entries[0].ContextMap()["level"])
	assert.Len(t, rec.ErrorsOfKind(errors.KindExecution), 1)

	enabled, err := m.Call(ctx, "isEnabled", "debug")
	require.NoError(t, err)
	assert.Equal(t, false, enabled)
}
