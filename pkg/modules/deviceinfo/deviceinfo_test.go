package deviceinfo

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/nativehost/pkg/bridge"
	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/executor"
)

func TestGetConstants(t *testing.T) {
	exec := executor.New()
	t.Cleanup(exec.Stop)
	info := Info{AppName: "Weather", AppID: "com.acme.weather", InstanceID: "wx-1"}
	m := Package(info).ModuleFactory()(Name, bridge.NewInvoker(exec), nil)
	require.NotNil(t, m)

	out, err := m.Call(context.Background(), "getConstants")
	require.NoError(t, err)
	obj := dynamic.AsObject(out)
	require.NotNil(t, obj)

	assert.Equal(t, []string{"appName", "bundleId", "instanceId", "os", "arch", "hostname", "cpus", "runtimeVersion", "isDebug"}, obj.Keys())
	osName, _ := obj.Get("os")
	assert.Equal(t, runtime.GOOS, osName)
	bundle, _ := obj.Get("bundleId")
	assert.Equal(t, "com.acme.weather", bundle)

	assert.Nil(t, Package(info).ModuleFactory()("Other", nil, nil))
}
