package uimanager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/nativehost/pkg/bridge"
	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/errors"
	"github.com/go-drift/nativehost/pkg/executor"
)

type fakeScheduler struct {
	nativeIDs map[string]int64
	commands  []string
	updated   map[int64]*dynamic.Object
	onMain    bool
}

func (f *fakeScheduler) SynchronouslyUpdateView(ctx context.Context, tag int64, props *dynamic.Object) error {
	f.onMain = executor.IsOnThread(ctx, executor.ThreadMain)
	f.updated[tag] = props
	return nil
}

func (f *fakeScheduler) DispatchCommand(_ context.Context, tag int64, name string, args []dynamic.Value) error {
	f.commands = append(f.commands, name)
	return nil
}

func (f *fakeScheduler) FindByNativeID(id string) (int64, bool) {
	tag, ok := f.nativeIDs[id]
	return tag, ok
}

func newModule(t *testing.T, s bridge.Scheduler) (bridge.Module, *executor.TaskExecutor) {
	t.Helper()
	exec := executor.New()
	t.Cleanup(exec.Stop)
	m := Package(nil).ModuleFactory()(Name, bridge.NewInvoker(exec), s)
	require.NotNil(t, m)
	return m, exec
}

func TestUIManager(t *testing.T) {
	sched := &fakeScheduler{nativeIDs: map[string]int64{"header": 12}, updated: map[int64]*dynamic.Object{}}
	m, exec := newModule(t, sched)
	ctx := context.Background()

	tag, err := m.Call(ctx, "findNodeByNativeID", "header")
	require.NoError(t, err)
	assert.Equal(t, int64(12), tag)

	tag, err = m.Call(ctx, "findNodeByNativeID", "footer")
	require.NoError(t, err)
	assert.Nil(t, tag)

	_, err = m.Call(ctx, "updateView", 12, dynamic.ObjectOf("opacity", 0.5))
	require.NoError(t, err)
	assert.True(t, sched.onMain)
	opacity, _ := sched.updated[12].Get("opacity")
	assert.Equal(t, 0.5, opacity)

	_, err = m.Call(ctx, "dispatchViewManagerCommand", 12, "scrollToEnd", dynamic.List(true))
	require.NoError(t, err)
	require.NoError(t, exec.RunSyncTask(ctx, executor.ThreadMain, func(context.Context) {}))
	assert.Equal(t, []string{"scrollToEnd"}, sched.commands)
}

func TestUIManagerWithoutScheduler(t *testing.T) {
	rec := errors.InstallRecorder(t.Cleanup)
	m, exec := newModule(t, nil)
	ctx := context.Background()

	_, err := m.Call(ctx, "findNodeByNativeID", "header")
	assert.ErrorIs(t, err, ErrNoScheduler)

	_, err = m.Call(ctx, "dispatchViewManagerCommand", 1, "focus")
	require.NoError(t, err)
	require.NoError(t, exec.RunSyncTask(ctx, executor.ThreadMain, func(context.Context) {}))
	assert.Len(t, rec.ErrorsOfKind(errors.KindExecution), 1)
}

func TestOtherNamesAreNotProvided(t *testing.T) {
	assert.Nil(t, Package(nil).ModuleFactory()("Other", nil, nil))
}

func TestUIManagerPicksUpLaterScheduler(t *testing.T) {
	exec := executor.New()
	t.Cleanup(exec.Stop)
	var bound bridge.Scheduler
	m := Package(func() bridge.Scheduler { return bound }).ModuleFactory()(Name, bridge.NewInvoker(exec), nil)
	require.NotNil(t, m)
	ctx := context.Background()

	_, err := m.Call(ctx, "findNodeByNativeID", "header")
	assert.ErrorIs(t, err, ErrNoScheduler)

	bound = &fakeScheduler{nativeIDs: map[string]int64{"header": 4}}
	tag, err := m.Call(ctx, "findNodeByNativeID", "header")
	require.NoError(t, err)
	assert.Equal(t, int64(4), tag)
}
