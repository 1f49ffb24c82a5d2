package mounting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBatch = `
- create: {tag: 2, component: ScrollView, props: {zIndex: 1, nativeID: list, horizontal: false}}
- create:
    tag: 3
    component: Text
    props: {text: "row", fontSize: 12.5}
    layout: {x: 0, y: 0, width: 80, height: 20}
- insert: {parent: 1, child: 2, index: 0}
- insert: {parent: 2, child: 3, index: 0}
- update: {tag: 2, layout: {x: 0, y: 0, width: 100, height: 50}}
- update: {tag: 3, state: {cursor: 2}}
- remove: {parent: 2, child: 3}
- delete: {tag: 3}
`

func TestDecodeBatchYAML(t *testing.T) {
	batch, err := DecodeBatchYAML([]byte(sampleBatch))
	require.NoError(t, err)
	require.Len(t, batch, 8)

	create := batch[0]
	assert.Equal(t, MutationCreate, create.Kind)
	assert.Equal(t, "ScrollView", create.ComponentName)
	assert.Equal(t, []string{"zIndex", "nativeID", "horizontal"}, create.Props.Keys(), "prop order follows the document")
	assert.Equal(t, 1, create.Props.Int("zIndex", 0))

	text := batch[1]
	assert.Equal(t, 12.5, text.Props.Float("fontSize", 0))
	require.NotNil(t, text.Layout)
	assert.Equal(t, 80.0, text.Layout.Width)

	assert.Equal(t, Insert(2, 3, 0), batch[3])
	assert.Nil(t, batch[4].Props)
	require.NotNil(t, batch[4].Layout)
	cursor, ok := batch[5].State.Get("cursor")
	require.True(t, ok)
	assert.Equal(t, int64(2), cursor)
	assert.Equal(t, Remove(2, 3), batch[6])
	assert.Equal(t, Delete(3), batch[7])
}

func TestDecodeBatchYAMLApplies(t *testing.T) {
	h := newHarness(t)
	batch, err := DecodeBatchYAML([]byte(`
- create: {tag: 1, component: View, props: {nativeID: box}}
- insert: {parent: 11, child: 1, index: 0}
`))
	require.NoError(t, err)
	require.True(t, h.apply(batch...).OK())

	tag, ok := h.applier.FindByNativeID("box")
	require.True(t, ok)
	assert.Equal(t, int64(1), tag)
}

func TestDecodeBatchYAMLErrors(t *testing.T) {
	_, err := DecodeBatchYAML([]byte(`- {}`))
	assert.Error(t, err)

	_, err = DecodeBatchYAML([]byte(`- create: {tag: 1}`))
	assert.Error(t, err)

	_, err = DecodeBatchYAML([]byte(`- create: {tag: 1, component: View, props: [1, 2]}`))
	assert.Error(t, err)

	_, err = DecodeBatchYAML([]byte(`not: a list`))
	assert.Error(t, err)
}

func TestPropsChanged(t *testing.T) {
	prev := PropsOf("a", 1, "b", "x", "c", true)
	next := PropsOf("a", 1.0, "b", "y", "d", nil)
	assert.Equal(t, []string{"b", "d", "c"}, next.Changed(prev))
	assert.True(t, prev.Equal(PropsOf("c", true, "b", "x", "a", 1)))
}

func TestMutationString(t *testing.T) {
	assert.Equal(t, "Create(1, View)", Create(1, "View", nil).String())
	assert.Equal(t, "Insert(1, 2, 0)", Insert(1, 2, 0).String())
	assert.Equal(t, "Remove(1, 2)", Remove(1, 2).String())
	assert.Equal(t, "Delete(2)", Delete(2).String())
	assert.Equal(t, "Update(2)", UpdateProps(2, nil).String())
}
