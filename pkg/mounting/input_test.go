package mounting

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/nativehost/pkg/dynamic"
)

func TestParseInput(t *testing.T) {
	in, err := ParseInput(InputDragTo, dynamic.ObjectOf("tag", 4.0, "x", 1, "y", 2.5))
	require.NoError(t, err)
	assert.Equal(t, Input{Tag: 4, Method: InputDragTo, X: 1, Y: 2.5}, in)

	in, err = ParseInput(InputChangeText, dynamic.ObjectOf("tag", int64(3), "text", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "hi", in.Text)

	_, err = ParseInput(InputFocus, dynamic.ObjectOf("tag", 0))
	assert.ErrorIs(t, err, ErrInvalidTag)
	_, err = ParseInput(InputFocus, dynamic.ObjectOf("tag", 1.5))
	assert.ErrorIs(t, err, ErrInvalidTag)
	_, err = ParseInput(InputFocus, "nope")
	assert.Error(t, err)
}

func TestDispatchInputDrivesScrollView(t *testing.T) {
	h, sv := mountScrollView(t, nil)

	h.onMain(func(context.Context) {
		for _, in := range []Input{
			{Tag: 1, Method: InputBeginDrag},
			{Tag: 1, Method: InputDragTo, Y: 40},
			{Tag: 1, Method: InputEndDrag, Y: 40},
		} {
			_, err := h.applier.DispatchInput(in)
			require.NoError(t, err)
		}
	})

	assert.Equal(t, 40.0, sv.Offset().Y)
	assert.Equal(t, []string{"onScrollBeginDrag", "onScroll", "onScrollEndDrag"}, h.eventNames(1))
}

func TestDispatchInputDrivesTextInput(t *testing.T) {
	h, ti := mountTextInput(t, nil)

	h.onMain(func(context.Context) {
		_, err := h.applier.DispatchInput(Input{Tag: 1, Method: InputFocus})
		require.NoError(t, err)
		changed, err := h.applier.DispatchInput(Input{Tag: 1, Method: InputChangeText, Text: "abc"})
		require.NoError(t, err)
		assert.Equal(t, true, changed)
		changed, err = h.applier.DispatchInput(Input{Tag: 1, Method: InputChangeText, Text: "abc"})
		require.NoError(t, err)
		assert.Equal(t, false, changed)
		_, err = h.applier.DispatchInput(Input{Tag: 1, Method: InputBlur})
		require.NoError(t, err)
	})

	assert.Equal(t, "abc", ti.Text())
	assert.False(t, ti.Focused())
	assert.Equal(t, []string{"onFocus", "onChange", "onBlur"}, h.eventNames(1))
}

func TestDispatchInputRejectsMismatchedTargets(t *testing.T) {
	h, _ := mountTextInput(t, nil)
	h.apply(Create(2, ComponentView, nil), Insert(rootTag, 2, 1))

	h.onMain(func(context.Context) {
		_, err := h.applier.DispatchInput(Input{Tag: 1, Method: InputDragTo})
		assert.ErrorIs(t, err, ErrInputTarget)
		_, err = h.applier.DispatchInput(Input{Tag: 2, Method: InputFocus})
		assert.ErrorIs(t, err, ErrInputTarget)
		_, err = h.applier.DispatchInput(Input{Tag: 1, Method: "pinch"})
		assert.ErrorIs(t, err, ErrUnknownInput)
		_, err = h.applier.DispatchInput(Input{Tag: 9, Method: InputFocus})
		assert.ErrorIs(t, err, ErrUnknownTag)
	})
	assert.Empty(t, h.eventNames(1))
}
