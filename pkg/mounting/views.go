package mounting

import (
	"strconv"

	"github.com/go-drift/nativehost/pkg/native"
)

// RootViewInstance is the root of a surface.
type RootViewInstance struct {
	*baseInstance
}

func newRootView(ctx instanceContext) ComponentInstance {
	node := native.NewNode(native.KindStack, strconv.FormatInt(ctx.tag, 10))
	node.SetAttribute("surface", true)
	return &RootViewInstance{baseInstance: newBaseInstance(ctx, node)}
}

// ViewInstance is a plain container.
type ViewInstance struct {
	*baseInstance
}

func newView(ctx instanceContext) ComponentInstance {
	node := native.NewNode(native.KindStack, strconv.FormatInt(ctx.tag, 10))
	return &ViewInstance{baseInstance: newBaseInstance(ctx, node)}
}

// UnimplementedInstance stands in for components the host does not know.
// It keeps children so the rest of the tree still mounts.
type UnimplementedInstance struct {
	*baseInstance
}

func newUnimplemented(ctx instanceContext) ComponentInstance {
	node := native.NewNode(native.KindPlaceholder, strconv.FormatInt(ctx.tag, 10))
	node.SetAttribute("componentName", ctx.componentName)
	return &UnimplementedInstance{baseInstance: newBaseInstance(ctx, node)}
}
