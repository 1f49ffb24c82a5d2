package platform

import (
	"context"
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/go-drift/nativehost/pkg/bridge"
	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/errors"
)

// ChannelPeer serves a capability by forwarding calls over a method channel.
// Arguments travel as a JSON array; callbacks cannot cross the byte bridge.
type ChannelPeer struct {
	registry *Registry
	channel  *MethodChannel
}

// NewChannelPeer creates a peer forwarding to channel on r.
func NewChannelPeer(r *Registry, channel string) *ChannelPeer {
	return &ChannelPeer{registry: r, channel: r.MethodChannel(channel)}
}

// Channel returns the channel name.
func (p *ChannelPeer) Channel() string { return p.channel.Name() }

// Invoke implements bridge.Peer. It blocks the main thread for the round trip.
func (p *ChannelPeer) Invoke(_ context.Context, method string, args bridge.Args) (dynamic.Value, error) {
	payload, err := channelArgs(args)
	if err != nil {
		return nil, err
	}
	return p.channel.Invoke(method, payload)
}

// InvokeAsync implements bridge.Peer. The round trip runs off the main
// thread and the promise is settled through the registry's dispatcher.
func (p *ChannelPeer) InvokeAsync(_ context.Context, method string, args bridge.Args) (*bridge.NativePromise, error) {
	payload, err := channelArgs(args)
	if err != nil {
		return nil, err
	}
	promise := bridge.NewNativePromise()
	go func() {
		result, err := p.channel.Invoke(method, payload)
		settle := func() {
			if err != nil {
				promise.Reject(rejection(err))
				return
			}
			promise.Resolve(result)
		}
		if !p.registry.Dispatch(settle) {
			errors.Logger().Debug("no dispatcher, settling on caller",
				zap.String("channel", p.channel.Name()), zap.String("method", method))
			settle()
		}
	}()
	return promise, nil
}

func channelArgs(args bridge.Args) ([]dynamic.Value, error) {
	out := make([]dynamic.Value, len(args))
	for i, a := range args {
		if _, ok := a.(*bridge.CallbackHandle); ok {
			return nil, &errors.MarshalError{
				Context: fmt.Sprintf("argument %d", i),
				Detail:  "functions cannot be sent over a platform channel",
			}
		}
		out[i] = a
	}
	return out, nil
}

func rejection(err error) dynamic.Value {
	var chErr *ChannelError
	if stderrors.As(err, &chErr) {
		return chErr.Object()
	}
	return dynamic.ObjectOf("message", err.Error())
}

// ChannelCapability declares a capability implemented over a platform channel.
type ChannelCapability struct {
	Name    string
	Channel string
	Methods []bridge.MethodSpec
}

// ChannelPackage exposes channel-backed capabilities to the module provider.
func ChannelPackage(r *Registry, capabilities ...ChannelCapability) bridge.Package {
	byName := make(map[string]ChannelCapability, len(capabilities))
	for _, c := range capabilities {
		byName[c.Name] = c
	}
	return bridge.PackageFunc{
		PackageName: "platform",
		Factory: func(name string, invoker *bridge.Invoker, _ bridge.Scheduler) bridge.Module {
			c, ok := byName[name]
			if !ok {
				return nil
			}
			channel := c.Channel
			if channel == "" {
				channel = name
			}
			return bridge.NewNativeModule(name, invoker, NewChannelPeer(r, channel), c.Methods)
		},
	}
}
