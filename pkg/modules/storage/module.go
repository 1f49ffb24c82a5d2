package storage

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/go-drift/nativehost/pkg/bridge"
	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/errors"
)

// Name is the capability name.
const Name = "AsyncStorage"

// Package provides AsyncStorage. The database is opened when the
// capability is first requested.
type Package struct {
	path     string
	dispatch func(func())

	once  sync.Once
	store *Store
	err   error
}

// NewPackage returns a package storing data at path. Results are settled
// through dispatch, which should target the main thread.
func NewPackage(path string, dispatch func(func())) *Package {
	return &Package{path: path, dispatch: dispatch}
}

// Name implements bridge.Package.
func (p *Package) Name() string { return "storage" }

// ModuleFactory implements bridge.Package.
func (p *Package) ModuleFactory() bridge.ModuleFactory {
	return func(name string, invoker *bridge.Invoker, _ bridge.Scheduler) bridge.Module {
		if name != Name {
			return nil
		}
		store, err := p.open()
		if err != nil {
			errors.Report(&errors.BridgeError{
				Op:     "storage.open",
				Kind:   errors.KindInit,
				Module: Name,
				Err:    err,
			})
			return nil
		}
		return bridge.NewModule(name, invoker, p.methods(store)...)
	}
}

func (p *Package) open() (*Store, error) {
	p.once.Do(func() {
		p.store, p.err = Open(p.path)
		if p.err == nil {
			errors.Logger().Debug("storage opened", zap.String("path", p.path))
		}
	})
	return p.store, p.err
}

// Close closes the database if it was opened.
func (p *Package) Close() error {
	var err error
	p.once.Do(func() {})
	if p.store != nil {
		err = p.store.Close()
	}
	return err
}

func (p *Package) methods(s *Store) []bridge.Method {
	return []bridge.Method{
		p.async("multiGet", func(ctx context.Context, args bridge.Args) (dynamic.Value, error) {
			keys, err := args.Strings(0)
			if err != nil {
				return nil, err
			}
			pairs, err := s.MultiGet(ctx, keys)
			if err != nil {
				return nil, err
			}
			out := make([]dynamic.Value, len(pairs))
			for i, pair := range pairs {
				var v dynamic.Value
				if pair.Found {
					v = pair.Value
				}
				out[i] = []dynamic.Value{pair.Key, v}
			}
			return out, nil
		}),
		p.async("multiSet", func(ctx context.Context, args bridge.Args) (dynamic.Value, error) {
			list, err := args.List(0)
			if err != nil {
				return nil, err
			}
			pairs := make([]Pair, 0, len(list))
			for _, item := range list {
				pair, ok := parsePair(item)
				if !ok {
					return nil, &errors.MarshalError{Context: "multiSet", Detail: "expected [key, value] string pairs", Got: item}
				}
				pairs = append(pairs, pair)
			}
			return nil, s.MultiSet(ctx, pairs)
		}),
		p.async("multiRemove", func(ctx context.Context, args bridge.Args) (dynamic.Value, error) {
			keys, err := args.Strings(0)
			if err != nil {
				return nil, err
			}
			return nil, s.MultiRemove(ctx, keys)
		}),
		p.async("getAllKeys", func(ctx context.Context, _ bridge.Args) (dynamic.Value, error) {
			keys, err := s.GetAllKeys(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]dynamic.Value, len(keys))
			for i, k := range keys {
				out[i] = k
			}
			return out, nil
		}),
		p.async("clear", func(ctx context.Context, _ bridge.Args) (dynamic.Value, error) {
			return nil, s.Clear(ctx)
		}),
	}
}

// async runs fn on its own goroutine and settles the promise through the
// package's dispatcher. A nil result resolves with no value.
func (p *Package) async(name string, fn func(ctx context.Context, args bridge.Args) (dynamic.Value, error)) bridge.Method {
	return bridge.Method{
		Name:       name,
		Convention: bridge.ConventionPromise,
		Async: func(_ context.Context, args bridge.Args) *bridge.NativePromise {
			promise := bridge.NewNativePromise()
			go func() {
				v, err := fn(context.Background(), args)
				settle := func() {
					switch {
					case err != nil:
						promise.Reject(dynamic.ObjectOf("message", err.Error(), "code", "E_"+name))
					case v == nil:
						promise.Resolve()
					default:
						promise.Resolve(v)
					}
				}
				if p.dispatch == nil {
					settle()
					return
				}
				p.dispatch(settle)
			}()
			return promise
		},
	}
}

func parsePair(item dynamic.Value) (Pair, bool) {
	kv := dynamic.AsList(item)
	if len(kv) != 2 {
		return Pair{}, false
	}
	k, kok := kv[0].(string)
	v, vok := kv[1].(string)
	return Pair{Key: k, Value: v, Found: true}, kok && vok
}
