package mapping

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"livesync/internal/model"
)

var (
	ErrUnknownTransform = errors.New("unknown transform")
	ErrUnknownHook      = errors.New("unknown hook")
)

// TransformFunc converts a source value before it is assigned to the target.
type TransformFunc func(value any, source model.Record) (any, error)

// HookContext is passed to before/after hooks.
type HookContext struct {
	ConfigName string
	Forward    bool
	Source     model.Record
	// Target is nil in before hooks when no target exists yet.
	Target model.Record
}

type HookFunc func(ctx context.Context, hc *HookContext) error

// NameFunc picks the name of a target record about to be created.
type NameFunc func(source model.Record) (string, error)

// Registry is the callback table transform and hook names resolve against.
type Registry struct {
	transforms map[string]TransformFunc
	hooks      map[string]HookFunc
	namers     map[string]NameFunc
	lock       sync.RWMutex
}

// NewRegistry returns a registry preloaded with the built-in transforms and
// name functions.
func NewRegistry() *Registry {
	r := &Registry{
		transforms: make(map[string]TransformFunc),
		hooks:      make(map[string]HookFunc),
		namers:     make(map[string]NameFunc),
	}
	registerBuiltins(r)
	return r
}

func (r *Registry) RegisterTransform(name string, fn TransformFunc) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.transforms[name] = fn
}

func (r *Registry) RegisterHook(name string, fn HookFunc) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.hooks[name] = fn
}

func (r *Registry) RegisterNameFunc(name string, fn NameFunc) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.namers[name] = fn
}

func (r *Registry) transform(name string) (TransformFunc, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	fn, ok := r.transforms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransform, name)
	}
	return fn, nil
}

func (r *Registry) hook(name string) (HookFunc, error) {
	if name == "" {
		return nil, nil
	}
	r.lock.RLock()
	defer r.lock.RUnlock()
	fn, ok := r.hooks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHook, name)
	}
	return fn, nil
}

func (r *Registry) nameFunc(name string) (NameFunc, error) {
	if name == "" {
		return nil, nil
	}
	r.lock.RLock()
	defer r.lock.RUnlock()
	fn, ok := r.namers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHook, name)
	}
	return fn, nil
}
