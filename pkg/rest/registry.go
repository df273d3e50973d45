package rest

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Strategy names registered in DefaultRegistry. Each is also reachable with
// a "with_" prefix.
const (
	StrategyCursor  = "cursor"
	StrategyMaxID   = "max_id"
	StrategySinceID = "since_id"

	strategyAliasPrefix = "with_"
)

// IteratorFactory builds a page iterator over invoker.
type IteratorFactory func(invoker Invoker, args Args, opts ...IteratorOption) PageIterator

// Registry maps pagination strategy names to iterator factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]IteratorFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]IteratorFactory),
	}
}

// Register adds or replaces a factory under name.
func (r *Registry) Register(name string, factory IteratorFactory) error {
	name = strings.TrimSpace(name)
	if name == "" || factory == nil {
		return ErrStrategyNameInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[name] = factory

	return nil
}

// Lookup returns the factory registered under name. The "with_" prefix is
// accepted as an alias.
func (r *Registry) Lookup(name string) (IteratorFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if factory, ok := r.factories[name]; ok {
		return factory, nil
	}

	if factory, ok := r.factories[strings.TrimPrefix(name, strategyAliasPrefix)]; ok {
		return factory, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// New builds an iterator for the named strategy.
func (r *Registry) New(name string, invoker Invoker, args Args, opts ...IteratorOption) (PageIterator, error) {
	factory, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}

	return factory(invoker, args, opts...), nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// DefaultRegistry holds the built-in strategies.
var DefaultRegistry = newDefaultRegistry() //nolint:gochecknoglobals

func newDefaultRegistry() *Registry {
	registry := NewRegistry()

	builtins := map[string]IteratorFactory{
		StrategyCursor: func(invoker Invoker, args Args, opts ...IteratorOption) PageIterator {
			return NewCursorIterator(invoker, args, opts...)
		},
		StrategyMaxID: func(invoker Invoker, args Args, opts ...IteratorOption) PageIterator {
			return NewMaxIDIterator(invoker, args, opts...)
		},
		StrategySinceID: func(invoker Invoker, args Args, opts ...IteratorOption) PageIterator {
			return NewSinceIDIterator(invoker, args, opts...)
		},
	}

	for name, factory := range builtins {
		_ = registry.Register(name, factory)
	}

	return registry
}
