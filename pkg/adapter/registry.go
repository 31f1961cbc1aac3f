package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/leapstack-labs/das/pkg/core"
)

// Factory builds an unconnected adapter. A nil logger discards output.
type Factory func(logger *slog.Logger) Adapter

var registry = struct {
	sync.RWMutex
	factories map[string]Factory
}{factories: make(map[string]Factory)}

// Register makes a backend available to NewAdapter and Open under name.
// Adapter packages call it from init(). Registering a name twice panics.
func Register(name string, f Factory) {
	if name == "" || f == nil {
		panic("adapter: Register needs a name and a factory")
	}
	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.factories[name]; dup {
		panic(fmt.Sprintf("adapter: %q registered twice", name))
	}
	registry.factories[name] = f
}

// Registered returns the registered backend names, sorted.
func Registered() []string {
	registry.RLock()
	defer registry.RUnlock()
	names := make([]string, 0, len(registry.factories))
	for name := range registry.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewAdapter builds the adapter named by cfg.Type without connecting it.
func NewAdapter(cfg core.AdapterConfig, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("adapter type not specified")
	}
	registry.RLock()
	f, ok := registry.factories[cfg.Type]
	registry.RUnlock()
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: Registered()}
	}
	return f(logger), nil
}

// Open builds the adapter named by cfg.Type and connects it.
func Open(ctx context.Context, cfg core.AdapterConfig, logger *slog.Logger) (Adapter, error) {
	a, err := NewAdapter(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("connecting %s at %s: %w", cfg.Type, cfg.Path, err)
	}
	return a, nil
}

// UnknownAdapterError is returned for a backend nobody registered.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter type %q (registered: %s)\nHint: import the adapter package so its init() registers it",
		e.Type, strings.Join(e.Available, ", "))
}
