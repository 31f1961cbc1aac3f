package adapter

import (
	"context"
	"log/slog"
	"testing"

	"github.com/leapstack-labs/das/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	BaseSQLAdapter
	connected core.AdapterConfig
	failWith  error
}

func (s *stubAdapter) Connect(_ context.Context, cfg core.AdapterConfig) error {
	s.connected = cfg
	return s.failWith
}

func (s *stubAdapter) GetTableMetadata(context.Context, string) (*core.TableMetadata, error) {
	return nil, nil
}

func (s *stubAdapter) LoadCSV(context.Context, string, string) error { return nil }

// unregisterOnCleanup drops name from the registry when the test ends.
func unregisterOnCleanup(t *testing.T, name string) {
	t.Helper()
	t.Cleanup(func() {
		registry.Lock()
		delete(registry.factories, name)
		registry.Unlock()
	})
}

func TestRegister_Panics(t *testing.T) {
	unregisterOnCleanup(t, "stub_once")
	Register("stub_once", func(*slog.Logger) Adapter { return &stubAdapter{} })

	tests := []struct {
		name string
		fn   func()
	}{
		{"duplicate name", func() { Register("stub_once", func(*slog.Logger) Adapter { return &stubAdapter{} }) }},
		{"empty name", func() { Register("", func(*slog.Logger) Adapter { return &stubAdapter{} }) }},
		{"nil factory", func() { Register("stub_nil", nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, tt.fn)
		})
	}
	assert.Contains(t, Registered(), "stub_once")
	assert.NotContains(t, Registered(), "stub_nil")
}

func TestNewAdapter_Errors(t *testing.T) {
	_, err := NewAdapter(core.AdapterConfig{}, nil)
	assert.EqualError(t, err, "adapter type not specified")

	_, err = NewAdapter(core.AdapterConfig{Type: "parquet_lake"}, nil)
	var unknown *UnknownAdapterError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "parquet_lake", unknown.Type)
	assert.Equal(t, Registered(), unknown.Available)
	assert.Contains(t, err.Error(), "Hint: import the adapter package")
}

func TestOpen(t *testing.T) {
	stub := &stubAdapter{}
	unregisterOnCleanup(t, "stub_open")
	Register("stub_open", func(*slog.Logger) Adapter { return stub })

	cfg := core.AdapterConfig{Type: "stub_open", Path: "obs.db"}
	got, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Same(t, stub, got)
	assert.Equal(t, cfg, stub.connected)

	stub.failWith = assert.AnError
	_, err = Open(context.Background(), cfg, nil)
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "connecting stub_open at obs.db")
}
