package engine

import (
	"log/slog"
	"testing"

	"github.com/rulectl/rulectl/internal/observability"
	outbound "github.com/rulectl/rulectl/internal/port/outbound"
)

// newTestRegistry returns a Registry rooted at a fresh temp directory,
// wired to tr (usually a *fakeTransport) instead of a real HTTP client,
// with lazy mode as requested.
func newTestRegistry(t *testing.T, tr outbound.Transport, lazy bool) *Registry {
	t.Helper()
	reg, err := NewRegistry(Config{
		StateDir:          t.TempDir(),
		StateFile:         "state.json",
		Lazy:              lazy,
		Logger:            slog.Default(),
		Metrics:           observability.NewMetrics(nil),
		TransportOverride: tr,
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func mustFacade(t *testing.T, reg *Registry, org string) *Facade {
	t.Helper()
	f, err := reg.Get(org)
	if err != nil {
		t.Fatalf("Get(%q): %v", org, err)
	}
	return f
}
