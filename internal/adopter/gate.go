package adopter

import (
	"context"
	"sync"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/content"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/logger"
)

// FormatLoader fetches a text format's configuration.
type FormatLoader interface {
	LoadFormat(ctx context.Context, name string) (*content.FormatConfig, error)
}

// FormatGate decides whether a text format allows embedded blocks. Results
// are memoized per format name for the lifetime of the gate; formats that
// fail to load are not cached so a later creation is picked up.
type FormatGate struct {
	loader FormatLoader
	filter string
	logger *logger.Logger

	mu    sync.Mutex
	cache map[string]bool
}

// NewFormatGate creates a gate that looks for the named embed filter.
func NewFormatGate(loader FormatLoader, filter string) *FormatGate {
	return &FormatGate{
		loader: loader,
		filter: filter,
		logger: logger.NewNop(),
		cache:  make(map[string]bool),
	}
}

// SetLogger sets the logger for the gate.
func (g *FormatGate) SetLogger(log *logger.Logger) {
	g.logger = log
}

// IsEligible reports whether format has the embed filter present and enabled.
func (g *FormatGate) IsEligible(ctx context.Context, format string) bool {
	g.mu.Lock()
	eligible, ok := g.cache[format]
	g.mu.Unlock()
	if ok {
		return eligible
	}

	f, err := g.loader.LoadFormat(ctx, format)
	if err != nil {
		g.logger.Debugw("text format not eligible", "format", format, "error", err)
		return false
	}

	eligible = f.FilterEnabled(g.filter)

	g.mu.Lock()
	g.cache[format] = eligible
	g.mu.Unlock()

	return eligible
}
