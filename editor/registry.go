// Package editor translates logical property-map mutations into correct
// on-disk byte rewrites, one module per source format. Modules write files;
// they never touch the in-memory graph.
package editor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gridnote/indexer/graph"
	"github.com/gridnote/indexer/parser"
)

// Dispatch and rewrite failures callers branch on.
var (
	// ErrNoModule means no editing module is registered for the entity's
	// source type.
	ErrNoModule = errors.New("editor: no module for source type")

	// ErrRowNotFound means the target row or section could not be located.
	ErrRowNotFound = errors.New("editor: row not found")

	// ErrAnchorNotFound means an inline construct's recorded span and
	// marker both failed to locate the construct. The operation aborts
	// rather than guess a location.
	ErrAnchorNotFound = errors.New("editor: construct anchor not found")
)

// Metadata carries the per-entity context an editing module needs to locate
// its target on disk.
type Metadata struct {
	SourcePath string
	Source     graph.SourceType

	// DSLModule is set for inline-construct entities.
	DSLModule *graph.DSLModule
}

// Module rewrites one source format. All operations are whole-operation:
// they either commit a complete file rewrite or leave the file untouched.
type Module interface {
	Update(id string, props map[string]any, meta Metadata) error
	Create(id string, props map[string]any, meta Metadata) error
	Delete(id string, meta Metadata) error
}

// Registry dispatches mutations to the module registered for a source
// type. Dispatch is a direct keyed lookup: source types are exclusive, so
// there is no registration-order contract.
type Registry struct {
	mu      sync.RWMutex
	modules map[graph.SourceType]Module
	logger  *slog.Logger
}

// NewRegistry creates an empty editing module registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		modules: make(map[graph.SourceType]Module),
		logger:  logger,
	}
}

// NewDefaultRegistry wires the standard modules: tabular, front-matter,
// structured, inline construct, and the read-only module for external
// notification entities.
func NewDefaultRegistry(dialect parser.Dialect, schema parser.Schema, logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(graph.SourceTabular, NewTabularModule(dialect, schema))
	r.Register(graph.SourceDocument, NewFrontMatterModule())
	r.Register(graph.SourceStructured, NewStructuredModule())
	r.Register(graph.SourceInline, NewInlineModule(dialect, schema))
	r.Register(graph.SourceExternal, NewReadOnlyModule())
	return r
}

// Register binds a module to a source type, replacing any prior binding.
func (r *Registry) Register(st graph.SourceType, m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[st] = m
}

// Dispatch returns the module for a source type.
func (r *Registry) Dispatch(st graph.SourceType) (Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.modules[st]
	if !ok {
		r.logger.Warn("no editing module registered", "source_type", string(st))
		return nil, fmt.Errorf("%w: %s", ErrNoModule, st)
	}
	return m, nil
}
