package parser

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gridnote/indexer/graph"
)

// Parser converts file bytes into zero or more entities.
type Parser interface {
	Parse(path string, content []byte) ([]*graph.Entity, error)
}

// Registry maps file extensions to parsers. Dispatch is a direct lookup;
// there is no fallback probing.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser // keyed by lowercase extension including dot
	sources map[string]graph.SourceType
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{
		parsers: make(map[string]Parser),
		sources: make(map[string]graph.SourceType),
	}
}

// NewDefaultRegistry creates a registry wired with the standard format
// parsers: tabular for .csv/.tsv, front-matter for .md, structured for
// .json/.yaml/.yml.
func NewDefaultRegistry(dialect Dialect, schema Schema, opts Options) *Registry {
	r := NewRegistry()

	tab := NewTabularParser(dialect, schema, opts)
	r.Register(".csv", graph.SourceTabular, tab)
	tsvDialect := dialect
	tsvDialect.Delimiter = '\t'
	r.Register(".tsv", graph.SourceTabular, NewTabularParser(tsvDialect, schema, opts))

	fm := NewFrontMatterParser()
	r.Register(".md", graph.SourceDocument, fm)
	r.Register(".markdown", graph.SourceDocument, fm)

	st := NewStructuredParser()
	r.Register(".json", graph.SourceStructured, st)
	r.Register(".yaml", graph.SourceStructured, st)
	r.Register(".yml", graph.SourceStructured, st)

	return r
}

// Register binds an extension to a parser and its source type.
func (r *Registry) Register(ext string, source graph.SourceType, p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ext = strings.ToLower(ext)
	r.parsers[ext] = p
	r.sources[ext] = source
}

// Get returns the parser for a file, or nil when the extension is unknown.
func (r *Registry) Get(path string) Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.parsers[strings.ToLower(filepath.Ext(path))]
}

// SourceTypeFor returns the source type a file's entities will carry.
func (r *Registry) SourceTypeFor(path string) (graph.SourceType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.sources[strings.ToLower(filepath.Ext(path))]
	return st, ok
}

// Parse parses a file with the registered parser for its extension.
func (r *Registry) Parse(path string, content []byte) ([]*graph.Entity, error) {
	p := r.Get(path)
	if p == nil {
		return nil, fmt.Errorf("no parser for file type: %s", filepath.Ext(path))
	}
	return p.Parse(path, content)
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	return exts
}
