package editor

import (
	"fmt"
	"os"
	"strings"

	"github.com/gridnote/indexer/graph"
	"github.com/gridnote/indexer/parser"
)

// Inline construct payload delimiters: the tabular data sits inside a raw
// string, e.g. vivafolio_data!("project_tasks", r#" ... "#).
const (
	payloadOpen  = `r#"`
	payloadClose = `"#`
)

// DefaultMarker returns the construct anchor text for a base entity id.
func DefaultMarker(baseID string) string {
	return fmt.Sprintf("vivafolio_data!(%q", baseID)
}

// InlineModule rewrites data constructs embedded in source files the
// indexer does not otherwise parse. The construct is located span-first
// (the byte range recorded at extraction time), falling back to a marker
// search; if both fail the operation aborts rather than risk corrupting
// surrounding source. Bytes outside the payload are preserved exactly.
type InlineModule struct {
	dialect parser.Dialect
	schema  parser.Schema
}

// NewInlineModule creates an inline-construct editing module. Construct
// payloads always open with a header row regardless of the workspace
// dialect.
func NewInlineModule(dialect parser.Dialect, schema parser.Schema) *InlineModule {
	dialect.Header = true
	return &InlineModule{dialect: dialect, schema: schema}
}

// Update rewrites the payload row addressed by id.
func (m *InlineModule) Update(id string, props map[string]any, meta Metadata) error {
	return m.rewrite(meta, func(t *table) error {
		rowIdx, err := t.locate(id)
		if err != nil {
			return err
		}
		t.update(rowIdx, id, props)
		return nil
	})
}

// Create appends a new payload row.
func (m *InlineModule) Create(id string, props map[string]any, meta Metadata) error {
	return m.rewrite(meta, func(t *table) error {
		t.appendRow(id, props)
		return nil
	})
}

// Delete removes the payload row addressed by id.
func (m *InlineModule) Delete(id string, meta Metadata) error {
	return m.rewrite(meta, func(t *table) error {
		rowIdx, err := t.locate(id)
		if err != nil {
			return err
		}
		t.removeRow(rowIdx)
		return nil
	})
}

// rewrite locates the construct payload, applies the mutation to its
// parsed table form, and splices the re-serialized payload back into the
// original wrapper.
func (m *InlineModule) rewrite(meta Metadata, mutate func(*table) error) error {
	module := meta.DSLModule
	if module == nil {
		return fmt.Errorf("%w: no DSL module for inline entity", ErrAnchorNotFound)
	}

	content, err := os.ReadFile(meta.SourcePath)
	if err != nil {
		return fmt.Errorf("read source file: %w", err)
	}
	str := string(content)

	start, end, err := locatePayload(str, module)
	if err != nil {
		return err
	}

	payload := str[start:end]
	leadingNewline := strings.HasPrefix(payload, "\n")

	schema := m.schema
	if len(module.Headers) > 0 {
		schema.Columns = module.Headers
	}
	t := loadTable(m.dialect, schema, []byte(payload))
	if err := mutate(t); err != nil {
		return err
	}

	serialized := string(t.bytes())
	if leadingNewline {
		serialized = "\n" + serialized
	}

	return writeFileAtomic(meta.SourcePath, []byte(str[:start]+serialized+str[end:]))
}

// locatePayload returns the byte range of the construct's embedded payload.
// The recorded span is trusted only when it still anchors the marker; a
// drifted span falls back to a whole-file marker search.
func locatePayload(content string, module *graph.DSLModule) (int, int, error) {
	marker := module.Marker
	if marker == "" {
		marker = DefaultMarker(module.BaseID)
	}

	markerIdx := -1
	if s := module.Span; s.Valid() && s.End <= len(content) {
		if rel := strings.Index(content[s.Start:s.End], marker); rel >= 0 {
			markerIdx = s.Start + rel
		}
	}
	if markerIdx == -1 {
		markerIdx = strings.Index(content, marker)
	}
	if markerIdx == -1 {
		return 0, 0, fmt.Errorf("%w: marker %q in %s", ErrAnchorNotFound, marker, module.SourcePath)
	}

	openRel := strings.Index(content[markerIdx:], payloadOpen)
	if openRel == -1 {
		return 0, 0, fmt.Errorf("%w: payload opening after marker %q", ErrAnchorNotFound, marker)
	}
	start := markerIdx + openRel + len(payloadOpen)

	closeRel := strings.Index(content[start:], payloadClose)
	if closeRel == -1 {
		return 0, 0, fmt.Errorf("%w: payload closing after marker %q", ErrAnchorNotFound, marker)
	}
	return start, start + closeRel, nil
}
