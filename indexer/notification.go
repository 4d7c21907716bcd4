package indexer

import (
	"context"

	"github.com/gridnote/indexer/editor"
	"github.com/gridnote/indexer/events"
	"github.com/gridnote/indexer/graph"
)

// TableData is an inline construct's extracted tabular payload.
type TableData struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// ConstructNotification is the payload delivered by the external discovery
// collaborator when it extracts an inline construct from a source file the
// indexer does not parse itself.
type ConstructNotification struct {
	// EntityID is the construct's base entity id; row entities derive
	// from it as <EntityID>-row-<i>.
	EntityID string `json:"entity_id"`

	// EntityTypeID types the row entities. Defaults to EntityID so each
	// construct gets its own write-back descriptor.
	EntityTypeID string `json:"entity_type_id,omitempty"`

	// Table is the extracted tabular payload.
	Table TableData `json:"table_data"`

	// DSLModule, when present, carries the write-back descriptor recorded
	// at extraction time.
	DSLModule *graph.DSLModule `json:"dsl_module,omitempty"`

	// SourcePath is the file holding the construct. Empty means the
	// entities are notification-only and read-only.
	SourcePath string `json:"source_path,omitempty"`
}

// IngestConstruct materializes one entity per payload row, exactly as the
// tabular parser would, registers the DSL module for later write-back, and
// emits entity-created per row. Returns the materialized entity ids.
func (s *Service) IngestConstruct(ctx context.Context, n ConstructNotification) []string {
	var pending []emission
	s.mu.Lock()

	typeID := n.EntityTypeID
	if typeID == "" {
		typeID = n.EntityID
	}

	sourcePath := n.SourcePath
	sourceType := graph.SourceInline
	if sourcePath == "" {
		sourcePath = graph.ExternalSource
		sourceType = graph.SourceExternal
	}

	if sourceType == graph.SourceInline {
		module := n.DSLModule
		if module == nil {
			module = &graph.DSLModule{}
		}
		if module.BaseID == "" {
			module.BaseID = n.EntityID
		}
		if module.SourcePath == "" {
			module.SourcePath = sourcePath
		}
		if module.Marker == "" {
			module.Marker = editor.DefaultMarker(module.BaseID)
		}
		if len(module.Headers) == 0 {
			module.Headers = n.Table.Headers
		}
		s.store.RegisterDSLModule(typeID, module)
	}

	entities := s.tabular.MaterializeRows(sourcePath, n.EntityID, typeID, sourceType, n.Table.Headers, n.Table.Rows)

	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		s.store.Upsert(e)
		ids = append(ids, e.ID)

		pending = append(pending, emission{events.EntityCreated, events.EntityPayload{
			EntityID:   e.ID,
			Properties: e.Properties,
			SourcePath: e.SourcePath,
			SourceType: e.Source,
		}})
	}

	s.mu.Unlock()
	s.flush(ctx, pending)
	return ids
}
