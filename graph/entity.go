// Package graph provides the in-memory entity graph: the uniform data model
// shared by every format parser, editing module, and derived view.
package graph

import (
	"github.com/google/uuid"
)

// SourceType identifies the on-disk format an entity was materialized from.
type SourceType string

// Source types for the closed set of supported origins.
const (
	SourceTabular    SourceType = "tabular"
	SourceDocument   SourceType = "document"
	SourceStructured SourceType = "structured"
	SourceInline     SourceType = "inline"
	SourceExternal   SourceType = "external"
)

// ExternalSource is the SourcePath sentinel for entities that arrive via
// out-of-band notification rather than a scanned file.
const ExternalSource = "external://notification"

// DefaultTypeID is used when a source declares no richer entity type.
const DefaultTypeID = "thing"

// Entity is one logical record extracted from a source file or notification.
type Entity struct {
	// ID is unique across the whole graph regardless of source file.
	ID string `json:"entity_id"`

	// TypeID identifies the schema/shape of Properties.
	TypeID string `json:"entity_type_id"`

	// Edition is a cache-busting token recomputed on every mutation.
	// It carries no ordering semantics.
	Edition string `json:"edition_id"`

	// SourcePath is the absolute path of the originating file, or
	// ExternalSource for notification-only entities.
	SourcePath string `json:"source_path"`

	// Source is the on-disk format the entity came from.
	Source SourceType `json:"source_type"`

	// Properties is the payload: an open string-keyed map of
	// JSON-compatible values.
	Properties map[string]any `json:"properties"`
}

// NewEntity constructs an entity with a fresh edition token. An empty typeID
// falls back to DefaultTypeID.
func NewEntity(id, typeID, sourcePath string, source SourceType, props map[string]any) *Entity {
	if typeID == "" {
		typeID = DefaultTypeID
	}
	if props == nil {
		props = make(map[string]any)
	}
	return &Entity{
		ID:         id,
		TypeID:     typeID,
		Edition:    NewEdition(),
		SourcePath: sourcePath,
		Source:     source,
		Properties: props,
	}
}

// NewEdition returns a fresh edition token.
func NewEdition() string {
	return uuid.NewString()
}

// Touch replaces the entity's edition token after a mutation.
func (e *Entity) Touch() {
	e.Edition = NewEdition()
}

// Clone returns a deep-enough copy: the property map is copied, values are
// shared. Parsers only store scalars so this is sufficient for snapshotting.
func (e *Entity) Clone() *Entity {
	props := make(map[string]any, len(e.Properties))
	for k, v := range e.Properties {
		props[k] = v
	}
	c := *e
	c.Properties = props
	return &c
}

// MergeProperties overlays props onto the entity's property map and
// refreshes the edition token. Returns the prior property map.
func (e *Entity) MergeProperties(props map[string]any) map[string]any {
	prev := e.Properties
	merged := make(map[string]any, len(prev)+len(props))
	for k, v := range prev {
		merged[k] = v
	}
	for k, v := range props {
		merged[k] = v
	}
	e.Properties = merged
	e.Touch()
	return prev
}
