package events

import (
	"github.com/gridnote/indexer/graph"
)

// FileEventType is the kind of filesystem transition behind a FileChanged
// event.
type FileEventType string

// File event types.
const (
	FileAdded   FileEventType = "added"
	FileUpdated FileEventType = "changed"
	FileRemoved FileEventType = "removed"
)

// FileChangedPayload accompanies FileChanged events.
type FileChangedPayload struct {
	FilePath         string           `json:"file_path"`
	EventType        FileEventType    `json:"event_type"`
	AffectedEntities []string         `json:"affected_entities"`
	SourceType       graph.SourceType `json:"source_type"`
}

// EntityPayload accompanies EntityCreated, EntityUpdated and EntityDeleted
// events. PreviousProperties is populated only on updates.
type EntityPayload struct {
	EntityID           string           `json:"entity_id"`
	Properties         map[string]any   `json:"properties"`
	PreviousProperties map[string]any   `json:"previous_properties,omitempty"`
	SourcePath         string           `json:"source_path"`
	SourceType         graph.SourceType `json:"source_type"`
}

// BatchOperationPayload accompanies BatchOperation events. Operations lists
// only the operations that succeeded.
type BatchOperationPayload struct {
	Operations []BatchOperationRecord `json:"operations"`
}

// BatchOperationRecord is one succeeded operation in a batch.
type BatchOperationRecord struct {
	Kind     string         `json:"kind"` // update, create or delete
	EntityID string         `json:"entity_id"`
	Props    map[string]any `json:"properties,omitempty"`
}
