package indexer

import (
	"context"

	"github.com/gridnote/indexer/editor"
	"github.com/gridnote/indexer/events"
	"github.com/gridnote/indexer/graph"
)

// SourceMetadata tells CreateEntity where and in what format a new entity
// lives on disk.
type SourceMetadata struct {
	SourcePath string           `json:"source_path"`
	SourceType graph.SourceType `json:"source_type"`
	TypeID     string           `json:"entity_type_id,omitempty"`
}

// OpKind is the kind of a batch operation.
type OpKind string

// Batch operation kinds.
const (
	OpUpdate OpKind = "update"
	OpCreate OpKind = "create"
	OpDelete OpKind = "delete"
)

// Operation is one independently attempted mutation in a batch.
type Operation struct {
	Kind       OpKind          `json:"kind"`
	EntityID   string          `json:"entity_id"`
	Properties map[string]any  `json:"properties,omitempty"`
	Metadata   *SourceMetadata `json:"metadata,omitempty"` // create only
}

// OperationResult reports the outcome of one batch operation.
type OperationResult struct {
	Operation Operation `json:"operation"`
	Success   bool      `json:"success"`
}

// BatchResult aggregates a batch: Success is true only when every
// operation succeeded.
type BatchResult struct {
	Success bool              `json:"success"`
	Results []OperationResult `json:"results"`
}

// UpdateEntity writes the property mutation to the entity's source file
// and, only after a successful write, mirrors it into the graph and emits
// entity-updated. A failed mutation leaves file and memory untouched.
func (s *Service) UpdateEntity(ctx context.Context, id string, props map[string]any) bool {
	var pending []emission
	s.mu.Lock()
	ok := s.updateEntityLocked(id, props, &pending)
	s.mu.Unlock()
	s.flush(ctx, pending)
	return ok
}

func (s *Service) updateEntityLocked(id string, props map[string]any, pending *[]emission) bool {
	e := s.store.Get(id)
	if e == nil {
		s.logger.Warn("update target not found", "entity_id", id)
		return false
	}

	mod, err := s.editors.Dispatch(e.Source)
	if err != nil {
		return false
	}
	if err := mod.Update(id, props, s.metadataFor(e)); err != nil {
		s.logger.Warn("update failed", "entity_id", id, "error", err)
		return false
	}

	prev := e.MergeProperties(props)
	s.store.Upsert(e)

	*pending = append(*pending, emission{events.EntityUpdated, events.EntityPayload{
		EntityID:           e.ID,
		Properties:         e.Properties,
		PreviousProperties: prev,
		SourcePath:         e.SourcePath,
		SourceType:         e.Source,
	}})
	return true
}

// CreateEntity writes a new record to the file described by meta and
// mirrors it into the graph, emitting entity-created.
func (s *Service) CreateEntity(ctx context.Context, id string, props map[string]any, meta SourceMetadata) bool {
	var pending []emission
	s.mu.Lock()
	ok := s.createEntityLocked(id, props, meta, &pending)
	s.mu.Unlock()
	s.flush(ctx, pending)
	return ok
}

func (s *Service) createEntityLocked(id string, props map[string]any, meta SourceMetadata, pending *[]emission) bool {
	if s.store.Get(id) != nil {
		s.logger.Warn("create target already exists", "entity_id", id)
		return false
	}

	mod, err := s.editors.Dispatch(meta.SourceType)
	if err != nil {
		return false
	}
	edMeta := editor.Metadata{
		SourcePath: meta.SourcePath,
		Source:     meta.SourceType,
		DSLModule:  s.store.DSLModule(meta.TypeID),
	}
	if err := mod.Create(id, props, edMeta); err != nil {
		s.logger.Warn("create failed", "entity_id", id, "error", err)
		return false
	}

	e := graph.NewEntity(id, meta.TypeID, meta.SourcePath, meta.SourceType, props)
	s.store.Upsert(e)

	*pending = append(*pending, emission{events.EntityCreated, events.EntityPayload{
		EntityID:   e.ID,
		Properties: e.Properties,
		SourcePath: e.SourcePath,
		SourceType: e.Source,
	}})
	return true
}

// DeleteEntity removes the entity's record from its source file and then
// from the graph, emitting entity-deleted.
func (s *Service) DeleteEntity(ctx context.Context, id string) bool {
	var pending []emission
	s.mu.Lock()
	ok := s.deleteEntityLocked(id, &pending)
	s.mu.Unlock()
	s.flush(ctx, pending)
	return ok
}

func (s *Service) deleteEntityLocked(id string, pending *[]emission) bool {
	e := s.store.Get(id)
	if e == nil {
		s.logger.Warn("delete target not found", "entity_id", id)
		return false
	}

	mod, err := s.editors.Dispatch(e.Source)
	if err != nil {
		return false
	}
	if err := mod.Delete(id, s.metadataFor(e)); err != nil {
		s.logger.Warn("delete failed", "entity_id", id, "error", err)
		return false
	}

	s.store.Delete(id)

	*pending = append(*pending, emission{events.EntityDeleted, events.EntityPayload{
		EntityID:   e.ID,
		Properties: e.Properties,
		SourcePath: e.SourcePath,
		SourceType: e.Source,
	}})
	return true
}

// PerformBatchOperations attempts each operation independently: one failure
// does not abort the rest. A single batch-operation event fires afterwards
// listing only the operations that succeeded.
func (s *Service) PerformBatchOperations(ctx context.Context, ops []Operation) BatchResult {
	var pending []emission
	s.mu.Lock()

	result := BatchResult{Success: true, Results: make([]OperationResult, 0, len(ops))}
	var succeeded []events.BatchOperationRecord

	for _, op := range ops {
		ok := false
		switch op.Kind {
		case OpUpdate:
			ok = s.updateEntityLocked(op.EntityID, op.Properties, &pending)
		case OpCreate:
			if op.Metadata != nil {
				ok = s.createEntityLocked(op.EntityID, op.Properties, *op.Metadata, &pending)
			} else {
				s.logger.Warn("create operation missing metadata", "entity_id", op.EntityID)
			}
		case OpDelete:
			ok = s.deleteEntityLocked(op.EntityID, &pending)
		default:
			s.logger.Warn("unknown batch operation kind", "kind", string(op.Kind))
		}

		result.Results = append(result.Results, OperationResult{Operation: op, Success: ok})
		if ok {
			succeeded = append(succeeded, events.BatchOperationRecord{
				Kind:     string(op.Kind),
				EntityID: op.EntityID,
				Props:    op.Properties,
			})
		} else {
			result.Success = false
		}
	}

	if len(succeeded) > 0 {
		pending = append(pending, emission{events.BatchOperation, events.BatchOperationPayload{Operations: succeeded}})
	}

	s.mu.Unlock()
	s.flush(ctx, pending)
	return result
}

// metadataFor builds the editing-module context for an entity.
func (s *Service) metadataFor(e *graph.Entity) editor.Metadata {
	return editor.Metadata{
		SourcePath: e.SourcePath,
		Source:     e.Source,
		DSLModule:  s.store.DSLModule(e.TypeID),
	}
}
