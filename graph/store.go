package graph

import (
	"path/filepath"
	"sync"
)

// Store is the in-memory entity graph: a keyed collection of entities plus
// the registry of DSL modules used for inline-construct write-back.
//
// The store is explicitly owned and constructor-injected into every
// component; there is no package-level instance. Mutation is confined to the
// indexer's sequential worker, but a RWMutex guards against concurrent
// readers during async event delivery.
type Store struct {
	mu       sync.RWMutex
	entities map[string]*Entity
	modules  map[string]*DSLModule // keyed by entity type id

	// waiters are resolved by Upsert so derived views can block on an
	// entity that has not been indexed yet instead of polling.
	waiters map[string][]chan *Entity

	closed bool
}

// NewStore creates an empty entity graph store.
func NewStore() *Store {
	return &Store{
		entities: make(map[string]*Entity),
		modules:  make(map[string]*DSLModule),
		waiters:  make(map[string][]chan *Entity),
	}
}

// Get returns the entity with the given id, or nil.
func (s *Store) Get(id string) *Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entities[id]
}

// All returns every entity in the graph in unspecified order.
func (s *Store) All() []*Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e)
	}
	return out
}

// BySourceType returns all entities from the given source format.
func (s *Store) BySourceType(st SourceType) []*Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entity
	for _, e := range s.entities {
		if e.Source == st {
			out = append(out, e)
		}
	}
	return out
}

// ByFileBasename returns all entities whose source file basename matches.
func (s *Store) ByFileBasename(name string) []*Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entity
	for _, e := range s.entities {
		if filepath.Base(e.SourcePath) == name {
			out = append(out, e)
		}
	}
	return out
}

// BySourcePath returns all entities originating from the given file.
func (s *Store) BySourcePath(path string) []*Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entity
	for _, e := range s.entities {
		if e.SourcePath == path {
			out = append(out, e)
		}
	}
	return out
}

// Upsert inserts or replaces an entity and resolves any waiters blocked on
// its id.
func (s *Store) Upsert(e *Entity) {
	s.mu.Lock()
	s.entities[e.ID] = e
	pending := s.waiters[e.ID]
	delete(s.waiters, e.ID)
	s.mu.Unlock()

	for _, ch := range pending {
		ch <- e
	}
}

// Delete removes an entity. Returns false if the id is unknown.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[id]; !ok {
		return false
	}
	delete(s.entities, id)
	return true
}

// DeleteBySourcePath purges every entity originating from the given file,
// returning the ids that were removed.
func (s *Store) DeleteBySourcePath(path string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, e := range s.entities {
		if e.SourcePath == path {
			delete(s.entities, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// RegisterDSLModule records the write-back descriptor for an entity type.
// Re-registration replaces the prior descriptor (the discovery channel
// re-extracts spans whenever the construct moves).
func (s *Store) RegisterDSLModule(typeID string, m *DSLModule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules[typeID] = m
}

// DSLModule returns the registered descriptor for an entity type, or nil.
func (s *Store) DSLModule(typeID string) *DSLModule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modules[typeID]
}

// Wait returns a channel that receives the entity with the given id once it
// is upserted. If the entity already exists the channel is pre-filled. The
// caller owns the timeout; an abandoned waiter is released by Close.
func (s *Store) Wait(id string) <-chan *Entity {
	ch := make(chan *Entity, 1)

	s.mu.Lock()
	if e, ok := s.entities[id]; ok {
		s.mu.Unlock()
		ch <- e
		return ch
	}
	s.waiters[id] = append(s.waiters[id], ch)
	s.mu.Unlock()
	return ch
}

// Len returns the number of entities in the graph.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// Close releases the store: pending waiters are closed and the maps cleared.
// The store must not be used after Close.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, chans := range s.waiters {
		for _, ch := range chans {
			close(ch)
		}
		delete(s.waiters, id)
	}
	s.entities = make(map[string]*Entity)
	s.modules = make(map[string]*DSLModule)
}
