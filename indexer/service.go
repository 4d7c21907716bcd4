package indexer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gridnote/indexer/editor"
	"github.com/gridnote/indexer/events"
	"github.com/gridnote/indexer/graph"
	"github.com/gridnote/indexer/parser"
)

// Service owns the entity graph lifecycle: initial scan, live watching,
// mutation dispatch, and notification ingestion. All graph mutation runs
// under a single mutex, giving the sequential-worker guarantee: every file
// event or mutation request completes, file I/O included, before the next
// is processed.
type Service struct {
	cfg     *Config
	store   *graph.Store
	bus     *events.Bus
	parsers *parser.Registry
	editors *editor.Registry
	tabular *parser.TabularParser
	logger  *slog.Logger

	mu      sync.Mutex // the sequential worker
	watcher *Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a service from explicitly constructed collaborators. Nothing
// is ambient: the store, bus and registries are owned by the caller and
// released via Close.
func New(cfg *Config, store *graph.Store, bus *events.Bus, parsers *parser.Registry, editors *editor.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:     cfg,
		store:   store,
		bus:     bus,
		parsers: parsers,
		editors: editors,
		tabular: parser.NewTabularParser(cfg.Tabular.Dialect(), cfg.Schema, cfg.parserOptions()),
		logger:  logger,
	}
}

// NewDefault creates a service with the standard store, bus, parser and
// editor registries wired from the config.
func NewDefault(cfg *Config, logger *slog.Logger) *Service {
	dialect := cfg.Tabular.Dialect()
	return New(cfg,
		graph.NewStore(),
		events.NewBus(events.WithLogger(logger)),
		parser.NewDefaultRegistry(dialect, cfg.Schema, cfg.parserOptions()),
		editor.NewDefaultRegistry(dialect, cfg.Schema, logger),
		logger)
}

// emission is an event captured while the sequential-worker mutex is held
// and delivered after it is released. Listeners may therefore call back
// into the mutation API without deadlocking the service.
type emission struct {
	event   events.Name
	payload any
}

// flush delivers captured emissions in order. Must be called without s.mu.
func (s *Service) flush(ctx context.Context, pending []emission) {
	for _, em := range pending {
		s.bus.Emit(ctx, em.event, em.payload)
	}
}

// Store returns the entity graph store.
func (s *Service) Store() *graph.Store { return s.store }

// Bus returns the event bus.
func (s *Service) Bus() *events.Bus { return s.bus }

// Start performs the initial scan and then begins watching the roots.
func (s *Service) Start(ctx context.Context) error {
	if err := s.Scan(ctx); err != nil {
		return err
	}

	w, err := NewWatcher(s.cfg, s.logger)
	if err != nil {
		return err
	}
	s.watcher = w

	watchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	if err := w.Start(watchCtx); err != nil {
		cancel()
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for ev := range w.Events() {
			s.handleWatchEvent(watchCtx, ev)
		}
	}()
	return nil
}

// Close stops watching and releases the store. The service must not be
// used afterwards.
func (s *Service) Close() error {
	var err error
	if s.cancel != nil {
		s.cancel()
	}
	if s.watcher != nil {
		err = s.watcher.Stop()
	}
	s.wg.Wait()
	s.store.Close()
	return err
}

// Scan enumerates the configured roots and indexes every matching file.
// Parse failures are logged per file and do not abort the scan.
func (s *Service) Scan(ctx context.Context) error {
	extensions := make(map[string]bool, len(s.cfg.Extensions))
	for _, ext := range s.cfg.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extensions[strings.ToLower(ext)] = true
	}

	for _, root := range s.cfg.Roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			absRoot = root
		}

		err = filepath.WalkDir(absRoot, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}

			if d.IsDir() {
				if path != absRoot && (s.excluded(path, absRoot) || strings.HasPrefix(d.Name(), ".")) {
					return filepath.SkipDir
				}
				return nil
			}
			if !extensions[strings.ToLower(filepath.Ext(path))] || s.excluded(path, absRoot) {
				return nil
			}

			var pending []emission
			s.mu.Lock()
			s.indexFile(path, events.FileAdded, &pending)
			s.mu.Unlock()
			s.flush(ctx, pending)
			return nil
		})
		if err != nil {
			return err
		}
	}

	s.logger.Info("initial scan complete", "entities", s.store.Len())
	return nil
}

// excluded reports whether a path matches any exclude glob, relative to
// its root.
func (s *Service) excluded(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return matchesAny(s.cfg.Excludes, filepath.ToSlash(rel))
}

// handleWatchEvent applies one debounced file transition to the graph.
func (s *Service) handleWatchEvent(ctx context.Context, ev WatchEvent) {
	var pending []emission
	s.mu.Lock()
	switch ev.Operation {
	case WatchOpCreate:
		s.indexFile(ev.AbsPath, events.FileAdded, &pending)
	case WatchOpModify:
		s.indexFile(ev.AbsPath, events.FileUpdated, &pending)
	case WatchOpDelete:
		s.removeFile(ev.AbsPath, &pending)
	}
	s.mu.Unlock()
	s.flush(ctx, pending)
}

// indexFile parses a file and upserts its entities. Entities from a prior
// version of the file that no longer appear are left in place: only whole-
// file deletion prunes.
func (s *Service) indexFile(path string, eventType events.FileEventType, pending *[]emission) {
	content, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("failed to read file", "path", path, "error", err)
		return
	}

	entities, err := s.parsers.Parse(path, content)
	if err != nil {
		s.logger.Warn("failed to parse file", "path", path, "error", err)
		return
	}

	if s.watcher != nil {
		s.watcher.SetHash(path, ContentHash(content))
	}

	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		s.store.Upsert(e)
		ids = append(ids, e.ID)
	}

	sourceType, _ := s.parsers.SourceTypeFor(path)
	*pending = append(*pending, emission{events.FileChanged, events.FileChangedPayload{
		FilePath:         path,
		EventType:        eventType,
		AffectedEntities: ids,
		SourceType:       sourceType,
	}})
}

// removeFile purges every entity originating from the removed path.
func (s *Service) removeFile(path string, pending *[]emission) {
	ids := s.store.DeleteBySourcePath(path)
	if len(ids) == 0 {
		return
	}

	sourceType, _ := s.parsers.SourceTypeFor(path)
	*pending = append(*pending, emission{events.FileChanged, events.FileChangedPayload{
		FilePath:         path,
		EventType:        events.FileRemoved,
		AffectedEntities: ids,
		SourceType:       sourceType,
	}})
}
