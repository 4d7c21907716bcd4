package indexer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gridnote/indexer/editor"
	"github.com/gridnote/indexer/events"
	"github.com/gridnote/indexer/graph"
	"github.com/gridnote/indexer/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tasksCSV = `task_name,assignee,status
Implement auth,Alice,In Progress
Write docs,Bob,Not Started
`

// recorder captures emitted events in order.
type recorder struct {
	mu       sync.Mutex
	payloads map[events.Name][]any
}

func record(bus *events.Bus, names ...events.Name) *recorder {
	r := &recorder{payloads: make(map[events.Name][]any)}
	for _, name := range names {
		name := name
		bus.On(name, func(_ context.Context, payload any) error {
			r.mu.Lock()
			r.payloads[name] = append(r.payloads[name], payload)
			r.mu.Unlock()
			return nil
		})
	}
	return r
}

func (r *recorder) count(name events.Name) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads[name])
}

func (r *recorder) last(name events.Name) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	got := r.payloads[name]
	if len(got) == 0 {
		return nil
	}
	return got[len(got)-1]
}

func newTestService(t *testing.T, root string, mutate func(*Config)) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Roots = []string{root}
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	dialect := cfg.Tabular.Dialect()
	svc := New(cfg,
		graph.NewStore(),
		events.NewBus(events.Synchronous(), events.WithLogger(logger)),
		parser.NewDefaultRegistry(dialect, cfg.Schema, cfg.parserOptions()),
		editor.NewDefaultRegistry(dialect, cfg.Schema, logger),
		logger)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func writeWorkspaceFile(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestService_Scan_IndexesWorkspace(t *testing.T) {
	root := t.TempDir()
	writeWorkspaceFile(t, root, "tasks.csv", tasksCSV)
	writeWorkspaceFile(t, root, "notes.md", "---\ntitle: Notes\nstatus: draft\n---\nBody text.\n")
	writeWorkspaceFile(t, root, "settings.json", `{"theme": "dark"}`+"\n")

	svc := newTestService(t, root, nil)
	rec := record(svc.Bus(), events.FileChanged)
	require.NoError(t, svc.Scan(context.Background()))

	store := svc.Store()
	assert.Equal(t, 4, store.Len())

	row := store.Get("tasks-row-0")
	require.NotNil(t, row)
	assert.Equal(t, graph.SourceTabular, row.Source)
	assert.Equal(t, "Implement auth", row.Properties["task_name"])

	doc := store.Get("notes")
	require.NotNil(t, doc)
	assert.Equal(t, graph.SourceDocument, doc.Source)
	assert.Equal(t, "draft", doc.Properties["status"])

	cfg := store.Get("settings")
	require.NotNil(t, cfg)
	assert.Equal(t, graph.SourceStructured, cfg.Source)
	assert.Equal(t, "dark", cfg.Properties["theme"])

	// One file-changed emission per indexed file.
	assert.Equal(t, 3, rec.count(events.FileChanged))
}

func TestService_Scan_SkipsExcludedAndHidden(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "pkg"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".cache"), 0o755))
	writeWorkspaceFile(t, root, filepath.Join("node_modules", "pkg", "dep.csv"), tasksCSV)
	writeWorkspaceFile(t, root, filepath.Join(".cache", "tmp.csv"), tasksCSV)
	writeWorkspaceFile(t, root, "tasks.csv", tasksCSV)

	svc := newTestService(t, root, nil)
	require.NoError(t, svc.Scan(context.Background()))

	assert.Equal(t, 2, svc.Store().Len())
	assert.NotNil(t, svc.Store().Get("tasks-row-0"))
}

func TestService_Scan_MalformedFileDoesNotAbort(t *testing.T) {
	root := t.TempDir()
	writeWorkspaceFile(t, root, "broken.json", "{not json")
	writeWorkspaceFile(t, root, "tasks.csv", tasksCSV)

	svc := newTestService(t, root, nil)
	require.NoError(t, svc.Scan(context.Background()))
	assert.Equal(t, 2, svc.Store().Len())
}

func TestService_UpdateEntity(t *testing.T) {
	root := t.TempDir()
	path := writeWorkspaceFile(t, root, "tasks.csv", tasksCSV)

	svc := newTestService(t, root, nil)
	rec := record(svc.Bus(), events.EntityUpdated)
	require.NoError(t, svc.Scan(context.Background()))

	before := svc.Store().Get("tasks-row-0").Edition
	ok := svc.UpdateEntity(context.Background(), "tasks-row-0", map[string]any{"status": "Done"})
	require.True(t, ok)

	// File first, then the mirror.
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Implement auth,Alice,Done")

	e := svc.Store().Get("tasks-row-0")
	assert.Equal(t, "Done", e.Properties["status"])
	assert.NotEqual(t, before, e.Edition)

	require.Equal(t, 1, rec.count(events.EntityUpdated))
	payload := rec.last(events.EntityUpdated).(events.EntityPayload)
	assert.Equal(t, "tasks-row-0", payload.EntityID)
	assert.Equal(t, "In Progress", payload.PreviousProperties["status"])
}

func TestService_UpdateEntity_UnknownID(t *testing.T) {
	root := t.TempDir()
	writeWorkspaceFile(t, root, "tasks.csv", tasksCSV)

	svc := newTestService(t, root, nil)
	require.NoError(t, svc.Scan(context.Background()))

	assert.False(t, svc.UpdateEntity(context.Background(), "ghost", map[string]any{"status": "x"}))
}

func TestService_UpdateEntity_WriteFailureLeavesGraphUntouched(t *testing.T) {
	root := t.TempDir()
	path := writeWorkspaceFile(t, root, "tasks.csv", tasksCSV)

	svc := newTestService(t, root, nil)
	rec := record(svc.Bus(), events.EntityUpdated)
	require.NoError(t, svc.Scan(context.Background()))

	// Make the write fail: the source file is gone.
	require.NoError(t, os.Remove(path))

	ok := svc.UpdateEntity(context.Background(), "tasks-row-0", map[string]any{"status": "Done"})
	assert.False(t, ok)
	assert.Equal(t, "In Progress", svc.Store().Get("tasks-row-0").Properties["status"])
	assert.Zero(t, rec.count(events.EntityUpdated))
}

func TestService_CreateEntity(t *testing.T) {
	root := t.TempDir()
	path := writeWorkspaceFile(t, root, "tasks.csv", tasksCSV)

	svc := newTestService(t, root, nil)
	rec := record(svc.Bus(), events.EntityCreated)
	require.NoError(t, svc.Scan(context.Background()))

	ok := svc.CreateEntity(context.Background(), "tasks-row-2", map[string]any{
		"task_name": "Ship it",
		"assignee":  "Carol",
		"status":    "Not Started",
	}, SourceMetadata{SourcePath: path, SourceType: graph.SourceTabular})
	require.True(t, ok)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Ship it,Carol,Not Started")

	e := svc.Store().Get("tasks-row-2")
	require.NotNil(t, e)
	assert.Equal(t, graph.SourceTabular, e.Source)
	assert.Equal(t, 1, rec.count(events.EntityCreated))
}

func TestService_CreateEntity_DuplicateID(t *testing.T) {
	root := t.TempDir()
	path := writeWorkspaceFile(t, root, "tasks.csv", tasksCSV)

	svc := newTestService(t, root, nil)
	require.NoError(t, svc.Scan(context.Background()))

	ok := svc.CreateEntity(context.Background(), "tasks-row-0", map[string]any{"task_name": "dup"},
		SourceMetadata{SourcePath: path, SourceType: graph.SourceTabular})
	assert.False(t, ok)
}

func TestService_DeleteEntity(t *testing.T) {
	root := t.TempDir()
	path := writeWorkspaceFile(t, root, "tasks.csv", tasksCSV)

	svc := newTestService(t, root, nil)
	rec := record(svc.Bus(), events.EntityDeleted)
	require.NoError(t, svc.Scan(context.Background()))

	require.True(t, svc.DeleteEntity(context.Background(), "tasks-row-1"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "Write docs")
	assert.Nil(t, svc.Store().Get("tasks-row-1"))
	assert.Equal(t, 1, rec.count(events.EntityDeleted))
}

// The documented host flow is event in, follow-up mutation out: a listener
// reacting to entity-updated may synchronously call back into the mutation
// API. Events are therefore delivered outside the sequential-worker mutex.
func TestService_ListenerMayMutateReentrantly(t *testing.T) {
	root := t.TempDir()
	path := writeWorkspaceFile(t, root, "tasks.csv", tasksCSV)

	svc := newTestService(t, root, nil)
	require.NoError(t, svc.Scan(context.Background()))

	svc.Bus().On(events.EntityUpdated, func(ctx context.Context, payload any) error {
		p, ok := payload.(events.EntityPayload)
		if ok && p.EntityID == "tasks-row-0" {
			svc.UpdateEntity(ctx, "tasks-row-1", map[string]any{"status": "Blocked"})
		}
		return nil
	})

	done := make(chan bool, 1)
	go func() {
		done <- svc.UpdateEntity(context.Background(), "tasks-row-0", map[string]any{"status": "Done"})
	}()

	select {
	case ok := <-done:
		require.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("UpdateEntity never returned while its listener issued a follow-up mutation")
	}

	assert.Equal(t, "Done", svc.Store().Get("tasks-row-0").Properties["status"])
	assert.Equal(t, "Blocked", svc.Store().Get("tasks-row-1").Properties["status"])

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Implement auth,Alice,Done")
	assert.Contains(t, string(content), "Write docs,Bob,Blocked")
}

func TestService_BatchOperations_IndependentFailures(t *testing.T) {
	root := t.TempDir()
	writeWorkspaceFile(t, root, "tasks.csv", tasksCSV)

	svc := newTestService(t, root, nil)
	rec := record(svc.Bus(), events.BatchOperation)
	require.NoError(t, svc.Scan(context.Background()))

	result := svc.PerformBatchOperations(context.Background(), []Operation{
		{Kind: OpUpdate, EntityID: "tasks-row-0", Properties: map[string]any{"status": "Done"}},
		{Kind: OpUpdate, EntityID: "ghost", Properties: map[string]any{"status": "Done"}},
		{Kind: OpUpdate, EntityID: "tasks-row-1", Properties: map[string]any{"status": "In Progress"}},
	})

	assert.False(t, result.Success)
	require.Len(t, result.Results, 3)
	assert.True(t, result.Results[0].Success)
	assert.False(t, result.Results[1].Success)
	assert.True(t, result.Results[2].Success)

	// A failure mid-batch does not block later operations.
	assert.Equal(t, "In Progress", svc.Store().Get("tasks-row-1").Properties["status"])

	// One batch event, listing only the operations that succeeded.
	require.Equal(t, 1, rec.count(events.BatchOperation))
	payload := rec.last(events.BatchOperation).(events.BatchOperationPayload)
	require.Len(t, payload.Operations, 2)
	assert.Equal(t, "tasks-row-0", payload.Operations[0].EntityID)
	assert.Equal(t, "tasks-row-1", payload.Operations[1].EntityID)
}

func TestService_BatchOperations_NoEventWhenAllFail(t *testing.T) {
	root := t.TempDir()
	writeWorkspaceFile(t, root, "tasks.csv", tasksCSV)

	svc := newTestService(t, root, nil)
	rec := record(svc.Bus(), events.BatchOperation)
	require.NoError(t, svc.Scan(context.Background()))

	result := svc.PerformBatchOperations(context.Background(), []Operation{
		{Kind: OpDelete, EntityID: "ghost"},
		{Kind: OpCreate, EntityID: "orphan"}, // missing metadata
	})

	assert.False(t, result.Success)
	assert.Zero(t, rec.count(events.BatchOperation))
}

func TestService_IdentifierStability_AcrossRescans(t *testing.T) {
	root := t.TempDir()
	writeWorkspaceFile(t, root, "tasks.csv", `entity_id,task_name,status
alpha,First,To Do
beta,Second,Done
gamma,Third,To Do
`)

	svc := newTestService(t, root, func(cfg *Config) {
		cfg.Schema.ID = parser.IDConfig{From: parser.IDFromColumn, Column: "entity_id"}
	})
	require.NoError(t, svc.Scan(context.Background()))
	require.NotNil(t, svc.Store().Get("beta"))

	require.True(t, svc.DeleteEntity(context.Background(), "beta"))
	require.NoError(t, svc.Scan(context.Background()))

	// Surviving rows keep their ids even though their positions shifted.
	assert.NotNil(t, svc.Store().Get("alpha"))
	assert.NotNil(t, svc.Store().Get("gamma"))
	assert.Nil(t, svc.Store().Get("beta"))
	assert.Equal(t, "Third", svc.Store().Get("gamma").Properties["task_name"])
}

func TestService_IngestConstruct_External(t *testing.T) {
	svc := newTestService(t, t.TempDir(), nil)
	rec := record(svc.Bus(), events.EntityCreated)

	ids := svc.IngestConstruct(context.Background(), ConstructNotification{
		EntityID: "metrics",
		Table: TableData{
			Headers: []string{"Name", "Value"},
			Rows:    [][]string{{"latency", "12"}, {"errors", "0"}},
		},
	})

	require.Equal(t, []string{"metrics-row-0", "metrics-row-1"}, ids)
	e := svc.Store().Get("metrics-row-0")
	require.NotNil(t, e)
	assert.Equal(t, graph.SourceExternal, e.Source)
	assert.Equal(t, graph.ExternalSource, e.SourcePath)
	assert.Equal(t, "metrics", e.TypeID)
	assert.Equal(t, "latency", e.Properties["name"])
	assert.Equal(t, 2, rec.count(events.EntityCreated))
}

func TestService_IngestConstruct_InlineRegistersModule(t *testing.T) {
	root := t.TempDir()
	path := writeWorkspaceFile(t, root, "main.rs", "vivafolio_data!(\"project_tasks\", r#\"\ntask_name,status\nShip,Done\n\"#);\n")

	svc := newTestService(t, root, nil)
	ids := svc.IngestConstruct(context.Background(), ConstructNotification{
		EntityID:   "project_tasks",
		SourcePath: path,
		Table: TableData{
			Headers: []string{"task_name", "status"},
			Rows:    [][]string{{"Ship", "Done"}},
		},
	})

	require.Equal(t, []string{"project_tasks-row-0"}, ids)
	e := svc.Store().Get("project_tasks-row-0")
	require.NotNil(t, e)
	assert.Equal(t, graph.SourceInline, e.Source)

	module := svc.Store().DSLModule("project_tasks")
	require.NotNil(t, module)
	assert.Equal(t, editor.DefaultMarker("project_tasks"), module.Marker)
	assert.Equal(t, []string{"task_name", "status"}, module.Headers)

	// The registered module makes the construct writable.
	require.True(t, svc.UpdateEntity(context.Background(), "project_tasks-row-0", map[string]any{"status": "Shipped"}))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Ship,Shipped")
}
