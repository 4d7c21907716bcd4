package editor

// ReadOnlyModule handles entities that have no local file, such as those
// arriving over the discovery channel. Mutation authority lies with the
// external producer, so all operations are accepted no-ops.
type ReadOnlyModule struct{}

// NewReadOnlyModule creates the read-only editing module.
func NewReadOnlyModule() *ReadOnlyModule {
	return &ReadOnlyModule{}
}

// Update is an accepted no-op.
func (m *ReadOnlyModule) Update(string, map[string]any, Metadata) error { return nil }

// Create is an accepted no-op.
func (m *ReadOnlyModule) Create(string, map[string]any, Metadata) error { return nil }

// Delete is an accepted no-op.
func (m *ReadOnlyModule) Delete(string, Metadata) error { return nil }
