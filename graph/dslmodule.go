package graph

// Span records the byte range of an inline construct inside its source file,
// captured at extraction time by the external discovery collaborator. Write-
// back validates the span before trusting it; a drifted span falls back to a
// marker search.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Valid reports whether the span describes a usable range.
func (s Span) Valid() bool {
	return s.Start >= 0 && s.End > s.Start
}

// DSLModule describes how to locate and rewrite an inline construct. One is
// registered per entity type the first time an inline-construct entity of
// that type is observed.
type DSLModule struct {
	// Version of the construct syntax, supplied by the discovery channel.
	Version string `json:"version"`

	// BaseID is the construct's base entity id; row entities derive from it
	// as <BaseID>-row-<N>.
	BaseID string `json:"base_id"`

	// SourcePath is the file holding the construct.
	SourcePath string `json:"source_path"`

	// Marker is the anchor text that opens the construct, e.g.
	// `vivafolio_data!("project_tasks"`. Used to re-locate the construct
	// when the recorded span no longer matches.
	Marker string `json:"marker"`

	// Span is the construct's byte range recorded at extraction time.
	Span Span `json:"span"`

	// Headers is the payload column order used for re-serialization.
	Headers []string `json:"headers,omitempty"`
}
