// Package parser converts file bytes into entity records, one parser per
// source format. Parsers are pure: they never touch the graph store, they
// only return entities for the caller to upsert.
package parser

// Dialect describes the lexical shape of a tabular file.
type Dialect struct {
	// Delimiter separates cells. Defaults to ','.
	Delimiter rune `yaml:"delimiter"`

	// Quote opens and closes a quoted cell. Defaults to '"'.
	Quote rune `yaml:"quote"`

	// Escape, when non-zero, escapes the next character inside a quoted
	// cell. When zero, an embedded quote is written by doubling it.
	Escape rune `yaml:"escape"`

	// Header indicates the first row names the columns. When false,
	// col1..colN headers are synthesized from the widest row.
	Header bool `yaml:"header"`
}

// DefaultDialect returns the comma/double-quote dialect with a header row.
func DefaultDialect() Dialect {
	return Dialect{
		Delimiter: ',',
		Quote:     '"',
		Header:    true,
	}
}

// normalized fills zero-value lexical characters with defaults.
func (d Dialect) normalized() Dialect {
	if d.Delimiter == 0 {
		d.Delimiter = ','
	}
	if d.Quote == 0 {
		d.Quote = '"'
	}
	return d
}

// IDSource selects the entity id strategy for tabular rows.
type IDSource string

// ID strategies.
const (
	// IDFromColumn reads the id from a designated column, falling back to
	// the positional default when the cell is empty.
	IDFromColumn IDSource = "column"

	// IDFromTemplate substitutes {basename} and {row} into a template.
	IDFromTemplate IDSource = "template"
)

// IDConfig configures entity id derivation.
type IDConfig struct {
	From     IDSource `yaml:"from"`
	Column   string   `yaml:"column,omitempty"`
	Template string   `yaml:"template,omitempty"`
}

// NullPolicy controls which tokens coerce to null during typed parsing.
type NullPolicy string

// Null policies.
const (
	// NullStrict never treats a token as null.
	NullStrict NullPolicy = "strict"

	// NullLoose treats empty, "null" and "nan" tokens as null.
	NullLoose NullPolicy = "loose"
)

// Schema describes row identity and column declarations for a tabular
// source. Columns, when set, overrides the parsed or synthesized headers.
type Schema struct {
	ID         IDConfig   `yaml:"id"`
	Columns    []string   `yaml:"columns,omitempty"`
	NullPolicy NullPolicy `yaml:"null_policy,omitempty"`
}

// Options carries cross-cutting parser hooks.
type Options struct {
	// Typing enables scalar coercion (bool, int, float, nulls).
	Typing bool

	// SanitizeHeader overrides the default header sanitizer.
	SanitizeHeader func(string) string

	// OnRow is invoked for every materialized row with its index and
	// property map, before the entity is built.
	OnRow func(index int, props map[string]any)
}
