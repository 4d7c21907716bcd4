package editor

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/gridnote/indexer/parser"
)

// rowSuffixPattern extracts the positional index from ids following the
// <base>-row-<N> convention.
var rowSuffixPattern = regexp.MustCompile(`-row-(\d+)$`)

// table is the shared in-memory form of a tabular payload used by both the
// tabular and inline-construct modules: raw records plus sanitized header
// names for property lookup.
type table struct {
	dialect   parser.Dialect
	schema    parser.Schema
	hasHeader bool
	headers   []string // raw, as on disk
	sanitized []string
	rows      [][]string
}

// loadTable parses tabular bytes into a mutable table.
func loadTable(dialect parser.Dialect, schema parser.Schema, content []byte) *table {
	t := &table{
		dialect:   dialect,
		schema:    schema,
		hasHeader: dialect.Header,
	}

	records := parser.ReadRecords(dialect, content)
	if t.hasHeader && len(records) > 0 {
		t.headers = records[0]
		t.rows = records[1:]
	} else {
		t.rows = records
	}
	if len(schema.Columns) > 0 {
		t.sanitized = parser.SanitizeHeaders(schema.Columns, nil)
	} else {
		t.sanitized = parser.SanitizeHeaders(t.headers, nil)
	}
	return t
}

// idColumn returns the index of the configured identifier column, or -1.
func (t *table) idColumn() int {
	if t.schema.ID.From != parser.IDFromColumn || t.schema.ID.Column == "" {
		return -1
	}
	want := parser.SanitizeHeader(t.schema.ID.Column)
	for i, h := range t.sanitized {
		if h == want {
			return i
		}
	}
	return -1
}

// locate finds the row index for an entity id: by identifier column value
// when one is configured, else by the -row-<N> suffix convention.
func (t *table) locate(id string) (int, error) {
	if idx := t.idColumn(); idx >= 0 {
		for i, row := range t.rows {
			if idx < len(row) && row[idx] == id {
				return i, nil
			}
		}
	}

	m := rowSuffixPattern.FindStringSubmatch(id)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrRowNotFound, id)
	}
	i, err := strconv.Atoi(m[1])
	if err != nil || i < 0 || i >= len(t.rows) {
		return 0, fmt.Errorf("%w: row index %s out of bounds", ErrRowNotFound, m[1])
	}
	return i, nil
}

// update rewrites every declared header's cell from props, keeping the
// prior value when a property is absent, and backfills an empty identifier
// cell with the entity id. Cells beyond the declared headers are untouched.
func (t *table) update(rowIdx int, id string, props map[string]any) {
	row := t.rows[rowIdx]
	for j, name := range t.sanitized {
		v, ok := props[name]
		if !ok {
			continue
		}
		for len(row) <= j {
			row = append(row, "")
		}
		row[j] = stringifyCell(v)
	}

	if idIdx := t.idColumn(); idIdx >= 0 {
		for len(row) <= idIdx {
			row = append(row, "")
		}
		if row[idIdx] == "" {
			row[idIdx] = id
		}
	}
	t.rows[rowIdx] = row
}

// appendRow adds a new row built from props under the declared headers.
func (t *table) appendRow(id string, props map[string]any) {
	width := len(t.sanitized)
	if width == 0 && len(t.rows) > 0 {
		width = len(t.rows[0])
	}
	row := make([]string, width)
	for j, name := range t.sanitized {
		if v, ok := props[name]; ok {
			row[j] = stringifyCell(v)
		}
	}
	if idIdx := t.idColumn(); idIdx >= 0 && row[idIdx] == "" {
		row[idIdx] = id
	}
	t.rows = append(t.rows, row)
}

// removeRow deletes the row at the given index.
func (t *table) removeRow(rowIdx int) {
	t.rows = append(t.rows[:rowIdx:rowIdx], t.rows[rowIdx+1:]...)
}

// bytes serializes the table back into tabular form under its dialect.
func (t *table) bytes() []byte {
	records := t.rows
	if t.hasHeader {
		records = append([][]string{t.headers}, t.rows...)
	}
	return parser.WriteRecords(t.dialect, records)
}
