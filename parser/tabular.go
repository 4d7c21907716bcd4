package parser

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/gridnote/indexer/graph"
)

// isoDatePattern matches ISO-date-shaped strings (2025-09-20, optionally
// with a time component). Dates are detected but kept as strings.
var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}([T ]\d{2}:\d{2}(:\d{2})?)?$`)

// TabularParser converts delimiter-separated files into one entity per data
// row. The reader is a custom state machine because encoding/csv fixes the
// quote character and has no escape-character support, both of which are
// configurable here.
type TabularParser struct {
	dialect Dialect
	schema  Schema
	opts    Options
}

// NewTabularParser creates a tabular parser for the given dialect, schema
// and options.
func NewTabularParser(dialect Dialect, schema Schema, opts Options) *TabularParser {
	return &TabularParser{
		dialect: dialect.normalized(),
		schema:  schema,
		opts:    opts,
	}
}

// Parse converts tabular file bytes into entities, one per data row.
func (p *TabularParser) Parse(path string, content []byte) ([]*graph.Entity, error) {
	records := ReadRecords(p.dialect, content)
	if len(records) == 0 {
		return nil, nil
	}

	var headers []string
	var rows [][]string
	if p.dialect.Header {
		headers = records[0]
		rows = records[1:]
	} else {
		headers = syntheticHeaders(records)
		rows = records
	}
	if len(p.schema.Columns) > 0 {
		headers = p.schema.Columns
	}
	headers = p.SanitizeHeaders(headers)

	base := BaseID(path)
	return p.materialize(path, base, graph.DefaultTypeID, graph.SourceTabular, headers, rows), nil
}

// MaterializeRows builds entities from pre-extracted tabular data, exactly
// as Parse would. Used for inline-construct notification payloads, which
// arrive with headers and rows already separated.
func (p *TabularParser) MaterializeRows(sourcePath, baseID, typeID string, source graph.SourceType, headers []string, rows [][]string) []*graph.Entity {
	return p.materialize(sourcePath, baseID, typeID, source, p.SanitizeHeaders(headers), rows)
}

// materialize converts data rows into entities under already-sanitized
// headers. Cells beyond the declared headers are kept under synthetic
// colN keys.
func (p *TabularParser) materialize(sourcePath, baseID, typeID string, source graph.SourceType, headers []string, rows [][]string) []*graph.Entity {
	entities := make([]*graph.Entity, 0, len(rows))
	for i, row := range rows {
		props := make(map[string]any, len(row))
		for j, cell := range row {
			key := fmt.Sprintf("col%d", j+1)
			if j < len(headers) {
				key = headers[j]
			}
			props[key] = p.value(cell)
		}

		if p.opts.OnRow != nil {
			p.opts.OnRow(i, props)
		}

		id := p.rowID(baseID, i, props)
		entities = append(entities, graph.NewEntity(id, typeID, sourcePath, source, props))
	}
	return entities
}

// rowID derives the entity id for a row per the configured strategy,
// defaulting to <base>-row-<index>.
func (p *TabularParser) rowID(baseID string, index int, props map[string]any) string {
	fallback := fmt.Sprintf("%s-row-%d", baseID, index)

	switch p.schema.ID.From {
	case IDFromColumn:
		col := p.sanitize(p.schema.ID.Column)
		if v, ok := props[col]; ok && v != nil {
			if s := fmt.Sprintf("%v", v); s != "" {
				return s
			}
		}
		return fallback
	case IDFromTemplate:
		if p.schema.ID.Template == "" {
			return fallback
		}
		id := strings.ReplaceAll(p.schema.ID.Template, "{basename}", baseID)
		return strings.ReplaceAll(id, "{row}", strconv.Itoa(index))
	default:
		return fallback
	}
}

// value coerces a cell per the typing flag and null policy.
func (p *TabularParser) value(cell string) any {
	if !p.opts.Typing {
		return cell
	}

	if p.schema.NullPolicy == NullLoose {
		switch strings.ToLower(strings.TrimSpace(cell)) {
		case "", "null", "nan":
			return nil
		}
	}

	trimmed := strings.TrimSpace(cell)
	if strings.EqualFold(trimmed, "true") {
		return true
	}
	if strings.EqualFold(trimmed, "false") {
		return false
	}
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	if isoDatePattern.MatchString(trimmed) {
		return trimmed
	}
	return cell
}

// SanitizeHeaders applies the parser's sanitizer and deduplication to a
// header row.
func (p *TabularParser) SanitizeHeaders(headers []string) []string {
	return SanitizeHeaders(headers, p.opts.SanitizeHeader)
}

// SanitizeHeaders sanitizes and deduplicates column names: lowercase,
// whitespace runs collapsed to single underscores, numeric suffix on
// collision. The suffix advances past names already taken, so a generated
// name never shadows a later literal header. Empty names become colN for
// their position. A nil sanitize callback uses SanitizeHeader.
func SanitizeHeaders(headers []string, sanitize func(string) string) []string {
	if sanitize == nil {
		sanitize = SanitizeHeader
	}
	out := make([]string, len(headers))
	used := make(map[string]bool, len(headers))
	for i, h := range headers {
		name := sanitize(h)
		if name == "" {
			name = fmt.Sprintf("col%d", i+1)
		}
		if used[name] {
			base := name
			for n := 2; ; n++ {
				name = fmt.Sprintf("%s_%d", base, n)
				if !used[name] {
					break
				}
			}
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// sanitize applies the configured or default header sanitizer.
func (p *TabularParser) sanitize(h string) string {
	if p.opts.SanitizeHeader != nil {
		return p.opts.SanitizeHeader(h)
	}
	return SanitizeHeader(h)
}

// SanitizeHeader is the default header sanitizer: lowercase with whitespace
// runs replaced by single underscores.
func SanitizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.Fields(h), "_")
}

// syntheticHeaders builds col1..colN from the widest row.
func syntheticHeaders(records [][]string) []string {
	widest := 0
	for _, row := range records {
		if len(row) > widest {
			widest = len(row)
		}
	}
	headers := make([]string, widest)
	for i := range headers {
		headers[i] = fmt.Sprintf("col%d", i+1)
	}
	return headers
}

// BaseID derives the id stem for a file: its basename without extension.
func BaseID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
