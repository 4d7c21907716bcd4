package parser

import (
	"strings"
)

// ReadRecords splits tabular content into rows of cells according to the
// dialect. Quoted cells may contain the delimiter and newlines; an embedded
// quote is written either via the escape character or by doubling. Blank
// lines are skipped.
func ReadRecords(d Dialect, content []byte) [][]string {
	d = d.normalized()

	var (
		records  [][]string
		row      []string
		field    strings.Builder
		inQuotes bool
	)

	endField := func() {
		row = append(row, field.String())
		field.Reset()
	}
	endRow := func() {
		endField()
		if len(row) == 1 && row[0] == "" {
			row = nil // blank line
			return
		}
		records = append(records, row)
		row = nil
	}

	runes := []rune(string(content))
	for i := 0; i < len(runes); {
		r := runes[i]

		if inQuotes {
			switch {
			case d.Escape != 0 && r == d.Escape && i+1 < len(runes):
				field.WriteRune(runes[i+1])
				i += 2
			case r == d.Quote && i+1 < len(runes) && runes[i+1] == d.Quote:
				field.WriteRune(d.Quote)
				i += 2
			case r == d.Quote:
				inQuotes = false
				i++
			default:
				field.WriteRune(r)
				i++
			}
			continue
		}

		switch {
		case r == d.Quote:
			inQuotes = true
			i++
		case r == d.Delimiter:
			endField()
			i++
		case r == '\r':
			i++
		case r == '\n':
			endRow()
			i++
		default:
			field.WriteRune(r)
			i++
		}
	}

	if field.Len() > 0 || len(row) > 0 {
		endRow()
	}
	return records
}

// WriteRecords serializes rows back into tabular bytes under the dialect,
// quoting cells that contain the delimiter, the quote character, or a line
// break. Output rows are newline terminated.
func WriteRecords(d Dialect, records [][]string) []byte {
	d = d.normalized()

	var sb strings.Builder
	for _, row := range records {
		for i, cell := range row {
			if i > 0 {
				sb.WriteRune(d.Delimiter)
			}
			sb.WriteString(formatCell(d, cell))
		}
		sb.WriteByte('\n')
	}
	return []byte(sb.String())
}

// formatCell quotes and escapes a single cell as needed.
func formatCell(d Dialect, cell string) string {
	needsQuote := strings.ContainsRune(cell, d.Delimiter) ||
		strings.ContainsRune(cell, d.Quote) ||
		strings.ContainsAny(cell, "\n\r")
	if !needsQuote {
		return cell
	}

	var sb strings.Builder
	sb.WriteRune(d.Quote)
	for _, r := range cell {
		switch {
		case d.Escape != 0 && (r == d.Quote || r == d.Escape):
			sb.WriteRune(d.Escape)
			sb.WriteRune(r)
		case d.Escape == 0 && r == d.Quote:
			sb.WriteRune(d.Quote)
			sb.WriteRune(d.Quote)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteRune(d.Quote)
	return sb.String()
}
