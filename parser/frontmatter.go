package parser

import (
	"fmt"
	"strings"

	"github.com/gridnote/indexer/graph"
	"gopkg.in/yaml.v3"
)

// FrontMatterDelimiter opens and closes the metadata block of a document.
const FrontMatterDelimiter = "---"

// FrontMatterParser extracts the leading YAML metadata block from text
// documents. An entity is produced only when the block is non-empty; the
// body never becomes part of the property map, so write-back stays confined
// to the metadata block.
type FrontMatterParser struct{}

// NewFrontMatterParser creates a front-matter document parser.
func NewFrontMatterParser() *FrontMatterParser {
	return &FrontMatterParser{}
}

// Parse extracts front matter and returns at most one entity, identified by
// the file basename.
func (p *FrontMatterParser) Parse(path string, content []byte) ([]*graph.Entity, error) {
	meta, _, err := SplitFrontMatter(string(content))
	if err != nil {
		return nil, err
	}
	if len(meta) == 0 {
		return nil, nil
	}

	e := graph.NewEntity(BaseID(path), graph.DefaultTypeID, path, graph.SourceDocument, meta)
	return []*graph.Entity{e}, nil
}

// SplitFrontMatter separates a leading metadata block from body content.
// Content without an opening delimiter yields a nil map and the full body.
func SplitFrontMatter(content string) (map[string]any, string, error) {
	if !strings.HasPrefix(content, FrontMatterDelimiter+"\n") &&
		!strings.HasPrefix(content, FrontMatterDelimiter+"\r\n") {
		return nil, content, nil
	}

	start := len(FrontMatterDelimiter)
	if len(content) > start && content[start] == '\r' {
		start++
	}
	if len(content) > start && content[start] == '\n' {
		start++
	}

	closeIdx := strings.Index(content[start:], "\n"+FrontMatterDelimiter)
	if closeIdx == -1 {
		closeIdx = strings.Index(content[start:], "\r\n"+FrontMatterDelimiter)
	}
	if closeIdx == -1 {
		return nil, content, fmt.Errorf("no closing front matter delimiter")
	}

	block := content[start : start+closeIdx]

	bodyStart := start + closeIdx + 1 + len(FrontMatterDelimiter)
	for bodyStart < len(content) && (content[bodyStart] == '\n' || content[bodyStart] == '\r') {
		bodyStart++
	}
	body := ""
	if bodyStart < len(content) {
		body = content[bodyStart:]
	}

	var meta map[string]any
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return nil, content, fmt.Errorf("parse front matter: %w", err)
	}
	return meta, body, nil
}
