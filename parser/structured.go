package parser

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gridnote/indexer/graph"
	"gopkg.in/yaml.v3"
)

// StructuredParser treats a whole JSON or YAML document as one entity's
// property map. The document root must be a mapping; anything else is a
// parse failure, which the scanner logs per file without aborting.
type StructuredParser struct{}

// NewStructuredParser creates a structured-data parser.
func NewStructuredParser() *StructuredParser {
	return &StructuredParser{}
}

// Parse converts a structured-data file into exactly one entity, identified
// by the file basename.
func (p *StructuredParser) Parse(path string, content []byte) ([]*graph.Entity, error) {
	props, err := DecodeStructured(path, content)
	if err != nil {
		return nil, err
	}

	e := graph.NewEntity(BaseID(path), graph.DefaultTypeID, path, graph.SourceStructured, props)
	return []*graph.Entity{e}, nil
}

// DecodeStructured parses JSON or YAML bytes into a property map, selecting
// the codec by file extension.
func DecodeStructured(path string, content []byte) (map[string]any, error) {
	var props map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(content, &props); err != nil {
			return nil, fmt.Errorf("parse JSON document: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &props); err != nil {
			return nil, fmt.Errorf("parse YAML document: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported structured-data extension: %s", filepath.Ext(path))
	}
	if props == nil {
		return nil, fmt.Errorf("document root is not a mapping: %s", filepath.Base(path))
	}
	return props, nil
}

// EncodeStructured serializes a property map back into JSON or YAML bytes,
// selecting the codec by file extension.
func EncodeStructured(path string, props map[string]any) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err := json.MarshalIndent(props, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal JSON document: %w", err)
		}
		return append(data, '\n'), nil
	case ".yaml", ".yml":
		data, err := yaml.Marshal(props)
		if err != nil {
			return nil, fmt.Errorf("marshal YAML document: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported structured-data extension: %s", filepath.Ext(path))
	}
}
