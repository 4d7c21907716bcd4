package editor

import (
	"fmt"
	"os"

	"github.com/gridnote/indexer/parser"
)

// TabularModule rewrites delimiter-separated files. Operations are whole-
// file read-modify-write: tabular files in this domain are small enough to
// hold in memory, and the atomic replace keeps partial rows invisible to
// concurrent readers.
type TabularModule struct {
	dialect parser.Dialect
	schema  parser.Schema
}

// NewTabularModule creates a tabular editing module for the given dialect
// and schema.
func NewTabularModule(dialect parser.Dialect, schema parser.Schema) *TabularModule {
	return &TabularModule{dialect: dialect, schema: schema}
}

// Update rewrites the row addressed by id with the given properties.
func (m *TabularModule) Update(id string, props map[string]any, meta Metadata) error {
	content, err := os.ReadFile(meta.SourcePath)
	if err != nil {
		return fmt.Errorf("read tabular file: %w", err)
	}

	t := loadTable(m.dialect, m.schema, content)
	rowIdx, err := t.locate(id)
	if err != nil {
		return err
	}
	t.update(rowIdx, id, props)

	return writeFileAtomic(meta.SourcePath, t.bytes())
}

// Create appends a new row built from the given properties.
func (m *TabularModule) Create(id string, props map[string]any, meta Metadata) error {
	content, err := os.ReadFile(meta.SourcePath)
	if err != nil {
		return fmt.Errorf("read tabular file: %w", err)
	}

	t := loadTable(m.dialect, m.schema, content)
	t.appendRow(id, props)

	return writeFileAtomic(meta.SourcePath, t.bytes())
}

// Delete removes the row addressed by id.
func (m *TabularModule) Delete(id string, meta Metadata) error {
	content, err := os.ReadFile(meta.SourcePath)
	if err != nil {
		return fmt.Errorf("read tabular file: %w", err)
	}

	t := loadTable(m.dialect, m.schema, content)
	rowIdx, err := t.locate(id)
	if err != nil {
		return err
	}
	t.removeRow(rowIdx)

	return writeFileAtomic(meta.SourcePath, t.bytes())
}
