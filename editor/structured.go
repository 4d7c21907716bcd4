package editor

import (
	"fmt"
	"os"

	"github.com/gridnote/indexer/parser"
)

// StructuredModule rewrites whole-file JSON and YAML documents: read-merge-
// write for updates, full overwrite for creates, file removal for deletes.
type StructuredModule struct{}

// NewStructuredModule creates a structured-data editing module.
func NewStructuredModule() *StructuredModule {
	return &StructuredModule{}
}

// Update merges props into the existing document and writes it back.
func (m *StructuredModule) Update(id string, props map[string]any, meta Metadata) error {
	content, err := os.ReadFile(meta.SourcePath)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	doc, err := parser.DecodeStructured(meta.SourcePath, content)
	if err != nil {
		return err
	}
	for k, v := range props {
		doc[k] = v
	}

	data, err := parser.EncodeStructured(meta.SourcePath, doc)
	if err != nil {
		return err
	}
	return writeFileAtomic(meta.SourcePath, data)
}

// Create writes a new document containing exactly the given properties.
func (m *StructuredModule) Create(id string, props map[string]any, meta Metadata) error {
	data, err := parser.EncodeStructured(meta.SourcePath, props)
	if err != nil {
		return err
	}
	return writeFileAtomic(meta.SourcePath, data)
}

// Delete removes the document file.
func (m *StructuredModule) Delete(id string, meta Metadata) error {
	if err := os.Remove(meta.SourcePath); err != nil {
		return fmt.Errorf("remove document: %w", err)
	}
	return nil
}
