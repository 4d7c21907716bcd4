package parser

import (
	"testing"

	"github.com/gridnote/indexer/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrontMatterParser_Parse(t *testing.T) {
	p := NewFrontMatterParser()

	content := `---
title: Plan
status: In Progress
priority: 2
---
# Plan

Body text here.
`
	entities, err := p.Parse("/ws/plan.md", []byte(content))
	require.NoError(t, err)
	require.Len(t, entities, 1)

	e := entities[0]
	assert.Equal(t, "plan", e.ID)
	assert.Equal(t, graph.SourceDocument, e.Source)
	assert.Equal(t, "Plan", e.Properties["title"])
	assert.Equal(t, "In Progress", e.Properties["status"])
	assert.Equal(t, 2, e.Properties["priority"])
	// The body is not part of the property map.
	_, hasBody := e.Properties["body"]
	assert.False(t, hasBody)
}

func TestFrontMatterParser_NoFrontMatter(t *testing.T) {
	p := NewFrontMatterParser()

	entities, err := p.Parse("/ws/notes.md", []byte("# Just a heading\n\nText.\n"))
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestFrontMatterParser_EmptyBlock(t *testing.T) {
	p := NewFrontMatterParser()

	entities, err := p.Parse("/ws/empty.md", []byte("---\n---\nBody.\n"))
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestFrontMatterParser_UnclosedBlock(t *testing.T) {
	p := NewFrontMatterParser()

	_, err := p.Parse("/ws/bad.md", []byte("---\ntitle: x\nnever closed\n"))
	require.Error(t, err)
}

func TestSplitFrontMatter_BodyPreserved(t *testing.T) {
	meta, body, err := SplitFrontMatter("---\nk: v\n---\nline one\nline two\n")
	require.NoError(t, err)
	assert.Equal(t, "v", meta["k"])
	assert.Equal(t, "line one\nline two\n", body)
}
