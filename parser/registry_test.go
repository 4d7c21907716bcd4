package parser

import (
	"testing"

	"github.com/gridnote/indexer/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Dispatch(t *testing.T) {
	r := NewDefaultRegistry(DefaultDialect(), Schema{}, Options{})

	assert.NotNil(t, r.Get("/ws/data.csv"))
	assert.NotNil(t, r.Get("/ws/DATA.CSV"))
	assert.NotNil(t, r.Get("/ws/doc.md"))
	assert.NotNil(t, r.Get("/ws/conf.yaml"))
	assert.Nil(t, r.Get("/ws/prog.rs"))

	st, ok := r.SourceTypeFor("/ws/data.csv")
	require.True(t, ok)
	assert.Equal(t, graph.SourceTabular, st)

	_, ok = r.SourceTypeFor("/ws/prog.rs")
	assert.False(t, ok)
}

func TestRegistry_ParseUnknownExtension(t *testing.T) {
	r := NewDefaultRegistry(DefaultDialect(), Schema{}, Options{})
	_, err := r.Parse("/ws/prog.rs", []byte("fn main() {}"))
	require.Error(t, err)
}

func TestRegistry_TSVDialect(t *testing.T) {
	r := NewDefaultRegistry(DefaultDialect(), Schema{}, Options{})

	entities, err := r.Parse("/ws/data.tsv", []byte("name\tage\nal\t9\n"))
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "al", entities[0].Properties["name"])
	assert.Equal(t, "9", entities[0].Properties["age"])
}
