package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRecords_QuotedDelimiterAndEscapedQuote(t *testing.T) {
	input := "a,\"b,c\",d\n1,\"2\"\"2\",3"

	records := ReadRecords(DefaultDialect(), []byte(input))
	require.Len(t, records, 2)

	assert.Equal(t, []string{"a", "b,c", "d"}, records[0])
	assert.Equal(t, []string{"1", `2"2`, "3"}, records[1])
}

func TestReadRecords_CustomDialect(t *testing.T) {
	d := Dialect{Delimiter: ';', Quote: '\'', Escape: '\\'}
	input := "x;'a;b';'it\\'s'\n"

	records := ReadRecords(d, []byte(input))
	require.Len(t, records, 1)
	assert.Equal(t, []string{"x", "a;b", "it's"}, records[0])
}

func TestReadRecords_SkipsBlankLines(t *testing.T) {
	records := ReadRecords(DefaultDialect(), []byte("a,b\n\n\nc,d\n"))
	require.Len(t, records, 2)
	assert.Equal(t, []string{"a", "b"}, records[0])
	assert.Equal(t, []string{"c", "d"}, records[1])
}

func TestReadRecords_CRLFAndTrailingEmptyCell(t *testing.T) {
	records := ReadRecords(DefaultDialect(), []byte("a,b\r\nc,\r\n"))
	require.Len(t, records, 2)
	assert.Equal(t, []string{"c", ""}, records[1])
}

func TestReadRecords_QuotedNewline(t *testing.T) {
	records := ReadRecords(DefaultDialect(), []byte("a,\"line1\nline2\"\n"))
	require.Len(t, records, 1)
	assert.Equal(t, []string{"a", "line1\nline2"}, records[0])
}

func TestWriteRecords_QuotesWhenNeeded(t *testing.T) {
	records := [][]string{
		{"plain", "with,comma", `with"quote`},
	}

	out := string(WriteRecords(DefaultDialect(), records))
	assert.Equal(t, "plain,\"with,comma\",\"with\"\"quote\"\n", out)
}

func TestWriteRecords_EscapeDialect(t *testing.T) {
	d := Dialect{Delimiter: ',', Quote: '"', Escape: '\\'}
	out := string(WriteRecords(d, [][]string{{`a"b`}}))
	assert.Equal(t, "\"a\\\"b\"\n", out)
}

func TestRecords_RoundTrip(t *testing.T) {
	d := DefaultDialect()
	original := [][]string{
		{"name", "note"},
		{"alice", "likes, commas"},
		{"bob", `says "hi"`},
	}

	parsed := ReadRecords(d, WriteRecords(d, original))
	assert.Equal(t, original, parsed)
}
