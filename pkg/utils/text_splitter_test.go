package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTextShortInputSingleChunk(t *testing.T) {
	chunks := SplitText("hello", 100, 20)

	require.Len(t, chunks, 1)
	assert.Equal(t, "hello", chunks[0])
}

func TestSplitTextOverlappingChunks(t *testing.T) {
	chunks := SplitText("abcdefghij", 4, 2)

	require.Equal(t, []string{"abcd", "cdef", "efgh", "ghij"}, chunks)

	// each chunk starts with the tail of the previous one
	for i := 1; i < len(chunks); i++ {
		assert.True(t, strings.HasSuffix(chunks[i-1], chunks[i][:2]))
	}
}

func TestSplitTextOverlapLargerThanChunkFallsBack(t *testing.T) {
	chunks := SplitText("abcdefghi", 3, 5)

	// degenerate overlap must not loop forever; chunks become disjoint
	require.Equal(t, []string{"abc", "def", "ghi"}, chunks)
}

func TestSplitTextCoversWholeInput(t *testing.T) {
	text := strings.Repeat("x", 3501)
	chunks := SplitText(text, 1500, 200)

	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasSuffix(chunks[len(chunks)-1], "x"))

	total := 0
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 1500)
		total += len(c)
	}
	// overlap duplicates characters, never drops them
	assert.GreaterOrEqual(t, total, len(text))
}

func TestSplitTextNeverCutsMultibyteRunes(t *testing.T) {
	text := strings.Repeat("日本語のテキスト", 10)
	chunks := SplitText(text, 16, 4)

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
	}
}
