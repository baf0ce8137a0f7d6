package speech

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkSplitsSentences(t *testing.T) {
	c := NewChunker(10)
	units := c.Chunk("Hello there. How are you? Nice to meet you.")
	require.Len(t, units, 3)
	assert.Equal(t, "Hello there.", units[0].Text)
	assert.Equal(t, "How are you?", units[1].Text)
	assert.Equal(t, "Nice to meet you.", units[2].Text)
}

func TestChunkIndicesAndFlags(t *testing.T) {
	c := NewChunker(10)
	units := c.Chunk("First sentence here. Second sentence here. Third sentence here.")
	require.Len(t, units, 3)
	for i, u := range units {
		assert.Equal(t, uint32(i), u.Index)
	}
	assert.True(t, units[0].IsFirst)
	assert.False(t, units[0].IsLast)
	assert.False(t, units[1].IsFirst)
	assert.True(t, units[2].IsLast)
	assert.False(t, units[2].IsFirst)
}

func TestChunkMergesShortSentencesForward(t *testing.T) {
	c := NewChunker(20)
	units := c.Chunk("Yes. Absolutely, I can handle that. The summary goes out right after the meeting ends.")
	require.Len(t, units, 2)
	// "Yes." alone is shorter than 20 chars and merges into the next sentence.
	assert.Equal(t, "Yes. Absolutely, I can handle that.", units[0].Text)
	assert.Equal(t, "The summary goes out right after the meeting ends.", units[1].Text)
}

func TestChunkTrailingRemainderAlwaysEmitted(t *testing.T) {
	c := NewChunker(20)
	units := c.Chunk("The deployment finished without any errors. Done.")
	require.Len(t, units, 2)
	assert.Equal(t, "Done.", units[1].Text)
	assert.True(t, units[1].IsLast)
}

func TestChunkNoPunctuationSingleUnit(t *testing.T) {
	c := NewChunker(20)
	units := c.Chunk("this response has no terminal punctuation at all")
	require.Len(t, units, 1)
	assert.True(t, units[0].IsFirst)
	assert.True(t, units[0].IsLast)
	assert.Equal(t, "this response has no terminal punctuation at all", units[0].Text)
}

func TestChunkEmptyInput(t *testing.T) {
	c := NewChunker(20)
	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk("   \t  "))
}

func TestChunkProtectsAbbreviations(t *testing.T) {
	c := NewChunker(10)
	units := c.Chunk("Dr. Smith joined the call. Mrs. Jones will follow up.")
	require.Len(t, units, 2)
	assert.Equal(t, "Dr. Smith joined the call.", units[0].Text)
	assert.Equal(t, "Mrs. Jones will follow up.", units[1].Text)
}

func TestChunkProtectsWebsitesAndDecimals(t *testing.T) {
	c := NewChunker(10)
	units := c.Chunk("Check example.com for details. The budget is 3.5 million dollars.")
	require.Len(t, units, 2)
	assert.Equal(t, "Check example.com for details.", units[0].Text)
	assert.Equal(t, "The budget is 3.5 million dollars.", units[1].Text)
}

func TestChunkProtectsAcronyms(t *testing.T) {
	c := NewChunker(10)
	units := c.Chunk("The U.S. office opens at nine. Let me confirm the address.")
	require.Len(t, units, 2)
	assert.Contains(t, units[0].Text, "U.S.")
}

func TestChunkEllipsisNotABoundary(t *testing.T) {
	c := NewChunker(10)
	units := c.Chunk("Well... let me think about that. I believe it works.")
	require.Len(t, units, 2)
	assert.Equal(t, "Well... let me think about that.", units[0].Text)
}

func TestChunkCJKTerminalMarks(t *testing.T) {
	c := NewChunker(2)
	units := c.Chunk("会議を始めます。次の議題です。")
	require.Len(t, units, 2)
}

func TestChunkRoundTripPreservesWords(t *testing.T) {
	c := NewChunker(20)
	text := "The rollout starts Monday. Staging looks healthy so far. Ping me if the error rate moves."
	units := c.Chunk(text)
	var joined []string
	for _, u := range units {
		joined = append(joined, u.Text)
	}
	assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(joined, " ")))
}
