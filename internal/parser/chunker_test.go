package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmptyAndShort(t *testing.T) {
	s := NewSplitter()

	tests := []struct {
		name    string
		content string
		wantLen int
	}{
		{"completely empty", "", 0},
		{"whitespace only", "   \n\n\t  ", 0},
		{"heading only", "# Title", 1},
		{"short paragraph", "Squat three times a week.", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := s.Split(tt.content, 1000, 100)
			require.NoError(t, err)
			assert.Len(t, chunks, tt.wantLen)
		})
	}
}

func TestSplitInvalidSize(t *testing.T) {
	_, err := NewSplitter().Split("some text", 0, 0)
	assert.Error(t, err)
}

func TestSplitPlainTextRespectsSize(t *testing.T) {
	sentence := "Progressive overload means adding a little weight or a few reps every week. "
	text := strings.Repeat(sentence, 40)

	chunks, err := NewSplitter().Split(text, 200, 20)
	require.NoError(t, err)

	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i, c.Position)
		assert.LessOrEqual(t, len(c.Content), 200)
		assert.NotEmpty(t, strings.TrimSpace(c.Content))
		assert.Empty(t, c.HeadingPath)
	}
}

func TestSplitMarkdownBySections(t *testing.T) {
	day := strings.Repeat("Bench press and rows. ", 14)
	text := "# Plan\n\nintro\n\n## Day 1\n\n" + day + "\n\n## Day 2\n\n" + day

	chunks, err := NewSplitter().Split(text, 400, 0)
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	assert.Equal(t, "# Plan", chunks[0].HeadingPath)
	assert.Equal(t, "# Plan > ## Day 1", chunks[1].HeadingPath)
	assert.Equal(t, "# Plan > ## Day 2", chunks[2].HeadingPath)
	assert.True(t, strings.HasPrefix(chunks[1].Content, "## Day 1"))
	for i, c := range chunks {
		assert.Equal(t, i, c.Position)
	}
}

func TestSplitKeepsPreamble(t *testing.T) {
	body := strings.Repeat("Deadlift with a neutral spine. ", 20)
	text := "Intro text before heading.\n\n# Title\n\n" + body

	chunks, err := NewSplitter().Split(text, 300, 0)
	require.NoError(t, err)

	require.NotEmpty(t, chunks)
	assert.Equal(t, "Intro text before heading.", chunks[0].Content)
	assert.Empty(t, chunks[0].HeadingPath)
}

func TestSplitMergesTinySections(t *testing.T) {
	long := strings.Repeat("Warm up thoroughly before lifting. ", 6)
	text := "## A\n\n" + long + "\n\n## B\n\nrest\n\n## C\n\n" + long

	chunks, err := NewSplitter().Split(text, 300, 0)
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0].Content, "## B")
}

func TestApplyOverlap(t *testing.T) {
	chunks := []Chunk{
		{Content: "the quick brown fox jumps"},
		{Content: "over the lazy dog"},
	}

	got := applyOverlap(chunks, 10)

	assert.Equal(t, "the quick brown fox jumps", got[0].Content)
	assert.Equal(t, "fox jumps over the lazy dog", got[1].Content)
	assert.Equal(t, "over the lazy dog", chunks[1].Content, "input is not modified")
}
