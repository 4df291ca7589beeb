package loader

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText_NormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "Line with multiple spaces", CleanText("Line    with    multiple    spaces  "))
}

func TestCleanText_RemoveExcessiveBlankLines(t *testing.T) {
	assert.Equal(t, "Line 1\n\nLine 2", CleanText("Line 1\n\n\n\n\nLine 2"))
}

func TestCleanText_NormalizeLineEndings(t *testing.T) {
	assert.Equal(t, "Line 1\nLine 2\nLine 3", CleanText("Line 1\r\nLine 2\rLine 3"))
}

func TestCleanText_PreservesIndentation(t *testing.T) {
	assert.Equal(t, "- item\n  - nested", CleanText("- item\n  - nested  "))
}

func TestCleanText_EmptyInput(t *testing.T) {
	assert.Equal(t, "", CleanText(""))
	assert.Equal(t, "", CleanText("   \n\t\n  "))
}

func TestStripRTF(t *testing.T) {
	out := StripRTF(`{\rtf1\ansi\deff0 {\fonttbl {\f0 Times;}}\f0\fs24 Hello \b bold\b0  world.\par Next line}`)
	assert.Contains(t, out, "Hello")
	assert.Contains(t, out, "bold")
	assert.Contains(t, out, "Next line")
	assert.NotContains(t, out, `\rtf1`)
	assert.NotContains(t, out, "{")
}

func TestTextLoader_EmptyFileYieldsNothing(t *testing.T) {
	path := writeFile(t, "empty.txt", "  \n\n ")

	docs, err := TextLoader{}.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestTextLoader_WholeFileIsOneDocument(t *testing.T) {
	path := writeFile(t, "guide.txt", strings.Repeat("paragraph\n\n", 5))

	docs, err := TextLoader{}.Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 5, strings.Count(docs[0].Content, "paragraph"))
}
