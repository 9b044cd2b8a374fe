package telegram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitByBytes(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitByBytes("short", 10))

	parts := splitByBytes(strings.Repeat("ab", 5), 4)
	assert.Equal(t, []string{"abab", "abab", "ab"}, parts)

	// Multi-byte runes never get cut in half.
	parts = splitByBytes("ééé", 3)
	assert.Equal(t, []string{"é", "é", "é"}, parts)
}

func TestTruncateByBytes(t *testing.T) {
	assert.Equal(t, "hello", truncateByBytes("hello", 10))
	assert.Equal(t, "hel", truncateByBytes("hello", 3))
	assert.Equal(t, "é", truncateByBytes("éé", 3))
}

func TestDetectMediaType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")

	assert.Equal(t, "image/webp", detectMediaType("image/webp; charset=binary", png))
	assert.Equal(t, "image/png", detectMediaType("application/octet-stream", png))
	assert.Equal(t, "image/png", detectMediaType("", png))
	assert.Equal(t, "text/plain", detectMediaType("", []byte("just text")))
}
