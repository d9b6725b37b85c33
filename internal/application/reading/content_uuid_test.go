package reading

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentUUIDKnownVectors(t *testing.T) {
	// sha256("hello world") = b94d27b9934d3e08a52e52d7da7dabfa...
	assert.Equal(t, "b94d27b9-934d-3e08-a52e-52d7da7dabfa", ContentUUID("hello world"))
	// sha256("The quick brown fox.") = 42e25dd386eb55b56db34af535fab523...
	assert.Equal(t, "42e25dd3-86eb-55b5-6db3-4af535fab523", ContentUUID("The quick brown fox."))
}

func TestContentUUIDFormat(t *testing.T) {
	format := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	for _, text := range []string{"a", "some longer text", "日本語のテキスト", " spaced "} {
		assert.Regexp(t, format, ContentUUID(text))
	}
}

func TestContentUUIDTrimsWhitespace(t *testing.T) {
	assert.Equal(t, ContentUUID("hello world"), ContentUUID("  hello world\n"))
	assert.NotEqual(t, ContentUUID("hello world"), ContentUUID("hello  world"))
}

func TestContentUUIDDeterministic(t *testing.T) {
	assert.Equal(t, ContentUUID("same text"), ContentUUID("same text"))
	assert.NotEqual(t, ContentUUID("one"), ContentUUID("two"))
}
