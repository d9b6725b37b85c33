package storage

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"read-aloud-api/internal/config"
)

func TestUploadKeyFormat(t *testing.T) {
	key := UploadKey(".jpg")
	assert.Regexp(t, regexp.MustCompile(`^uploads/\d+-\d{7}\.jpg$`), key)

	// Extension without a leading dot is normalized.
	key = UploadKey("png")
	assert.Regexp(t, regexp.MustCompile(`^uploads/\d+-\d{7}\.png$`), key)
}

func TestAudioAndAlignmentKeys(t *testing.T) {
	uuid := "a1b2c3d4-e5f6-a7b8-c9d0-e1f2a3b4c5d6"

	assert.Equal(t, "audio/tts_content_"+uuid+".mp3", AudioKey(uuid))
	assert.Equal(t, "alignment/tts_content_"+uuid+"_alignment.json", AlignmentKey(uuid))
	assert.Equal(t, "alignment/tts_content_"+uuid+"_normalized.json", NormalizedAlignmentKey(uuid))
}

func TestContentTypeForKey(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentTypeForKey("uploads/123-4567890.jpg"))
	assert.Equal(t, "audio/mpeg", ContentTypeForKey(AudioKey("x")))
	assert.Equal(t, "application/json", ContentTypeForKey("alignment/tts_content_x_alignment.json"))
	assert.Equal(t, "application/octet-stream", ContentTypeForKey("uploads/unknown.bin"))
}

func TestExtForContentType(t *testing.T) {
	assert.Equal(t, ".jpg", ExtForContentType("image/jpeg"))
	assert.Equal(t, ".png", ExtForContentType("image/png; charset=binary"))
	assert.Equal(t, "", ExtForContentType("application/pdf"))
}

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(&config.LocalConfig{Dir: t.TempDir()})
	require.NoError(t, err)

	ctx := context.Background()
	key := "audio/tts_content_test.mp3"
	payload := []byte("mp3-bytes")

	require.NoError(t, store.Put(ctx, key, payload, "audio/mpeg"))

	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := store.GetBytes(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	rc, info, err := store.Stream(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "audio/mpeg", info.ContentType)
	assert.Equal(t, int64(len(payload)), info.ContentLength)

	require.NoError(t, store.Delete(ctx, key))
	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting again is a no-op.
	require.NoError(t, store.Delete(ctx, key))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(&config.LocalConfig{Dir: t.TempDir()})
	require.NoError(t, err)

	err = store.Put(context.Background(), "../escape.txt", []byte("x"), "text/plain")
	assert.Error(t, err)
}

func TestLocalStoreURLMapping(t *testing.T) {
	store, err := NewLocalStore(&config.LocalConfig{Dir: t.TempDir()})
	require.NoError(t, err)

	key := "uploads/1700000000000-1234567.jpg"
	url := store.URLFor(key)
	assert.Equal(t, "/api/v1/objects/"+key, url)

	back, ok := store.KeyForURL(url)
	require.True(t, ok)
	assert.Equal(t, key, back)

	// Absolute references to the same route also resolve.
	back, ok = store.KeyForURL("https://example.com" + url)
	require.True(t, ok)
	assert.Equal(t, key, back)

	_, ok = store.KeyForURL("https://example.com/elsewhere/x.jpg")
	assert.False(t, ok)
}
