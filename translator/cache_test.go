package translator

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchKey(text string) CacheKey {
	return CacheKey{Provider: "google", Source: "en", Target: "id", Token: "|||", Text: text}
}

func TestCacheKey_Members(t *testing.T) {
	assert.Equal(t, 1, batchKey("one").Members())
	assert.Equal(t, 3, batchKey("a\n|||\nb\n|||\nc").Members())
	assert.Equal(t, 1, CacheKey{Text: "a|||b"}.Members())
}

func TestCacheKey_DependsOnEveryField(t *testing.T) {
	base := batchKey("x")
	variants := []CacheKey{base, base, base, base, base}
	variants[0].Source = "auto"
	variants[1].Target = "de"
	variants[2].Provider = "openai"
	variants[3].Prompt = "formal"
	variants[4].Token = "@@"

	for _, v := range variants {
		assert.NotEqual(t, base.hash(), v.hash(), "%+v", v)
	}
}

func TestCache(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	key := batchKey("Hello\n|||\nWorld")
	_, ok := cache.Get(key)
	assert.False(t, ok)

	stored, err := cache.Set(key, "Halo\n|||\nDunia")
	require.NoError(t, err)
	assert.True(t, stored)
	assert.Equal(t, 1, cache.Len())

	v, ok := cache.Get(key)
	assert.True(t, ok)
	assert.Equal(t, "Halo\n|||\nDunia", v)

	cache.DisableCache()
	_, ok = cache.Get(key)
	assert.False(t, ok)

	cache.EnableCache()
	_, ok = cache.Get(key)
	assert.True(t, ok)
}

func TestCache_SkipsMisalignedTranslation(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	key := batchKey("Hello\n|||\nWorld")
	stored, err := cache.Set(key, "Halo Dunia")
	require.NoError(t, err)
	assert.False(t, stored)
	assert.Zero(t, cache.Len())

	_, ok := cache.Get(key)
	assert.False(t, ok)
}

func TestCache_IgnoresForeignEntry(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	key := batchKey("Hello")
	_, err = cache.Set(key, "Halo")
	require.NoError(t, err)

	// 记录里的键与请求不一致时不命中
	other := batchKey("Bye")
	_, err = cache.Set(other, "Dah")
	require.NoError(t, err)
	data, err := os.ReadFile(cache.path(other.hash()))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cache.path(key.hash()), data, 0644))

	_, ok := cache.Get(key)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(cache.path(key.hash()), []byte("not json"), 0644))
	_, ok = cache.Get(key)
	assert.False(t, ok)
}
