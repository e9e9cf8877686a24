package writer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("ttf"), 0644))
}

func TestFindFont(t *testing.T) {
	dir := t.TempDir()
	table := map[string][]string{
		"zh": {"cjk/zh.ttf"},
		"":   {"latin/sans.ttf"},
	}

	assert.Empty(t, findFont([]string{dir}, table, "zh"))

	touch(t, filepath.Join(dir, "latin", "sans.ttf"))
	assert.Equal(t, filepath.Join(dir, "latin", "sans.ttf"), findFont([]string{dir}, table, "zh-TW"), "falls back to generic font")
	assert.Equal(t, filepath.Join(dir, "latin", "sans.ttf"), findFont([]string{dir}, table, "id"))

	touch(t, filepath.Join(dir, "cjk", "zh.ttf"))
	assert.Equal(t, filepath.Join(dir, "cjk", "zh.ttf"), findFont([]string{dir}, table, "zh-TW"))
	assert.Len(t, table[""], 1, "lookup does not grow the table")
}

func TestFontKey(t *testing.T) {
	assert.Equal(t, "zh", fontKey("zh-Hant"))
	assert.Equal(t, "ja", fontKey("ja"))
	assert.Equal(t, "", fontKey("not a language!"))
}

func TestResolveFont(t *testing.T) {
	assert.Equal(t, "/fonts/a.ttf", New(Options{FontPath: "/fonts/a.ttf"}).resolveFont("zh"))
	assert.Empty(t, New(Options{}).resolveFont("zh"))
}
