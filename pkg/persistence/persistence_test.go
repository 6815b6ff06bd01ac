package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string         `json:"name"`
	Count int            `json:"count"`
	Tags  map[string]int `json:"tags"`
}

func TestJSONFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewJSONFileStore(path)

	assert.False(t, store.Exists())
	assert.ErrorIs(t, store.Load(&sample{}), ErrNotExists)

	in := sample{Name: "005930", Count: 3, Tags: map[string]int{"a": 1}}
	require.NoError(t, store.Save(in))
	assert.True(t, store.Exists())

	var out sample
	require.NoError(t, store.Load(&out))
	assert.Equal(t, in, out)
}

func TestJSONFileStoreOverwriteIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	store := NewJSONFileStore(path)

	require.NoError(t, store.Save(sample{Name: "first"}))
	require.NoError(t, store.Save(sample{Name: "second"}))

	var out sample
	require.NoError(t, store.Load(&out))
	assert.Equal(t, "second", out.Name)

	// 不留下临时文件
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestJSONFileStoreCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "state.json")
	store := NewJSONFileStore(path)

	require.NoError(t, store.Save(sample{Name: "x"}))
	assert.True(t, store.Exists())
}
