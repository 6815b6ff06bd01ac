package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheSetGet(t *testing.T) {
	c := NewTTLCache[string, int](time.Minute)
	defer c.Stop()

	c.Set("005930", 71000)
	v, ok := c.Get("005930")
	require.True(t, ok)
	assert.Equal(t, 71000, v)

	_, ok = c.Get("000660")
	assert.False(t, ok)
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[string, string](50 * time.Millisecond)
	defer c.Stop()

	c.Set("k", "v")
	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(80 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestTTLCacheAge(t *testing.T) {
	c := NewTTLCache[string, int](time.Minute)
	defer c.Stop()

	c.Set("k", 1)
	time.Sleep(20 * time.Millisecond)

	age, ok := c.Age("k")
	require.True(t, ok)
	assert.GreaterOrEqual(t, age, 20*time.Millisecond)
	assert.Less(t, age, time.Minute)

	_, ok = c.Age("missing")
	assert.False(t, ok)
}

func TestTTLCacheDeleteClear(t *testing.T) {
	c := NewTTLCache[string, int](time.Minute)
	defer c.Stop()

	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
}
