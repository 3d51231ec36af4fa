package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, string](2)
	c.Put("a", "1")
	c.Put("b", "2")
	c.Get("a") // touch a, b is now the LRU entry
	c.Put("c", "3")

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	v, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
}

func TestLRUUpdateExistingKey(t *testing.T) {
	c := New[string, int](2)
	c.Put("a", 1)
	c.Put("a", 2)
	assert.Equal(t, 1, c.Len())
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}
