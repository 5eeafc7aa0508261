package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRU(t *testing.T) {
	t.Parallel()

	c := NewLRU(20, time.Hour)
	c.Set("a", []byte("01234567"))
	c.Set("b", []byte("89abcdef"))

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "01234567", string(v))

	// a 刚被访问过，超出容量时淘汰 b
	c.Set("c", []byte("ghijklmn"))
	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestKey(t *testing.T) {
	t.Parallel()

	in := []byte("product photo bytes")
	assert.Equal(t, Key(in, "standard"), Key(append([]byte(nil), in...), "standard"))
	assert.NotEqual(t, Key(in, "standard"), Key(in, "aggressive"))
	assert.NotEqual(t, Key(in, "standard"), Key([]byte("product photo bytez"), "standard"))
}

func TestNop(t *testing.T) {
	t.Parallel()

	var c Cache = Nop{}
	c.Set("a", []byte("x"))
	_, ok := c.Get("a")
	assert.False(t, ok)
}
