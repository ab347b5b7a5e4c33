package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCache_SetAndGet(t *testing.T) {
	c := NewMemoryCache(1 * time.Hour)
	defer c.Close()

	c.Set("key1", "value1", 0)
	got, ok := c.Get("key1")
	assert.True(t, ok)
	assert.Equal(t, "value1", got)

	_, ok = c.Get("nonexistent")
	assert.False(t, ok)
}

func TestMemoryCache_PerKeyTTL(t *testing.T) {
	c := NewMemoryCache(1 * time.Hour)
	defer c.Close()

	c.Set("short", "v", 50*time.Millisecond)
	c.Set("long", "v", 0)

	time.Sleep(75 * time.Millisecond)

	_, ok := c.Get("short")
	assert.False(t, ok, "short-ttl key should have expired")

	_, ok = c.Get("long")
	assert.True(t, ok, "default-ttl key should still be live")
}

func TestMemoryCache_Delete(t *testing.T) {
	c := NewMemoryCache(1 * time.Hour)
	defer c.Close()

	c.Set("key1", "value1", 0)
	c.Delete("key1")

	_, ok := c.Get("key1")
	assert.False(t, ok)
}

func TestMemoryCache_Clear(t *testing.T) {
	c := NewMemoryCache(1 * time.Hour)
	defer c.Close()

	c.Set("key1", "value1", 0)
	c.Set("key2", "value2", 0)
	c.Clear()

	_, ok1 := c.Get("key1")
	_, ok2 := c.Get("key2")
	assert.False(t, ok1)
	assert.False(t, ok2)
}

func TestMemoryCache_Cleanup(t *testing.T) {
	c := NewMemoryCache(1 * time.Hour)
	defer c.Close()

	c.Set("key1", "value1", 50*time.Millisecond)
	c.Set("key2", "value2", 50*time.Millisecond)

	time.Sleep(75 * time.Millisecond)
	c.Set("key3", "value3", 0)
	c.Cleanup()

	_, ok1 := c.Get("key1")
	_, ok2 := c.Get("key2")
	got3, ok3 := c.Get("key3")
	assert.False(t, ok1)
	assert.False(t, ok2)
	assert.True(t, ok3)
	assert.Equal(t, "value3", got3)
}

func TestMemoryCache_AtomicIncr(t *testing.T) {
	c := NewMemoryCache(1 * time.Hour)
	defer c.Close()

	v, err := c.AtomicIncr("counter", 1, time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = c.AtomicIncr("counter", 3, time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, int64(4), v)
}

func TestMemoryCache_AtomicIncr_PreservesExpirationAcrossIncrements(t *testing.T) {
	c := NewMemoryCache(1 * time.Hour)
	defer c.Close()

	_, err := c.AtomicIncr("counter", 1, 10*time.Millisecond)
	assert.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	v, err := c.AtomicIncr("counter", 1, time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), v)

	time.Sleep(20 * time.Millisecond)
	v, err = c.AtomicIncr("counter", 1, time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), v, "expiration should not have been reset by the second increment")
}

func TestMemoryCache_CompareAndSwap(t *testing.T) {
	c := NewMemoryCache(1 * time.Hour)
	defer c.Close()

	ok, err := c.CompareAndSwap("flag", nil, "set", time.Minute)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.CompareAndSwap("flag", nil, "set-again", time.Minute)
	assert.NoError(t, err)
	assert.False(t, ok, "swap should fail once the key is no longer nil")

	ok, err = c.CompareAndSwap("flag", "set", "done", time.Minute)
	assert.NoError(t, err)
	assert.True(t, ok)

	got, _ := c.Get("flag")
	assert.Equal(t, "done", got)
}

func TestMemoryCache_KeysByPrefix(t *testing.T) {
	c := NewMemoryCache(1 * time.Hour)
	defer c.Close()

	c.Set("session:active:u1:d1", true, 0)
	c.Set("session:active:u2:d1", true, 0)
	c.Set("quota:api_calls:org1:123", int64(1), 0)

	keys := c.KeysByPrefix("session:active:")
	assert.ElementsMatch(t, []string{"session:active:u1:d1", "session:active:u2:d1"}, keys)
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := NewMemoryCache(1 * time.Hour)
	defer c.Close()

	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func(val int) {
			c.Set("key", val, 0)
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		go func() {
			_, _ = c.Get("key")
			done <- true
		}()
	}
	for i := 0; i < 20; i++ {
		<-done
	}

	_, ok := c.Get("key")
	assert.True(t, ok)
}
