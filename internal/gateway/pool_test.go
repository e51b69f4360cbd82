package gateway

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCredentials(t *testing.T) {
	assert.Equal(t, []string{"a"}, ParseCredentials("a"))
	assert.Equal(t, []string{"a", " b", "c"}, ParseCredentials("a, b;c"))
	assert.Equal(t, []string{"a", "b"}, ParseCredentials("a\r\nb\n"))
	assert.Empty(t, ParseCredentials(""))
}

func TestNewCredentialPool_CleansKeys(t *testing.T) {
	pool := NewCredentialPool([]string{" a ", "", "b", "a", "  "})

	assert.Equal(t, 2, pool.Size())
	key, idx, ok := pool.Current()
	require.True(t, ok)
	assert.Equal(t, "a", key)
	assert.Equal(t, 0, idx)
}

func TestCredentialPool_EmptyPool(t *testing.T) {
	pool := NewCredentialPool(nil)

	_, _, ok := pool.Current()
	assert.False(t, ok)
	assert.Equal(t, 0, pool.Advance(0))
}

func TestCredentialPool_AdvanceWraps(t *testing.T) {
	pool := NewCredentialPool([]string{"a", "b", "c"})

	assert.Equal(t, 1, pool.Advance(0))
	assert.Equal(t, 2, pool.Advance(1))
	assert.Equal(t, 0, pool.Advance(2))
}

func TestCredentialPool_AdvanceIgnoresStaleIndex(t *testing.T) {
	pool := NewCredentialPool([]string{"a", "b", "c"})
	pool.Advance(0)

	// a second caller that also failed on "a" must not skip "b"
	assert.Equal(t, 1, pool.Advance(0))
	key, _, _ := pool.Current()
	assert.Equal(t, "b", key)
}

func TestCredentialPool_ConcurrentAdvance(t *testing.T) {
	pool := NewCredentialPool([]string{"a", "b", "c", "d"})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, idx, _ := pool.Current()
			pool.Advance(idx)
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, pool.Cursor(), 0)
	assert.Less(t, pool.Cursor(), 4)
}

func TestCredentialPool_Reset(t *testing.T) {
	pool := NewCredentialPool([]string{"a", "b"})
	pool.Advance(0)

	pool.Reset([]string{"x", "y", "z"})

	assert.Equal(t, 3, pool.Size())
	assert.Equal(t, 0, pool.Cursor())
}

func TestCredentialPool_PickSkipsTried(t *testing.T) {
	pool := NewCredentialPool([]string{"a", "b", "c"})

	key, idx, ok := pool.Pick(map[int]bool{0: true})
	require.True(t, ok)
	assert.Equal(t, "b", key)
	assert.Equal(t, 1, idx)

	key, _, ok = pool.Pick(map[int]bool{0: true, 1: true})
	require.True(t, ok)
	assert.Equal(t, "c", key)

	_, _, ok = pool.Pick(map[int]bool{0: true, 1: true, 2: true})
	assert.False(t, ok)
}
