package syncqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_OrdersByPriority(t *testing.T) {
	q := New[string]()
	q.Put("b.txt", "b", 500)
	q.Put("a.txt", "a", 10)
	q.Put("perm", "_.syftperm", 0)

	v, ok := q.Get(time.Second)
	require.True(t, ok)
	assert.Equal(t, "_.syftperm", v)

	v, ok = q.Get(time.Second)
	require.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok = q.Get(time.Second)
	require.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestQueue_DedupsByPath(t *testing.T) {
	q := New[string]()
	q.Put("a.txt", "first", 5)
	q.Put("a.txt", "second", 1)

	assert.Equal(t, 1, q.Len())

	v, ok := q.Get(time.Second)
	require.True(t, ok)
	assert.Equal(t, "first", v)
}

func TestQueue_GetBlocksUntilTimeout(t *testing.T) {
	q := New[string]()
	start := time.Now()
	_, ok := q.Get(50 * time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestQueue_GetUnblocksOnPut(t *testing.T) {
	q := New[string]()
	done := make(chan string, 1)
	go func() {
		v, ok := q.Get(time.Second)
		if ok {
			done <- v
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Put("a.txt", "value", 1)

	select {
	case v := <-done:
		assert.Equal(t, "value", v)
	case <-time.After(time.Second):
		t.Fatal("Get never unblocked")
	}
}

func TestPriority_PermissionFileIsZero(t *testing.T) {
	assert.Equal(t, 0, Priority("alice/_.syftperm", 4096))
}

func TestPriority_ContentFileIsSizeFloorOne(t *testing.T) {
	assert.Equal(t, 1, Priority("alice/empty.txt", 0))
	assert.Equal(t, 2048, Priority("alice/file.bin", 2048))
}
