package serializer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializerFIFOOrder(t *testing.T) {
	reg := NewRegistry()
	dir := NewDirectory(reg, 10, nil)
	s := dir.Create("test")
	defer s.Release()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		require.True(t, s.Push(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}

	wg.Wait()
	mu.Lock()
	defer mu.Unlock()
	for i := range order {
		assert.Equal(t, i, order[i])
	}
}

func TestSerializerPushAfterReleaseFails(t *testing.T) {
	reg := NewRegistry()
	dir := NewDirectory(reg, 10, nil)
	s := dir.Create("test")
	s.Release()

	// Give the worker goroutine a chance to observe closure.
	time.Sleep(10 * time.Millisecond)
	assert.False(t, s.Push(func() {}))
}

func TestDirectoryLookupAndRemoval(t *testing.T) {
	reg := NewRegistry()
	dir := NewDirectory(reg, 10, nil)
	s := dir.Create("lookup-me")
	name := s.Name()

	found := dir.Lookup(name)
	require.NotNil(t, found)
	found.Release()

	s.Release()
	time.Sleep(10 * time.Millisecond)
	assert.Nil(t, dir.Lookup(name))
}

func TestOverloadAlertTracksHighWaterMark(t *testing.T) {
	reg := NewRegistry()
	dir := NewDirectory(reg, 2, nil)
	s := dir.Create("hot")
	defer s.Release()

	assert.False(t, reg.Alert())

	started := make(chan struct{})
	block := make(chan struct{})
	s.Push(func() { close(started); <-block })
	<-started

	// Worker is parked inside the first task, so these two sit in the
	// queue and push depth to the high-water mark.
	s.Push(func() {})
	s.Push(func() {})
	assert.True(t, reg.Alert())

	close(block)
	require.Eventually(t, func() bool { return !reg.Alert() }, time.Second, 5*time.Millisecond)
}

func TestPoolGetWrapsAndRefCounts(t *testing.T) {
	reg := NewRegistry()
	dir := NewDirectory(reg, 10, nil)
	pool := NewPool(dir, "pjsip/distributor", 31, nil)
	defer pool.Shutdown()

	assert.Equal(t, 31, pool.Size())

	s1 := pool.Get(5)
	s2 := pool.Get(5 + 31) // wraps to the same bucket
	assert.Equal(t, s1.Name(), s2.Name())
	s1.Release()
	s2.Release()
}

func TestBucketHashIsDeterministicAndInRange(t *testing.T) {
	const p = 31
	b1 := Bucket(p, "a@x", "f1")
	b2 := Bucket(p, "a@x", "f1")
	assert.Equal(t, b1, b2)
	assert.GreaterOrEqual(t, b1, 0)
	assert.Less(t, b1, p)

	// Empty tag + non-empty Call-ID still produces a valid bucket.
	b3 := Bucket(p, "a@x", "")
	assert.GreaterOrEqual(t, b3, 0)
	assert.Less(t, b3, p)
}
