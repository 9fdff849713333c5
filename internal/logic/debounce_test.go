package logic

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestNewDebouncerDefaultWindow(t *testing.T) {
	assert.Equal(t, DefaultDebounceWindow, NewDebouncer(0).Window())
	assert.Equal(t, 50*time.Millisecond, NewDebouncer(50*time.Millisecond).Window())
}

func TestDebouncerAcceptsFirstEdge(t *testing.T) {
	d := NewDebouncer(200 * time.Millisecond)

	assert.False(t, d.Armed(t0))
	assert.True(t, d.AcceptEdge(t0))
	assert.True(t, d.Armed(t0))
}

func TestDebouncerDropsEdgesInsideWindow(t *testing.T) {
	d := NewDebouncer(200 * time.Millisecond)
	require.True(t, d.AcceptEdge(t0))

	for _, off := range []time.Duration{0, time.Millisecond, 50 * time.Millisecond, 199 * time.Millisecond} {
		assert.False(t, d.AcceptEdge(t0.Add(off)), "edge at +%v should be dropped", off)
	}

	stats := d.Stats()
	assert.Equal(t, uint64(1), stats.Accepted)
	assert.Equal(t, uint64(4), stats.Dropped)
}

func TestDebouncerDroppedEdgeDoesNotExtendWindow(t *testing.T) {
	d := NewDebouncer(200 * time.Millisecond)
	require.True(t, d.AcceptEdge(t0))
	require.False(t, d.AcceptEdge(t0.Add(150*time.Millisecond)))

	assert.True(t, d.AcceptEdge(t0.Add(200*time.Millisecond)))
}

func TestDebouncerRearmsAfterWindow(t *testing.T) {
	d := NewDebouncer(200 * time.Millisecond)
	require.True(t, d.AcceptEdge(t0))

	t1 := t0.Add(250 * time.Millisecond)
	assert.False(t, d.Armed(t1))
	assert.True(t, d.AcceptEdge(t1))
	assert.False(t, d.AcceptEdge(t1.Add(100*time.Millisecond)))
}

func TestDebouncerExpire(t *testing.T) {
	d := NewDebouncer(200 * time.Millisecond)
	require.True(t, d.AcceptEdge(t0))

	d.Expire()

	assert.False(t, d.Armed(t0.Add(time.Millisecond)))
	assert.True(t, d.AcceptEdge(t0.Add(time.Millisecond)))
}

func TestDebouncerConcurrentEdgesAcceptOnce(t *testing.T) {
	d := NewDebouncer(time.Second)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.AcceptEdge(t0) {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, uint64(63), d.Stats().Dropped)
}
