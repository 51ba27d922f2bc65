package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatcher(t *testing.T, workers int) *Dispatcher {
	t.Helper()
	d := NewDispatcher(Config{Workers: workers, PartitionCount: 71, Capacity: 16})
	d.Start()
	t.Cleanup(func() { _ = d.Stop() })
	return d
}

func TestRingIsStable(t *testing.T) {
	r := NewRing(RingConfig{PartitionCount: 71}, []string{"a", "b", "c"})
	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("user-%d", i)
		require.Equal(t, r.Locate(key), r.Locate(key))
		require.Contains(t, []string{"a", "b", "c"}, r.Locate(key))
	}
}

func TestSameKeyNeverOverlaps(t *testing.T) {
	d := newDispatcher(t, 4)
	var inFlight, maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := d.Do(context.Background(), "user-1", func() {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					m := atomic.LoadInt32(&maxInFlight)
					if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), maxInFlight)
}

func TestUsersOnSameShardDoNotWait(t *testing.T) {
	d := newDispatcher(t, 4)
	first := "user-0"
	second := ""
	for i := 1; i < 1000; i++ {
		k := fmt.Sprintf("user-%d", i)
		if d.WorkerFor(k) == d.WorkerFor(first) {
			second = k
			break
		}
	}
	require.NotEmpty(t, second)

	release := make(chan struct{})
	started := make(chan struct{})
	blocked := make(chan error, 1)
	go func() {
		blocked <- d.Do(context.Background(), first, func() {
			close(started)
			<-release
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	ran := false
	require.NoError(t, d.Do(ctx, second, func() { ran = true }))
	require.True(t, ran)

	close(release)
	require.NoError(t, <-blocked)
}

func TestIdleLanesAreDropped(t *testing.T) {
	d := newDispatcher(t, 2)
	for i := 0; i < 10; i++ {
		require.NoError(t, d.Do(context.Background(), fmt.Sprintf("user-%d", i), func() {}))
	}
	require.Eventually(t, func() bool { return d.Lanes() == 0 }, time.Second, 5*time.Millisecond)
}

func TestStopReleasesQueuedCallers(t *testing.T) {
	d := NewDispatcher(Config{Workers: 1})
	d.Start()
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = d.Do(context.Background(), "k", func() {
			close(started)
			<-release
		})
	}()
	<-started
	queued := make(chan error, 1)
	go func() {
		queued <- d.Do(context.Background(), "k", func() {})
	}()

	stopped := make(chan struct{})
	go func() {
		_ = d.Stop()
		close(stopped)
	}()
	require.ErrorIs(t, <-queued, ErrStopped)
	close(release)
	<-stopped
}

func TestPanicIsReported(t *testing.T) {
	d := newDispatcher(t, 1)
	err := d.Do(context.Background(), "k", func() { panic("boom") })
	require.ErrorIs(t, err, ErrJobPanicked)

	require.NoError(t, d.Do(context.Background(), "k", func() {}))
}

func TestStoppedDispatcher(t *testing.T) {
	d := NewDispatcher(Config{Workers: 1})
	d.Start()
	require.NoError(t, d.Stop())
	require.ErrorIs(t, d.Do(context.Background(), "k", func() {}), ErrStopped)
}
