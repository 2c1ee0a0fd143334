package strand_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TMac-wei/mylogger/strand"
	"github.com/stretchr/testify/require"
)

func TestNewRunnerResolvesHintCollision(t *testing.T) {
	e := strand.New()
	defer e.Close()
	a := e.NewRunner("disk")
	b := e.NewRunner("disk")
	require.NotEqual(t, a, b)
}

func TestPostOrderingIsPreservedPerRunner(t *testing.T) {
	e := strand.New()
	defer e.Close()
	id := e.NewRunner("io")

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		require.True(t, e.Post(id, func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		}))
	}
	wg.Wait()
	for i, v := range order {
		require.Equal(t, i, v)
	}
}

func TestPostDelayedFiresAfterDelay(t *testing.T) {
	e := strand.New()
	defer e.Close()
	id := e.NewRunner("timer")
	done := make(chan struct{})
	start := time.Now()
	e.PostDelayed(id, func() { close(done) }, 50*time.Millisecond)
	select {
	case <-done:
		require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("delayed task never fired")
	}
}

func TestPostRepeatedCancelStopsAfterAtMostOneMore(t *testing.T) {
	e := strand.New()
	defer e.Close()
	id := e.NewRunner("repeat")

	var n int32
	repeatID := e.PostRepeated(id, func() { atomic.AddInt32(&n, 1) }, 20*time.Millisecond, strand.Forever)
	time.Sleep(90 * time.Millisecond)
	e.CancelRepeated(repeatID)
	countAtCancel := atomic.LoadInt32(&n)
	time.Sleep(60 * time.Millisecond)
	countAfter := atomic.LoadInt32(&n)
	require.LessOrEqual(t, countAfter-countAtCancel, int32(1))
}

func TestPostWithResultReturnsFuture(t *testing.T) {
	e := strand.New()
	defer e.Close()
	id := e.NewRunner("compute")
	f, err := strand.PostWithResult(e, id, func() (int, error) { return 7 * 6, nil })
	require.NoError(t, err)
	v, err := f.Wait()
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestPostToUnknownRunnerFails(t *testing.T) {
	e := strand.New()
	defer e.Close()
	require.False(t, e.Post(999, func() {}))
}
