package workerpool_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TMac-wei/mylogger/workerpool"
	"github.com/stretchr/testify/require"
)

func TestTasksRunAndCountersAdvance(t *testing.T) {
	p := workerpool.New(4)
	require.True(t, p.Start())
	var n int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		require.True(t, p.Submit(func() {
			atomic.AddInt64(&n, 1)
			wg.Done()
		}))
	}
	wg.Wait()
	p.Stop()
	require.EqualValues(t, 100, atomic.LoadInt64(&n))
}

func TestSubmitWithResultReturnsValue(t *testing.T) {
	p := workerpool.New(2)
	require.True(t, p.Start())
	f := workerpool.SubmitWithResult(p, func() (int, error) { return 41 + 1, nil })
	v, err := f.Wait()
	require.NoError(t, err)
	require.Equal(t, 42, v)
	p.Stop()
}

func TestPanicInTaskDoesNotKillPool(t *testing.T) {
	p := workerpool.New(1)
	require.True(t, p.Start())
	require.True(t, p.Submit(func() { panic("boom") }))
	var ran bool
	done := make(chan struct{})
	require.True(t, p.Submit(func() { ran = true; close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool stalled after panicking task")
	}
	require.True(t, ran)
	p.Stop()
}

func TestSubmitAfterStopFails(t *testing.T) {
	p := workerpool.New(1)
	require.True(t, p.Start())
	p.Stop()
	require.False(t, p.Submit(func() {}))
}
