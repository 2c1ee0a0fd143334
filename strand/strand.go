// Package strand implements the named-runner scheduler and timer wheel of
// spec.md §4.8 ("Strand executor (C8)"): a registry mapping runner ids to
// single-worker queues (generalizing workerpool.Pool to the n=1 case), plus
// a min-heap timer thread that supports immediate, delayed, and repeated
// tasks with cancellation. Per the corrected design in spec.md's REDESIGN
// FLAGS, the timer thread always posts to the target runner rather than
// executing a task inline, preserving the single-writer-per-runner
// guarantee even for repeated tasks.
//
// The runner registry is grounded on the teacher's sync/workerpool
// channel-based worker, and the timer heap's mutex+condition-variable wait
// loop mirrors the same cond-var idiom used by workerpool's task queue
// (github.com/grailbio/base/sync/workerpool). Runner ids are derived from
// caller-supplied hints by hashing with github.com/cespare/xxhash/v2,
// matching the teacher's own use of xxhash for checksums in logio.
package strand

import (
	"container/heap"
	"sync"
	"time"

	xxhash "github.com/cespare/xxhash/v2"

	"github.com/TMac-wei/mylogger/internal/errors"
	"github.com/TMac-wei/mylogger/workerpool"
)

// Forever is the sentinel count for an unbounded repeated task.
const Forever = -1

// Executor is a registry of single-worker runners plus a shared timer
// thread that dispatches delayed and repeated tasks to those runners.
type Executor struct {
	mu      sync.Mutex
	runners map[uint64]*workerpool.Pool

	tmu          sync.Mutex
	tcond        *sync.Cond
	heap         timerHeap
	live         map[uint64]bool
	nextRepeatID uint64
	closed       bool
	wake         chan struct{}
	done         chan struct{}
}

// New creates an Executor and starts its timer thread.
func New() *Executor {
	e := &Executor{
		runners: make(map[uint64]*workerpool.Pool),
		live:    make(map[uint64]bool),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	e.tcond = sync.NewCond(&e.tmu)
	go e.runTimer()
	return e
}

// NewRunner registers a new single-worker runner. If idHint's hash
// collides with an existing runner id, a fresh id is derived instead.
func (e *Executor) NewRunner(idHint string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := xxhash.Sum64String(idHint)
	for salt := uint64(0); ; salt++ {
		if _, taken := e.runners[id]; !taken {
			break
		}
		id = xxhash.Sum64String(idHint) + salt + 1
	}
	pool := workerpool.New(1)
	pool.Start()
	e.runners[id] = pool
	return id
}

// Post appends task to runnerID's queue. It returns false if runnerID is
// unknown.
func (e *Executor) Post(runnerID uint64, task workerpool.Task) bool {
	e.mu.Lock()
	pool, ok := e.runners[runnerID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	return pool.Submit(task)
}

// PostWithResult submits fn to runnerID and returns a future for its
// result.
func PostWithResult[T any](e *Executor, runnerID uint64, fn func() (T, error)) (*workerpool.Future[T], error) {
	e.mu.Lock()
	pool, ok := e.runners[runnerID]
	e.mu.Unlock()
	if !ok {
		return nil, errors.E(errors.Other, "unknown runner")
	}
	return workerpool.SubmitWithResult(pool, fn), nil
}

// PostDelayed schedules task to post to runnerID after delay.
func (e *Executor) PostDelayed(runnerID uint64, task workerpool.Task, delay time.Duration) {
	e.pushTimer(&timerEntry{
		deadline: time.Now().Add(delay),
		runnerID: runnerID,
		task:     task,
	})
}

// PostRepeated schedules task to post to runnerID every period, up to
// count times (or forever if count is Forever). It returns a repeat id
// that can be passed to CancelRepeated.
func (e *Executor) PostRepeated(runnerID uint64, task workerpool.Task, period time.Duration, count int) uint64 {
	e.tmu.Lock()
	e.nextRepeatID++
	id := e.nextRepeatID
	e.live[id] = true
	e.tmu.Unlock()

	remaining := count
	if count <= 0 {
		remaining = Forever
	}
	e.pushTimer(&timerEntry{
		deadline:  time.Now().Add(period),
		runnerID:  runnerID,
		task:      task,
		repeatID:  id,
		period:    period,
		remaining: remaining,
	})
	return id
}

// CancelRepeated removes repeatID from the live set. An instance already
// dequeued by the timer thread may still fire once more.
func (e *Executor) CancelRepeated(repeatID uint64) {
	e.tmu.Lock()
	delete(e.live, repeatID)
	e.tmu.Unlock()
}

// Close stops the timer thread and every runner, draining queued tasks.
func (e *Executor) Close() {
	e.tmu.Lock()
	e.closed = true
	e.tcond.Broadcast()
	e.tmu.Unlock()
	select {
	case e.wake <- struct{}{}:
	default:
	}
	<-e.done

	e.mu.Lock()
	pools := make([]*workerpool.Pool, 0, len(e.runners))
	for _, p := range e.runners {
		pools = append(pools, p)
	}
	e.mu.Unlock()
	for _, p := range pools {
		p.Stop()
	}
}

type timerEntry struct {
	deadline  time.Time
	runnerID  uint64
	task      workerpool.Task
	repeatID  uint64 // 0 means a one-shot delayed task
	period    time.Duration
	remaining int // Forever (-1) never decrements to zero
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x interface{}) { *h = append(*h, x.(*timerEntry)) }
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

func (e *Executor) pushTimer(entry *timerEntry) {
	e.tmu.Lock()
	heap.Push(&e.heap, entry)
	e.tmu.Unlock()
	e.tcond.Signal()
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// runTimer is the executor's single timer thread: it waits on the heap's
// condition variable (or a bounded timeout for the next deadline) and
// dispatches due entries by posting to their target runner.
func (e *Executor) runTimer() {
	defer close(e.done)
	for {
		e.tmu.Lock()
		for len(e.heap) == 0 && !e.closed {
			e.tcond.Wait()
		}
		if e.closed {
			e.tmu.Unlock()
			return
		}
		now := time.Now()
		wait := e.heap[0].deadline.Sub(now)
		if wait > 0 {
			e.tmu.Unlock()
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-e.wake:
				timer.Stop()
			}
			continue
		}

		var due []*timerEntry
		for len(e.heap) > 0 && !e.heap[0].deadline.After(time.Now()) {
			due = append(due, heap.Pop(&e.heap).(*timerEntry))
		}
		e.tmu.Unlock()

		for _, entry := range due {
			e.fire(entry)
		}
	}
}

func (e *Executor) fire(entry *timerEntry) {
	if entry.repeatID != 0 {
		e.tmu.Lock()
		live := e.live[entry.repeatID]
		e.tmu.Unlock()
		if !live {
			return
		}
	}

	e.Post(entry.runnerID, entry.task)

	if entry.repeatID == 0 {
		return
	}

	e.tmu.Lock()
	defer e.tmu.Unlock()
	if !e.live[entry.repeatID] {
		return
	}
	if entry.remaining != Forever {
		entry.remaining--
		if entry.remaining <= 0 {
			delete(e.live, entry.repeatID)
			return
		}
	}
	entry.deadline = entry.deadline.Add(entry.period)
	heap.Push(&e.heap, entry)
	e.tcond.Signal()
}
