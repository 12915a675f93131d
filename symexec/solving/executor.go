package solving

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// ErrShutdown is returned by Executor.Submit when the executor has already been shut down. Hitting it during
// submission is graceful early termination, not a failure.
var ErrShutdown = errors.New("executor has been shut down")

// Task describes one unit of solving work: a blocking function producing a plain-data Output.
type Task func() Output

// Future represents an in-flight solving task submitted to an Executor. Completion callbacks may execute on any
// worker goroutine, so they must only touch plain, independently-owned value data (the Output and data captured by
// value), never solver-native objects tied to the submitting goroutine.
type Future struct {
	// task is the work to perform. It is run by exactly one worker goroutine.
	task Task

	// done is closed once the future completes (with a result or by cancellation).
	done chan struct{}

	// mu guards the fields below.
	mu sync.Mutex

	// completed indicates the future has finished and output is populated.
	completed bool

	// cancelled indicates the future was discarded without running because the executor shut down first.
	cancelled bool

	// output holds the result of the task once completed.
	output Output

	// callbacks holds completion callbacks registered before the future completed.
	callbacks []func(*Future)
}

// newFuture creates a future wrapping the provided task.
func newFuture(task Task) *Future {
	return &Future{
		task: task,
		done: make(chan struct{}),
	}
}

// Done indicates whether the future has completed (successfully or by cancellation).
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Cancelled indicates whether the future was discarded without running because its executor shut down first.
func (f *Future) Cancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

// Wait blocks until the future completes and returns its output. A cancelled future returns a zero Output.
func (f *Future) Wait() Output {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.output
}

// AddDoneCallback registers a callback to be invoked when the future completes. If the future already completed,
// the callback is invoked immediately on the calling goroutine; otherwise it runs on the worker goroutine that
// completes the future.
func (f *Future) AddDoneCallback(callback func(*Future)) {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, callback)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()

	// Already completed, invoke inline.
	callback(f)
}

// finish records the future's terminal state and fires its registered callbacks on the calling goroutine.
func (f *Future) finish(output Output, cancelled bool) {
	f.mu.Lock()
	f.output = output
	f.cancelled = cancelled
	f.completed = true
	callbacks := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()

	close(f.done)
	for _, callback := range callbacks {
		callback(f)
	}
}

// Executor is a bounded pool of solver worker goroutines with an unbounded submission queue and cooperative
// shutdown. One Executor is created per test function run.
type Executor struct {
	// mu guards queue and shutdownRequested, and backs cond.
	mu sync.Mutex

	// cond signals workers when new work arrives or shutdown is requested.
	cond *sync.Cond

	// queue holds submitted futures not yet picked up by a worker.
	queue []*Future

	// shutdownRequested indicates no further submissions are accepted and queued work should be cancelled.
	shutdownRequested bool

	// shutdownFlag mirrors shutdownRequested for lock-free reads from completion callbacks.
	shutdownFlag atomic.Bool

	// outstanding tracks futures which have been submitted but whose completion (including callbacks) has not
	// finished yet. Shutdown(wait=true) drains by waiting on it.
	outstanding sync.WaitGroup

	// workersDone tracks running worker goroutines.
	workersDone sync.WaitGroup

	// submitted counts all successfully submitted futures.
	submitted atomic.Uint64

	// completed counts all futures which have finished, whether run or cancelled.
	completed atomic.Uint64
}

// NewExecutor creates an Executor backed by the provided number of worker goroutines, which must be positive.
func NewExecutor(workers int) *Executor {
	if workers <= 0 {
		workers = 1
	}
	executor := &Executor{}
	executor.cond = sync.NewCond(&executor.mu)

	// Spawn our workers.
	executor.workersDone.Add(workers)
	for i := 0; i < workers; i++ {
		go executor.workerLoop()
	}
	return executor
}

// workerLoop runs on each worker goroutine: it pulls futures off the queue and runs them until shutdown is
// requested and the queue is empty. Futures still queued when shutdown is requested are cancelled, not run.
func (e *Executor) workerLoop() {
	defer e.workersDone.Done()
	for {
		// Wait for work or shutdown.
		e.mu.Lock()
		for len(e.queue) == 0 && !e.shutdownRequested {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			// Shutdown was requested and there is nothing left to do.
			e.mu.Unlock()
			return
		}
		future := e.queue[0]
		e.queue = e.queue[1:]
		cancelled := e.shutdownRequested
		e.mu.Unlock()

		// Run the task, or cancel it if shutdown was requested before we picked it up. Completion callbacks run
		// here, on this worker goroutine, before the future counts as drained.
		if cancelled {
			future.finish(Output{}, true)
		} else {
			future.finish(future.task(), false)
		}
		e.completed.Add(1)
		e.outstanding.Done()
	}
}

// Submit enqueues a solving task and returns a Future handle for it. Returns ErrShutdown if the executor has
// already been shut down.
func (e *Executor) Submit(task Task) (*Future, error) {
	e.mu.Lock()
	if e.shutdownRequested {
		e.mu.Unlock()
		return nil, ErrShutdown
	}

	future := newFuture(task)
	e.queue = append(e.queue, future)
	e.outstanding.Add(1)
	e.submitted.Add(1)
	e.cond.Signal()
	e.mu.Unlock()
	return future, nil
}

// Shutdown stops the executor from accepting further submissions. Work already picked up by a worker runs to
// completion; work still queued is cancelled. If wait is true, Shutdown blocks until every outstanding future has
// completed (including its callbacks) and all workers have exited. Shutdown may be called multiple times; a later
// Shutdown(wait=true) performs a final blocking drain after an earlier non-blocking shutdown.
func (e *Executor) Shutdown(wait bool) {
	e.mu.Lock()
	if !e.shutdownRequested {
		e.shutdownRequested = true
		e.shutdownFlag.Store(true)
		e.cond.Broadcast()
	}
	e.mu.Unlock()

	if wait {
		e.outstanding.Wait()
		e.workersDone.Wait()
	}
}

// IsShutdown indicates whether a shutdown has been requested. Completion callbacks check this flag first and
// become no-ops once it is observed.
func (e *Executor) IsShutdown() bool {
	return e.shutdownFlag.Load()
}

// SubmittedCount returns the number of successfully submitted futures.
func (e *Executor) SubmittedCount() uint64 {
	return e.submitted.Load()
}

// CompletedCount returns the number of futures which have finished, whether run or cancelled.
func (e *Executor) CompletedCount() uint64 {
	return e.completed.Load()
}
