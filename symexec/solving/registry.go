package solving

import "sync"

// ExecutorRegistry tracks live executors so that a signal handler or other top-level teardown logic can shut all
// of them down at once. Executors are deregistered when their test run finishes, so the registry only ever holds
// the pools that are actually running.
type ExecutorRegistry struct {
	// mu guards executors.
	mu sync.Mutex

	// executors holds every registered, not yet deregistered executor.
	executors map[*Executor]struct{}
}

// DefaultRegistry is the process-wide executor registry used by the CLI's signal handling.
var DefaultRegistry = NewExecutorRegistry()

// NewExecutorRegistry returns a new, empty executor registry.
func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{
		executors: make(map[*Executor]struct{}),
	}
}

// Register adds an executor to the registry.
func (r *ExecutorRegistry) Register(executor *Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[executor] = struct{}{}
}

// Deregister removes an executor from the registry. Deregistering an unknown executor is a no-op.
func (r *ExecutorRegistry) Deregister(executor *Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.executors, executor)
}

// Count returns the number of currently registered executors.
func (r *ExecutorRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.executors)
}

// ShutdownAll requests a non-blocking shutdown of every registered executor.
func (r *ExecutorRegistry) ShutdownAll() {
	r.mu.Lock()
	executors := make([]*Executor, 0, len(r.executors))
	for executor := range r.executors {
		executors = append(executors, executor)
	}
	r.mu.Unlock()

	for _, executor := range executors {
		executor.Shutdown(false)
	}
}
