package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// SingleThreadTaskRunner binds a dedicated Goroutine to execute tasks sequentially.
// It guarantees that all tasks submitted to it run on the same Goroutine (Thread Affinity).
//
// It is the reference MainLoop: the dispatcher posts main-queue work and result
// callbacks to it. PostTask appends to the back of the queue, PostTaskAtFront
// inserts ahead of everything pending. Tasks never run concurrently.
type SingleThreadTaskRunner struct {
	queue  *FIFOTaskQueue
	signal chan struct{}

	// Lifecycle control
	ctx    context.Context
	cancel context.CancelFunc

	// For graceful shutdown
	stopped      chan struct{}
	once         sync.Once
	closed       atomic.Bool
	shutdownChan chan struct{}
	shutdownOnce sync.Once

	running  atomic.Int32
	rejected atomic.Int64

	panicHandler        PanicHandler
	metrics             Metrics
	rejectedTaskHandler RejectedTaskHandler

	history *ExecutionHistory

	// Metadata
	name string
	mu   sync.Mutex
}

var _ MainLoop = (*SingleThreadTaskRunner)(nil)

// NewSingleThreadTaskRunner creates and starts a new SingleThreadTaskRunner.
// It immediately spawns a dedicated goroutine for task execution.
func NewSingleThreadTaskRunner() *SingleThreadTaskRunner {
	return NewSingleThreadTaskRunnerWithConfig("main-loop", DefaultTaskSchedulerConfig())
}

// NewSingleThreadTaskRunnerWithConfig is NewSingleThreadTaskRunner with a name
// and custom handlers.
func NewSingleThreadTaskRunnerWithConfig(name string, config *TaskSchedulerConfig) *SingleThreadTaskRunner {
	cfg := config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	r := &SingleThreadTaskRunner{
		queue:               NewFIFOTaskQueue(),
		signal:              make(chan struct{}, 1),
		ctx:                 ctx,
		cancel:              cancel,
		stopped:             make(chan struct{}),
		shutdownChan:        make(chan struct{}),
		panicHandler:        cfg.PanicHandler,
		metrics:             cfg.Metrics,
		rejectedTaskHandler: cfg.RejectedTaskHandler,
		history:             NewExecutionHistory(defaultTaskHistoryCapacity),
		name:                name,
	}

	// Start the dedicated message loop
	go r.runLoop()

	return r
}

// Name returns the name of the task runner
func (r *SingleThreadTaskRunner) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

// SetName sets the name of the task runner
func (r *SingleThreadTaskRunner) SetName(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.name = name
}

// PostTask appends task to the back of the queue.
func (r *SingleThreadTaskRunner) PostTask(task Task) {
	r.post(task, LaneMainQueue, false)
}

// PostTaskAtFront inserts task ahead of every task currently queued.
// It does not interrupt the task that is running.
func (r *SingleThreadTaskRunner) PostTaskAtFront(task Task) {
	r.post(task, LaneMainQueueFront, true)
}

func (r *SingleThreadTaskRunner) post(task Task, lane Lane, front bool) {
	// Check if runner is closed; queued tasks would never run
	if r.closed.Load() {
		r.rejected.Add(1)
		r.rejectedTaskHandler.HandleRejectedTask(r.Name(), "runner closed")
		r.metrics.RecordTaskRejected(r.Name(), "runner closed")
		return
	}

	if front {
		r.queue.PushFront(task, lane)
	} else {
		r.queue.Push(task, lane)
	}
	r.metrics.RecordQueueDepth(r.Name(), r.queue.Len())

	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// RunsTasksInCurrentSequence reports whether ctx was handed to a task by this runner.
func (r *SingleThreadTaskRunner) RunsTasksInCurrentSequence(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	current, ok := GetCurrentTaskRunner(ctx).(*SingleThreadTaskRunner)
	return ok && current == r
}

// PendingTaskCount returns the number of queued tasks.
func (r *SingleThreadTaskRunner) PendingTaskCount() int {
	return r.queue.Len()
}

// Stats returns current observability data for this runner.
func (r *SingleThreadTaskRunner) Stats() RunnerStats {
	stats := RunnerStats{
		Name:     r.Name(),
		Type:     "single_thread",
		Pending:  r.PendingTaskCount(),
		Running:  int(r.running.Load()),
		Rejected: r.rejected.Load(),
		Closed:   r.IsClosed(),
	}
	if last, ok := r.history.Last(); ok {
		stats.LastTaskName = last.Name
		stats.LastTaskAt = last.FinishedAt
	}
	return stats
}

// RecentTasks returns completed task execution records in newest-first order.
func (r *SingleThreadTaskRunner) RecentTasks(limit int) []TaskExecutionRecord {
	return r.history.Recent(limit)
}

// Shutdown marks the runner as closed and signals shutdown waiters.
// Tasks posted afterwards are rejected and the runLoop exits after the
// task it is currently running, if any.
// It is safe to call from within a task.
func (r *SingleThreadTaskRunner) Shutdown() {
	r.shutdownOnce.Do(func() {
		r.closed.Store(true)
		r.cancel()
		close(r.shutdownChan)
	})
}

// IsClosed returns true if the runner has been stopped
func (r *SingleThreadTaskRunner) IsClosed() bool {
	return r.closed.Load()
}

// Stop shuts the runner down and waits for the runLoop to exit.
// Must not be called from a task running on this runner.
func (r *SingleThreadTaskRunner) Stop() {
	r.once.Do(func() {
		r.Shutdown()
		<-r.stopped
		r.queue.Clear()
	})
}

// runLoop is the core of this runner, it occupies a dedicated goroutine
func (r *SingleThreadTaskRunner) runLoop() {
	defer close(r.stopped) // Signal that Stop() can return

	// Create context with taskRunnerKey for GetCurrentTaskRunner
	runCtx := WithTaskRunner(r.ctx, r)

	for {
		if r.ctx.Err() != nil {
			return
		}

		item, ok := r.queue.Pop()
		if !ok {
			select {
			case <-r.signal:
				continue
			case <-r.ctx.Done():
				return
			}
		}

		r.runTask(runCtx, item)
	}
}

func (r *SingleThreadTaskRunner) runTask(ctx context.Context, item TaskItem) {
	name := r.Name()
	observed := WrapObservedTask(item.Task, item.ID, item.Name, item.Lane, name, func(rec TaskExecutionRecord) {
		r.history.Add(rec)
		r.metrics.RecordTaskDuration(name, rec.Lane, rec.Duration)
	})

	r.running.Add(1)
	defer r.running.Add(-1)

	defer func() {
		if rec := recover(); rec != nil {
			r.panicHandler.HandlePanic(ctx, name, -1, rec, debug.Stack())
			r.metrics.RecordTaskPanic(name, rec)
		}
	}()
	observed(ctx)
}

// =============================================================================
// Synchronization Methods
// =============================================================================

// WaitIdle blocks until all currently queued tasks have completed execution.
// This is implemented by posting a barrier task to the back of the queue.
//
// Returns error if:
// - Context is cancelled or deadline exceeded
// - Runner is closed when WaitIdle is called, or closes while waiting
//
// Note: Tasks posted after WaitIdle is called are not waited for, except
// front-inserted tasks, which run before the barrier.
func (r *SingleThreadTaskRunner) WaitIdle(ctx context.Context) error {
	if r.IsClosed() {
		return fmt.Errorf("runner is closed")
	}

	done := make(chan struct{})
	r.PostTask(func(taskCtx context.Context) {
		close(done)
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.shutdownChan:
		return fmt.Errorf("runner shutdown during WaitIdle")
	}
}

// FlushAsync posts a barrier task that executes the callback when all prior tasks complete.
// This is a non-blocking alternative to WaitIdle.
func (r *SingleThreadTaskRunner) FlushAsync(callback func()) {
	if callback == nil {
		return
	}
	r.PostTask(func(ctx context.Context) {
		callback()
	})
}

// WaitShutdown blocks until Shutdown() is called on this runner.
//
// Returns error if context is cancelled or deadline exceeded.
func (r *SingleThreadTaskRunner) WaitShutdown(ctx context.Context) error {
	select {
	case <-r.shutdownChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
