package dispatcher

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/Swind/go-lane-dispatcher/core"
)

// PoolConfig describes a WorkerPool.
type PoolConfig struct {
	// MaxWorkers bounds the number of live workers, and so the number of
	// tasks running at once.
	MaxWorkers int

	// IdleTimeout is how long a worker waits for work before exiting.
	// Every worker expires, there is no always-on core. Zero keeps workers forever.
	IdleTimeout time.Duration

	// ThreadPriorityBoost raises the OS scheduling priority of the threads
	// running this pool's workers by that many levels. Best effort.
	ThreadPriorityBoost int

	Scheduler *core.TaskSchedulerConfig
}

// WorkerPool is a bounded, elastic set of worker goroutines draining one FIFO
// queue. Workers are started on demand when a task is posted and fewer than
// MaxWorkers are alive, and exit after IdleTimeout without work.
type WorkerPool struct {
	id        string
	cfg       PoolConfig
	scheduler *core.TaskScheduler
	history   *core.ExecutionHistory

	mu           sync.Mutex
	live         int
	nextWorkerID int
	running      bool
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup

	priorityWarnOnce sync.Once
}

// NewWorkerPool creates a stopped WorkerPool. Tasks posted before Start are
// queued and picked up once it starts.
func NewWorkerPool(id string, cfg PoolConfig) *WorkerPool {
	if cfg.MaxWorkers < 1 {
		panic(fmt.Sprintf("WorkerPool %s: MaxWorkers must be at least 1", id))
	}
	return &WorkerPool{
		id:        id,
		cfg:       cfg,
		scheduler: core.NewFIFOTaskSchedulerWithConfig(id, cfg.MaxWorkers, cfg.Scheduler),
		history:   core.NewExecutionHistory(0),
	}
}

// Start lets the pool spawn workers. Repeated calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	for range min(p.scheduler.QueuedTaskCount(), p.cfg.MaxWorkers) {
		p.maybeSpawnLocked()
	}
}

// Post queues task at the back of the pool's queue.
// The returned TaskID can be passed to Remove while the task is still queued.
func (p *WorkerPool) Post(task core.Task, lane core.Lane) (core.TaskID, error) {
	return p.PostNamed("", task, lane)
}

// PostNamed is Post with a display name used in execution records.
func (p *WorkerPool) PostNamed(name string, task core.Task, lane core.Lane) (core.TaskID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, err := p.scheduler.PostNamed(name, task, lane)
	if err != nil {
		return id, fmt.Errorf("pool %s: %w", p.id, err)
	}
	p.maybeSpawnLocked()
	return id, nil
}

// Remove drops a task that no worker has picked up yet.
// It returns false if the task already started, finished, or was never queued here.
func (p *WorkerPool) Remove(id core.TaskID) bool {
	return p.scheduler.Remove(id)
}

func (p *WorkerPool) maybeSpawnLocked() {
	if !p.running || p.live >= p.cfg.MaxWorkers || p.scheduler.IsShuttingDown() {
		return
	}
	p.live++
	workerID := p.nextWorkerID
	p.nextWorkerID++
	p.wg.Add(1)
	go p.workerLoop(workerID, p.ctx)
}

// retire decides whether an idle worker may exit. A worker stays if work
// arrived between its idle timeout and taking the lock.
func (p *WorkerPool) retire(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ctx.Err() == nil && p.scheduler.QueuedTaskCount() > 0 {
		return false
	}
	p.live--
	return true
}

// workerLoop is the main loop for each worker
func (p *WorkerPool) workerLoop(id int, ctx context.Context) {
	defer p.wg.Done()

	if p.cfg.ThreadPriorityBoost > 0 {
		if err := raiseThreadPriority(p.cfg.ThreadPriorityBoost); err != nil {
			p.priorityWarnOnce.Do(func() {
				p.scheduler.GetLogger().Debug("thread priority boost unavailable",
					core.F("pool", p.id), core.F("boost", p.cfg.ThreadPriorityBoost), core.F("error", err))
			})
		}
	}

	stopCh := ctx.Done()
	for {
		item, ok := p.scheduler.GetWork(stopCh, p.cfg.IdleTimeout)
		if !ok {
			if p.retire(ctx) {
				return
			}
			continue
		}
		p.runTask(ctx, id, item)
	}
}

func (p *WorkerPool) runTask(ctx context.Context, workerID int, item core.TaskItem) {
	metrics := p.scheduler.GetMetrics()
	observed := core.WrapObservedTask(item.Task, item.ID, item.Name, item.Lane, p.id, func(rec core.TaskExecutionRecord) {
		p.history.Add(rec)
		metrics.RecordTaskDuration(p.id, rec.Lane, rec.Duration)
	})

	p.scheduler.OnTaskStart()
	defer func() {
		p.scheduler.OnTaskEnd()
		if rec := recover(); rec != nil {
			p.scheduler.GetPanicHandler().HandlePanic(ctx, p.id, workerID, rec, debug.Stack())
			metrics.RecordTaskPanic(p.id, rec)
		}
	}()
	observed(ctx)
}

// Stop drops queued tasks and waits for running tasks and workers to finish.
func (p *WorkerPool) Stop() {
	// Always shutdown scheduler so later posts are rejected, even if never started
	p.scheduler.Shutdown()
	p.stopWorkers()
}

// StopGraceful stops the pool, waiting for queued tasks to complete.
// Returns error if timeout is exceeded before tasks complete
func (p *WorkerPool) StopGraceful(timeout time.Duration) error {
	err := p.scheduler.ShutdownGraceful(timeout)
	p.stopWorkers()
	return err
}

func (p *WorkerPool) stopWorkers() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

// ID returns the ID of the pool
func (p *WorkerPool) ID() string {
	return p.id
}

// IsRunning returns whether the pool is running
func (p *WorkerPool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// WorkerCount returns the maximum number of workers
func (p *WorkerPool) WorkerCount() int {
	return p.cfg.MaxWorkers
}

// LiveWorkerCount returns the number of workers currently alive, busy or idle.
func (p *WorkerPool) LiveWorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

func (p *WorkerPool) QueuedTaskCount() int {
	return p.scheduler.QueuedTaskCount()
}

func (p *WorkerPool) ActiveTaskCount() int {
	return p.scheduler.ActiveTaskCount()
}

// IdleTimeout returns how long an idle worker lives.
func (p *WorkerPool) IdleTimeout() time.Duration {
	return p.cfg.IdleTimeout
}

// GetScheduler returns the pool's work source.
func (p *WorkerPool) GetScheduler() *core.TaskScheduler {
	return p.scheduler
}

// Stats returns current observability data for this pool.
func (p *WorkerPool) Stats() core.PoolStats {
	return core.PoolStats{
		ID:          p.id,
		MaxWorkers:  p.cfg.MaxWorkers,
		LiveWorkers: p.LiveWorkerCount(),
		Queued:      p.scheduler.QueuedTaskCount(),
		Active:      p.scheduler.ActiveTaskCount(),
		Completed:   p.scheduler.CompletedTaskCount(),
		Canceled:    p.scheduler.CanceledTaskCount(),
		Rejected:    p.scheduler.RejectedTaskCount(),
		IdleTimeout: p.cfg.IdleTimeout,
		Running:     p.IsRunning(),
	}
}

// RecentTasks returns completed task execution records in newest-first order.
func (p *WorkerPool) RecentTasks(limit int) []core.TaskExecutionRecord {
	return p.history.Recent(limit)
}

func mergeRecent(limit int, sets ...[]core.TaskExecutionRecord) []core.TaskExecutionRecord {
	var out []core.TaskExecutionRecord
	for _, s := range sets {
		out = append(out, s...)
	}
	slices.SortStableFunc(out, func(a, b core.TaskExecutionRecord) int {
		return b.FinishedAt.Compare(a.FinishedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
