package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Swind/go-lane-dispatcher/core"
)

// Dispatcher routes tasks to a lane: the normal pool, the urgent pool, or the
// back or front of the main loop. It also delivers result callbacks on the
// main loop (see DeliverSuccess and DeliverError).
//
// Lanes only select where a task runs. Tasks in the same lane run in FIFO
// admission order and never preempt each other.
type Dispatcher struct {
	cfg    Config
	logger core.Logger

	normal *WorkerPool
	urgent *WorkerPool

	// mainLoop is nil until a main loop is bound.
	mainLoopMu sync.RWMutex
	mainLoop   core.MainLoop

	closed atomic.Bool
}

// New creates a dispatcher with started pools. loop may be nil and bound later
// with BindMainLoop.
func New(cfg Config, loop core.MainLoop) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loop = boundLoop(loop)

	sc := cfg.schedulerConfig()
	d := &Dispatcher{
		cfg:    cfg,
		logger: cfg.logger(),
		normal: NewWorkerPool("normal", PoolConfig{
			MaxWorkers:  cfg.NormalPoolSize,
			IdleTimeout: cfg.IdleTimeout,
			Scheduler:   sc,
		}),
		urgent: NewWorkerPool("urgent", PoolConfig{
			MaxWorkers:          cfg.UrgentPoolSize,
			IdleTimeout:         cfg.IdleTimeout,
			ThreadPriorityBoost: cfg.UrgentThreadPriorityBoost,
			Scheduler:           sc,
		}),
		mainLoop: loop,
	}
	d.normal.Start(context.Background())
	d.urgent.Start(context.Background())

	d.logger.Debug("dispatcher created",
		core.F("normal_pool_size", cfg.NormalPoolSize),
		core.F("urgent_pool_size", cfg.UrgentPoolSize),
		core.F("idle_timeout", cfg.IdleTimeout),
		core.F("main_loop_bound", loop != nil))
	return d, nil
}

// BindMainLoop attaches loop, replacing any previously bound main loop.
// The pools are left untouched. A nil loop, including a nil
// *core.SingleThreadTaskRunner, is ignored.
func (d *Dispatcher) BindMainLoop(loop core.MainLoop) {
	loop = boundLoop(loop)
	if loop == nil {
		return
	}
	d.mainLoopMu.Lock()
	d.mainLoop = loop
	d.mainLoopMu.Unlock()
	d.logger.Debug("main loop bound")
}

// boundLoop maps a nil *core.SingleThreadTaskRunner to a nil MainLoop.
func boundLoop(loop core.MainLoop) core.MainLoop {
	if runner, ok := loop.(*core.SingleThreadTaskRunner); ok && runner == nil {
		return nil
	}
	return loop
}

// MainLoop returns the bound main loop, or nil.
func (d *Dispatcher) MainLoop() core.MainLoop {
	d.mainLoopMu.RLock()
	defer d.mainLoopMu.RUnlock()
	return d.mainLoop
}

// NeedsRebind reports whether the dispatcher still lacks a main loop.
func (d *Dispatcher) NeedsRebind() bool {
	return d.MainLoop() == nil
}

// Config returns the configuration the dispatcher was created with.
func (d *Dispatcher) Config() Config {
	return d.cfg
}

// Execute runs task on LaneNormal.
func (d *Dispatcher) Execute(task core.Task) (core.TaskID, error) {
	return d.ExecuteOnLane(task, core.LaneNormal)
}

// ExecuteOnLane submits task to the destination selected by lane and returns
// immediately. The returned TaskID can be passed to Cancel; for the two
// main-loop lanes it is never cancelable.
//
// LaneMainQueue and LaneMainQueueFront fail with ErrMainLoopRequired when no
// main loop is bound.
func (d *Dispatcher) ExecuteOnLane(task core.Task, lane core.Lane) (core.TaskID, error) {
	return d.ExecuteNamed("", task, lane)
}

// ExecuteNamed is ExecuteOnLane with a display name for pool execution records.
func (d *Dispatcher) ExecuteNamed(name string, task core.Task, lane core.Lane) (core.TaskID, error) {
	if task == nil {
		return core.TaskID{}, ErrNilTask
	}
	if d.closed.Load() {
		return core.TaskID{}, ErrDispatcherClosed
	}

	switch lane {
	case core.LaneMainQueueFront:
		loop := d.MainLoop()
		if loop == nil {
			return core.TaskID{}, fmt.Errorf("execute on %s: %w", lane, ErrMainLoopRequired)
		}
		loop.PostTaskAtFront(task)
		return core.GenerateTaskID(), nil
	case core.LaneMainQueue:
		loop := d.MainLoop()
		if loop == nil {
			return core.TaskID{}, fmt.Errorf("execute on %s: %w", lane, ErrMainLoopRequired)
		}
		loop.PostTask(task)
		return core.GenerateTaskID(), nil
	case core.LaneUrgent:
		return d.postToPool(d.urgent, name, task, lane)
	case core.LaneNormal:
		return d.postToPool(d.normal, name, task, lane)
	default:
		return core.TaskID{}, fmt.Errorf("%w: %d", ErrUnknownLane, int(lane))
	}
}

// postToPool reports a pool that stopped after the closed check as
// ErrDispatcherClosed.
func (d *Dispatcher) postToPool(p *WorkerPool, name string, task core.Task, lane core.Lane) (core.TaskID, error) {
	id, err := p.PostNamed(name, task, lane)
	if errors.Is(err, core.ErrSchedulerShutdown) {
		return core.TaskID{}, ErrDispatcherClosed
	}
	return id, err
}

// Cancel removes a pool task that has not started yet. It reports whether a
// task was removed; false means it already started, finished, was submitted
// to a main-loop lane, or is unknown. A running task is never interrupted.
func (d *Dispatcher) Cancel(id core.TaskID) bool {
	if d.normal.Remove(id) {
		return true
	}
	return d.urgent.Remove(id)
}

// NormalPool returns the pool serving LaneNormal.
func (d *Dispatcher) NormalPool() *WorkerPool {
	return d.normal
}

// UrgentPool returns the pool serving LaneUrgent.
func (d *Dispatcher) UrgentPool() *WorkerPool {
	return d.urgent
}

// Stats is a snapshot of both pools and the main loop binding.
type Stats struct {
	Normal        core.PoolStats
	Urgent        core.PoolStats
	MainLoopBound bool
	Closed        bool
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Normal:        d.normal.Stats(),
		Urgent:        d.urgent.Stats(),
		MainLoopBound: !d.NeedsRebind(),
		Closed:        d.closed.Load(),
	}
}

// RecentTasks returns pool execution records of both pools, newest first.
func (d *Dispatcher) RecentTasks(limit int) []core.TaskExecutionRecord {
	return mergeRecent(limit, d.normal.RecentTasks(limit), d.urgent.RecentTasks(limit))
}

// Shutdown rejects new work, drops queued pool tasks and waits for running
// pool tasks. The main loop is owned by the caller and keeps running.
func (d *Dispatcher) Shutdown() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	d.normal.Stop()
	d.urgent.Stop()
	d.logger.Debug("dispatcher shut down")
}

// ShutdownGraceful is Shutdown but lets queued pool tasks finish first,
// giving up after timeout.
func (d *Dispatcher) ShutdownGraceful(timeout time.Duration) error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}

	var g errgroup.Group
	for _, p := range []*WorkerPool{d.normal, d.urgent} {
		g.Go(func() error {
			return p.StopGraceful(timeout)
		})
	}
	return g.Wait()
}
