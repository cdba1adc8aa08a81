package core

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// ErrSchedulerShutdown is returned when a task is posted after Shutdown.
var ErrSchedulerShutdown = errors.New("scheduler is shutting down")

// TaskScheduler is the FIFO work source behind a worker pool.
// Producers call Post; workers pull with GetWork.
type TaskScheduler struct {
	name        string
	queue       *FIFOTaskQueue
	signal      chan struct{}
	workerCount int

	metricActive    int32 // Executing in Worker
	metricCompleted int64
	metricCanceled  int64
	metricRejected  int64

	// Handlers and Metrics
	panicHandler        PanicHandler
	metrics             Metrics
	rejectedTaskHandler RejectedTaskHandler
	logger              Logger

	// Lifecycle
	shuttingDown int32 // atomic flag
}

func NewFIFOTaskScheduler(name string, workerCount int) *TaskScheduler {
	return NewFIFOTaskSchedulerWithConfig(name, workerCount, DefaultTaskSchedulerConfig())
}

func NewFIFOTaskSchedulerWithConfig(name string, workerCount int, config *TaskSchedulerConfig) *TaskScheduler {
	cfg := config.withDefaults()
	return &TaskScheduler{
		name:                name,
		queue:               NewFIFOTaskQueue(),
		signal:              make(chan struct{}, workerCount*2),
		workerCount:         workerCount,
		panicHandler:        cfg.PanicHandler,
		metrics:             cfg.Metrics,
		rejectedTaskHandler: cfg.RejectedTaskHandler,
		logger:              cfg.Logger,
	}
}

// Post queues task at the back and returns its cancellation token.
func (s *TaskScheduler) Post(task Task, lane Lane) (TaskID, error) {
	return s.PostNamed("", task, lane)
}

// PostNamed is Post with a display name used in execution records.
func (s *TaskScheduler) PostNamed(name string, task Task, lane Lane) (TaskID, error) {
	if atomic.LoadInt32(&s.shuttingDown) == 1 {
		atomic.AddInt64(&s.metricRejected, 1)
		s.rejectedTaskHandler.HandleRejectedTask(s.name, "shutting down")
		s.metrics.RecordTaskRejected(s.name, "shutting down")
		return TaskID{}, ErrSchedulerShutdown
	}

	id := GenerateTaskID()
	s.queue.PushItem(TaskItem{ID: id, Name: name, Task: task, Lane: lane})
	s.metrics.RecordQueueDepth(s.name, s.queue.Len())

	select {
	case s.signal <- struct{}{}:
	default:
		// Signal channel full, but task is already queued
		// This is not an error, just a optimization hint
	}
	return id, nil
}

// Remove drops a task that has not been picked up by a worker yet.
func (s *TaskScheduler) Remove(id TaskID) bool {
	item, ok := s.queue.Take(id)
	if !ok {
		return false
	}
	atomic.AddInt64(&s.metricCanceled, 1)
	s.metrics.RecordTaskCanceled(s.name, item.Lane)
	s.metrics.RecordQueueDepth(s.name, s.queue.Len())
	return true
}

// GetWork (Called by Worker) blocks until a task is available.
// It returns false when stopCh closes or when idleTimeout elapses without work;
// a non-positive idleTimeout waits forever.
func (s *TaskScheduler) GetWork(stopCh <-chan struct{}, idleTimeout time.Duration) (TaskItem, bool) {
	var idle <-chan time.Time
	if idleTimeout > 0 {
		timer := time.NewTimer(idleTimeout)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		if item, ok := s.queue.Pop(); ok {
			s.metrics.RecordQueueDepth(s.name, s.queue.Len())
			return item, true
		}

		select {
		case <-s.signal:
			continue
		case <-idle:
			return TaskItem{}, false
		case <-stopCh:
			return TaskItem{}, false
		}
	}
}

// Shutdown rejects new tasks and drops everything still queued.
func (s *TaskScheduler) Shutdown() {
	atomic.StoreInt32(&s.shuttingDown, 1)
	s.queue.Clear()
}

// ShutdownGraceful waits for all queued and active tasks to complete
// Returns error if timeout is exceeded before tasks complete
func (s *TaskScheduler) ShutdownGraceful(timeout time.Duration) error {
	atomic.StoreInt32(&s.shuttingDown, 1)

	deadline := time.After(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if s.QueuedTaskCount() == 0 && s.ActiveTaskCount() == 0 {
			return nil
		}
		select {
		case <-deadline:
			// Timeout exceeded, force clear remaining queues
			s.queue.Clear()
			return fmt.Errorf("shutdown graceful timeout after %v, forced clearing", timeout)
		case <-ticker.C:
		}
	}
}

func (s *TaskScheduler) IsShuttingDown() bool {
	return atomic.LoadInt32(&s.shuttingDown) == 1
}

// Metrics
func (s *TaskScheduler) Name() string              { return s.name }
func (s *TaskScheduler) WorkerCount() int          { return s.workerCount }
func (s *TaskScheduler) QueuedTaskCount() int      { return s.queue.Len() }
func (s *TaskScheduler) ActiveTaskCount() int      { return int(atomic.LoadInt32(&s.metricActive)) }
func (s *TaskScheduler) CompletedTaskCount() int64 { return atomic.LoadInt64(&s.metricCompleted) }
func (s *TaskScheduler) CanceledTaskCount() int64  { return atomic.LoadInt64(&s.metricCanceled) }
func (s *TaskScheduler) RejectedTaskCount() int64  { return atomic.LoadInt64(&s.metricRejected) }

func (s *TaskScheduler) OnTaskStart() {
	atomic.AddInt32(&s.metricActive, 1)
}

func (s *TaskScheduler) OnTaskEnd() {
	atomic.AddInt32(&s.metricActive, -1)
	atomic.AddInt64(&s.metricCompleted, 1)
}

// GetPanicHandler returns the panic handler for this scheduler
func (s *TaskScheduler) GetPanicHandler() PanicHandler {
	return s.panicHandler
}

// GetMetrics returns the metrics collector for this scheduler
func (s *TaskScheduler) GetMetrics() Metrics {
	return s.metrics
}

// GetLogger returns the logger for this scheduler
func (s *TaskScheduler) GetLogger() Logger {
	return s.logger
}
