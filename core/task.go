package core

import (
	"context"

	"github.com/google/uuid"
)

// Task is the unit of work (Closure)
type Task func(ctx context.Context)

// =============================================================================
// TaskID: Opaque token handed out at submission time
// =============================================================================

// TaskID identifies a submitted task. It is the cancellation token returned by
// the dispatcher; the zero value never matches a queued task.
type TaskID uuid.UUID

// GenerateTaskID returns a new random TaskID.
func GenerateTaskID() TaskID {
	return TaskID(uuid.New())
}

// IsZero reports whether id is the zero TaskID.
func (id TaskID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id TaskID) String() string {
	return uuid.UUID(id).String()
}

// =============================================================================
// Lane: Routing tag attached to a task at submission
// =============================================================================

type Lane int

const (
	// LaneNormal: Default lane, served by the normal pool
	LaneNormal Lane = iota

	// LaneUrgent: Served by the small urgent pool whose workers run at a
	// raised OS thread priority. Use it for work the UI is actively waiting on.
	LaneUrgent

	// LaneMainQueue: Appended to the back of the main loop
	LaneMainQueue

	// LaneMainQueueFront: Inserted at the front of the main loop.
	// It runs before everything currently queued there, not immediately.
	LaneMainQueueFront
)

// Lanes only select a destination. Tasks within a lane are never reordered.
func (l Lane) String() string {
	switch l {
	case LaneNormal:
		return "normal"
	case LaneUrgent:
		return "urgent"
	case LaneMainQueue:
		return "main_queue"
	case LaneMainQueueFront:
		return "main_queue_front"
	default:
		return "unknown"
	}
}

// IsValid reports whether l is one of the four defined lanes.
func (l Lane) IsValid() bool {
	return l >= LaneNormal && l <= LaneMainQueueFront
}

// IsMainLoop reports whether l targets the main loop rather than a pool.
func (l Lane) IsMainLoop() bool {
	return l == LaneMainQueue || l == LaneMainQueueFront
}

// =============================================================================
// TaskRunner / MainLoop: Task submission interfaces
// =============================================================================

// TaskRunner accepts tasks for sequential execution.
type TaskRunner interface {
	PostTask(task Task)
}

// MainLoop is the coordination context the dispatcher posts to.
// It is a single-threaded FIFO event queue that also supports front insertion.
type MainLoop interface {
	TaskRunner

	// PostTaskAtFront queues task ahead of everything currently pending.
	PostTaskAtFront(task Task)

	// RunsTasksInCurrentSequence reports whether ctx belongs to a task that is
	// running on this loop.
	RunsTasksInCurrentSequence(ctx context.Context) bool
}

// =============================================================================
// Context Helper
// =============================================================================
type taskRunnerKeyType struct{}

var taskRunnerKey taskRunnerKeyType

func GetCurrentTaskRunner(ctx context.Context) TaskRunner {
	if v := ctx.Value(taskRunnerKey); v != nil {
		return v.(TaskRunner)
	}
	return nil
}

// WithTaskRunner returns a context that reports runner as the current runner.
func WithTaskRunner(ctx context.Context, runner TaskRunner) context.Context {
	return context.WithValue(ctx, taskRunnerKey, runner)
}
