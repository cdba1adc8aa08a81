package dispatcher

import "github.com/Swind/go-lane-dispatcher/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the dispatcher package for most use cases.

// Task is the unit of work (Closure)
type Task = core.Task

// TaskID is the cancellation token returned on submission
type TaskID = core.TaskID

// Lane selects where a task runs
type Lane = core.Lane

// MainLoop is the coordination context callbacks and main-queue work run on
type MainLoop = core.MainLoop

// SingleThreadTaskRunner is the reference MainLoop with a dedicated goroutine
type SingleThreadTaskRunner = core.SingleThreadTaskRunner

// Lane constants
const (
	LaneNormal         Lane = core.LaneNormal
	LaneUrgent         Lane = core.LaneUrgent
	LaneMainQueue      Lane = core.LaneMainQueue
	LaneMainQueueFront Lane = core.LaneMainQueueFront
)

// NewMainLoop creates and starts a SingleThreadTaskRunner to bind as the main loop.
func NewMainLoop() *SingleThreadTaskRunner {
	return core.NewSingleThreadTaskRunner()
}

// GetCurrentTaskRunner retrieves the current TaskRunner from context
var GetCurrentTaskRunner = core.GetCurrentTaskRunner
