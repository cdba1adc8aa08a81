package core

import (
	"sync"
)

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

type TaskItem struct {
	ID   TaskID
	Name string
	Task Task
	Lane Lane
}

// TaskQueue defines the interface for the pending-task queues used by pools
// and the main loop.
type TaskQueue interface {
	Push(t Task, lane Lane) TaskID
	PushFront(t Task, lane Lane) TaskID
	Pop() (TaskItem, bool)
	Remove(id TaskID) bool
	Len() int
	IsEmpty() bool
	MaybeCompact()
	Clear() // Clear all tasks from the queue
}

// =============================================================================
// FIFOTaskQueue: slice-backed FIFO with front insertion and removal by ID
// =============================================================================

type FIFOTaskQueue struct {
	mu    sync.Mutex
	tasks []TaskItem
}

func NewFIFOTaskQueue() *FIFOTaskQueue {
	return &FIFOTaskQueue{
		tasks: make([]TaskItem, 0, defaultQueueCap),
	}
}

// Push appends t and returns the ID assigned to it.
func (q *FIFOTaskQueue) Push(t Task, lane Lane) TaskID {
	id := GenerateTaskID()
	q.PushItem(TaskItem{ID: id, Task: t, Lane: lane})
	return id
}

// PushItem appends an item that already carries an ID.
func (q *FIFOTaskQueue) PushItem(item TaskItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, item)
}

// PushFront inserts t ahead of every queued item.
func (q *FIFOTaskQueue) PushFront(t Task, lane Lane) TaskID {
	id := GenerateTaskID()

	q.mu.Lock()
	defer q.mu.Unlock()

	q.tasks = append(q.tasks, TaskItem{})
	copy(q.tasks[1:], q.tasks)
	q.tasks[0] = TaskItem{ID: id, Task: t, Lane: lane}
	return id
}

func (q *FIFOTaskQueue) Pop() (TaskItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return TaskItem{}, false
	}

	item := q.tasks[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.tasks[0] = TaskItem{}
	q.tasks = q.tasks[1:]
	q.maybeCompactLocked()

	return item, true
}

// Remove drops the queued item with the given ID.
// It returns false if no queued item has that ID.
func (q *FIFOTaskQueue) Remove(id TaskID) bool {
	_, ok := q.Take(id)
	return ok
}

// Take removes and returns the queued item with the given ID.
func (q *FIFOTaskQueue) Take(id TaskID) (TaskItem, bool) {
	if id.IsZero() {
		return TaskItem{}, false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.tasks {
		if q.tasks[i].ID != id {
			continue
		}
		item := q.tasks[i]
		copy(q.tasks[i:], q.tasks[i+1:])
		q.tasks[len(q.tasks)-1] = TaskItem{}
		q.tasks = q.tasks[:len(q.tasks)-1]
		q.maybeCompactLocked()
		return item, true
	}
	return TaskItem{}, false
}

func (q *FIFOTaskQueue) MaybeCompact() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.maybeCompactLocked()
}

func (q *FIFOTaskQueue) maybeCompactLocked() {
	n := len(q.tasks)
	c := cap(q.tasks)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.tasks = make([]TaskItem, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]TaskItem, n, newCap)
	copy(newSlice, q.tasks)
	q.tasks = newSlice
}

func (q *FIFOTaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *FIFOTaskQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear removes all tasks from the queue and releases references
func (q *FIFOTaskQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = make([]TaskItem, 0, defaultQueueCap)
}
