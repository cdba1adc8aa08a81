package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestFIFOTaskScheduler_ExecutionOrder tests FIFO execution order (ignores lane)
// Main test items:
// 1. Tasks execute in insertion order
// 2. The lane tag does not reorder tasks
// 3. Each popped item carries the ID returned by Post
func TestFIFOTaskScheduler_ExecutionOrder(t *testing.T) {
	s := NewFIFOTaskScheduler("normal", 1)

	results := make(chan string, 10)
	makeTask := func(cat string) Task {
		return func(ctx context.Context) {
			results <- cat
		}
	}

	var ids []TaskID
	for _, step := range []struct {
		name string
		lane Lane
	}{
		{"A", LaneNormal},
		{"B", LaneUrgent},
		{"C", LaneNormal},
	} {
		id, err := s.Post(makeTask(step.name), step.lane)
		if err != nil {
			t.Fatalf("Post(%s) failed: %v", step.name, err)
		}
		ids = append(ids, id)
	}

	stopCh := make(chan struct{})
	for i, exp := range []string{"A", "B", "C"} {
		item, ok := s.GetWork(stopCh, 0)
		if !ok {
			t.Fatalf("Step %d: expected task but got none", i)
		}
		if item.ID != ids[i] {
			t.Errorf("Step %d: ID = %s, want %s", i, item.ID, ids[i])
		}
		item.Task(context.Background())

		if got := <-results; got != exp {
			t.Errorf("Step %d: Expected %s, got %s", i, exp, got)
		}
	}
}

// TestTaskScheduler_GetWork_IdleTimeout tests the idle expiry of GetWork
// Main test items:
// 1. GetWork returns false after the idle timeout with an empty queue
// 2. It returns false promptly when stopCh closes
func TestTaskScheduler_GetWork_IdleTimeout(t *testing.T) {
	s := NewFIFOTaskScheduler("normal", 1)

	start := time.Now()
	if _, ok := s.GetWork(nil, 30*time.Millisecond); ok {
		t.Fatal("GetWork on empty queue = true, want false")
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("GetWork returned after %v, want at least the idle timeout", elapsed)
	}

	stopCh := make(chan struct{})
	close(stopCh)
	if _, ok := s.GetWork(stopCh, time.Hour); ok {
		t.Fatal("GetWork with closed stopCh = true, want false")
	}
}

// TestTaskScheduler_GetWork_WakesOnPost tests that a waiting worker picks up new work
func TestTaskScheduler_GetWork_WakesOnPost(t *testing.T) {
	s := NewFIFOTaskScheduler("normal", 1)

	got := make(chan TaskItem, 1)
	go func() {
		item, _ := s.GetWork(nil, time.Second)
		got <- item
	}()

	time.Sleep(10 * time.Millisecond)
	id, err := s.Post(func(ctx context.Context) {}, LaneNormal)
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	select {
	case item := <-got:
		if item.ID != id {
			t.Fatalf("GetWork returned %s, want %s", item.ID, id)
		}
	case <-time.After(time.Second):
		t.Fatal("GetWork did not wake up")
	}
}

// TestTaskScheduler_Remove tests cancellation of a queued task
// Main test items:
// 1. Remove of a queued task returns true and bumps the canceled counter
// 2. Metrics receive the canceled lane
// 3. Remove of an already popped task returns false
func TestTaskScheduler_Remove(t *testing.T) {
	metrics := NewTestMetrics()
	s := NewFIFOTaskSchedulerWithConfig("urgent", 2, &TaskSchedulerConfig{Metrics: metrics})
	noop := func(ctx context.Context) {}

	first, _ := s.Post(noop, LaneUrgent)
	second, _ := s.Post(noop, LaneUrgent)

	if !s.Remove(second) {
		t.Fatal("Remove(queued) = false, want true")
	}
	if s.CanceledTaskCount() != 1 {
		t.Errorf("CanceledTaskCount = %d, want 1", s.CanceledTaskCount())
	}
	cancels := metrics.GetTaskCancels()
	if len(cancels) != 1 || cancels[0].RunnerName != "urgent" || cancels[0].Lane != LaneUrgent {
		t.Errorf("cancel metrics = %+v, want one urgent cancel", cancels)
	}

	if _, ok := s.GetWork(nil, time.Millisecond); !ok {
		t.Fatal("GetWork = false, want the first task")
	}
	if s.Remove(first) {
		t.Error("Remove(started) = true, want false")
	}
	if s.QueuedTaskCount() != 0 {
		t.Errorf("QueuedTaskCount = %d, want 0", s.QueuedTaskCount())
	}
}

// TestTaskScheduler_RejectedTask tests posting after shutdown
// Main test items:
// 1. Post returns ErrSchedulerShutdown
// 2. The rejection handler and metrics are called with "shutting down"
func TestTaskScheduler_RejectedTask(t *testing.T) {
	metrics := NewTestMetrics()
	rejectedHandler := NewTestRejectedTaskHandler()
	s := NewFIFOTaskSchedulerWithConfig("normal", 2, &TaskSchedulerConfig{
		Metrics:             metrics,
		RejectedTaskHandler: rejectedHandler,
	})

	s.Shutdown()

	_, err := s.Post(func(_ context.Context) {
		t.Error("Task should not be executed after shutdown")
	}, LaneNormal)
	if !errors.Is(err, ErrSchedulerShutdown) {
		t.Fatalf("Post after shutdown err = %v, want ErrSchedulerShutdown", err)
	}

	if rejectedHandler.Count() != 1 || rejectedHandler.GetRejections()[0].Reason != "shutting down" {
		t.Errorf("rejections = %+v, want one 'shutting down'", rejectedHandler.GetRejections())
	}
	if r := metrics.GetTaskRejections(); len(r) != 1 || r[0].Reason != "shutting down" {
		t.Errorf("rejection metrics = %+v, want one 'shutting down'", r)
	}
	if s.RejectedTaskCount() != 1 {
		t.Errorf("RejectedTaskCount = %d, want 1", s.RejectedTaskCount())
	}
}

// TestTaskScheduler_Counters tests the start/end bookkeeping
func TestTaskScheduler_Counters(t *testing.T) {
	s := NewFIFOTaskScheduler("normal", 4)

	s.OnTaskStart()
	s.OnTaskStart()
	if s.ActiveTaskCount() != 2 {
		t.Fatalf("ActiveTaskCount = %d, want 2", s.ActiveTaskCount())
	}
	s.OnTaskEnd()
	if s.ActiveTaskCount() != 1 || s.CompletedTaskCount() != 1 {
		t.Fatalf("active/completed = %d/%d, want 1/1", s.ActiveTaskCount(), s.CompletedTaskCount())
	}
	if s.Name() != "normal" || s.WorkerCount() != 4 {
		t.Errorf("Name/WorkerCount = %s/%d, want normal/4", s.Name(), s.WorkerCount())
	}
}

// =============================================================================
// Graceful Shutdown Tests
// =============================================================================

// TestTaskScheduler_ShutdownGraceful_EmptyQueue tests graceful shutdown with no pending tasks
// Main test items:
// 1. ShutdownGraceful completes immediately when queue is empty
// 2. New tasks are rejected after graceful shutdown
func TestTaskScheduler_ShutdownGraceful_EmptyQueue(t *testing.T) {
	s := NewFIFOTaskScheduler("normal", 2)

	if err := s.ShutdownGraceful(1 * time.Second); err != nil {
		t.Fatalf("ShutdownGraceful failed: %v", err)
	}

	if _, err := s.Post(func(ctx context.Context) {}, LaneNormal); err == nil {
		t.Error("ShutdownGraceful should reject new tasks")
	}
	if !s.IsShuttingDown() {
		t.Error("IsShuttingDown = false, want true")
	}
}

// TestTaskScheduler_ShutdownGraceful_WithActiveTasks tests graceful shutdown with active tasks
// Main test items:
// 1. ShutdownGraceful waits for active tasks to complete
// 2. Returns nil when all active tasks finish
func TestTaskScheduler_ShutdownGraceful_WithActiveTasks(t *testing.T) {
	s := NewFIFOTaskScheduler("normal", 2)

	// Simulate tasks that have already been picked up by workers
	for range 3 {
		s.OnTaskStart()
	}

	go func() {
		for range 3 {
			time.Sleep(20 * time.Millisecond)
			s.OnTaskEnd()
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.ShutdownGraceful(1 * time.Second)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("ShutdownGraceful failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("ShutdownGraceful timed out")
	}

	if s.ActiveTaskCount() != 0 {
		t.Errorf("Expected 0 active tasks after shutdown, got %d", s.ActiveTaskCount())
	}
}

// TestTaskScheduler_ShutdownGraceful_Timeout tests graceful shutdown timeout behavior
// Main test items:
// 1. ShutdownGraceful returns error when timeout occurs
// 2. Queue is cleared even when timeout happens
func TestTaskScheduler_ShutdownGraceful_Timeout(t *testing.T) {
	s := NewFIFOTaskScheduler("normal", 1)
	s.Post(func(ctx context.Context) {}, LaneNormal)

	// A task that never completes
	s.OnTaskStart()

	if err := s.ShutdownGraceful(50 * time.Millisecond); err == nil {
		t.Error("Expected timeout error, got nil")
	}
	if s.QueuedTaskCount() != 0 {
		t.Errorf("Expected queue to be cleared after timeout, got %d", s.QueuedTaskCount())
	}
}

// TestTaskScheduler_ShutdownClearsQueue tests that immediate shutdown drops queued work
func TestTaskScheduler_ShutdownClearsQueue(t *testing.T) {
	s := NewFIFOTaskScheduler("normal", 1)
	s.Post(func(ctx context.Context) {}, LaneNormal)
	s.Post(func(ctx context.Context) {}, LaneNormal)

	s.Shutdown()

	if s.QueuedTaskCount() != 0 {
		t.Errorf("QueuedTaskCount after Shutdown = %d, want 0", s.QueuedTaskCount())
	}
}
