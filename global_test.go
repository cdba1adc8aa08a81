package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Swind/go-lane-dispatcher/core"
)

func resetGlobal(t *testing.T) {
	t.Helper()
	ShutdownGlobalDispatcher()
	t.Cleanup(ShutdownGlobalDispatcher)
}

// TestGetInstance_ReturnsSameDispatcher verifies the singleton is created once
// Given: No global dispatcher
// When: GetInstance is called concurrently from several goroutines
// Then: Every caller gets the same dispatcher with the default pool sizes
func TestGetInstance_ReturnsSameDispatcher(t *testing.T) {
	resetGlobal(t)

	const callers = 16
	got := make([]*Dispatcher, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = GetInstance()
		}()
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if got[i] != got[0] {
			t.Fatal("GetInstance returned different dispatchers")
		}
	}

	cfg := got[0].Config()
	if cfg.NormalPoolSize != DefaultNormalPoolSize || cfg.UrgentPoolSize != DefaultUrgentPoolSize || cfg.IdleTimeout != DefaultIdleTimeout {
		t.Errorf("global config = %+v, want defaults", cfg)
	}
}

// TestGetInstanceWithMainLoop_BindsLater verifies the rebind scenario on the singleton
// Given: A global dispatcher created without a main loop
// When: GetInstanceWithMainLoop is called with a loop, then with another loop
// Then: The first loop is bound without replacing the pools, the second call keeps the first loop
func TestGetInstanceWithMainLoop_BindsLater(t *testing.T) {
	resetGlobal(t)

	d := GetInstance()
	normal, urgent := d.NormalPool(), d.UrgentPool()

	_, err := d.ExecuteOnLane(func(ctx context.Context) {}, core.LaneMainQueue)
	if !errors.Is(err, ErrMainLoopRequired) {
		t.Fatalf("main queue before bind err = %v, want ErrMainLoopRequired", err)
	}

	loop := newTestMainLoop(t)
	if again := GetInstanceWithMainLoop(loop); again != d {
		t.Fatal("GetInstanceWithMainLoop created a new dispatcher")
	}
	if d.NormalPool() != normal || d.UrgentPool() != urgent {
		t.Fatal("binding replaced the pools")
	}
	if d.MainLoop() != core.MainLoop(loop) {
		t.Fatal("main loop was not bound")
	}

	other := newTestMainLoop(t)
	GetInstanceWithMainLoop(other)
	if d.MainLoop() != core.MainLoop(loop) {
		t.Fatal("a bound singleton was rebound")
	}

	ran := make(chan bool, 1)
	d.ExecuteOnLane(func(ctx context.Context) {
		ran <- loop.RunsTasksInCurrentSequence(ctx)
	}, core.LaneMainQueue)
	select {
	case ok := <-ran:
		if !ok {
			t.Fatal("main queue task ran off the bound loop")
		}
	case <-time.After(time.Second):
		t.Fatal("main queue task did not run")
	}
}

// TestGetInstanceWithMainLoop_CreatesBound verifies creation with a loop
func TestGetInstanceWithMainLoop_CreatesBound(t *testing.T) {
	resetGlobal(t)

	loop := newTestMainLoop(t)
	d := GetInstanceWithMainLoop(loop)
	if d.NeedsRebind() {
		t.Fatal("dispatcher created with a loop needs rebind")
	}
	if GetInstance() != d {
		t.Fatal("GetInstance returned a different dispatcher")
	}
}

// TestShutdownGlobalDispatcher_Recreates verifies a fresh dispatcher after shutdown
func TestShutdownGlobalDispatcher_Recreates(t *testing.T) {
	resetGlobal(t)

	first := GetInstance()
	ShutdownGlobalDispatcher()

	if _, err := first.Execute(func(ctx context.Context) {}); !errors.Is(err, ErrDispatcherClosed) {
		t.Errorf("old dispatcher err = %v, want ErrDispatcherClosed", err)
	}
	if second := GetInstance(); second == first {
		t.Fatal("GetInstance after shutdown returned the old dispatcher")
	}
	ShutdownGlobalDispatcher()
}

// TestGetInstanceWithMainLoop_NilRunnerKeepsRebind verifies a nil runner pointer
// does not satisfy the pending rebind
func TestGetInstanceWithMainLoop_NilRunnerKeepsRebind(t *testing.T) {
	resetGlobal(t)

	var runner *core.SingleThreadTaskRunner
	d := GetInstanceWithMainLoop(runner)
	if !d.NeedsRebind() {
		t.Fatal("nil runner was bound as the main loop")
	}

	loop := core.NewSingleThreadTaskRunnerWithConfig("main", quietSchedulerConfig())
	defer loop.Stop()
	if got := GetInstanceWithMainLoop(loop); got != d || got.MainLoop() != loop {
		t.Fatal("real loop was not bound after the nil runner")
	}
}
