package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	dispatcher "github.com/Swind/go-lane-dispatcher"
	"github.com/Swind/go-lane-dispatcher/core"
)

var demoTimeout time.Duration

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the lane scenarios and report each outcome",
	Long: `Run a fixed set of scenarios against a fresh dispatcher:

  normal-concurrency  six 50ms normal tasks, at most NormalPoolSize at once
  urgent-cancel       an urgent task canceled while both urgent workers are busy
  front-insert        a front-inserted main loop task overtakes queued ones
  callback            a background result delivered on the main loop
  rebind              main queue submission fails until a main loop is bound`,
	RunE: func(cmd *cobra.Command, args []string) error {
		scenarios := []struct {
			name string
			run  func(ctx context.Context) (string, error)
		}{
			{"normal-concurrency", demoNormalConcurrency},
			{"urgent-cancel", demoUrgentCancel},
			{"front-insert", demoFrontInsert},
			{"callback", demoCallback},
			{"rebind", demoRebind},
		}

		failed := 0
		for _, sc := range scenarios {
			ctx, cancel := context.WithTimeout(cmd.Context(), demoTimeout)
			detail, err := sc.run(ctx)
			cancel()
			if err != nil {
				failed++
				printStatus("✗", fmt.Sprintf("%s: %v", sc.name, err), color.FgRed)
				continue
			}
			printStatus("✓", fmt.Sprintf("%s: %s", sc.name, detail), color.FgGreen)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d scenarios failed", failed, len(scenarios))
		}
		return nil
	},
}

func init() {
	demoCmd.Flags().DurationVar(&demoTimeout, "timeout", 5*time.Second, "Per-scenario timeout")
}

func demoNormalConcurrency(ctx context.Context) (string, error) {
	d, loop, err := newDispatcher()
	if err != nil {
		return "", err
	}
	defer loop.Stop()
	defer d.Shutdown()

	const tasks = 6
	var (
		running atomic.Int32
		peak    atomic.Int32
		wg      sync.WaitGroup
	)
	wg.Add(tasks)
	for i := range tasks {
		_, err := d.ExecuteNamed(fmt.Sprintf("sleep-%d", i), func(ctx context.Context) {
			defer wg.Done()
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			running.Add(-1)
		}, core.LaneNormal)
		if err != nil {
			return "", err
		}
	}

	if err := waitGroup(ctx, &wg); err != nil {
		return "", err
	}
	if got, limit := int(peak.Load()), cfg.NormalPoolSize; got > limit {
		return "", fmt.Errorf("peak concurrency %d exceeds pool size %d", got, limit)
	}
	return fmt.Sprintf("%d tasks done, peak concurrency %d", tasks, peak.Load()), nil
}

func demoUrgentCancel(ctx context.Context) (string, error) {
	d, loop, err := newDispatcher()
	if err != nil {
		return "", err
	}
	defer loop.Stop()
	defer d.Shutdown()

	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(cfg.UrgentPoolSize)
	for range cfg.UrgentPoolSize {
		if _, err := d.ExecuteOnLane(func(ctx context.Context) {
			started.Done()
			<-release
		}, core.LaneUrgent); err != nil {
			close(release)
			return "", err
		}
	}
	if err := waitGroup(ctx, &started); err != nil {
		close(release)
		return "", err
	}

	var ran atomic.Bool
	id, err := d.ExecuteOnLane(func(ctx context.Context) { ran.Store(true) }, core.LaneUrgent)
	if err != nil {
		close(release)
		return "", err
	}
	canceled := d.Cancel(id)
	close(release)

	if err := d.ShutdownGraceful(demoTimeout); err != nil {
		return "", err
	}
	if !canceled {
		return "", errors.New("cancel of a queued urgent task returned false")
	}
	if ran.Load() {
		return "", errors.New("canceled task ran")
	}
	return fmt.Sprintf("task %s canceled before pickup", id), nil
}

func demoFrontInsert(ctx context.Context) (string, error) {
	d, loop, err := newDispatcher()
	if err != nil {
		return "", err
	}
	defer loop.Stop()
	defer d.Shutdown()

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) core.Task {
		return func(ctx context.Context) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	gate := make(chan struct{})
	entered := make(chan struct{})
	if _, err := d.ExecuteOnLane(func(ctx context.Context) {
		close(entered)
		<-gate
	}, core.LaneMainQueue); err != nil {
		return "", err
	}
	select {
	case <-entered:
	case <-ctx.Done():
		close(gate)
		return "", ctx.Err()
	}

	for _, step := range []struct {
		name string
		lane core.Lane
	}{
		{"back-1", core.LaneMainQueue},
		{"back-2", core.LaneMainQueue},
		{"front", core.LaneMainQueueFront},
	} {
		if _, err := d.ExecuteOnLane(record(step.name), step.lane); err != nil {
			close(gate)
			return "", err
		}
	}
	close(gate)

	if err := loop.WaitIdle(ctx); err != nil {
		return "", err
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "front" {
		return "", fmt.Errorf("unexpected order %v", order)
	}
	return fmt.Sprintf("order %v", order), nil
}

func demoCallback(ctx context.Context) (string, error) {
	d, loop, err := newDispatcher()
	if err != nil {
		return "", err
	}
	defer loop.Stop()
	defer d.Shutdown()

	type outcome struct {
		value  int
		failed bool
	}
	done := make(chan outcome, 1)

	cb := dispatcher.CallbackFuncs[int]{
		Success: func(v int) { done <- outcome{value: v} },
		Error:   func(err *dispatcher.TypedError) { done <- outcome{failed: true} },
	}
	if _, err := dispatcher.ExecuteWithCallback(d, core.LaneNormal, func(ctx context.Context) (int, *dispatcher.TypedError) {
		return 6 * 7, nil
	}, cb); err != nil {
		return "", err
	}

	select {
	case got := <-done:
		if got.failed {
			return "", errors.New("OnError delivered for a successful task")
		}
		return fmt.Sprintf("OnSuccess(%d) delivered on the main loop", got.value), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func demoRebind(ctx context.Context) (string, error) {
	d, err := dispatcher.New(cfg, nil)
	if err != nil {
		return "", err
	}
	defer d.Shutdown()

	_, err = d.ExecuteOnLane(func(ctx context.Context) {}, core.LaneMainQueue)
	if !errors.Is(err, dispatcher.ErrMainLoopRequired) {
		return "", fmt.Errorf("unbound main queue returned %v, want ErrMainLoopRequired", err)
	}

	loop := core.NewSingleThreadTaskRunnerWithConfig("main", &core.TaskSchedulerConfig{Logger: cfg.Logger})
	defer loop.Stop()
	d.BindMainLoop(loop)

	onLoop := make(chan bool, 1)
	if _, err := d.ExecuteOnLane(func(ctx context.Context) {
		onLoop <- loop.RunsTasksInCurrentSequence(ctx)
	}, core.LaneMainQueue); err != nil {
		return "", err
	}

	select {
	case ok := <-onLoop:
		if !ok {
			return "", errors.New("main queue task ran outside the main loop")
		}
		return "rejected before bind, ran on the main loop after bind", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
