package prometheus

import (
	"context"
	"testing"
	"time"

	dispatcher "github.com/Swind/go-lane-dispatcher"
	"github.com/Swind/go-lane-dispatcher/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type runnerStub struct {
	stats core.RunnerStats
}

func (s runnerStub) Stats() core.RunnerStats { return s.stats }

type poolStub struct {
	stats core.PoolStats
}

func (s poolStub) Stats() core.PoolStats { return s.stats }

func TestSnapshotPoller_CollectsRunnerAndPoolStats(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.AddRunner("main", runnerStub{stats: core.RunnerStats{
		Type:     "single_thread",
		Pending:  3,
		Running:  1,
		Rejected: 2,
		Closed:   true,
	}})
	poller.AddPool("normal", poolStub{stats: core.PoolStats{
		Queued:      4,
		Active:      2,
		LiveWorkers: 3,
		MaxWorkers:  4,
		Completed:   9,
		Canceled:    1,
		Running:     true,
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	assertEventually(t, 2*time.Second, func() bool {
		pending := testutil.ToFloat64(poller.runnerPending.WithLabelValues("main", "single_thread"))
		active := testutil.ToFloat64(poller.poolActive.WithLabelValues("normal"))
		return pending == 3 && active == 2
	})

	if got := testutil.ToFloat64(poller.runnerClosed.WithLabelValues("main", "single_thread")); got != 1 {
		t.Fatalf("runner closed gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(poller.poolRunning.WithLabelValues("normal")); got != 1 {
		t.Fatalf("pool running gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(poller.poolLiveWorkers.WithLabelValues("normal")); got != 3 {
		t.Fatalf("pool live workers gauge = %v, want 3", got)
	}
	if got := testutil.ToFloat64(poller.poolMaxWorkers.WithLabelValues("normal")); got != 4 {
		t.Fatalf("pool max workers gauge = %v, want 4", got)
	}
	if got := testutil.ToFloat64(poller.poolCanceled.WithLabelValues("normal")); got != 1 {
		t.Fatalf("pool canceled gauge = %v, want 1", got)
	}
}

func TestSnapshotPoller_AddDispatcher(t *testing.T) {
	loop := core.NewSingleThreadTaskRunnerWithConfig("ui", nil)
	defer loop.Stop()

	d, err := dispatcher.New(dispatcher.DefaultConfig(), loop)
	if err != nil {
		t.Fatalf("dispatcher.New failed: %v", err)
	}
	defer d.Shutdown()

	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}
	poller.AddDispatcher(d)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	assertEventually(t, 2*time.Second, func() bool {
		normalMax := testutil.ToFloat64(poller.poolMaxWorkers.WithLabelValues("normal"))
		urgentMax := testutil.ToFloat64(poller.poolMaxWorkers.WithLabelValues("urgent"))
		return normalMax == 4 && urgentMax == 2
	})

	if got := testutil.ToFloat64(poller.runnerClosed.WithLabelValues("ui", "single_thread")); got != 0 {
		t.Fatalf("main loop closed gauge = %v, want 0", got)
	}
}

func TestSnapshotPoller_StartStop_Idempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start(ctx)
	poller.Start(ctx)
	poller.Stop()
	poller.Stop()
}

func assertEventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
