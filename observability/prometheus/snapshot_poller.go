package prometheus

import (
	"context"
	"sync"
	"time"

	dispatcher "github.com/Swind/go-lane-dispatcher"
	"github.com/Swind/go-lane-dispatcher/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// RunnerSnapshotProvider provides current main loop stats snapshots.
type RunnerSnapshotProvider interface {
	Stats() core.RunnerStats
}

// PoolSnapshotProvider provides current pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// SnapshotPoller periodically exports main loop and pool Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	runnersMu sync.RWMutex
	runners   map[string]RunnerSnapshotProvider

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	runnerPending  *prom.GaugeVec
	runnerRunning  *prom.GaugeVec
	runnerRejected *prom.GaugeVec
	runnerClosed   *prom.GaugeVec

	poolQueued      *prom.GaugeVec
	poolActive      *prom.GaugeVec
	poolLiveWorkers *prom.GaugeVec
	poolMaxWorkers  *prom.GaugeVec
	poolCompleted   *prom.GaugeVec
	poolCanceled    *prom.GaugeVec
	poolRunning     *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	runnerGauge := func(name, help string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{Namespace: "dispatcher", Name: name, Help: help}, []string{"runner", "type"})
	}
	poolGauge := func(name, help string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{Namespace: "dispatcher", Name: name, Help: help}, []string{"pool"})
	}

	p := &SnapshotPoller{
		interval: interval,
		runners:  make(map[string]RunnerSnapshotProvider),
		pools:    make(map[string]PoolSnapshotProvider),

		runnerPending:  runnerGauge("runner_pending", "Number of pending tasks per main loop."),
		runnerRunning:  runnerGauge("runner_running", "Number of running tasks per main loop."),
		runnerRejected: runnerGauge("runner_rejected_total", "Main loop rejected task count snapshot."),
		runnerClosed:   runnerGauge("runner_closed", "Main loop closed state (1=closed, 0=open)."),

		poolQueued:      poolGauge("pool_queued", "Queued tasks per pool."),
		poolActive:      poolGauge("pool_active", "Active tasks per pool."),
		poolLiveWorkers: poolGauge("pool_live_workers", "Live worker goroutines per pool."),
		poolMaxWorkers:  poolGauge("pool_max_workers", "Maximum workers per pool."),
		poolCompleted:   poolGauge("pool_completed_total", "Completed task count snapshot per pool."),
		poolCanceled:    poolGauge("pool_canceled_total", "Canceled task count snapshot per pool."),
		poolRunning:     poolGauge("pool_running", "Pool running state (1=running, 0=stopped)."),
	}

	for _, gauge := range []**prom.GaugeVec{
		&p.runnerPending, &p.runnerRunning, &p.runnerRejected, &p.runnerClosed,
		&p.poolQueued, &p.poolActive, &p.poolLiveWorkers, &p.poolMaxWorkers,
		&p.poolCompleted, &p.poolCanceled, &p.poolRunning,
	} {
		registered, err := registerCollector(reg, *gauge)
		if err != nil {
			return nil, err
		}
		*gauge = registered
	}

	return p, nil
}

// AddRunner adds or replaces a main loop snapshot provider by name.
func (p *SnapshotPoller) AddRunner(name string, provider RunnerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "runner")
	p.runnersMu.Lock()
	p.runners[name] = provider
	p.runnersMu.Unlock()
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// AddDispatcher registers both pools of d under their IDs, plus the bound
// main loop when it can report stats.
func (p *SnapshotPoller) AddDispatcher(d *dispatcher.Dispatcher) {
	if p == nil || d == nil {
		return
	}
	p.AddPool(d.NormalPool().ID(), d.NormalPool())
	p.AddPool(d.UrgentPool().ID(), d.UrgentPool())
	if provider, ok := d.MainLoop().(RunnerSnapshotProvider); ok {
		p.AddRunner(provider.Stats().Name, provider)
	}
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx, p.done)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	cancel()
	<-done

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.runnersMu.RLock()
	for name, provider := range p.runners {
		stats := provider.Stats()
		typeLabel := normalizeLabel(stats.Type, "unknown")
		p.runnerPending.WithLabelValues(name, typeLabel).Set(float64(stats.Pending))
		p.runnerRunning.WithLabelValues(name, typeLabel).Set(float64(stats.Running))
		p.runnerRejected.WithLabelValues(name, typeLabel).Set(float64(stats.Rejected))
		p.runnerClosed.WithLabelValues(name, typeLabel).Set(boolGauge(stats.Closed))
	}
	p.runnersMu.RUnlock()

	p.poolsMu.RLock()
	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolActive.WithLabelValues(name).Set(float64(stats.Active))
		p.poolLiveWorkers.WithLabelValues(name).Set(float64(stats.LiveWorkers))
		p.poolMaxWorkers.WithLabelValues(name).Set(float64(stats.MaxWorkers))
		p.poolCompleted.WithLabelValues(name).Set(float64(stats.Completed))
		p.poolCanceled.WithLabelValues(name).Set(float64(stats.Canceled))
		p.poolRunning.WithLabelValues(name).Set(boolGauge(stats.Running))
	}
	p.poolsMu.RUnlock()
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
