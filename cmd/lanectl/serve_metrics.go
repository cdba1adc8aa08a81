package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	dispatcher "github.com/Swind/go-lane-dispatcher"
	"github.com/Swind/go-lane-dispatcher/core"
	obs "github.com/Swind/go-lane-dispatcher/observability/prometheus"
)

var (
	metricsAddr     string
	metricsInterval time.Duration
	metricsLoad     bool
)

var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Expose dispatcher metrics over HTTP",
	Long: `Start a dispatcher wired to a Prometheus exporter and serve /metrics
until interrupted. With --load a background producer keeps both pools and the
main loop busy so the series move.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reg := prom.NewRegistry()
		exporter, err := obs.NewMetricsExporter("dispatcher", reg, obs.ExporterOptions{})
		if err != nil {
			return err
		}
		poller, err := obs.NewSnapshotPoller(reg, metricsInterval)
		if err != nil {
			return err
		}

		schedCfg := &core.TaskSchedulerConfig{
			PanicHandler:        &core.DefaultPanicHandler{Logger: cfg.Logger},
			Metrics:             exporter,
			RejectedTaskHandler: &core.DefaultRejectedTaskHandler{Logger: cfg.Logger},
			Logger:              cfg.Logger,
		}
		cfg.Scheduler = schedCfg

		loop := core.NewSingleThreadTaskRunnerWithConfig("main", schedCfg)
		defer loop.Stop()
		d, err := dispatcher.New(cfg, loop)
		if err != nil {
			return err
		}
		defer d.Shutdown()

		poller.AddDispatcher(d)
		poller.Start(ctx)
		defer poller.Stop()

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: metricsAddr, Handler: mux}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
		if metricsLoad {
			g.Go(func() error {
				produceLoad(gctx, d)
				return nil
			})
		}

		cfg.Logger.Info("serving metrics", core.F("addr", metricsAddr), core.F("path", "/metrics"))
		fmt.Printf("Try: curl -s http://%s/metrics | grep '^dispatcher_'\n", displayAddr(metricsAddr))

		return g.Wait()
	},
}

func init() {
	serveMetricsCmd.Flags().StringVar(&metricsAddr, "addr", ":2112", "Listen address")
	serveMetricsCmd.Flags().DurationVar(&metricsInterval, "interval", time.Second, "Snapshot polling interval")
	serveMetricsCmd.Flags().BoolVar(&metricsLoad, "load", false, "Generate background load")
}

func produceLoad(ctx context.Context, d *dispatcher.Dispatcher) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	lanes := []core.Lane{core.LaneNormal, core.LaneNormal, core.LaneNormal, core.LaneUrgent, core.LaneMainQueue}
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		lane := lanes[i%len(lanes)]
		work := time.Duration(rand.IntN(40)) * time.Millisecond
		id, err := d.ExecuteNamed(fmt.Sprintf("load-%d", i), func(ctx context.Context) {
			time.Sleep(work)
		}, lane)
		if err != nil {
			return
		}
		// every seventh pool task is withdrawn again
		if i%7 == 0 && !lane.IsMainLoop() {
			d.Cancel(id)
		}
	}
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "127.0.0.1" + addr
	}
	return addr
}
