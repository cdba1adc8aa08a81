package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/Swind/go-lane-dispatcher/core"
)

var (
	benchProducers int
	benchTasks     int
	benchWork      time.Duration
	benchLane      string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Flood one lane from concurrent producers",
	Long: `Submit --tasks tasks from each of --producers goroutines to one lane,
wait for them all, then print throughput and the final pool statistics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lane, err := parseLane(benchLane)
		if err != nil {
			return err
		}

		d, loop, err := newDispatcher()
		if err != nil {
			return err
		}
		defer loop.Stop()
		defer d.Shutdown()

		var done sync.WaitGroup
		done.Add(benchProducers * benchTasks)

		start := time.Now()
		g, ctx := errgroup.WithContext(cmd.Context())
		for p := range benchProducers {
			g.Go(func() error {
				for i := range benchTasks {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					name := fmt.Sprintf("bench-%d-%d", p, i)
					if _, err := d.ExecuteNamed(name, func(ctx context.Context) {
						defer done.Done()
						if benchWork > 0 {
							time.Sleep(benchWork)
						}
					}, lane); err != nil {
						return fmt.Errorf("producer %d: %w", p, err)
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		submitted := time.Since(start)

		done.Wait()
		elapsed := time.Since(start)

		total := benchProducers * benchTasks
		report := struct {
			Lane      string         `yaml:"lane"`
			Tasks     int            `yaml:"tasks"`
			Submitted time.Duration  `yaml:"submitted_in"`
			Elapsed   time.Duration  `yaml:"elapsed"`
			PerSecond float64        `yaml:"tasks_per_second"`
			Normal    core.PoolStats `yaml:"normal"`
			Urgent    core.PoolStats `yaml:"urgent"`
		}{
			Lane:      lane.String(),
			Tasks:     total,
			Submitted: submitted,
			Elapsed:   elapsed,
			PerSecond: float64(total) / elapsed.Seconds(),
			Normal:    d.Stats().Normal,
			Urgent:    d.Stats().Urgent,
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(report)
	},
}

func init() {
	benchCmd.Flags().IntVar(&benchProducers, "producers", 4, "Concurrent producer goroutines")
	benchCmd.Flags().IntVar(&benchTasks, "tasks", 1000, "Tasks per producer")
	benchCmd.Flags().DurationVar(&benchWork, "work", 0, "Simulated work per task")
	benchCmd.Flags().StringVar(&benchLane, "lane", "normal", "Lane: normal, urgent, main_queue or main_queue_front")
}

func parseLane(s string) (core.Lane, error) {
	for _, lane := range []core.Lane{core.LaneNormal, core.LaneUrgent, core.LaneMainQueue, core.LaneMainQueueFront} {
		if lane.String() == s {
			return lane, nil
		}
	}
	return 0, fmt.Errorf("unknown lane %q", s)
}
