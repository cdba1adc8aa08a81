package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	dispatcher "github.com/Swind/go-lane-dispatcher"
	"github.com/Swind/go-lane-dispatcher/core"
)

var (
	configFile string
	verbose    bool
	noColor    bool

	// cfg is filled by loadConfig before any subcommand runs.
	cfg dispatcher.Config
)

var rootCmd = &cobra.Command{
	Use:   "lanectl",
	Short: "Lane dispatcher playground",
	Long: `lanectl drives the lane dispatcher: a normal pool, an urgent pool and a
main loop that receives front-inserted tasks and result callbacks.

Pool sizes and the idle timeout come from lanectl.yaml (current directory or
~/.config/lanectl) and LANECTL_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(configFile)
		if err != nil {
			return err
		}
		if noColor {
			color.NoColor = true
		}
		loaded.Logger = newColorLogger(os.Stderr, verbose, noColor)
		cfg = loaded
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a lanectl.yaml config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug messages")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(serveMetricsCmd)
	rootCmd.AddCommand(configCmd)
}

// newDispatcher creates a dispatcher from cfg bound to a fresh main loop.
// The caller stops both.
func newDispatcher() (*dispatcher.Dispatcher, *core.SingleThreadTaskRunner, error) {
	loop := core.NewSingleThreadTaskRunnerWithConfig("main", &core.TaskSchedulerConfig{Logger: cfg.Logger})
	d, err := dispatcher.New(cfg, loop)
	if err != nil {
		loop.Stop()
		return nil, nil, err
	}
	return d, loop, nil
}
