package dispatcher

import (
	"fmt"
	"time"

	"github.com/Swind/go-lane-dispatcher/core"
)

// Pool sizing used by the process-wide dispatcher.
const (
	DefaultNormalPoolSize            = 4
	DefaultUrgentPoolSize            = 2
	DefaultIdleTimeout               = 2 * time.Second
	DefaultUrgentThreadPriorityBoost = 1
)

// Config holds the dispatcher's pool settings. The global dispatcher always
// uses DefaultConfig; explicit handles created with New may override it.
type Config struct {
	// NormalPoolSize is the maximum number of concurrent LaneNormal tasks.
	NormalPoolSize int `mapstructure:"normal_pool_size" yaml:"normal_pool_size"`

	// UrgentPoolSize is the maximum number of concurrent LaneUrgent tasks.
	UrgentPoolSize int `mapstructure:"urgent_pool_size" yaml:"urgent_pool_size"`

	// IdleTimeout is how long an idle worker of either pool lives.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// UrgentThreadPriorityBoost is how many levels above normal the urgent
	// workers' OS threads are scheduled.
	UrgentThreadPriorityBoost int `mapstructure:"urgent_thread_priority_boost" yaml:"urgent_thread_priority_boost"`

	// Logger is used by the dispatcher and the default handlers.
	Logger core.Logger `mapstructure:"-" yaml:"-"`

	// Scheduler supplies panic, metrics and rejection handlers for both pools.
	Scheduler *core.TaskSchedulerConfig `mapstructure:"-" yaml:"-"`
}

// DefaultConfig returns the fixed 4/2 worker, 2 second idle, +1 priority setup.
func DefaultConfig() Config {
	return Config{
		NormalPoolSize:            DefaultNormalPoolSize,
		UrgentPoolSize:            DefaultUrgentPoolSize,
		IdleTimeout:               DefaultIdleTimeout,
		UrgentThreadPriorityBoost: DefaultUrgentThreadPriorityBoost,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.NormalPoolSize < 1:
		return fmt.Errorf("%w: normal_pool_size must be at least 1, got %d", ErrInvalidConfig, c.NormalPoolSize)
	case c.UrgentPoolSize < 1:
		return fmt.Errorf("%w: urgent_pool_size must be at least 1, got %d", ErrInvalidConfig, c.UrgentPoolSize)
	case c.IdleTimeout < 0:
		return fmt.Errorf("%w: idle_timeout must not be negative, got %v", ErrInvalidConfig, c.IdleTimeout)
	case c.UrgentThreadPriorityBoost < 0:
		return fmt.Errorf("%w: urgent_thread_priority_boost must not be negative, got %d", ErrInvalidConfig, c.UrgentThreadPriorityBoost)
	}
	return nil
}

func (c Config) schedulerConfig() *core.TaskSchedulerConfig {
	var sc core.TaskSchedulerConfig
	if c.Scheduler != nil {
		sc = *c.Scheduler
	}
	if sc.Logger == nil {
		sc.Logger = c.logger()
	}
	return &sc
}

func (c Config) logger() core.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	if c.Scheduler != nil && c.Scheduler.Logger != nil {
		return c.Scheduler.Logger
	}
	return core.NewDefaultLogger()
}
