package core

import "time"

// TaskExecutionRecord captures a completed task execution event.
type TaskExecutionRecord struct {
	TaskID     TaskID
	Name       string
	RunnerName string
	Lane       Lane
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Panicked   bool
}

// RunnerStats represents runtime observability state for the main loop.
type RunnerStats struct {
	Name         string
	Type         string
	Pending      int
	Running      int
	Rejected     int64
	Closed       bool
	LastTaskName string
	LastTaskAt   time.Time
}

// PoolStats represents runtime observability state for a worker pool.
type PoolStats struct {
	ID          string        `yaml:"id"`
	MaxWorkers  int           `yaml:"max_workers"`
	LiveWorkers int           `yaml:"live_workers"`
	Queued      int           `yaml:"queued"`
	Active      int           `yaml:"active"`
	Completed   int64         `yaml:"completed"`
	Canceled    int64         `yaml:"canceled"`
	Rejected    int64         `yaml:"rejected"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	Running     bool          `yaml:"running"`
}
