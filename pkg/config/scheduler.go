package config

import "time"

// Cadence selects the scheduler cron preset (§9 open question: the 6-hour
// cadence is the contract; twice-weekly is an alternate preset, never the
// compiled-in default).
type Cadence string

const (
	CadenceSixHourly   Cadence = "six_hourly"
	CadenceTwiceWeekly Cadence = "twice_weekly"
)

// CronExpr returns the 5-field cron expression for the cadence.
func (c Cadence) CronExpr() string {
	switch c {
	case CadenceTwiceWeekly:
		return "0 6 * * 1,4" // Mon/Thu 06:00
	default:
		return "0 */6 * * *" // every 6 hours
	}
}

// SchedulerConfig contains cron cadence and worker pool configuration
// (§4.9). These values control how search jobs are enqueued, claimed, and
// processed.
type SchedulerConfig struct {
	// Cadence selects which cron preset drives the periodic search sweep.
	Cadence Cadence `yaml:"cadence"`

	// WorkerCount is the number of worker goroutines consuming the job
	// queue. Spec default: 4.
	WorkerCount int `yaml:"worker_count"`

	// QueueCapacity is the bounded job queue size. Spec default: 256.
	QueueCapacity int `yaml:"queue_capacity"`

	// JobHardTimeout is the hard per-job timeout (10 min per §4.9).
	JobHardTimeout time.Duration `yaml:"job_hard_timeout"`

	// JobSoftTimeout triggers graceful cancellation that still commits
	// partial results (9 min per §4.9).
	JobSoftTimeout time.Duration `yaml:"job_soft_timeout"`

	// PollInterval is the base interval workers wait between queue pops
	// when idle.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is random jitter added to PollInterval to avoid
	// thundering-herd polling across workers.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// OrphanDetectionInterval is not read by any component: no periodic
	// scan moves IN_PROGRESS runs past their hard timeout to FAILED.
	OrphanDetectionInterval time.Duration `yaml:"orphan_detection_interval"`

	// WeeklyCleanupCadence is the cron expression for the stale-grant
	// cleanup sweep (§4.9 "weekly for stale-grant cleanup").
	WeeklyCleanupCadence string `yaml:"weekly_cleanup_cadence"`
}

// DefaultSchedulerConfig returns the built-in scheduler defaults.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		Cadence:                 CadenceSixHourly,
		WorkerCount:             4,
		QueueCapacity:           256,
		JobHardTimeout:          10 * time.Minute,
		JobSoftTimeout:          9 * time.Minute,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      250 * time.Millisecond,
		OrphanDetectionInterval: 1 * time.Minute,
		WeeklyCleanupCadence:    "0 3 * * 0",
	}
}
