package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/grantfinder/pkg/config"
	"github.com/codeready-toolchain/grantfinder/pkg/store"
)

// cadenceInterval maps the Cadence enum to its fixed wall-clock interval.
// Only six_hourly is a true fixed interval; twice_weekly is handled by
// CronDriver's day-of-week check instead since it isn't evenly spaced.
func cadenceInterval(c config.Cadence) time.Duration {
	if c == config.CadenceTwiceWeekly {
		return time.Hour // checked hourly against the Mon/Thu 06:00 target
	}
	return 6 * time.Hour
}

// CronDriver periodically enqueues an AUTOMATED job per active user
// (§4.9 "process-wide cron").
type CronDriver struct {
	queue   *Queue
	users   *store.UserStore
	cadence config.Cadence
	log     *slog.Logger
}

// NewCronDriver constructs the periodic sweep driver.
func NewCronDriver(queue *Queue, users *store.UserStore, cadence config.Cadence) *CronDriver {
	return &CronDriver{queue: queue, users: users, cadence: cadence, log: slog.With("component", "scheduler-cron")}
}

// Start runs the sweep loop until ctx is cancelled.
func (d *CronDriver) Start(ctx context.Context) {
	ticker := time.NewTicker(cadenceInterval(d.cadence))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if d.shouldFire(t) {
				d.sweep(ctx)
			}
		}
	}
}

func (d *CronDriver) shouldFire(t time.Time) bool {
	if d.cadence != config.CadenceTwiceWeekly {
		return true
	}
	return (t.Weekday() == time.Monday || t.Weekday() == time.Thursday) && t.Hour() == 6
}

func (d *CronDriver) sweep(ctx context.Context) {
	users, err := d.users.ListActive(ctx)
	if err != nil {
		d.log.Error("listing active users for cron sweep failed", "error", err)
		return
	}
	for _, id := range users {
		if err := d.queue.Enqueue(Job{UserID: id, Trigger: store.TriggerAutomated}); err != nil {
			d.log.Warn("dropping cron job, queue full", "user_id", id)
		}
	}
	d.log.Info("cron sweep enqueued jobs", "count", len(users))
}
