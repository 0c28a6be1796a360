package scheduler

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/codeready-toolchain/grantfinder/pkg/config"
	"github.com/codeready-toolchain/grantfinder/pkg/store"
	"github.com/codeready-toolchain/grantfinder/pkg/vectorindex"
)

// CleanupDriver runs the weekly stale-grant lifecycle sweep and the
// orphaned vector-namespace sweep (§4.4 "orphaned namespaces are swept
// weekly", §3 expire/delete invariants, SPEC_FULL §C.3).
type CleanupDriver struct {
	grants    *store.GrantStore
	users     *store.UserStore
	index     *vectorindex.Index
	retention *config.RetentionConfig
	cronExpr  string
	log       *slog.Logger
}

// NewCleanupDriver constructs the weekly cleanup driver.
func NewCleanupDriver(grants *store.GrantStore, users *store.UserStore, index *vectorindex.Index, retention *config.RetentionConfig, cronExpr string) *CleanupDriver {
	return &CleanupDriver{grants: grants, users: users, index: index, retention: retention, cronExpr: cronExpr, log: slog.With("component", "scheduler-cleanup")}
}

// Start runs the weekly sweep loop (checked hourly against WeeklyCleanupCadence's
// day-of-week/hour, since "0 3 * * 0" only ever needs that granularity here).
func (d *CleanupDriver) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if d.matchesWeeklySchedule(t) {
				d.RunOnce(ctx)
			}
		}
	}
}

// matchesWeeklySchedule checks t against the configured "min hour * * dow"
// cron expression's hour and day-of-week fields only (minute-level
// precision isn't needed for an hourly-ticked weekly sweep).
func (d *CleanupDriver) matchesWeeklySchedule(t time.Time) bool {
	fields := strings.Fields(d.cronExpr)
	if len(fields) != 5 {
		return t.Weekday() == time.Sunday && t.Hour() == 3
	}
	targetHour := fields[1]
	targetDow := fields[4]
	return targetHour == itoaHour(t.Hour()) && targetDow == itoaHour(int(t.Weekday()))
}

func itoaHour(h int) string {
	if h < 10 {
		return string(rune('0' + h))
	}
	return string(rune('0'+h/10)) + string(rune('0'+h%10))
}

// RunOnce executes the sweep immediately, independent of the ticker;
// Start calls it whenever the weekly schedule matches.
func (d *CleanupDriver) RunOnce(ctx context.Context) {
	now := time.Now()

	promoted, err := d.grants.PromoteExpired(ctx, now, d.retention.ExpireAfterDeadlineDays)
	if err != nil {
		d.log.Error("promoting expired grants failed", "error", err)
	} else {
		d.log.Info("promoted expired grants", "count", promoted)
	}

	deleted, err := d.grants.DeleteExpiredOlderThan(ctx, now, d.retention.DeleteAfterExpiredDays)
	if err != nil {
		d.log.Error("deleting old expired grants failed", "error", err)
	} else {
		d.log.Info("deleted old expired grants", "count", deleted)
	}

	d.sweepOrphanNamespaces(ctx)
}

// sweepOrphanNamespaces deletes vector-store namespaces that no longer
// correspond to an active user (§4.4 invariant).
func (d *CleanupDriver) sweepOrphanNamespaces(ctx context.Context) {
	namespaces, err := d.index.ListNamespaces(ctx)
	if err != nil {
		d.log.Error("listing vector namespaces failed", "error", err)
		return
	}
	active, err := d.users.ListActive(ctx)
	if err != nil {
		d.log.Error("listing active users for namespace sweep failed", "error", err)
		return
	}
	activeSet := make(map[string]bool, len(active))
	for _, id := range active {
		activeSet["user_"+id.String()] = true
	}

	removed := 0
	for _, ns := range namespaces {
		if activeSet[ns] {
			continue
		}
		if err := d.index.DeleteNamespace(ctx, ns); err != nil {
			d.log.Error("deleting orphan namespace failed", "namespace", ns, "error", err)
			continue
		}
		removed++
	}
	d.log.Info("orphan namespace sweep complete", "removed", removed, "total", len(namespaces))
}
