package config

import "time"

// RetentionConfig controls grant lifecycle cleanup and vector-namespace
// garbage collection (§3 Grant invariants, §4.4 orphan sweep).
type RetentionConfig struct {
	// ExpireAfterDeadlineDays promotes ACTIVE grants to EXPIRED once their
	// deadline is this many days in the past. Spec default: 30.
	ExpireAfterDeadlineDays int `yaml:"expire_after_deadline_days"`

	// DeleteAfterExpiredDays physically deletes EXPIRED grants once they
	// have been expired for this many days. Spec default: 90.
	DeleteAfterExpiredDays int `yaml:"delete_after_expired_days"`

	// CleanupInterval is not read: the grant-lifecycle cleanup runs on
	// SchedulerConfig.WeeklyCleanupCadence.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// NamespaceSweepInterval is not read: orphaned vector namespaces
	// (belonging to deleted users) are swept in the same
	// WeeklyCleanupCadence run as the grant-lifecycle cleanup.
	NamespaceSweepInterval time.Duration `yaml:"namespace_sweep_interval"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		ExpireAfterDeadlineDays: 30,
		DeleteAfterExpiredDays:  90,
		CleanupInterval:         24 * time.Hour,
		NamespaceSweepInterval:  7 * 24 * time.Hour,
	}
}
