package settings

// Preference keys and defaults.
const (
	// BundlingEnabledKey toggles the whole capture pipeline.
	BundlingEnabledKey = "BUNDLING_ENABLED"
	// PermissionRequestedKey records that listener access was requested once.
	PermissionRequestedKey = "PERMISSION_REQUESTED"
	// RetentionDaysKey controls how long delivered notifications are kept.
	RetentionDaysKey = "NOTIFICATION_RETENTION_DAYS"

	// DefaultBundlingEnabled keeps capture on out of the box.
	DefaultBundlingEnabled = true
	// DefaultPermissionRequested marks first launch.
	DefaultPermissionRequested = false
	// DefaultRetentionDays is the fallback retention window in days.
	DefaultRetentionDays = 30
)
