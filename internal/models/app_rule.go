package models

import "time"

// RuleMode defines how an app rule treats matching notifications.
type RuleMode int

// RuleMode constants define the closed set of app rule modes.
const (
	// RuleModeWhitelist lets only matching notifications through.
	RuleModeWhitelist RuleMode = 1
	// RuleModeBlacklist suppresses matching notifications for bundling.
	RuleModeBlacklist RuleMode = 2
)

// Valid reports whether the mode is a known rule mode.
func (m RuleMode) Valid() bool {
	switch m {
	case RuleModeWhitelist, RuleModeBlacklist:
		return true
	}
	return false
}

// String returns the canonical name of the mode.
func (m RuleMode) String() string {
	switch m {
	case RuleModeWhitelist:
		return "whitelist"
	case RuleModeBlacklist:
		return "blacklist"
	}
	return "unknown"
}

// ParseRuleMode maps a mode name to its RuleMode value.
func ParseRuleMode(name string) (RuleMode, bool) {
	switch name {
	case "whitelist", "WHITELIST":
		return RuleModeWhitelist, true
	case "blacklist", "BLACKLIST":
		return RuleModeBlacklist, true
	}
	return 0, false
}

// AppRule defines a per-package bundling policy.
type AppRule struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	PackageName string   `gorm:"type:text;not null;index"` // Source application package.
	Mode        RuleMode `gorm:"not null"`                 // Whitelist or blacklist.

	FilterString *string `gorm:"type:text"` // Optional content filter; nil or blank matches everything.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Filter returns the trimmed filter string, or "" when the rule is a wildcard.
func (r *AppRule) Filter() string {
	if r == nil || r.FilterString == nil {
		return ""
	}
	return *r.FilterString
}
