package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Exemption rule types recognized for category-based matching.
const (
	// ExemptionTypeMessage matches the "msg" notification category.
	ExemptionTypeMessage = "MESSAGE"
	// ExemptionTypeCall matches the "call" notification category.
	ExemptionTypeCall = "CALL"
	// ExemptionTypeMention is keyword-only; it has no category mapping.
	ExemptionTypeMention = "MENTION"
)

// ExemptionRule forces matching notifications to bypass bundling entirely.
//
// A rule with neither a category filter nor keywords is inert: it never
// matches anything but is kept as-is.
type ExemptionRule struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AppPackage string `gorm:"type:text;not null;index"` // Source application package.
	RuleType   string `gorm:"type:text;not null"`       // Free-form tag, e.g. MESSAGE, CALL, MENTION.

	Keywords       datatypes.JSON `gorm:"type:jsonb"` // JSON array of keywords, matched case-insensitively.
	CategoryFilter *string        `gorm:"type:text"`  // Optional notification category tag.

	IsEnabled bool `gorm:"not null;default:true"` // Whether the rule is active.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// KeywordList decodes the keyword JSON array. Malformed payloads contribute
// nothing rather than failing the rule.
func (r *ExemptionRule) KeywordList() []string {
	if r == nil || len(r.Keywords) == 0 {
		return nil
	}
	var keywords []string
	if errUnmarshal := json.Unmarshal(r.Keywords, &keywords); errUnmarshal != nil {
		return nil
	}
	return keywords
}

// Category returns the trimmed category filter, or "" when unset.
func (r *ExemptionRule) Category() string {
	if r == nil || r.CategoryFilter == nil {
		return ""
	}
	return *r.CategoryFilter
}
