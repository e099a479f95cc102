package models

import (
	"encoding/json"
	"time"
)

// Setting stores one key/value preference entry, such as the global
// bundling-enabled toggle.
type Setting struct {
	Key       string          `gorm:"type:varchar(255);primaryKey"`                      // Preference key.
	Value     json.RawMessage `gorm:"type:jsonb"`                                        // JSON-encoded value.
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime;default:CURRENT_TIMESTAMP"` // Last update timestamp.
}
