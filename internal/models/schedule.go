package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Schedule is a user-configured daily delivery time.
type Schedule struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Hour   int `gorm:"not null"` // Hour of day, 0-23.
	Minute int `gorm:"not null"` // Minute, 0-59.

	DaysOfWeek datatypes.JSON `gorm:"type:jsonb"` // JSON array of weekday indices (0 = Sunday). Empty means all days.

	Enabled bool `gorm:"not null;default:true"` // Whether the schedule registers a trigger.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// allWeekdays covers Sunday through Saturday.
var allWeekdays = []time.Weekday{
	time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
	time.Thursday, time.Friday, time.Saturday,
}

// Weekdays decodes the days-of-week list. A missing or malformed list means
// the schedule applies to every day.
func (s *Schedule) Weekdays() []time.Weekday {
	if s == nil || len(s.DaysOfWeek) == 0 {
		return allWeekdays
	}
	var indices []int
	if errUnmarshal := json.Unmarshal(s.DaysOfWeek, &indices); errUnmarshal != nil || len(indices) == 0 {
		return allWeekdays
	}
	days := make([]time.Weekday, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx > 6 {
			continue
		}
		days = append(days, time.Weekday(idx))
	}
	if len(days) == 0 {
		return allWeekdays
	}
	return days
}

// AppliesOn reports whether the schedule should fire on the given weekday.
func (s *Schedule) AppliesOn(day time.Weekday) bool {
	for _, d := range s.Weekdays() {
		if d == day {
			return true
		}
	}
	return false
}
