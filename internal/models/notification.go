package models

import (
	"time"

	"gorm.io/datatypes"
)

// CapturedNotification is a suppressed notification held for bundled delivery.
//
// Rows are append-only at capture time; the only later mutation is the
// delivered mark, and a delivered row is never reverted to pending.
type CapturedNotification struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Key string `gorm:"type:text;not null"` // Listener event key for the original notification.
	Tag string `gorm:"type:text"`          // Optional listener tag.

	SourcePackage string `gorm:"type:text;not null;index"` // Originating application package.
	AppName       string `gorm:"type:text;not null"`       // Display name captured at intake time.

	Title   *string `gorm:"type:text"` // Notification title.
	Text    *string `gorm:"type:text"` // Notification body text.
	SubText *string `gorm:"type:text"` // Notification sub text.

	Category *string        `gorm:"type:text"`  // OS notification category tag.
	Extras   datatypes.JSON `gorm:"type:jsonb"` // Size-bounded snapshot of primitive extras.

	Timestamp   time.Time  `gorm:"not null;index"`                       // Capture time.
	IsDelivered bool       `gorm:"not null;default:false;index"`         // Whether a summary has included this row.
	DeliveredAt *time.Time // Delivery time; nil while pending.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// TableName overrides the default table name.
func (CapturedNotification) TableName() string {
	return "notifications"
}

// TitleOrEmpty returns the title or "".
func (n *CapturedNotification) TitleOrEmpty() string {
	if n == nil || n.Title == nil {
		return ""
	}
	return *n.Title
}

// TextOrEmpty returns the body text or "".
func (n *CapturedNotification) TextOrEmpty() string {
	if n == nil || n.Text == nil {
		return ""
	}
	return *n.Text
}
