package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/floreteng/bundld/internal/models"
	"gorm.io/gorm"
)

// Refresh reloads all preferences from the database and updates the in-memory
// snapshot.
//
// This is required at process startup; otherwise Value() returns nothing until
// a preference is written through the API (which triggers a refresh).
func Refresh(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return errors.New("settings: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var rows []models.Setting
	if errFind := conn.WithContext(ctx).
		Select("key", "value", "updated_at").
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		return errFind
	}

	values := make(map[string]json.RawMessage, len(rows))
	maxUpdatedAt := time.Time{}
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		values[key] = row.Value
		if rowUpdatedAt := row.UpdatedAt.UTC(); rowUpdatedAt.After(maxUpdatedAt) {
			maxUpdatedAt = rowUpdatedAt
		}
	}

	Store(maxUpdatedAt, values)
	return nil
}

// Put persists a preference value and refreshes the snapshot.
func Put(ctx context.Context, conn *gorm.DB, key string, value any) error {
	if conn == nil {
		return errors.New("settings: nil db")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("settings: empty key")
	}
	raw, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return errMarshal
	}

	row := models.Setting{Key: key, Value: raw, UpdatedAt: time.Now().UTC()}
	if errSave := conn.WithContext(ctx).Save(&row).Error; errSave != nil {
		return errSave
	}
	return Refresh(ctx, conn)
}
