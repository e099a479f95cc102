package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/floreteng/bundld/internal/models"
)

// Schedules persists delivery schedules.
type Schedules struct {
	db *gorm.DB
}

// NewSchedules constructs the schedule repository.
func NewSchedules(db *gorm.DB) *Schedules {
	return &Schedules{db: db}
}

// All returns every schedule ordered by time of day.
func (s *Schedules) All(ctx context.Context) ([]models.Schedule, error) {
	var rows []models.Schedule
	err := s.db.WithContext(ctx).
		Order("hour ASC, minute ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

// Enabled returns the schedules that should have triggers registered.
func (s *Schedules) Enabled(ctx context.Context) ([]models.Schedule, error) {
	var rows []models.Schedule
	err := s.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("hour ASC, minute ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

// GetByID returns one schedule, or nil when it does not exist.
func (s *Schedules) GetByID(ctx context.Context, id uint64) (*models.Schedule, error) {
	var row models.Schedule
	errFind := s.db.WithContext(ctx).First(&row, id).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errFind
	}
	return &row, nil
}

// Upsert creates or updates a schedule after validating its time fields.
func (s *Schedules) Upsert(ctx context.Context, schedule *models.Schedule) error {
	if schedule == nil {
		return errors.New("store: nil schedule")
	}
	if schedule.Hour < 0 || schedule.Hour > 23 {
		return fmt.Errorf("store: schedule hour out of range: %d", schedule.Hour)
	}
	if schedule.Minute < 0 || schedule.Minute > 59 {
		return fmt.Errorf("store: schedule minute out of range: %d", schedule.Minute)
	}
	return s.db.WithContext(ctx).Save(schedule).Error
}

// UpdateEnabled flips the enabled flag on one schedule.
func (s *Schedules) UpdateEnabled(ctx context.Context, id uint64, enabled bool) error {
	return s.db.WithContext(ctx).
		Model(&models.Schedule{}).
		Where("id = ?", id).
		Update("enabled", enabled).Error
}

// Delete removes a schedule by id.
func (s *Schedules) Delete(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Delete(&models.Schedule{}, id).Error
}
