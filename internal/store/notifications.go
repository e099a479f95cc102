package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/floreteng/bundld/internal/db"
	"github.com/floreteng/bundld/internal/models"
)

// Notifications persists captured notifications and their delivery status.
type Notifications struct {
	db *gorm.DB
}

// NewNotifications constructs the notification repository.
func NewNotifications(db *gorm.DB) *Notifications {
	return &Notifications{db: db}
}

// Insert appends a captured notification.
func (s *Notifications) Insert(ctx context.Context, n *models.CapturedNotification) error {
	if n == nil {
		return errors.New("store: nil notification")
	}
	if n.SourcePackage == "" {
		return errors.New("store: notification source package is required")
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	return s.db.WithContext(ctx).Create(n).Error
}

// All returns every notification, newest first.
func (s *Notifications) All(ctx context.Context, limit int) ([]models.CapturedNotification, error) {
	var rows []models.CapturedNotification
	q := s.db.WithContext(ctx).Order("timestamp DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

// Pending returns every undelivered notification, newest first.
func (s *Notifications) Pending(ctx context.Context) ([]models.CapturedNotification, error) {
	var rows []models.CapturedNotification
	err := s.db.WithContext(ctx).
		Where("is_delivered = ?", false).
		Order("timestamp DESC, id DESC").
		Find(&rows).Error
	return rows, err
}

// PendingByApp returns one package's undelivered notifications oldest first,
// the order summaries are composed in.
func (s *Notifications) PendingByApp(ctx context.Context, pkg string) ([]models.CapturedNotification, error) {
	var rows []models.CapturedNotification
	err := s.db.WithContext(ctx).
		Where("is_delivered = ? AND source_package = ?", false, pkg).
		Order("timestamp ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

// ByApp returns one package's notifications, newest first.
func (s *Notifications) ByApp(ctx context.Context, pkg string, limit int) ([]models.CapturedNotification, error) {
	var rows []models.CapturedNotification
	q := s.db.WithContext(ctx).
		Where("source_package = ?", pkg).
		Order("timestamp DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

// AppsWithPending returns the distinct packages that have undelivered rows.
func (s *Notifications) AppsWithPending(ctx context.Context) ([]string, error) {
	var packages []string
	err := s.db.WithContext(ctx).
		Model(&models.CapturedNotification{}).
		Where("is_delivered = ?", false).
		Distinct("source_package").
		Order("source_package ASC").
		Pluck("source_package", &packages).Error
	return packages, err
}

// PendingCountByApp returns the number of undelivered rows for one package.
func (s *Notifications) PendingCountByApp(ctx context.Context, pkg string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.CapturedNotification{}).
		Where("is_delivered = ? AND source_package = ?", false, pkg).
		Count(&count).Error
	return count, err
}

// MarkDelivered flags the given rows delivered. Re-marking already delivered
// rows is a no-op, so overlapping delivery cycles stay harmless.
func (s *Notifications) MarkDelivered(ctx context.Context, ids []uint64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.CapturedNotification{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"is_delivered": true,
			"delivered_at": at,
		}).Error
}

// DeleteOlderThan removes rows captured before the cutoff and returns the
// number deleted.
func (s *Notifications) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("timestamp < ?", cutoff).
		Delete(&models.CapturedNotification{})
	return res.RowsAffected, res.Error
}

// DeleteDeliveredOlderThan removes delivered rows captured before the cutoff.
func (s *Notifications) DeleteDeliveredOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("is_delivered = ? AND timestamp < ?", true, cutoff).
		Delete(&models.CapturedNotification{})
	return res.RowsAffected, res.Error
}

// GetByID returns one notification, or nil when it does not exist.
func (s *Notifications) GetByID(ctx context.Context, id uint64) (*models.CapturedNotification, error) {
	var row models.CapturedNotification
	errFind := s.db.WithContext(ctx).First(&row, id).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errFind
	}
	return &row, nil
}

// Delete removes one notification.
func (s *Notifications) Delete(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Delete(&models.CapturedNotification{}, id).Error
}

// DeleteAll clears the whole history.
func (s *Notifications) DeleteAll(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&models.CapturedNotification{}).Error
}

// Search returns notifications whose title or text contains the query,
// case-insensitively, newest first.
func (s *Notifications) Search(ctx context.Context, query string, limit int) ([]models.CapturedNotification, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return s.All(ctx, limit)
	}
	pattern := db.NormalizeLikePattern(s.db, "%"+trimmed+"%")

	var rows []models.CapturedNotification
	q := s.db.WithContext(ctx).
		Where(
			s.db.Where(db.CaseInsensitiveLikeExpr(s.db, "title"), pattern).
				Or(db.CaseInsensitiveLikeExpr(s.db, "text"), pattern),
		).
		Order("timestamp DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}
