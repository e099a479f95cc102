// Package store provides the narrow repositories the core pipeline reads and
// writes through. Each repository wraps the shared GORM connection; callers
// never see query details.
package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/floreteng/bundld/internal/models"
)

// AppRules persists per-package bundling rules.
type AppRules struct {
	db *gorm.DB
}

// NewAppRules constructs the app rule repository.
func NewAppRules(db *gorm.DB) *AppRules {
	return &AppRules{db: db}
}

// List returns every rule ordered by package name.
func (s *AppRules) List(ctx context.Context) ([]models.AppRule, error) {
	var rules []models.AppRule
	err := s.db.WithContext(ctx).
		Order("package_name ASC, id ASC").
		Find(&rules).Error
	return rules, err
}

// ForPackage returns the rules for one package in stable creation order. The
// evaluator depends on this order for its first-match semantics.
func (s *AppRules) ForPackage(ctx context.Context, pkg string) ([]models.AppRule, error) {
	var rules []models.AppRule
	err := s.db.WithContext(ctx).
		Where("package_name = ?", pkg).
		Order("id ASC").
		Find(&rules).Error
	return rules, err
}

// GetByID returns one rule, or nil when it does not exist.
func (s *AppRules) GetByID(ctx context.Context, id uint64) (*models.AppRule, error) {
	var rule models.AppRule
	errFind := s.db.WithContext(ctx).First(&rule, id).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errFind
	}
	return &rule, nil
}

// Upsert creates or updates a rule.
func (s *AppRules) Upsert(ctx context.Context, rule *models.AppRule) error {
	if rule == nil {
		return errors.New("store: nil app rule")
	}
	if rule.PackageName == "" {
		return errors.New("store: app rule package name is required")
	}
	if !rule.Mode.Valid() {
		return errors.New("store: app rule mode is invalid")
	}
	return s.db.WithContext(ctx).Save(rule).Error
}

// Delete removes a rule by id.
func (s *AppRules) Delete(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Delete(&models.AppRule{}, id).Error
}
