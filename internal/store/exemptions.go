package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/floreteng/bundld/internal/models"
)

// Exemptions persists per-package exemption rules.
type Exemptions struct {
	db *gorm.DB
}

// NewExemptions constructs the exemption rule repository.
func NewExemptions(db *gorm.DB) *Exemptions {
	return &Exemptions{db: db}
}

// EnabledForApp returns the active rules for one package.
func (s *Exemptions) EnabledForApp(ctx context.Context, pkg string) ([]models.ExemptionRule, error) {
	var rules []models.ExemptionRule
	err := s.db.WithContext(ctx).
		Where("app_package = ? AND is_enabled = ?", pkg, true).
		Order("id ASC").
		Find(&rules).Error
	return rules, err
}

// ForApp returns all rules for one package regardless of enabled state.
func (s *Exemptions) ForApp(ctx context.Context, pkg string) ([]models.ExemptionRule, error) {
	var rules []models.ExemptionRule
	err := s.db.WithContext(ctx).
		Where("app_package = ?", pkg).
		Order("id ASC").
		Find(&rules).Error
	return rules, err
}

// List returns every rule ordered by package.
func (s *Exemptions) List(ctx context.Context) ([]models.ExemptionRule, error) {
	var rules []models.ExemptionRule
	err := s.db.WithContext(ctx).
		Order("app_package ASC, id ASC").
		Find(&rules).Error
	return rules, err
}

// GetByID returns one rule, or nil when it does not exist.
func (s *Exemptions) GetByID(ctx context.Context, id uint64) (*models.ExemptionRule, error) {
	var rule models.ExemptionRule
	errFind := s.db.WithContext(ctx).First(&rule, id).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errFind
	}
	return &rule, nil
}

// Insert creates a rule.
func (s *Exemptions) Insert(ctx context.Context, rule *models.ExemptionRule) error {
	if rule == nil {
		return errors.New("store: nil exemption rule")
	}
	if rule.AppPackage == "" {
		return errors.New("store: exemption rule package is required")
	}
	return s.db.WithContext(ctx).Create(rule).Error
}

// Update saves an existing rule.
func (s *Exemptions) Update(ctx context.Context, rule *models.ExemptionRule) error {
	if rule == nil || rule.ID == 0 {
		return errors.New("store: exemption rule id is required")
	}
	return s.db.WithContext(ctx).Save(rule).Error
}

// Delete removes a rule by id.
func (s *Exemptions) Delete(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Delete(&models.ExemptionRule{}, id).Error
}
