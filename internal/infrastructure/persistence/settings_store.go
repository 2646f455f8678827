package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/krbiz/backend/internal/domain/settings"
)

// SettingModel is one settings document
type SettingModel struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// TableName returns the settings table name
func (SettingModel) TableName() string {
	return "krbiz_settings"
}

// GormSettingsStore implements settings.Store on a SQL table
type GormSettingsStore struct {
	db *gorm.DB
}

// NewGormSettingsStore creates a new GORM based settings store
func NewGormSettingsStore(db *gorm.DB) *GormSettingsStore {
	return &GormSettingsStore{db: db}
}

// Get returns a value and whether it exists
func (s *GormSettingsStore) Get(ctx context.Context, key string) (string, bool, error) {
	var model SettingModel
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load setting %s: %w", key, err)
	}
	return model.Value, true, nil
}

// Set inserts or replaces a value
func (s *GormSettingsStore) Set(ctx context.Context, key, value string) error {
	model := SettingModel{Key: key, Value: value, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

// Ensure GormSettingsStore implements settings.Store
var _ settings.Store = (*GormSettingsStore)(nil)
