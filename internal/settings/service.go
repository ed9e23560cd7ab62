package settings

import (
	"context"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oddfellowcoffee/storefront-backend/pkg/db/models"
	pkgerrors "github.com/oddfellowcoffee/storefront-backend/pkg/errors"
)

// Service reads and writes the shop's key/value settings. Values are stored
// as strings; typed accessors apply defaults for missing or malformed rows.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Get(ctx context.Context, key string) (string, error) {
	var setting models.Setting
	err := s.db.WithContext(ctx).First(&setting, "key = ?", key).Error
	if err == gorm.ErrRecordNotFound {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "setting not found")
	}
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load setting")
	}
	return setting.Value, nil
}

func (s *Service) Set(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "setting key is required")
	}
	setting := models.Setting{Key: key, Value: value}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&setting).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save setting")
	}
	return nil
}

func (s *Service) All(ctx context.Context) (map[string]string, error) {
	var rows []models.Setting
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list settings")
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

// OwnerEmail returns the owner notification address, empty when unset.
func (s *Service) OwnerEmail(ctx context.Context) string {
	value, err := s.Get(ctx, models.SettingOwnerNotificationEmail)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

// PickupAddress returns the storefront pickup address shown in emails.
func (s *Service) PickupAddress(ctx context.Context) string {
	value, err := s.Get(ctx, models.SettingPickupAddress)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

// BreadLeadDays returns the bakery lead time, defaulting to two days.
func (s *Service) BreadLeadDays(ctx context.Context) int {
	value, err := s.Get(ctx, models.SettingBreadLeadDays)
	if err != nil {
		return 2
	}
	days, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || days < 0 {
		return 2
	}
	return days
}
