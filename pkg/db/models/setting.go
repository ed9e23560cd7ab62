package models

import "time"

// Setting is a key/value row for shop configuration editable from the admin.
type Setting struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Value     string    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Seeded setting keys.
const (
	SettingOwnerNotificationEmail = "owner_notification_email"
	SettingPickupAddress          = "pickup_address"
	SettingPickupTimes            = "pickup_times"
	SettingDeliveryTimes          = "delivery_times"
	SettingBreadLeadDays          = "bread_lead_days"
)
