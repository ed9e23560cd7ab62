package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TimeSlot is a recurring weekly pickup/delivery window. Times are stored as
// HH:MM strings in the shop's local timezone.
type TimeSlot struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	DayOfWeek int       `gorm:"column:day_of_week;not null"`
	StartTime string    `gorm:"column:start_time;not null"`
	EndTime   string    `gorm:"column:end_time;not null"`
	Capacity  int       `gorm:"column:capacity;not null;default:0"`
	Active    bool      `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (t *TimeSlot) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Label renders the slot as "HH:MM-HH:MM" for reservation rows.
func (t TimeSlot) Label() string {
	return t.StartTime + "-" + t.EndTime
}
