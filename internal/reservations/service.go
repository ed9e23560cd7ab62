package reservations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oddfellowcoffee/storefront-backend/pkg/db/models"
	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
	pkgerrors "github.com/oddfellowcoffee/storefront-backend/pkg/errors"
)

// Service books pickup/delivery windows against the weekly time slots.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &Service{db: db}, nil
}

// Create books a slot. When a matching time slot row carries a capacity,
// the booking count for that date is enforced inside the transaction.
func (s *Service) Create(ctx context.Context, reservation *models.Reservation) error {
	if reservation == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation is required")
	}
	if strings.TrimSpace(reservation.CustomerEmail) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	}
	if strings.TrimSpace(reservation.TimeSlot) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "time slot is required")
	}
	if reservation.ReservationDate.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation date is required")
	}
	if reservation.Status == "" {
		reservation.Status = enums.ReservationStatusConfirmed
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slot models.TimeSlot
		err := tx.First(&slot,
			"active = ? AND day_of_week = ? AND start_time || '-' || end_time = ?",
			true, int(reservation.ReservationDate.Weekday()), reservation.TimeSlot,
		).Error
		if err != nil && err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load time slot")
		}
		if err == nil && slot.Capacity > 0 {
			var booked int64
			countErr := tx.Model(&models.Reservation{}).
				Where("reservation_date = ? AND time_slot = ? AND status = ?",
					reservation.ReservationDate, reservation.TimeSlot, enums.ReservationStatusConfirmed).
				Count(&booked).Error
			if countErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, countErr, "count bookings")
			}
			if booked >= int64(slot.Capacity) {
				return pkgerrors.New(pkgerrors.CodeConflict, "time slot is full")
			}
		}
		if err := tx.Create(reservation).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation")
		}
		return nil
	})
}

// Cancel releases the booking. Canceling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("id = ?", id).
		Update("status", enums.ReservationStatusCanceled)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "cancel reservation")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	return nil
}

// ListByDate returns confirmed bookings for a calendar day.
func (s *Service) ListByDate(ctx context.Context, day time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := s.db.WithContext(ctx).
		Where("date(reservation_date) = ? AND status = ?", day.Format("2006-01-02"), enums.ReservationStatusConfirmed).
		Order("time_slot ASC").
		Find(&reservations).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reservations")
	}
	return reservations, nil
}

// ActiveSlots returns the bookable weekly windows for the storefront.
func (s *Service) ActiveSlots(ctx context.Context) ([]models.TimeSlot, error) {
	var slots []models.TimeSlot
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("day_of_week ASC, start_time ASC").
		Find(&slots).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list time slots")
	}
	return slots, nil
}
