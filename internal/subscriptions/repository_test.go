package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oddfellowcoffee/storefront-backend/pkg/db/models"
	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
)

func setupSubsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:subs_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Subscription{}))
	return db
}

func seedSubscription(t *testing.T, db *gorm.DB, mutate func(*models.Subscription)) *models.Subscription {
	t.Helper()

	sub := &models.Subscription{
		StripeSubscriptionID: "sub_" + uuid.NewString(),
		CustomerEmail:        "kim@example.com",
		ProductID:            uuid.New(),
		Frequency:            enums.FrequencyWeekly,
		Status:               enums.SubscriptionStatusActive,
		PriceCents:           1800,
		NextDeliveryDate:     time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC),
	}
	if mutate != nil {
		mutate(sub)
	}
	require.NoError(t, db.Create(sub).Error)
	return sub
}

func TestRepositoryCreateAndFindByStripeID(t *testing.T) {
	db := setupSubsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sub := seedSubscription(t, db, nil)

	found, err := repo.FindByStripeID(ctx, sub.StripeSubscriptionID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, found.ID)

	_, err = repo.FindByStripeID(ctx, "sub_missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryUniqueStripeID(t *testing.T) {
	db := setupSubsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sub := seedSubscription(t, db, nil)

	dup := &models.Subscription{
		StripeSubscriptionID: sub.StripeSubscriptionID,
		CustomerEmail:        "other@example.com",
		ProductID:            uuid.New(),
		Frequency:            enums.FrequencyMonthly,
		Status:               enums.SubscriptionStatusActive,
		PriceCents:           1500,
		NextDeliveryDate:     time.Now().UTC(),
	}
	assert.Error(t, repo.Create(ctx, dup))
}

func TestRepositoryListFilters(t *testing.T) {
	db := setupSubsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedSubscription(t, db, nil)
	seedSubscription(t, db, func(s *models.Subscription) {
		s.CustomerEmail = "lee@example.com"
		s.Status = enums.SubscriptionStatusPaused
	})

	paused := enums.SubscriptionStatusPaused
	byStatus, err := repo.List(ctx, ListFilter{Status: &paused})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "lee@example.com", byStatus[0].CustomerEmail)

	byEmail, err := repo.List(ctx, ListFilter{CustomerEmail: "kim@example.com"})
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, enums.SubscriptionStatusActive, byEmail[0].Status)
}

func TestRepositoryListDueOn(t *testing.T) {
	db := setupSubsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	due := seedSubscription(t, db, func(s *models.Subscription) {
		s.NextDeliveryDate = time.Date(2025, 8, 18, 9, 0, 0, 0, time.UTC)
	})
	seedSubscription(t, db, func(s *models.Subscription) {
		s.NextDeliveryDate = time.Date(2025, 8, 25, 9, 0, 0, 0, time.UTC)
	})
	seedSubscription(t, db, func(s *models.Subscription) {
		s.Status = enums.SubscriptionStatusPaused
		s.NextDeliveryDate = time.Date(2025, 8, 18, 9, 0, 0, 0, time.UTC)
	})

	subs, err := repo.ListDueOn(ctx, "2025-08-18")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, due.ID, subs[0].ID)
}

func TestRepositoryUpdate(t *testing.T) {
	db := setupSubsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sub := seedSubscription(t, db, nil)

	next := time.Date(2025, 8, 27, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Update(ctx, sub.ID, map[string]any{
		"status":             enums.SubscriptionStatusPastDue,
		"next_delivery_date": next,
	}))

	found, err := repo.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusPastDue, found.Status)
	assert.True(t, found.NextDeliveryDate.Equal(next))

	err = repo.Update(ctx, uuid.New(), map[string]any{"status": enums.SubscriptionStatusCanceled})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
