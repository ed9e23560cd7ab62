package drops

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
	pkgerrors "github.com/oddfellowcoffee/storefront-backend/pkg/errors"
)

func setupDropsTest(t *testing.T) (Service, *gorm.DB) {
	t.Helper()

	dsn := "file:drops_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.Drop{}, &models.DropItem{}))

	svc, err := NewService(db)
	require.NoError(t, err)
	return svc, db
}

func seedActiveProduct(t *testing.T, db *gorm.DB, priceCents int64) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:       "Croissant",
		Category:   enums.ProductCategoryBakery,
		PriceCents: priceCents,
		Active:     true,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func dropWindow() (time.Time, time.Time) {
	opens := time.Date(2025, 8, 22, 8, 0, 0, 0, time.UTC)
	return opens, opens.Add(48 * time.Hour)
}

func TestCreateDrop(t *testing.T) {
	svc, db := setupDropsTest(t)
	ctx := context.Background()
	product := seedActiveProduct(t, db, 450)

	opens, closes := dropWindow()
	override := int64(500)
	drop, err := svc.Create(ctx, CreateInput{
		Title:    "Saturday Bake",
		DropDate: opens,
		OpensAt:  opens,
		ClosesAt: &closes,
		Items: []ItemInput{
			{ProductID: product.ID, QuantityAvailable: 24, PriceCentsOverride: &override},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.DropStatusScheduled, drop.Status)
	require.Len(t, drop.Items, 1)
	assert.Equal(t, 24, drop.Items[0].QuantityAvailable)
}

func TestCreateDropValidation(t *testing.T) {
	svc, db := setupDropsTest(t)
	ctx := context.Background()
	product := seedActiveProduct(t, db, 450)
	opens, closes := dropWindow()

	_, err := svc.Create(ctx, CreateInput{Title: "No items", DropDate: opens, OpensAt: opens})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = svc.Create(ctx, CreateInput{
		Title: "Zero qty", DropDate: opens, OpensAt: opens,
		Items: []ItemInput{{ProductID: product.ID, QuantityAvailable: 0}},
	})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = svc.Create(ctx, CreateInput{
		Title: "Unknown product", DropDate: opens, OpensAt: opens, ClosesAt: &closes,
		Items: []ItemInput{{ProductID: uuid.New(), QuantityAvailable: 5}},
	})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestUpdateStatusTransitions(t *testing.T) {
	svc, db := setupDropsTest(t)
	ctx := context.Background()
	product := seedActiveProduct(t, db, 450)
	opens, closes := dropWindow()

	drop, err := svc.Create(ctx, CreateInput{
		Title: "Saturday Bake", DropDate: opens, OpensAt: opens, ClosesAt: &closes,
		Items: []ItemInput{{ProductID: product.ID, QuantityAvailable: 10}},
	})
	require.NoError(t, err)

	live, err := svc.UpdateStatus(ctx, drop.ID, enums.DropStatusLive)
	require.NoError(t, err)
	assert.Equal(t, enums.DropStatusLive, live.Status)

	// sold_out belongs to the reservation engine.
	_, err = svc.UpdateStatus(ctx, drop.ID, enums.DropStatusSoldOut)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	closed, err := svc.Close(ctx, drop.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DropStatusClosed, closed.Status)

	// Closing again is a no-op; reopening is not allowed.
	again, err := svc.Close(ctx, drop.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DropStatusClosed, again.Status)

	_, err = svc.UpdateStatus(ctx, drop.ID, enums.DropStatusLive)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
}

func TestListOpenResolvesPricesAndWindow(t *testing.T) {
	svc, db := setupDropsTest(t)
	ctx := context.Background()
	product := seedActiveProduct(t, db, 450)
	opens, closes := dropWindow()

	override := int64(500)
	drop, err := svc.Create(ctx, CreateInput{
		Title: "Saturday Bake", DropDate: opens, OpensAt: opens, ClosesAt: &closes,
		Items: []ItemInput{
			{ProductID: product.ID, QuantityAvailable: 10, PriceCentsOverride: &override},
			{ProductID: product.ID, QuantityAvailable: 5},
		},
	})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, drop.ID, enums.DropStatusLive)
	require.NoError(t, err)

	inWindow := opens.Add(time.Hour)
	views, err := svc.ListOpen(ctx, inWindow)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Len(t, views[0].Items, 2)

	prices := map[int64]bool{}
	for _, item := range views[0].Items {
		prices[item.UnitPriceCents] = true
	}
	assert.True(t, prices[500], "override price resolved")
	assert.True(t, prices[450], "base price resolved")

	// Outside the window nothing shows.
	early, err := svc.ListOpen(ctx, opens.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, early)

	late, err := svc.ListOpen(ctx, closes.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, late)
}

func TestListOpenIncludesScheduledDropsPastOpening(t *testing.T) {
	svc, db := setupDropsTest(t)
	ctx := context.Background()
	product := seedActiveProduct(t, db, 600)
	opens, closes := dropWindow()

	// No admin flips a drop to live by hand; the window alone makes a
	// scheduled drop orderable.
	drop, err := svc.Create(ctx, CreateInput{
		Title: "Sunday Pastry Case", DropDate: opens, OpensAt: opens, ClosesAt: &closes,
		Items: []ItemInput{{ProductID: product.ID, QuantityAvailable: 8}},
	})
	require.NoError(t, err)
	require.Equal(t, enums.DropStatusScheduled, drop.Status)

	views, err := svc.ListOpen(ctx, opens.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, drop.ID, views[0].Drop.ID)

	early, err := svc.ListOpen(ctx, opens.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, early)

	// sold_out drops stay off the storefront even inside the window
	require.NoError(t, db.Model(&models.Drop{}).
		Where("id = ?", drop.ID).
		Update("status", enums.DropStatusSoldOut).Error)
	gone, err := svc.ListOpen(ctx, opens.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, gone)
}
