package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oddfellowcoffee/storefront-backend/pkg/db/models"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db/types"
	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
	pkgerrors "github.com/oddfellowcoffee/storefront-backend/pkg/errors"
)

func setupProductService(t *testing.T) Service {
	t.Helper()

	dsn := "file:products_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}))

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	return svc
}

func TestCreateAndGet(t *testing.T) {
	svc := setupProductService(t)
	ctx := context.Background()

	override := int64(2200)
	created, err := svc.Create(ctx, CreateInput{
		Name:         "Single Origin",
		Category:     enums.ProductCategoryCoffee,
		PriceCents:   1800,
		Subscribable: true,
		Variants: &types.ProductVariants{
			{Name: "ground"},
			{Name: "whole-bean", PriceCents: &override},
		},
	})
	require.NoError(t, err)
	assert.True(t, created.Active)

	found, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Single Origin", found.Name)
	require.NotNil(t, found.Variants)
	assert.Equal(t, int64(2200), found.Variants.PriceCentsFor("whole-bean", found.PriceCents))
	assert.Equal(t, int64(1800), found.Variants.PriceCentsFor("ground", found.PriceCents))
}

func TestCreateValidation(t *testing.T) {
	svc := setupProductService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: " ", Category: enums.ProductCategoryCoffee, PriceCents: 100})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = svc.Create(ctx, CreateInput{Name: "Bad", Category: "candles", PriceCents: 100})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = svc.Create(ctx, CreateInput{Name: "Bad", Category: enums.ProductCategoryCoffee, PriceCents: -1})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = svc.Create(ctx, CreateInput{
		Name:       "Bad",
		Category:   enums.ProductCategoryCoffee,
		PriceCents: 100,
		Variants:   &types.ProductVariants{{Name: "a"}, {Name: "a"}},
	})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestUpdatePartial(t *testing.T) {
	svc := setupProductService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Name: "Sourdough", Category: enums.ProductCategoryBakery, PriceCents: 900})
	require.NoError(t, err)

	newPrice := int64(950)
	stock := 12
	updated, err := svc.Update(ctx, created.ID, UpdateInput{PriceCents: &newPrice, StockQuantity: &stock})
	require.NoError(t, err)
	assert.Equal(t, int64(950), updated.PriceCents)
	require.NotNil(t, updated.StockQuantity)
	assert.Equal(t, 12, *updated.StockQuantity)
	assert.Equal(t, "Sourdough", updated.Name)
}

func TestDeactivateHidesFromActiveListing(t *testing.T) {
	svc := setupProductService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Name: "Cinnamon Roll", Category: enums.ProductCategoryBakery, PriceCents: 500})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, created.ID))
	// Idempotent.
	require.NoError(t, svc.Deactivate(ctx, created.ID))

	active, err := svc.List(ctx, ListFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// Still loadable by id for order history.
	found, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, found.Active)
}

func TestGetMissing(t *testing.T) {
	svc := setupProductService(t)

	_, err := svc.Get(context.Background(), uuid.New())
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}
