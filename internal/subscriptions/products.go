package subscriptions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oddfellowcoffee/storefront-backend/pkg/db/models"
	pkgerrors "github.com/oddfellowcoffee/storefront-backend/pkg/errors"
)

type productCheckerImpl struct{}

// NewProductChecker exposes the default catalog lookup implementation.
func NewProductChecker() ProductChecker {
	return productCheckerImpl{}
}

func (productCheckerImpl) FindSubscribable(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := tx.WithContext(ctx).First(&product, "id = ? AND active = ? AND subscribable = ?", id, true, true).Error
	if err == gorm.ErrRecordNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product not available for subscription")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return &product, nil
}
