package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ambos-norte-backend/internal/model"
)

type ProductRepository interface {
	// FindByIDForUpdate takes a row-level exclusive lock on the product for
	// the duration of tx, serializing concurrent stock checks.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, productID uint) (*model.Product, error)
}

type productRepoImpl struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepoImpl{
		db: db,
	}
}

func (r *productRepoImpl) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, productID uint) (*model.Product, error) {
	var product model.Product
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", productID).
		First(&product).Error

	if err != nil {
		return nil, err
	}

	return &product, nil
}
