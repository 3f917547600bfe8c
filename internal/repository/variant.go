package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ambos-norte-backend/internal/model"
)

type VariantRepository interface {
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, variantID uint) (*model.ProductVariant, error)
	// ActiveByProductForUpdate returns the product's active variants locked for
	// update, ordered by descending stock (deterministic greedy decrement).
	ActiveByProductForUpdate(ctx context.Context, tx *gorm.DB, productID uint) ([]*model.ProductVariant, error)
	// DecrementStock subtracts quantity from a variant, guarded so stock can
	// never go negative. Returns false without modifying the row when the
	// variant no longer holds enough stock.
	DecrementStock(ctx context.Context, tx *gorm.DB, variantID uint, quantity int) (bool, error)
	ActiveStockSum(ctx context.Context, tx *gorm.DB, productID uint) (int, error)
}

type variantRepoImpl struct {
	db *gorm.DB
}

func NewVariantRepository(db *gorm.DB) VariantRepository {
	return &variantRepoImpl{
		db: db,
	}
}

func (r *variantRepoImpl) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, variantID uint) (*model.ProductVariant, error) {
	var variant model.ProductVariant
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", variantID).
		First(&variant).Error

	if err != nil {
		return nil, err
	}

	return &variant, nil
}

func (r *variantRepoImpl) ActiveByProductForUpdate(ctx context.Context, tx *gorm.DB, productID uint) ([]*model.ProductVariant, error) {
	var variants []*model.ProductVariant
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND active = ? AND stock > 0", productID, true).
		Order("stock DESC, id ASC").
		Find(&variants).Error

	if err != nil {
		return nil, err
	}

	return variants, nil
}

func (r *variantRepoImpl) DecrementStock(ctx context.Context, tx *gorm.DB, variantID uint, quantity int) (bool, error) {
	result := tx.WithContext(ctx).Model(&model.ProductVariant{}).
		Where("id = ? AND stock >= ?", variantID, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *variantRepoImpl) ActiveStockSum(ctx context.Context, tx *gorm.DB, productID uint) (int, error) {
	var sum *int
	err := tx.WithContext(ctx).Model(&model.ProductVariant{}).
		Select("SUM(stock)").
		Where("product_id = ? AND active = ?", productID, true).
		Scan(&sum).Error

	if err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}

	return *sum, nil
}
