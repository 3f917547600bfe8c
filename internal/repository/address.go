package repository

import (
	"context"

	"gorm.io/gorm"

	"ambos-norte-backend/internal/model"
)

type AddressRepository interface {
	Create(ctx context.Context, tx *gorm.DB, address *model.Address) error
}

type addressRepoImpl struct {
	db *gorm.DB
}

func NewAddressRepository(db *gorm.DB) AddressRepository {
	return &addressRepoImpl{
		db: db,
	}
}

func (r *addressRepoImpl) Create(ctx context.Context, tx *gorm.DB, address *model.Address) error {
	return tx.WithContext(ctx).Create(address).Error
}
