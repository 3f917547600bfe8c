package repository

import (
	"context"

	"gorm.io/gorm"

	"ambos-norte-backend/internal/model"
)

// HistoryRepository is the append-only order state ledger. Entries are never
// updated or deleted.
type HistoryRepository interface {
	Append(ctx context.Context, tx *gorm.DB, entry *model.OrderStatusEntry) error
	ListByOrder(ctx context.Context, orderID uint) ([]*model.OrderStatusEntry, error)
}

type historyRepoImpl struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepoImpl{
		db: db,
	}
}

func (r *historyRepoImpl) Append(ctx context.Context, tx *gorm.DB, entry *model.OrderStatusEntry) error {
	return tx.WithContext(ctx).Create(entry).Error
}

func (r *historyRepoImpl) ListByOrder(ctx context.Context, orderID uint) ([]*model.OrderStatusEntry, error) {
	var entries []*model.OrderStatusEntry
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error

	if err != nil {
		return nil, err
	}

	return entries, nil
}
