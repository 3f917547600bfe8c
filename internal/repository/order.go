package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"ambos-norte-backend/internal/model"
)

// OrderListFilter narrows List results. Zero values mean "no filter".
type OrderListFilter struct {
	State      model.OrderStatus
	UserID     *uint
	ActiveOnly bool
}

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	CreateItems(ctx context.Context, tx *gorm.DB, items []*model.OrderItem) error
	FindByID(ctx context.Context, orderID uint) (*model.Order, error)
	FindByIDTx(ctx context.Context, tx *gorm.DB, orderID uint) (*model.Order, error)
	List(ctx context.Context, filter OrderListFilter) ([]*model.Order, error)
	// UpdateState applies a version-guarded state transition. Returns false
	// when another writer advanced the order first (stale version).
	UpdateState(ctx context.Context, tx *gorm.DB, orderID uint, version int, newState model.OrderStatus, active bool) (bool, error)
	SetActive(ctx context.Context, tx *gorm.DB, orderID uint, version int, active bool) (bool, error)

	CountActive(ctx context.Context) (int64, error)
	CountByState(ctx context.Context, state model.OrderStatus) (int64, error)
	SumTotalByStates(ctx context.Context, states []model.OrderStatus) (decimal.Decimal, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return tx.WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) CreateItems(ctx context.Context, tx *gorm.DB, items []*model.OrderItem) error {
	return tx.WithContext(ctx).Create(&items).Error
}

func (r *orderRepoImpl) FindByID(ctx context.Context, orderID uint) (*model.Order, error) {
	return r.findByID(ctx, r.db, orderID)
}

func (r *orderRepoImpl) FindByIDTx(ctx context.Context, tx *gorm.DB, orderID uint) (*model.Order, error) {
	return r.findByID(ctx, tx, orderID)
}

func (r *orderRepoImpl) findByID(ctx context.Context, db *gorm.DB, orderID uint) (*model.Order, error) {
	var order model.Order
	err := db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", orderID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) List(ctx context.Context, filter OrderListFilter) ([]*model.Order, error) {
	query := r.db.WithContext(ctx).Preload("Items")

	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}

	var orders []*model.Order
	err := query.Order("created_at DESC").Find(&orders).Error
	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepoImpl) UpdateState(ctx context.Context, tx *gorm.DB, orderID uint, version int, newState model.OrderStatus, active bool) (bool, error) {
	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND version = ?", orderID, version).
		Updates(map[string]interface{}{
			"state":      newState,
			"active":     active,
			"version":    version + 1,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *orderRepoImpl) SetActive(ctx context.Context, tx *gorm.DB, orderID uint, version int, active bool) (bool, error) {
	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND version = ?", orderID, version).
		Updates(map[string]interface{}{
			"active":     active,
			"version":    version + 1,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *orderRepoImpl) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("active = ?", true).
		Count(&count).Error

	return count, err
}

func (r *orderRepoImpl) CountByState(ctx context.Context, state model.OrderStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("state = ? AND active = ?", state, true).
		Count(&count).Error

	return count, err
}

func (r *orderRepoImpl) SumTotalByStates(ctx context.Context, states []model.OrderStatus) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Select("COALESCE(SUM(total), 0)").
		Where("state IN ? AND active = ?", states, true).
		Row().Scan(&total)

	if err != nil {
		return decimal.Zero, err
	}

	return total, nil
}

func (r *orderRepoImpl) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("created_at >= ? AND active = ?", since, true).
		Count(&count).Error

	return count, err
}
