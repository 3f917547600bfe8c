package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"ambos-norte-backend/internal/model"
)

type PaymentListFilter struct {
	OrderID uint
	State   model.PaymentStatus
}

type PaymentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error
	Save(ctx context.Context, tx *gorm.DB, payment *model.Payment) error
	FindByID(ctx context.Context, paymentID uint) (*model.Payment, error)
	FindByIDTx(ctx context.Context, tx *gorm.DB, paymentID uint) (*model.Payment, error)
	// FindByGatewayID resolves a payment by the gateway's identifier; found is
	// false when no attempt with that id exists yet.
	FindByGatewayID(ctx context.Context, tx *gorm.DB, gatewayPaymentID string) (*model.Payment, bool, error)
	List(ctx context.Context, filter PaymentListFilter) ([]*model.Payment, error)
}

type paymentRepoImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepoImpl{
		db: db,
	}
}

func (r *paymentRepoImpl) Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	return tx.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepoImpl) Save(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	return tx.WithContext(ctx).Save(payment).Error
}

func (r *paymentRepoImpl) FindByID(ctx context.Context, paymentID uint) (*model.Payment, error) {
	return r.findByID(ctx, r.db, paymentID)
}

func (r *paymentRepoImpl) FindByIDTx(ctx context.Context, tx *gorm.DB, paymentID uint) (*model.Payment, error) {
	return r.findByID(ctx, tx, paymentID)
}

func (r *paymentRepoImpl) findByID(ctx context.Context, db *gorm.DB, paymentID uint) (*model.Payment, error) {
	var payment model.Payment
	err := db.WithContext(ctx).
		Where("id = ?", paymentID).
		First(&payment).Error

	if err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepoImpl) FindByGatewayID(ctx context.Context, tx *gorm.DB, gatewayPaymentID string) (*model.Payment, bool, error) {
	var payment model.Payment
	err := tx.WithContext(ctx).
		Where("gateway_payment_id = ?", gatewayPaymentID).
		First(&payment).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &payment, true, nil
}

func (r *paymentRepoImpl) List(ctx context.Context, filter PaymentListFilter) ([]*model.Payment, error) {
	query := r.db.WithContext(ctx)

	if filter.OrderID != 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}

	var payments []*model.Payment
	err := query.Order("created_at DESC").Find(&payments).Error
	if err != nil {
		return nil, err
	}

	return payments, nil
}
