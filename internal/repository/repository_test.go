package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ambos-norte-backend/internal/model"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps every session on the same in-memory database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Product{},
		&model.ProductVariant{},
		&model.Address{},
		&model.Order{},
		&model.OrderItem{},
		&model.OrderStatusEntry{},
		&model.Payment{},
	))

	return db
}

func TestOrderUpdateStateVersionGuard(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewOrderRepository(db)

	order := &model.Order{
		Number:   "PN20250101000000-abc",
		Subtotal: decimal.NewFromInt(100),
		Total:    decimal.NewFromInt(100),
		State:    model.OrderStatusInPreparation,
		Active:   true,
	}
	require.NoError(t, repo.Create(ctx, db, order))

	ok, err := repo.UpdateState(ctx, db, order.ID, order.Version, model.OrderStatusShipped, true)
	require.NoError(t, err)
	require.True(t, ok)

	// stale version loses the race
	ok, err = repo.UpdateState(ctx, db, order.ID, order.Version, model.OrderStatusDelivered, true)
	require.NoError(t, err)
	require.False(t, ok)

	var reloaded model.Order
	require.NoError(t, db.First(&reloaded, order.ID).Error)
	require.Equal(t, model.OrderStatusShipped, reloaded.State)
	require.Equal(t, order.Version+1, reloaded.Version)
}

func TestVariantDecrementStockGuard(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewVariantRepository(db)

	product := &model.Product{Name: "Ambo clasico", BasePrice: decimal.NewFromInt(100), Active: true}
	require.NoError(t, db.Create(product).Error)
	variant := &model.ProductVariant{ProductID: product.ID, Size: "M", Color: "azul", Stock: 3, Active: true}
	require.NoError(t, db.Create(variant).Error)

	ok, err := repo.DecrementStock(ctx, db, variant.ID, 2)
	require.NoError(t, err)
	require.True(t, ok)

	// only 1 left, decrementing 2 must not go negative
	ok, err = repo.DecrementStock(ctx, db, variant.ID, 2)
	require.NoError(t, err)
	require.False(t, ok)

	var reloaded model.ProductVariant
	require.NoError(t, db.First(&reloaded, variant.ID).Error)
	require.Equal(t, 1, reloaded.Stock)
}

func TestVariantActiveByProductOrdering(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewVariantRepository(db)

	product := &model.Product{Name: "Ambo clasico", BasePrice: decimal.NewFromInt(100), Active: true}
	require.NoError(t, db.Create(product).Error)

	variants := []*model.ProductVariant{
		{ProductID: product.ID, Size: "S", Color: "azul", Stock: 2, Active: true},
		{ProductID: product.ID, Size: "M", Color: "azul", Stock: 5, Active: true},
		{ProductID: product.ID, Size: "L", Color: "azul", Stock: 3, Active: true},
		{ProductID: product.ID, Size: "XL", Color: "azul", Stock: 9, Active: false},
		{ProductID: product.ID, Size: "S", Color: "rojo", Stock: 0, Active: true},
	}
	for _, v := range variants {
		require.NoError(t, db.Create(v).Error)
	}

	got, err := repo.ActiveByProductForUpdate(ctx, db, product.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, 5, got[0].Stock)
	require.Equal(t, 3, got[1].Stock)
	require.Equal(t, 2, got[2].Stock)

	sum, err := repo.ActiveStockSum(ctx, db, product.ID)
	require.NoError(t, err)
	require.Equal(t, 10, sum)
}

func TestPaymentFindByGatewayID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewPaymentRepository(db)

	_, found, err := repo.FindByGatewayID(ctx, db, "12345")
	require.NoError(t, err)
	require.False(t, found)

	gatewayID := "12345"
	payment := &model.Payment{
		OrderID:          1,
		OrderNumber:      "PN20250101000000-abc",
		GatewayPaymentID: &gatewayID,
		Amount:           decimal.NewFromInt(320),
		Method:           model.MethodMercadoPago,
		State:            model.PaymentStatusPending,
		Installments:     1,
	}
	require.NoError(t, repo.Create(ctx, db, payment))

	got, found, err := repo.FindByGatewayID(ctx, db, "12345")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, payment.ID, got.ID)
}
