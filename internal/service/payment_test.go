package service_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ambos-norte-backend/internal/client"
	"ambos-norte-backend/internal/config"
	"ambos-norte-backend/internal/dto"
	"ambos-norte-backend/internal/metrics"
	"ambos-norte-backend/internal/model"
	"ambos-norte-backend/internal/repository"
	"ambos-norte-backend/internal/service"
)

// fakeGateway stands in for the payment gateway API.
type fakeGateway struct {
	preference   *client.PreferenceResult
	prefRequests []*client.PreferenceRequest
	payments     map[string]*client.GatewayPayment
	getErr       error
}

func (g *fakeGateway) CreatePreference(_ context.Context, pref *client.PreferenceRequest) (*client.PreferenceResult, error) {
	g.prefRequests = append(g.prefRequests, pref)
	if g.preference == nil {
		return nil, errors.New("no preference configured")
	}
	return g.preference, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, paymentID string) (*client.GatewayPayment, error) {
	if g.getErr != nil {
		return nil, g.getErr
	}
	payment, ok := g.payments[paymentID]
	if !ok {
		return nil, errors.New("payment not found at gateway")
	}
	return payment, nil
}

type paymentFixture struct {
	*orderFixture
	gateway  *fakeGateway
	payments service.PaymentService
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()

	base := newOrderFixture(t)
	gateway := &fakeGateway{payments: map[string]*client.GatewayPayment{}}

	orderRepo := repository.NewOrderRepository(base.db)
	historyRepo := repository.NewHistoryRepository(base.db)
	ledger := service.NewStatusLedger(orderRepo, historyRepo, base.publisher)

	cfg := &config.Config{
		BaseURL:     "https://shop.example.com",
		FrontendURL: "https://tienda.example.com",
		MercadoPago: config.MercadoPago{Descriptor: "AMBOS NORTE"},
	}

	payments := service.NewPaymentService(
		base.db,
		gateway,
		cfg,
		orderRepo,
		repository.NewPaymentRepository(base.db),
		ledger,
		metrics.NewShopMetrics(),
	)

	return &paymentFixture{orderFixture: base, gateway: gateway, payments: payments}
}

// newOrder seeds a product and places an order for it, returning the order.
func (f *paymentFixture) newOrder(t *testing.T) *model.Order {
	t.Helper()

	product := f.seedProduct(t, "Ambo clasico", 100, 10)
	order, err := f.svc.Create(context.Background(), service.Actor{}, &dto.CreateOrderRequest{
		Items:    []dto.CartItem{{ProductID: product.ID, Quantity: 3}},
		Contact:  dto.Contact{Email: "juan@example.com"},
		Shipping: &dto.Shipping{Type: "pickup", Cost: decimal.NewFromInt(20)},
	})
	require.NoError(t, err)
	return order
}

// stageGatewayPayment registers a payment at the fake gateway, keyed by its
// id, referencing the given order.
func (f *paymentFixture) stageGatewayPayment(orderID uint, gatewayID int64, status string) *client.GatewayPayment {
	payment := &client.GatewayPayment{
		ID:                gatewayID,
		Status:            status,
		StatusDetail:      "accredited",
		ExternalReference: strconv.FormatUint(uint64(orderID), 10),
		TransactionAmount: decimal.NewFromInt(320),
		PaymentMethodID:   "visa",
		Installments:      3,
	}
	payment.Payer.Email = "juan@example.com"
	payment.Order.ID = 555
	f.gateway.payments[strconv.FormatInt(gatewayID, 10)] = payment
	return payment
}

func TestCreatePreferenceStoresPendingPayment(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	order := f.newOrder(t)

	f.gateway.preference = &client.PreferenceResult{
		ID:        "pref-123",
		InitPoint: "https://mp.example.com/init/pref-123",
	}

	resp, err := f.payments.CreatePreference(ctx, service.Actor{}, &dto.CreatePreferenceRequest{
		OrderID: order.ID,
		Items: []dto.PreferenceItem{
			{Title: "Ambo clasico", Quantity: 3, UnitPrice: decimal.NewFromInt(100)},
		},
		Payer: dto.PreferencePayer{Name: "Juan", Surname: "Perez"},
	})
	require.NoError(t, err)

	assert.Equal(t, "pref-123", resp.PreferenceID)
	assert.Equal(t, order.ID, resp.OrderID)
	assert.Equal(t, "320", resp.Amount.String())

	payment, err := f.payments.Get(ctx, resp.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, payment.State)
	assert.Equal(t, "pref-123", payment.PreferenceID)
	assert.Equal(t, model.MethodMercadoPago, payment.Method)
	// payer email falls back to the order contact
	assert.Equal(t, "juan@example.com", payment.PayerEmail)

	require.Len(t, f.gateway.prefRequests, 1)
	sent := f.gateway.prefRequests[0]
	assert.Equal(t, strconv.FormatUint(uint64(order.ID), 10), sent.ExternalReference)
	assert.Equal(t, "https://shop.example.com/api/payments/webhook", sent.NotificationURL)
	assert.Equal(t, "https://tienda.example.com/compra-exitosa", sent.BackURLs.Success)
	assert.Equal(t, "AMBOS NORTE", sent.StatementDescriptor)
}

func TestCreatePreferenceValidation(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	_, err := f.payments.CreatePreference(ctx, service.Actor{}, &dto.CreatePreferenceRequest{})
	assert.ErrorIs(t, err, service.ErrValidation)

	_, err = f.payments.CreatePreference(ctx, service.Actor{}, &dto.CreatePreferenceRequest{
		OrderID: 9999,
		Items:   []dto.PreferenceItem{{Title: "x", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}},
	})
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestHandleNotificationIgnoresOtherTopics(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	assert.Equal(t, service.AckIgnored, f.payments.HandleNotification(ctx, "merchant_order", "123"))
	assert.Equal(t, service.AckIgnored, f.payments.HandleNotification(ctx, "payment", ""))
}

func TestHandleNotificationGatewayFailure(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	f.gateway.getErr = errors.New("gateway down")
	assert.Equal(t, service.AckError, f.payments.HandleNotification(ctx, "payment", "123"))
}

func TestHandleNotificationWithoutExternalReference(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	f.gateway.payments["77"] = &client.GatewayPayment{ID: 77, Status: "approved"}
	assert.Equal(t, service.AckNoExternalReference, f.payments.HandleNotification(ctx, "payment", "77"))
}

func TestHandleNotificationOrderNotFound(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	f.stageGatewayPayment(9999, 77, "approved")
	assert.Equal(t, service.AckOrderNotFound, f.payments.HandleNotification(ctx, "payment", "77"))

	// no payment row is written for an unknown order
	list, err := f.payments.List(ctx, repository.PaymentListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestApprovedNotificationMovesPendingOrderToPreparation(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	order := f.newOrder(t)

	// the order left preparation while awaiting payment
	_, err := f.svc.ChangeStatus(ctx, order.ID, "pending", service.Actor{}, "awaiting payment")
	require.NoError(t, err)

	f.stageGatewayPayment(order.ID, 77, "approved")
	assert.Equal(t, service.AckSuccess, f.payments.HandleNotification(ctx, "payment", "77"))

	reloaded, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusInPreparation, reloaded.State)

	list, err := f.payments.List(ctx, repository.PaymentListFilter{OrderID: order.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	payment := list[0]
	assert.Equal(t, model.PaymentStatusApproved, payment.State)
	assert.Equal(t, "visa", payment.Method)
	assert.Equal(t, 3, payment.Installments)
	require.NotNil(t, payment.PaidAt)

	entries, err := f.svc.History(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "payment approved - id: 77", entries[2].Comment)
}

func TestApprovedNotificationIsIdempotent(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	order := f.newOrder(t)

	_, err := f.svc.ChangeStatus(ctx, order.ID, "pending", service.Actor{}, "awaiting payment")
	require.NoError(t, err)

	f.stageGatewayPayment(order.ID, 77, "approved")
	assert.Equal(t, service.AckSuccess, f.payments.HandleNotification(ctx, "payment", "77"))

	list, err := f.payments.List(ctx, repository.PaymentListFilter{OrderID: order.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	firstPaidAt := list[0].PaidAt
	require.NotNil(t, firstPaidAt)

	// the gateway redelivers the same notification
	assert.Equal(t, service.AckSuccess, f.payments.HandleNotification(ctx, "payment", "77"))

	list, err = f.payments.List(ctx, repository.PaymentListFilter{OrderID: order.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].PaidAt.Equal(*firstPaidAt))

	entries, err := f.svc.History(ctx, order.ID)
	require.NoError(t, err)
	preparationEntries := 0
	for _, e := range entries {
		if e.NewState == model.OrderStatusInPreparation && e.PreviousState != nil {
			preparationEntries++
		}
	}
	assert.Equal(t, 1, preparationEntries)
}

func TestRejectedNotificationCancelsOrder(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	order := f.newOrder(t)

	f.stageGatewayPayment(order.ID, 88, "rejected")
	assert.Equal(t, service.AckSuccess, f.payments.HandleNotification(ctx, "payment", "88"))

	reloaded, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, reloaded.State)
	assert.False(t, reloaded.Active)

	entries, err := f.svc.History(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "payment rejected - id: 88", entries[1].Comment)

	// redelivery adds nothing
	assert.Equal(t, service.AckSuccess, f.payments.HandleNotification(ctx, "payment", "88"))
	assert.EqualValues(t, 2, f.historyCount(t, order.ID))
}

func TestUnmappedStatusLeavesOrderAlone(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	order := f.newOrder(t)

	f.stageGatewayPayment(order.ID, 99, "charged_back")
	assert.Equal(t, service.AckSuccess, f.payments.HandleNotification(ctx, "payment", "99"))

	list, err := f.payments.List(ctx, repository.PaymentListFilter{OrderID: order.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.PaymentStatusPending, list[0].State)
	assert.Nil(t, list[0].PaidAt)

	reloaded, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusInPreparation, reloaded.State)
	assert.EqualValues(t, 1, f.historyCount(t, order.ID))
}

func TestConfirmUpsertsAndReturnsPayment(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	order := f.newOrder(t)

	payment, err := f.payments.Confirm(ctx, &dto.ConfirmPaymentRequest{
		OrderID:           order.ID,
		PaymentID:         "555",
		Status:            "approved",
		StatusDetail:      "accredited",
		TransactionAmount: decimal.NewFromInt(320),
		PaymentMethodID:   "master",
		PayerEmail:        "juan@example.com",
		Installments:      6,
	})
	require.NoError(t, err)

	assert.Equal(t, model.PaymentStatusApproved, payment.State)
	assert.Equal(t, "accredited", payment.StatusDetail)
	assert.Equal(t, "master", payment.Method)
	assert.Equal(t, 6, payment.Installments)
	require.NotNil(t, payment.GatewayPaymentID)
	assert.Equal(t, "555", *payment.GatewayPaymentID)
	require.NotNil(t, payment.PaidAt)
}

func TestConfirmValidation(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	_, err := f.payments.Confirm(ctx, &dto.ConfirmPaymentRequest{})
	assert.ErrorIs(t, err, service.ErrValidation)

	_, err = f.payments.Confirm(ctx, &dto.ConfirmPaymentRequest{
		OrderID:   9999,
		PaymentID: "555",
		Status:    "approved",
	})
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestSetStateManualApproval(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	order := f.newOrder(t)

	f.gateway.preference = &client.PreferenceResult{ID: "pref-1", InitPoint: "https://mp.example.com/init"}
	resp, err := f.payments.CreatePreference(ctx, service.Actor{}, &dto.CreatePreferenceRequest{
		OrderID: order.ID,
		Items:   []dto.PreferenceItem{{Title: "Ambo clasico", Quantity: 3, UnitPrice: decimal.NewFromInt(100)}},
	})
	require.NoError(t, err)

	adminID := uint(1)
	payment, err := f.payments.SetState(ctx, resp.PaymentID, "approved", service.Actor{UserID: &adminID})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusApproved, payment.State)
	require.NotNil(t, payment.PaidAt)
	firstPaidAt := *payment.PaidAt

	// approving again keeps the original timestamp
	payment, err = f.payments.SetState(ctx, resp.PaymentID, "approved", service.Actor{UserID: &adminID})
	require.NoError(t, err)
	require.NotNil(t, payment.PaidAt)
	assert.True(t, payment.PaidAt.Equal(firstPaidAt))
}

func TestSetStateCancelledCancelsOrder(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	order := f.newOrder(t)

	f.gateway.preference = &client.PreferenceResult{ID: "pref-1", InitPoint: "https://mp.example.com/init"}
	resp, err := f.payments.CreatePreference(ctx, service.Actor{}, &dto.CreatePreferenceRequest{
		OrderID: order.ID,
		Items:   []dto.PreferenceItem{{Title: "Ambo clasico", Quantity: 3, UnitPrice: decimal.NewFromInt(100)}},
	})
	require.NoError(t, err)

	adminID := uint(1)
	_, err = f.payments.SetState(ctx, resp.PaymentID, "cancelled", service.Actor{UserID: &adminID})
	require.NoError(t, err)

	reloaded, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, reloaded.State)
	assert.False(t, reloaded.Active)

	entries, err := f.svc.History(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Contains(t, entries[1].Comment, "manual payment state change")
	require.NotNil(t, entries[1].ActorID)
	assert.Equal(t, adminID, *entries[1].ActorID)
}

func TestSetStateRejectsNonManualStates(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	_, err := f.payments.SetState(ctx, 1, "rejected", service.Actor{})
	assert.ErrorIs(t, err, service.ErrInvalidState)

	_, err = f.payments.SetState(ctx, 9999, "approved", service.Actor{})
	assert.ErrorIs(t, err, service.ErrNotFound)
}
