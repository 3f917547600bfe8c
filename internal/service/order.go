package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ambos-norte-backend/internal/dto"
	"ambos-norte-backend/internal/metrics"
	"ambos-norte-backend/internal/model"
	"ambos-norte-backend/internal/repository"
)

// ShippingHomeDelivery requires a shipping address on the order.
const ShippingHomeDelivery = "home_delivery"

// Actor identifies who is performing an operation. A zero Actor means the
// system itself.
type Actor struct {
	UserID *uint
	Email  string
}

type OrderService interface {
	Create(ctx context.Context, actor Actor, req *dto.CreateOrderRequest) (*model.Order, error)
	Get(ctx context.Context, orderID uint) (*model.Order, error)
	List(ctx context.Context, filter repository.OrderListFilter) ([]*model.Order, error)
	ChangeStatus(ctx context.Context, orderID uint, newState string, actor Actor, comment string) (*model.Order, error)
	Deactivate(ctx context.Context, orderID uint, actor Actor) (*model.Order, error)
	ToggleActive(ctx context.Context, orderID uint, actor Actor) (*model.Order, error)
	History(ctx context.Context, orderID uint) ([]*model.OrderStatusEntry, error)
	Stats(ctx context.Context) (*dto.OrderStatsResponse, error)
}

type orderServiceImpl struct {
	db          *gorm.DB
	productRepo repository.ProductRepository
	variantRepo repository.VariantRepository
	orderRepo   repository.OrderRepository
	historyRepo repository.HistoryRepository
	addressRepo repository.AddressRepository
	ledger      *StatusLedger
	metrics     *metrics.ShopMetrics
	logger      *log.Entry
}

func NewOrderService(
	db *gorm.DB,
	productRepo repository.ProductRepository,
	variantRepo repository.VariantRepository,
	orderRepo repository.OrderRepository,
	historyRepo repository.HistoryRepository,
	addressRepo repository.AddressRepository,
	ledger *StatusLedger,
	shopMetrics *metrics.ShopMetrics,
) OrderService {
	return &orderServiceImpl{
		db:          db,
		productRepo: productRepo,
		variantRepo: variantRepo,
		orderRepo:   orderRepo,
		historyRepo: historyRepo,
		addressRepo: addressRepo,
		ledger:      ledger,
		metrics:     shopMetrics,
		logger:      log.WithField("component", "order-service"),
	}
}

// cartLine carries one validated cart entry through the transaction.
type cartLine struct {
	product   *model.Product
	variant   *model.ProductVariant
	quantity  int
	unitPrice decimal.Decimal
	subtotal  decimal.Decimal
}

func (s *orderServiceImpl) Create(ctx context.Context, actor Actor, req *dto.CreateOrderRequest) (*model.Order, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: items is required", ErrValidation)
	}

	shippingCost := decimal.Zero
	if req.Shipping != nil {
		shippingCost = req.Shipping.Cost
		if req.Shipping.Type == ShippingHomeDelivery && req.Shipping.Address == nil {
			return nil, fmt.Errorf("%w: shipping address is required for home delivery", ErrValidation)
		}
	}

	contactEmail := req.Contact.Email
	if contactEmail == "" {
		contactEmail = actor.Email
	}

	var order *model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock order follows cart iteration order; clients submitting carts
		// with conflicting orderings can in principle deadlock, accepted at
		// this scale.
		lines := make([]*cartLine, 0, len(req.Items))
		subtotal := decimal.Zero

		for i, item := range req.Items {
			line, err := s.validateLine(ctx, tx, i, &item)
			if err != nil {
				return err
			}
			lines = append(lines, line)
			subtotal = subtotal.Add(line.subtotal)
		}

		var addressID *uint
		if req.Shipping != nil && req.Shipping.Type == ShippingHomeDelivery {
			address := &model.Address{
				Street:     req.Shipping.Address.Street,
				Number:     req.Shipping.Address.Number,
				Unit:       req.Shipping.Address.Unit,
				City:       req.Shipping.Address.City,
				Province:   req.Shipping.Address.Province,
				PostalCode: req.Shipping.Address.PostalCode,
			}
			if err := s.addressRepo.Create(ctx, tx, address); err != nil {
				return fmt.Errorf("create shipping address: %w", err)
			}
			addressID = &address.ID
		}

		order = &model.Order{
			Number:       newOrderNumber(time.Now()),
			UserID:       actor.UserID,
			ContactEmail: contactEmail,
			ContactPhone: req.Contact.Phone,
			Subtotal:     subtotal,
			ShippingCost: shippingCost,
			Total:        subtotal.Add(shippingCost),
			State:        model.OrderStatusInPreparation,
			Active:       true,
			Notes:        req.Notes,
			AddressID:    addressID,
		}
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		items := make([]*model.OrderItem, len(lines))
		for i, line := range lines {
			var variantID *uint
			if line.variant != nil {
				variantID = &line.variant.ID
			}
			items[i] = &model.OrderItem{
				OrderID:     order.ID,
				ProductID:   line.product.ID,
				VariantID:   variantID,
				ProductName: line.product.Name,
				Quantity:    line.quantity,
				UnitPrice:   line.unitPrice,
				Subtotal:    line.subtotal,
			}
		}
		if err := s.orderRepo.CreateItems(ctx, tx, items); err != nil {
			return fmt.Errorf("create order items: %w", err)
		}

		for i, line := range lines {
			if err := s.decrementStock(ctx, tx, i, line); err != nil {
				return err
			}
		}

		entry := &model.OrderStatusEntry{
			OrderID:       order.ID,
			PreviousState: nil,
			NewState:      model.OrderStatusInPreparation,
			ActorID:       actor.UserID,
			Comment:       "order created",
		}
		if err := s.historyRepo.Append(ctx, tx, entry); err != nil {
			return fmt.Errorf("append initial history entry: %w", err)
		}

		return nil
	})
	if err != nil {
		s.metrics.OrderCreateFailed()
		return nil, err
	}

	s.metrics.OrderCreated()
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"number":   order.Number,
		"total":    order.Total.String(),
	}).Info("order created")

	return s.orderRepo.FindByID(ctx, order.ID)
}

// validateLine locks the referenced catalog rows, checks stock and re-derives
// the unit price from server-side state. A client-supplied price that
// disagrees fails the line.
func (s *orderServiceImpl) validateLine(ctx context.Context, tx *gorm.DB, idx int, item *dto.CartItem) (*cartLine, error) {
	if item.Quantity <= 0 {
		return nil, &CartError{
			Line:   idx,
			Reason: fmt.Sprintf("invalid quantity %d", item.Quantity),
			Err:    ErrInvalidQuantity,
		}
	}

	product, err := s.productRepo.FindByIDForUpdate(ctx, tx, item.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &CartError{
				Line:   idx,
				Reason: fmt.Sprintf("product %d does not exist", item.ProductID),
				Err:    ErrNotFound,
			}
		}
		return nil, fmt.Errorf("load product %d: %w", item.ProductID, err)
	}

	unitPrice := product.BasePrice

	var variant *model.ProductVariant
	if item.VariantID != nil {
		variant, err = s.variantRepo.FindByIDForUpdate(ctx, tx, *item.VariantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, &CartError{
					Line:   idx,
					Reason: fmt.Sprintf("variant %d does not exist", *item.VariantID),
					Err:    ErrNotFound,
				}
			}
			return nil, fmt.Errorf("load variant %d: %w", *item.VariantID, err)
		}
		if variant.ProductID != product.ID || !variant.Active {
			return nil, &CartError{
				Line:   idx,
				Reason: fmt.Sprintf("variant %d does not belong to product %d", *item.VariantID, product.ID),
				Err:    ErrNotFound,
			}
		}

		unitPrice = variant.UnitPrice(product.BasePrice)

		if variant.Stock < item.Quantity {
			return nil, &CartError{
				Line:   idx,
				Reason: fmt.Sprintf("insufficient stock for %q, available: %d", product.Name, variant.Stock),
				Err:    ErrInsufficientStock,
			}
		}
	} else {
		available, err := s.variantRepo.ActiveStockSum(ctx, tx, product.ID)
		if err != nil {
			return nil, fmt.Errorf("sum stock for product %d: %w", product.ID, err)
		}
		if available < item.Quantity {
			return nil, &CartError{
				Line:   idx,
				Reason: fmt.Sprintf("insufficient stock for %q, available: %d", product.Name, available),
				Err:    ErrInsufficientStock,
			}
		}
	}

	if item.UnitPrice != nil && !item.UnitPrice.Equal(unitPrice) {
		return nil, &CartError{
			Line:   idx,
			Reason: fmt.Sprintf("unit price %s does not match catalog price %s", item.UnitPrice, unitPrice),
			Err:    ErrPriceMismatch,
		}
	}

	return &cartLine{
		product:   product,
		variant:   variant,
		quantity:  item.Quantity,
		unitPrice: unitPrice,
		subtotal:  unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
	}, nil
}

// decrementStock consumes inventory for one cart line. A named variant is
// decremented directly; otherwise stock is drawn greedily from the product's
// active variants, most stocked first.
func (s *orderServiceImpl) decrementStock(ctx context.Context, tx *gorm.DB, idx int, line *cartLine) error {
	if line.variant != nil {
		ok, err := s.variantRepo.DecrementStock(ctx, tx, line.variant.ID, line.quantity)
		if err != nil {
			return fmt.Errorf("decrement variant stock: %w", err)
		}
		if !ok {
			return &CartError{
				Line:   idx,
				Reason: fmt.Sprintf("insufficient stock for %q", line.product.Name),
				Err:    ErrInsufficientStock,
			}
		}
		return nil
	}

	variants, err := s.variantRepo.ActiveByProductForUpdate(ctx, tx, line.product.ID)
	if err != nil {
		return fmt.Errorf("load variants for decrement: %w", err)
	}

	remaining := line.quantity
	for _, variant := range variants {
		if remaining <= 0 {
			break
		}
		take := remaining
		if variant.Stock < take {
			take = variant.Stock
		}
		if take == 0 {
			continue
		}
		ok, err := s.variantRepo.DecrementStock(ctx, tx, variant.ID, take)
		if err != nil {
			return fmt.Errorf("decrement variant stock: %w", err)
		}
		if !ok {
			return &CartError{
				Line:   idx,
				Reason: fmt.Sprintf("insufficient stock for %q", line.product.Name),
				Err:    ErrInsufficientStock,
			}
		}
		remaining -= take
	}

	if remaining > 0 {
		return &CartError{
			Line:   idx,
			Reason: fmt.Sprintf("insufficient stock for %q", line.product.Name),
			Err:    ErrInsufficientStock,
		}
	}

	return nil
}

func (s *orderServiceImpl) Get(ctx context.Context, orderID uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, err
	}
	return order, nil
}

func (s *orderServiceImpl) List(ctx context.Context, filter repository.OrderListFilter) ([]*model.Order, error) {
	return s.orderRepo.List(ctx, filter)
}

func (s *orderServiceImpl) ChangeStatus(ctx context.Context, orderID uint, newState string, actor Actor, comment string) (*model.Order, error) {
	state := model.OrderStatus(newState)
	if !state.Valid() {
		return nil, fmt.Errorf("%w: %q, valid states: %v", ErrInvalidState, newState, model.OrderStatuses())
	}

	var order *model.Order
	var entry *model.OrderStatusEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.findOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}

		entry, err = s.ledger.Transition(ctx, tx, order, state, actor.UserID, comment)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.ledger.Publish(order, entry)
	return order, nil
}

// Deactivate soft-deletes an order: state forced to cancelled, active
// cleared. Calling it on an already-inactive order is a no-op error.
func (s *orderServiceImpl) Deactivate(ctx context.Context, orderID uint, actor Actor) (*model.Order, error) {
	var order *model.Order
	var entry *model.OrderStatusEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.findOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !order.Active {
			return ErrOrderInactive
		}

		entry, err = s.ledger.Transition(ctx, tx, order, model.OrderStatusCancelled, actor.UserID, "order cancelled and deactivated")
		return err
	})
	if err != nil {
		return nil, err
	}

	s.ledger.Publish(order, entry)
	return order, nil
}

// ToggleActive deactivates an active order (cancelling it) or reactivates an
// inactive one, keeping whatever state it had.
func (s *orderServiceImpl) ToggleActive(ctx context.Context, orderID uint, actor Actor) (*model.Order, error) {
	var order *model.Order
	var entry *model.OrderStatusEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.findOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if order.Active {
			entry, err = s.ledger.Transition(ctx, tx, order, model.OrderStatusCancelled, actor.UserID, "order cancelled and deactivated")
			return err
		}

		ok, err := s.orderRepo.SetActive(ctx, tx, order.ID, order.Version, true)
		if err != nil {
			return fmt.Errorf("reactivate order: %w", err)
		}
		if !ok {
			return ErrConflict
		}

		previous := model.OrderStatusCancelled
		entry = &model.OrderStatusEntry{
			OrderID:       order.ID,
			PreviousState: &previous,
			NewState:      order.State,
			ActorID:       actor.UserID,
			Comment:       "order reactivated",
		}
		if err := s.historyRepo.Append(ctx, tx, entry); err != nil {
			return fmt.Errorf("append history entry: %w", err)
		}

		order.Active = true
		order.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.ledger.Publish(order, entry)
	return order, nil
}

func (s *orderServiceImpl) History(ctx context.Context, orderID uint) ([]*model.OrderStatusEntry, error) {
	if _, err := s.Get(ctx, orderID); err != nil {
		return nil, err
	}
	return s.historyRepo.ListByOrder(ctx, orderID)
}

func (s *orderServiceImpl) Stats(ctx context.Context) (*dto.OrderStatsResponse, error) {
	total, err := s.orderRepo.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("count active orders: %w", err)
	}

	byState := make(map[model.OrderStatus]int64, len(model.OrderStatuses()))
	for _, state := range model.OrderStatuses() {
		count, err := s.orderRepo.CountByState(ctx, state)
		if err != nil {
			return nil, fmt.Errorf("count orders by state: %w", err)
		}
		byState[state] = count
	}

	sold, err := s.orderRepo.SumTotalByStates(ctx, []model.OrderStatus{
		model.OrderStatusInPreparation,
		model.OrderStatusShipped,
		model.OrderStatusDelivered,
	})
	if err != nil {
		return nil, fmt.Errorf("sum sold totals: %w", err)
	}

	now := time.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	today, err := s.orderRepo.CountSince(ctx, startOfDay)
	if err != nil {
		return nil, fmt.Errorf("count today's orders: %w", err)
	}

	return &dto.OrderStatsResponse{
		TotalOrders: total,
		ByState:     byState,
		TotalSold:   sold,
		OrdersToday: today,
	}, nil
}

func (s *orderServiceImpl) findOrderTx(ctx context.Context, tx *gorm.DB, orderID uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByIDTx(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, err
	}
	return order, nil
}

// newOrderNumber keeps the timestamp-derived display prefix but adds a random
// suffix so concurrent checkouts in the same second cannot collide.
func newOrderNumber(now time.Time) string {
	return fmt.Sprintf("PN%s-%s", now.UTC().Format("20060102150405"), uuid.NewString()[:8])
}
