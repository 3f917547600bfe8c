package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ambos-norte-backend/internal/client"
	"ambos-norte-backend/internal/config"
	"ambos-norte-backend/internal/dto"
	"ambos-norte-backend/internal/metrics"
	"ambos-norte-backend/internal/model"
	"ambos-norte-backend/internal/repository"
)

// Ack is the status token a webhook caller receives. The gateway only cares
// that the HTTP status is 200; the token is for our own logs and the gateway
// dashboard.
type Ack string

const (
	AckSuccess             Ack = "success"
	AckIgnored             Ack = "ignored"
	AckError               Ack = "error"
	AckNoExternalReference Ack = "no external reference"
	AckOrderNotFound       Ack = "order not found"
)

// ReconcileInput is one gateway notification folded into local state.
type ReconcileInput struct {
	GatewayPaymentID  string
	ExternalReference string // order id, set by us on preference creation
	GatewayStatus     string
	Amount            decimal.Decimal
	StatusDetail      string
	Method            string
	Installments      int
	PayerEmail        string
	MerchantOrderID   string
}

type PaymentService interface {
	CreatePreference(ctx context.Context, actor Actor, req *dto.CreatePreferenceRequest) (*dto.CreatePreferenceResponse, error)
	// HandleNotification is the webhook core: it never returns an error, only
	// an acknowledgement token. Internal failures are logged and become
	// AckError so the gateway sees a success-shaped response either way.
	HandleNotification(ctx context.Context, topic, resourceID string) Ack
	Confirm(ctx context.Context, req *dto.ConfirmPaymentRequest) (*model.Payment, error)
	SetState(ctx context.Context, paymentID uint, newState string, actor Actor) (*model.Payment, error)
	Get(ctx context.Context, paymentID uint) (*model.Payment, error)
	List(ctx context.Context, filter repository.PaymentListFilter) ([]*model.Payment, error)
}

type paymentServiceImpl struct {
	db          *gorm.DB
	gateway     client.MercadoPagoClient
	baseURL     string
	frontendURL string
	descriptor  string
	orderRepo   repository.OrderRepository
	paymentRepo repository.PaymentRepository
	ledger      *StatusLedger
	metrics     *metrics.ShopMetrics
	logger      *log.Entry
}

func NewPaymentService(
	db *gorm.DB,
	gateway client.MercadoPagoClient,
	cfg *config.Config,
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	ledger *StatusLedger,
	shopMetrics *metrics.ShopMetrics,
) PaymentService {
	return &paymentServiceImpl{
		db:          db,
		gateway:     gateway,
		baseURL:     cfg.BaseURL,
		frontendURL: cfg.FrontendURL,
		descriptor:  cfg.MercadoPago.Descriptor,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		ledger:      ledger,
		metrics:     shopMetrics,
		logger:      log.WithField("component", "payment-service"),
	}
}

func (s *paymentServiceImpl) CreatePreference(ctx context.Context, actor Actor, req *dto.CreatePreferenceRequest) (*dto.CreatePreferenceResponse, error) {
	if req.OrderID == 0 {
		return nil, fmt.Errorf("%w: order_id is required", ErrValidation)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: items is required", ErrValidation)
	}

	order, err := s.orderRepo.FindByID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, req.OrderID)
		}
		return nil, err
	}

	payerEmail := req.Payer.Email
	if payerEmail == "" {
		payerEmail = order.ContactEmail
	}

	frontendURL := req.FrontendURL
	if frontendURL == "" {
		frontendURL = s.frontendURL
	}

	items := make([]client.PreferenceItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = client.PreferenceItem{
			Title:      item.Title,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			CurrencyID: "ARS",
		}
	}

	pref, err := s.gateway.CreatePreference(ctx, &client.PreferenceRequest{
		Items: items,
		BackURLs: client.PreferenceBackURLs{
			Success: frontendURL + "/compra-exitosa",
			Failure: frontendURL + "/pago-fallido",
			Pending: frontendURL + "/pago-pendiente",
		},
		AutoReturn:          "approved",
		ExternalReference:   strconv.FormatUint(uint64(order.ID), 10),
		NotificationURL:     s.baseURL + "/api/payments/webhook",
		StatementDescriptor: s.descriptor,
		Payer: client.PreferencePayer{
			Name:    req.Payer.Name,
			Surname: req.Payer.Surname,
			Email:   payerEmail,
			Phone: client.PreferencePhone{
				Number: req.Payer.Phone,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gateway create preference: %w", err)
	}

	payment := &model.Payment{
		OrderID:      order.ID,
		OrderNumber:  order.Number,
		PreferenceID: pref.ID,
		Amount:       order.Total,
		Method:       model.MethodMercadoPago,
		State:        model.PaymentStatusPending,
		Installments: 1,
		PayerEmail:   payerEmail,
		PayerName:    req.Payer.Name,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.paymentRepo.Create(ctx, tx, payment)
	})
	if err != nil {
		return nil, fmt.Errorf("store payment: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"order_id":      order.ID,
		"payment_id":    payment.ID,
		"preference_id": pref.ID,
	}).Info("payment preference created")

	return &dto.CreatePreferenceResponse{
		PreferenceID:     pref.ID,
		InitPoint:        pref.InitPoint,
		SandboxInitPoint: pref.SandboxInitPoint,
		PaymentID:        payment.ID,
		OrderID:          order.ID,
		Amount:           order.Total,
	}, nil
}

func (s *paymentServiceImpl) HandleNotification(ctx context.Context, topic, resourceID string) Ack {
	if topic != "payment" || resourceID == "" {
		s.logger.WithFields(log.Fields{"topic": topic, "id": resourceID}).
			Debug("notification ignored")
		s.metrics.WebhookReceived(string(AckIgnored))
		return AckIgnored
	}

	gatewayPayment, err := s.gateway.GetPayment(ctx, resourceID)
	if err != nil {
		s.logger.WithError(err).WithField("payment_id", resourceID).
			Error("fetch payment from gateway")
		s.metrics.WebhookReceived(string(AckError))
		return AckError
	}

	if gatewayPayment.ExternalReference == "" {
		s.logger.WithField("payment_id", resourceID).
			Warn("gateway payment carries no external reference")
		s.metrics.WebhookReceived(string(AckNoExternalReference))
		return AckNoExternalReference
	}

	ack, err := s.reconcile(ctx, &ReconcileInput{
		GatewayPaymentID:  strconv.FormatInt(gatewayPayment.ID, 10),
		ExternalReference: gatewayPayment.ExternalReference,
		GatewayStatus:     gatewayPayment.Status,
		Amount:            gatewayPayment.TransactionAmount,
		StatusDetail:      gatewayPayment.StatusDetail,
		Method:            gatewayPayment.PaymentMethodID,
		Installments:      gatewayPayment.Installments,
		PayerEmail:        gatewayPayment.Payer.Email,
		MerchantOrderID:   strconv.FormatInt(gatewayPayment.Order.ID, 10),
	})
	if err != nil {
		s.logger.WithError(err).WithField("payment_id", resourceID).
			Error("reconcile payment")
		s.metrics.WebhookReceived(string(AckError))
		return AckError
	}

	s.metrics.WebhookReceived(string(ack))
	return ack
}

// Confirm is the trusted-caller variant: the caller already holds the
// gateway's payment result, so no gateway lookup happens.
func (s *paymentServiceImpl) Confirm(ctx context.Context, req *dto.ConfirmPaymentRequest) (*model.Payment, error) {
	if req.OrderID == 0 || req.PaymentID == "" {
		return nil, fmt.Errorf("%w: order_id and payment_id are required", ErrValidation)
	}

	ack, err := s.reconcile(ctx, &ReconcileInput{
		GatewayPaymentID:  req.PaymentID,
		ExternalReference: strconv.FormatUint(uint64(req.OrderID), 10),
		GatewayStatus:     req.Status,
		Amount:            req.TransactionAmount,
		StatusDetail:      req.StatusDetail,
		Method:            req.PaymentMethodID,
		Installments:      req.Installments,
		PayerEmail:        req.PayerEmail,
	})
	if err != nil {
		return nil, err
	}
	if ack == AckOrderNotFound {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, req.OrderID)
	}

	payment, found, err := s.paymentRepo.FindByGatewayID(ctx, s.db, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: payment %s", ErrNotFound, req.PaymentID)
	}

	return payment, nil
}

// reconcile folds one gateway notification into local payment and order
// state. Safe to invoke repeatedly with the same terminal status: the order
// side effect is keyed off the newly mapped state and skipped when the order
// already sits in the target state.
func (s *paymentServiceImpl) reconcile(ctx context.Context, input *ReconcileInput) (Ack, error) {
	orderID, err := strconv.ParseUint(input.ExternalReference, 10, 64)
	if err != nil {
		return AckNoExternalReference, nil
	}

	newState := model.PaymentStatusFromGateway(input.GatewayStatus)

	ack := AckSuccess
	var order *model.Order
	var entry *model.OrderStatusEntry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err = s.orderRepo.FindByIDTx(ctx, tx, uint(orderID))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Soft failure: the gateway cannot fix a missing order, a
				// non-200 would only make it retry-storm the webhook.
				ack = AckOrderNotFound
				return nil
			}
			return fmt.Errorf("load order %d: %w", orderID, err)
		}

		payment, found, err := s.paymentRepo.FindByGatewayID(ctx, tx, input.GatewayPaymentID)
		if err != nil {
			return fmt.Errorf("load payment by gateway id: %w", err)
		}
		if !found {
			gatewayPaymentID := input.GatewayPaymentID
			payment = &model.Payment{
				OrderID:          order.ID,
				OrderNumber:      order.Number,
				GatewayPaymentID: &gatewayPaymentID,
				Amount:           input.Amount,
				Method:           model.MethodMercadoPago,
				State:            model.PaymentStatusPending,
				Installments:     1,
			}
			if err := s.paymentRepo.Create(ctx, tx, payment); err != nil {
				return fmt.Errorf("create payment: %w", err)
			}
		}

		payment.State = newState
		payment.StatusDetail = input.StatusDetail
		if input.Method != "" {
			payment.Method = input.Method
		}
		if input.Installments > 0 {
			payment.Installments = input.Installments
		}
		if input.PayerEmail != "" {
			payment.PayerEmail = input.PayerEmail
		}
		if input.MerchantOrderID != "" && input.MerchantOrderID != "0" {
			payment.MerchantOrderID = input.MerchantOrderID
		}
		// The approval timestamp is written once and never overwritten.
		if newState == model.PaymentStatusApproved && payment.PaidAt == nil {
			now := time.Now()
			payment.PaidAt = &now
		}
		if err := s.paymentRepo.Save(ctx, tx, payment); err != nil {
			return fmt.Errorf("save payment: %w", err)
		}

		entry, err = s.applyOrderSideEffect(ctx, tx, order, newState, input.GatewayPaymentID, nil)
		return err
	})
	if err != nil {
		return AckError, err
	}
	if ack != AckSuccess {
		return ack, nil
	}

	s.metrics.PaymentReconciled(string(newState))
	s.ledger.Publish(order, entry)

	s.logger.WithFields(log.Fields{
		"gateway_payment_id": input.GatewayPaymentID,
		"order_id":           order.ID,
		"state":              newState,
	}).Info("payment reconciled")

	return AckSuccess, nil
}

// applyOrderSideEffect drives the order forward based on the newly mapped
// payment state. Returns the history entry when a transition happened, nil
// when the order was already where it should be.
func (s *paymentServiceImpl) applyOrderSideEffect(
	ctx context.Context,
	tx *gorm.DB,
	order *model.Order,
	newState model.PaymentStatus,
	gatewayPaymentID string,
	actorID *uint,
) (*model.OrderStatusEntry, error) {
	origin := "payment"
	if actorID != nil {
		origin = "manual payment state change"
	}

	switch newState {
	case model.PaymentStatusApproved:
		if order.State == model.OrderStatusInPreparation {
			return nil, nil
		}
		comment := fmt.Sprintf("%s approved - id: %s", origin, gatewayPaymentID)
		return s.ledger.Transition(ctx, tx, order, model.OrderStatusInPreparation, actorID, comment)

	case model.PaymentStatusRejected, model.PaymentStatusCancelled:
		if order.State == model.OrderStatusCancelled {
			return nil, nil
		}
		comment := fmt.Sprintf("%s %s - id: %s", origin, newState, gatewayPaymentID)
		return s.ledger.Transition(ctx, tx, order, model.OrderStatusCancelled, actorID, comment)

	default:
		return nil, nil
	}
}

// SetState is the admin override, restricted to approved|pending|cancelled.
// It mirrors the reconciliation side effects on the order.
func (s *paymentServiceImpl) SetState(ctx context.Context, paymentID uint, newState string, actor Actor) (*model.Payment, error) {
	state := model.PaymentStatus(newState)
	if !state.ValidManual() {
		return nil, fmt.Errorf("%w: %q, valid states: %v", ErrInvalidState, newState, model.ManualPaymentStatuses())
	}

	var payment *model.Payment
	var order *model.Order
	var entry *model.OrderStatusEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		payment, err = s.paymentRepo.FindByIDTx(ctx, tx, paymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: payment %d", ErrNotFound, paymentID)
			}
			return err
		}

		order, err = s.orderRepo.FindByIDTx(ctx, tx, payment.OrderID)
		if err != nil {
			return fmt.Errorf("load order %d: %w", payment.OrderID, err)
		}

		payment.State = state
		if state == model.PaymentStatusApproved && payment.PaidAt == nil {
			now := time.Now()
			payment.PaidAt = &now
		}
		if err := s.paymentRepo.Save(ctx, tx, payment); err != nil {
			return fmt.Errorf("save payment: %w", err)
		}

		reference := strconv.FormatUint(uint64(payment.ID), 10)
		if payment.GatewayPaymentID != nil {
			reference = *payment.GatewayPaymentID
		}
		entry, err = s.applyOrderSideEffect(ctx, tx, order, state, reference, actor.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.ledger.Publish(order, entry)

	s.logger.WithFields(log.Fields{
		"payment_id": payment.ID,
		"state":      state,
	}).Info("payment state set manually")

	return payment, nil
}

func (s *paymentServiceImpl) Get(ctx context.Context, paymentID uint) (*model.Payment, error) {
	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: payment %d", ErrNotFound, paymentID)
		}
		return nil, err
	}
	return payment, nil
}

func (s *paymentServiceImpl) List(ctx context.Context, filter repository.PaymentListFilter) ([]*model.Payment, error) {
	return s.paymentRepo.List(ctx, filter)
}
