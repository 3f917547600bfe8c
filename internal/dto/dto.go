package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"ambos-norte-backend/internal/model"
)

// ---- order creation ----

type CartItem struct {
	ProductID uint  `json:"product_id"`
	VariantID *uint `json:"variant_id,omitempty"`
	Quantity  int   `json:"quantity"`
	// UnitPrice is informational. The server re-derives the price and rejects
	// the line when a supplied price disagrees.
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type Contact struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type AddressInput struct {
	Street     string `json:"street"`
	Number     string `json:"number"`
	Unit       string `json:"unit"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
}

type Shipping struct {
	Type    string          `json:"type"` // pickup | home_delivery
	Cost    decimal.Decimal `json:"cost"`
	Address *AddressInput   `json:"address,omitempty"`
}

type CreateOrderRequest struct {
	Items    []CartItem `json:"items"`
	Contact  Contact    `json:"contact"`
	Notes    string     `json:"notes"`
	Shipping *Shipping  `json:"shipping,omitempty"`
}

// ---- order responses ----

type OrderItemResponse struct {
	ID          uint            `json:"id"`
	ProductID   uint            `json:"product_id"`
	VariantID   *uint           `json:"variant_id,omitempty"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type OrderResponse struct {
	ID           uint                `json:"id"`
	Number       string              `json:"number"`
	ContactEmail string              `json:"contact_email"`
	ContactPhone string              `json:"contact_phone"`
	Subtotal     decimal.Decimal     `json:"subtotal"`
	ShippingCost decimal.Decimal     `json:"shipping_cost"`
	Total        decimal.Decimal     `json:"total"`
	State        model.OrderStatus   `json:"state"`
	Active       bool                `json:"active"`
	Notes        string              `json:"notes,omitempty"`
	Items        []OrderItemResponse `json:"items"`
	CreatedAt    time.Time           `json:"created_at"`
}

func NewOrderResponse(o *model.Order) *OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.Subtotal,
		}
	}
	return &OrderResponse{
		ID:           o.ID,
		Number:       o.Number,
		ContactEmail: o.ContactEmail,
		ContactPhone: o.ContactPhone,
		Subtotal:     o.Subtotal,
		ShippingCost: o.ShippingCost,
		Total:        o.Total,
		State:        o.State,
		Active:       o.Active,
		Notes:        o.Notes,
		Items:        items,
		CreatedAt:    o.CreatedAt,
	}
}

type StatusEntryResponse struct {
	ID            uint               `json:"id"`
	PreviousState *model.OrderStatus `json:"previous_state"`
	NewState      model.OrderStatus  `json:"new_state"`
	ActorID       *uint              `json:"actor_id,omitempty"`
	Comment       string             `json:"comment"`
	CreatedAt     time.Time          `json:"created_at"`
}

func NewStatusEntryResponses(entries []*model.OrderStatusEntry) []StatusEntryResponse {
	out := make([]StatusEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = StatusEntryResponse{
			ID:            e.ID,
			PreviousState: e.PreviousState,
			NewState:      e.NewState,
			ActorID:       e.ActorID,
			Comment:       e.Comment,
			CreatedAt:     e.CreatedAt,
		}
	}
	return out
}

// ---- order mutations ----

type ChangeStatusRequest struct {
	NewState string `json:"new_state"`
	Comment  string `json:"comment"`
}

type OrderStatsResponse struct {
	TotalOrders int64                       `json:"total_orders"`
	ByState     map[model.OrderStatus]int64 `json:"by_state"`
	TotalSold   decimal.Decimal             `json:"total_sold"`
	OrdersToday int64                       `json:"orders_today"`
}

// ---- payments ----

type PreferenceItem struct {
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type PreferencePayer struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

type CreatePreferenceRequest struct {
	OrderID     uint             `json:"order_id"`
	Items       []PreferenceItem `json:"items"`
	Payer       PreferencePayer  `json:"payer"`
	FrontendURL string           `json:"frontend_url"`
}

type CreatePreferenceResponse struct {
	PreferenceID     string          `json:"preference_id"`
	InitPoint        string          `json:"init_point"`
	SandboxInitPoint string          `json:"sandbox_init_point,omitempty"`
	PaymentID        uint            `json:"payment_id"`
	OrderID          uint            `json:"order_id"`
	Amount           decimal.Decimal `json:"amount"`
}

// WebhookBody is the JSON shape the gateway posts. The same fields may arrive
// as query parameters instead.
type WebhookBody struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
	Data  struct {
		ID string `json:"id"`
	} `json:"data"`
}

type WebhookResponse struct {
	Status string `json:"status"`
}

// ConfirmPaymentRequest is the trusted confirmation body posted by an internal
// caller that already processed the payment against the gateway.
type ConfirmPaymentRequest struct {
	OrderID           uint            `json:"order_id"`
	PaymentID         string          `json:"payment_id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	PaymentMethodID   string          `json:"payment_method_id"`
	PayerEmail        string          `json:"payer_email"`
	Installments      int             `json:"installments"`
}

type SetPaymentStateRequest struct {
	State string `json:"state"`
}

type PaymentResponse struct {
	ID               uint                `json:"id"`
	OrderID          uint                `json:"order_id"`
	OrderNumber      string              `json:"order_number"`
	GatewayPaymentID *string             `json:"gateway_payment_id,omitempty"`
	Amount           decimal.Decimal     `json:"amount"`
	Method           string              `json:"method"`
	State            model.PaymentStatus `json:"state"`
	StatusDetail     string              `json:"status_detail,omitempty"`
	Installments     int                 `json:"installments"`
	PayerEmail       string              `json:"payer_email,omitempty"`
	PaidAt           *time.Time          `json:"paid_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
}

func NewPaymentResponse(p *model.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:               p.ID,
		OrderID:          p.OrderID,
		OrderNumber:      p.OrderNumber,
		GatewayPaymentID: p.GatewayPaymentID,
		Amount:           p.Amount,
		Method:           p.Method,
		State:            p.State,
		StatusDetail:     p.StatusDetail,
		Installments:     p.Installments,
		PayerEmail:       p.PayerEmail,
		PaidAt:           p.PaidAt,
		CreatedAt:        p.CreatedAt,
	}
}
