package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is one external payment attempt. GatewayPaymentID is the gateway's
// identifier and is unique once assigned; until then the owning order's number
// disambiguates. An order may accumulate several attempts.
type Payment struct {
	ID          uint   `gorm:"primaryKey"`
	OrderID     uint   `gorm:"index;not null"`
	OrderNumber string `gorm:"size:40;index;not null"`

	GatewayPaymentID *string `gorm:"size:64;uniqueIndex"`
	PreferenceID     string  `gorm:"size:128;index"`
	MerchantOrderID  string  `gorm:"size:64"`

	Amount decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Method string          `gorm:"size:40;not null"`

	State        PaymentStatus `gorm:"size:32;index;not null"`
	StatusDetail string        `gorm:"size:80"`
	Installments int           `gorm:"not null;default:1"`

	PayerEmail string `gorm:"size:120"`
	PayerName  string `gorm:"size:80"`

	// PaidAt is written once, on the first transition to approved.
	PaidAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MethodMercadoPago is the default payment method for gateway-driven payments.
const MethodMercadoPago = "mercadopago"
