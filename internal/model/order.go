package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Address struct {
	ID         uint   `gorm:"primaryKey"`
	Street     string `gorm:"size:120;not null"`
	Number     string `gorm:"size:16"`
	Unit       string `gorm:"size:32"`
	City       string `gorm:"size:80;not null"`
	Province   string `gorm:"size:80"`
	PostalCode string `gorm:"size:16"`

	CreatedAt time.Time
}

type Order struct {
	ID     uint   `gorm:"primaryKey"`
	Number string `gorm:"size:40;uniqueIndex;not null"` // PN<timestamp>-<suffix>, for display

	UserID       *uint  `gorm:"index"`
	ContactEmail string `gorm:"size:120"`
	ContactPhone string `gorm:"size:40"`

	Subtotal     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	ShippingCost decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	Total        decimal.Decimal `gorm:"type:decimal(10,2);not null"` // subtotal + shipping

	State  OrderStatus `gorm:"size:32;index;not null"`
	Active bool        `gorm:"not null;default:true"`
	// Version guards state transitions against concurrent writers.
	Version int `gorm:"not null;default:0"`

	Notes     string `gorm:"type:text"`
	AddressID *uint  `gorm:"index"`
	Address   *Address

	Items   []OrderItem        `gorm:"foreignKey:OrderID"`
	History []OrderStatusEntry `gorm:"foreignKey:OrderID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderItem is an immutable snapshot of one purchased line. The product name
// is denormalized so the order renders correctly even if the product changes.
type OrderItem struct {
	ID        uint  `gorm:"primaryKey"`
	OrderID   uint  `gorm:"index;not null"`
	ProductID uint  `gorm:"index;not null"`
	VariantID *uint `gorm:"index"`

	ProductName string          `gorm:"size:200;not null"`
	Quantity    int             `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(10,2);not null"`

	CreatedAt time.Time
}

// OrderStatusEntry is one row of the append-only state ledger. Rows are never
// updated or deleted.
type OrderStatusEntry struct {
	ID      uint `gorm:"primaryKey"`
	OrderID uint `gorm:"index;not null"`

	PreviousState *OrderStatus `gorm:"size:32"`
	NewState      OrderStatus  `gorm:"size:32;not null"`
	ActorID       *uint        `gorm:"index"` // nil for system-driven transitions
	Comment       string       `gorm:"size:255"`

	CreatedAt time.Time
}
