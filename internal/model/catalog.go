package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uint            `gorm:"primaryKey"`
	Name        string          `gorm:"size:200;not null"`
	Description string          `gorm:"type:text"`
	BasePrice   decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Active      bool            `gorm:"not null;default:true"`

	Variants []ProductVariant `gorm:"foreignKey:ProductID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductVariant is a size/color combination, the true unit of inventory.
type ProductVariant struct {
	ID        uint   `gorm:"primaryKey"`
	ProductID uint   `gorm:"index;not null;uniqueIndex:idx_variant_combo"`
	Size      string `gorm:"size:16;not null;uniqueIndex:idx_variant_combo"`
	Color     string `gorm:"size:32;not null;uniqueIndex:idx_variant_combo"`
	SKU       string `gorm:"size:64;index"`

	Stock          int             `gorm:"not null;default:0"` // never negative
	PriceSurcharge decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	Active         bool            `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UnitPrice is the authoritative price for this variant: the product's base
// price plus the variant surcharge.
func (v *ProductVariant) UnitPrice(basePrice decimal.Decimal) decimal.Decimal {
	return basePrice.Add(v.PriceSurcharge)
}
