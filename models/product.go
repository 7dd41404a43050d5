package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is catalog data owned by catalog management. This service only
// reads price/stock from it; stock mutations go through the stock ledger.
type Product struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string           `gorm:"not null" json:"name"`
	Description string           `gorm:"type:text" json:"description"`
	SKU         string           `gorm:"uniqueIndex" json:"sku"`
	Price       *decimal.Decimal `gorm:"type:decimal(10,2)" json:"price"` // nil when priced per variant
	Stock       int              `json:"stock"`
	BrandID     *uuid.UUID       `gorm:"type:uuid" json:"brand_id,omitempty"`
	CategoryID  *uuid.UUID       `gorm:"type:uuid" json:"category_id,omitempty"`
	HasVariants bool             `json:"has_variants"`
	IsActive    bool             `gorm:"default:true" json:"is_active"`
	Variants    []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"variants,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type ProductVariant struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID  uuid.UUID         `gorm:"type:uuid;not null;index" json:"product_id"`
	SKU        string            `gorm:"uniqueIndex;not null" json:"sku"`
	Price      decimal.Decimal   `gorm:"type:decimal(10,2);not null" json:"price"`
	Stock      int               `json:"stock"`
	Attributes map[string]string `gorm:"serializer:json" json:"attributes"` // e.g. {"color":"red","size":"XL"}
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (v *ProductVariant) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
