package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string
type PaymentStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"    // order placed, awaiting payment/processing
	OrderStatusProcessing OrderStatus = "PROCESSING" // payment completed, being prepared
	OrderStatusShipped    OrderStatus = "SHIPPED"    // out for delivery
	OrderStatusDelivered  OrderStatus = "DELIVERED"  // terminal
	OrderStatusCancelled  OrderStatus = "CANCELLED"  // terminal

	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// orderTransitions is the authoritative status graph. No transition leaves
// DELIVERED or CANCELLED.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	}
	return false
}

// Order totals are computed from its items at creation time and frozen.
// Orders are never physically deleted.
type Order struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID             uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	User               User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Items              []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Status             OrderStatus     `gorm:"type:VARCHAR(20);not null;default:'PENDING';index" json:"status"`
	PaymentStatus      PaymentStatus   `gorm:"type:VARCHAR(20);not null;default:'PENDING'" json:"payment_status"`
	Subtotal           decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	ShippingAddress    string          `gorm:"type:VARCHAR(500)" json:"shipping_address"`
	BillingAddress     string          `gorm:"type:VARCHAR(500)" json:"billing_address"`
	PaymentMethod      string          `json:"payment_method"`
	OrderNotes         string          `gorm:"type:VARCHAR(1000)" json:"order_notes"`
	CancellationReason string          `gorm:"type:VARCHAR(1000)" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	ProcessedAt        *time.Time      `json:"processed_at,omitempty"`
	ShippedAt          *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
}

// OrderItem snapshots name, description, sku and price at order time so
// later catalog edits cannot change historical orders.
type OrderItem struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID            uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID          uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	VariantID          *uuid.UUID      `gorm:"type:uuid" json:"variant_id,omitempty"`
	ProductName        string          `gorm:"not null" json:"product_name"`
	ProductDescription string          `gorm:"type:VARCHAR(1000)" json:"product_description"`
	SKU                string          `json:"sku"`
	Price              decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Quantity           int             `gorm:"not null" json:"quantity"`
	Subtotal           decimal.Decimal `gorm:"type:decimal(10,2)" json:"subtotal"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.Subtotal.IsZero() {
		i.Subtotal = i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
	}
	return nil
}
