package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ainan-ahmed/ecommforall-backend/apperrors"
	"github.com/ainan-ahmed/ecommforall-backend/models"
)

// OrderLineInput is one explicit line for createOrder when not ordering
// from the cart.
type OrderLineInput struct {
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int        `json:"quantity"`
}

type CreateOrderInput struct {
	FromCart        bool
	Items           []OrderLineInput
	ShippingAddress string
	BillingAddress  string
	PaymentMethod   string
	OrderNotes      string
}

// ProductSales is one row of the top-sellers report.
type ProductSales struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name"`
	QuantitySold int       `json:"quantity_sold"`
}

// OrderNotifier receives committed order changes (creation, status
// updates, cancellation) for fan-out to listeners.
type OrderNotifier func(order models.Order)

// OrderService turns cart or explicit line input into an immutable-priced
// order and drives the order status machine. All stock movement goes
// through the StockLedger inside the same transaction as the order write.
type OrderService interface {
	CreateOrder(userID uuid.UUID, in CreateOrderInput) (models.Order, error)
	GetOrderByID(orderID, requesterID uuid.UUID, isAdmin bool) (models.Order, error)
	GetUserOrders(userID uuid.UUID, page, limit int) ([]models.Order, int64, error)
	GetAllOrders(page, limit int) ([]models.Order, int64, error)
	GetOrdersByStatus(status models.OrderStatus, page, limit int) ([]models.Order, int64, error)
	UpdateStatus(orderID uuid.UUID, status models.OrderStatus, actorID string) (models.Order, error)
	UpdatePaymentStatus(orderID uuid.UUID, status models.PaymentStatus, actorID string) (models.Order, error)
	CancelOrder(orderID uuid.UUID, reason string, userID uuid.UUID) error
	UserHasActiveOrders(userID uuid.UUID) (bool, error)
	CountByStatus(status models.OrderStatus) (int64, error)
	CountSince(start time.Time) (int64, error)
	RevenueBetween(start, end time.Time) (decimal.Decimal, error)
	TopSellingProducts(limit int) ([]ProductSales, error)
}

type orderService struct {
	db     *gorm.DB
	ledger StockLedger
	notify OrderNotifier
}

func NewOrderService(db *gorm.DB, ledger StockLedger, notify OrderNotifier) OrderService {
	return &orderService{db: db, ledger: ledger, notify: notify}
}

// CreateOrder snapshots the resolved lines into an order, validates and
// debits stock, and clears the cart when ordering from it. Persist order,
// persist items, debit stock and clear cart all commit or roll back as
// one transaction.
func (s *orderService) CreateOrder(userID uuid.UUID, in CreateOrderInput) (models.Order, error) {
	var created models.Order

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: user %s", apperrors.ErrNotFound, userID)
			}
			return err
		}

		var lines []OrderLineInput
		var cartID uuid.UUID
		if in.FromCart {
			var cart models.Cart
			err := tx.Preload("Items").Where("user_id = ?", userID).First(&cart).Error
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if errors.Is(err, gorm.ErrRecordNotFound) || len(cart.Items) == 0 {
				return fmt.Errorf("%w: cart is empty", apperrors.ErrInvalidState)
			}
			cartID = cart.ID
			for _, item := range cart.Items {
				line := OrderLineInput{
					ProductID: item.ProductID,
					Quantity:  item.Quantity,
				}
				if item.HasVariant() {
					variantID := item.VariantID
					line.VariantID = &variantID
				}
				lines = append(lines, line)
			}
		} else {
			if len(in.Items) == 0 {
				return fmt.Errorf("%w: order must contain at least one item", apperrors.ErrInvalidArgument)
			}
			for _, item := range in.Items {
				if item.Quantity <= 0 {
					return fmt.Errorf("%w: quantity must be greater than zero", apperrors.ErrInvalidArgument)
				}
				lines = append(lines, item)
			}
		}

		stockLines := make([]StockLine, 0, len(lines))
		for _, line := range lines {
			stockLines = append(stockLines, StockLine{
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Quantity:  line.Quantity,
			})
		}

		// Validation failure aborts with no side effects: no order row,
		// no debit, cart untouched.
		if err := s.ledger.Validate(tx, stockLines); err != nil {
			return err
		}

		orderItems := make([]models.OrderItem, 0, len(lines))
		subtotal := decimal.Zero
		for _, line := range lines {
			item, err := s.snapshotLine(tx, line)
			if err != nil {
				return err
			}
			subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
			orderItems = append(orderItems, item)
		}

		order := models.Order{
			UserID:          userID,
			Items:           orderItems,
			Status:          models.OrderStatusPending,
			PaymentStatus:   models.PaymentStatusPending,
			Subtotal:        subtotal,
			TotalAmount:     subtotal,
			ShippingAddress: in.ShippingAddress,
			BillingAddress:  in.BillingAddress,
			PaymentMethod:   in.PaymentMethod,
			OrderNotes:      in.OrderNotes,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		if err := s.ledger.Adjust(tx, stockLines, StockDebit); err != nil {
			return err
		}

		if in.FromCart {
			if err := tx.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error; err != nil {
				return err
			}
		}

		created = order
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}

	log.Printf("created order %s for user %s (total %s)", created.ID, userID, created.TotalAmount)
	s.broadcast(created)
	return created, nil
}

// snapshotLine copies name, description, sku and price onto an order item
// so later catalog edits cannot retroactively change the order. Price
// comes from the variant when one is given, otherwise from the product.
func (s *orderService) snapshotLine(tx *gorm.DB, line OrderLineInput) (models.OrderItem, error) {
	var product models.Product
	if err := tx.First(&product, "id = ?", line.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.OrderItem{}, fmt.Errorf("%w: product %s", apperrors.ErrNotFound, line.ProductID)
		}
		return models.OrderItem{}, err
	}

	item := models.OrderItem{
		ProductID:          product.ID,
		VariantID:          line.VariantID,
		ProductName:        product.Name,
		ProductDescription: product.Description,
		Quantity:           line.Quantity,
	}

	if line.VariantID != nil {
		var variant models.ProductVariant
		if err := tx.First(&variant, "id = ? AND product_id = ?", *line.VariantID, line.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.OrderItem{}, fmt.Errorf("%w: product variant %s", apperrors.ErrNotFound, *line.VariantID)
			}
			return models.OrderItem{}, err
		}
		item.SKU = variant.SKU
		item.Price = variant.Price
		return item, nil
	}

	if product.Price == nil {
		return models.OrderItem{}, fmt.Errorf("%w: product %s has no price and no variant was selected",
			apperrors.ErrInvalidState, product.ID)
	}
	item.SKU = product.SKU
	item.Price = *product.Price
	return item, nil
}

func (s *orderService) GetOrderByID(orderID, requesterID uuid.UUID, isAdmin bool) (models.Order, error) {
	var order models.Order
	if err := s.db.Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Order{}, fmt.Errorf("%w: order %s", apperrors.ErrNotFound, orderID)
		}
		return models.Order{}, err
	}
	if !isAdmin && order.UserID != requesterID {
		return models.Order{}, fmt.Errorf("%w: order does not belong to user", apperrors.ErrPermissionDenied)
	}
	return order, nil
}

func (s *orderService) GetUserOrders(userID uuid.UUID, page, limit int) ([]models.Order, int64, error) {
	return s.listOrders(s.db.Where("user_id = ?", userID), page, limit)
}

func (s *orderService) GetAllOrders(page, limit int) ([]models.Order, int64, error) {
	return s.listOrders(s.db, page, limit)
}

func (s *orderService) GetOrdersByStatus(status models.OrderStatus, page, limit int) ([]models.Order, int64, error) {
	if !status.IsValid() {
		return nil, 0, fmt.Errorf("%w: unknown order status %q", apperrors.ErrInvalidArgument, status)
	}
	return s.listOrders(s.db.Where("status = ?", status), page, limit)
}

func (s *orderService) listOrders(query *gorm.DB, page, limit int) ([]models.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	// Reusable chain: Count and Find share the same conditions.
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Model(&models.Order{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := query.Preload("Items").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&orders).Error
	return orders, total, err
}

// UpdateStatus applies an admin-driven status change. Transitions outside
// the status graph are rejected. Moving an order into CANCELLED through
// this path credits its stock back, same as a user cancellation.
func (s *orderService) UpdateStatus(orderID uuid.UUID, status models.OrderStatus, actorID string) (models.Order, error) {
	if !status.IsValid() {
		return models.Order{}, fmt.Errorf("%w: unknown order status %q", apperrors.ErrInvalidArgument, status)
	}

	var order models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %s", apperrors.ErrNotFound, orderID)
			}
			return err
		}
		if !order.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: cannot transition order from %s to %s",
				apperrors.ErrInvalidState, order.Status, status)
		}

		order.Status = status
		now := time.Now()
		switch status {
		case models.OrderStatusProcessing:
			order.ProcessedAt = &now
		case models.OrderStatusShipped:
			order.ShippedAt = &now
		case models.OrderStatusDelivered:
			order.DeliveredAt = &now
		case models.OrderStatusCancelled:
			order.CancelledAt = &now
			if err := s.ledger.Adjust(tx, stockLinesFromItems(order.Items), StockCredit); err != nil {
				return err
			}
		}
		return tx.Save(&order).Error
	})
	if err != nil {
		return models.Order{}, err
	}

	log.Printf("updated order %s status to %s by %s", orderID, status, actorID)
	s.broadcast(order)
	return order, nil
}

func (s *orderService) UpdatePaymentStatus(orderID uuid.UUID, status models.PaymentStatus, actorID string) (models.Order, error) {
	if !status.IsValid() {
		return models.Order{}, fmt.Errorf("%w: unknown payment status %q", apperrors.ErrInvalidArgument, status)
	}

	var order models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %s", apperrors.ErrNotFound, orderID)
			}
			return err
		}
		order.PaymentStatus = status
		return tx.Save(&order).Error
	})
	if err != nil {
		return models.Order{}, err
	}

	log.Printf("updated order %s payment status to %s by %s", orderID, status, actorID)
	return order, nil
}

// CancelOrder cancels the caller's own PENDING or PROCESSING order and
// credits back exactly the quantities debited at creation. The credit is
// a pure reversal regardless of current catalog stock levels.
func (s *orderService) CancelOrder(orderID uuid.UUID, reason string, userID uuid.UUID) error {
	var order models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %s", apperrors.ErrNotFound, orderID)
			}
			return err
		}
		if order.UserID != userID {
			return fmt.Errorf("%w: order does not belong to user", apperrors.ErrPermissionDenied)
		}
		if order.Status != models.OrderStatusPending && order.Status != models.OrderStatusProcessing {
			return fmt.Errorf("%w: order cannot be cancelled in status %s", apperrors.ErrInvalidState, order.Status)
		}

		now := time.Now()
		order.Status = models.OrderStatusCancelled
		order.CancellationReason = reason
		order.CancelledAt = &now

		if err := s.ledger.Adjust(tx, stockLinesFromItems(order.Items), StockCredit); err != nil {
			return err
		}
		return tx.Save(&order).Error
	})
	if err != nil {
		return err
	}

	log.Printf("order %s cancelled by user %s: %s", orderID, userID, reason)
	s.broadcast(order)
	return nil
}

func (s *orderService) UserHasActiveOrders(userID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.Model(&models.Order{}).
		Where("user_id = ? AND status <> ?", userID, models.OrderStatusCancelled).
		Count(&count).Error
	return count > 0, err
}

func (s *orderService) CountByStatus(status models.OrderStatus) (int64, error) {
	var count int64
	err := s.db.Model(&models.Order{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

func (s *orderService) CountSince(start time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&models.Order{}).Where("created_at >= ?", start).Count(&count).Error
	return count, err
}

// RevenueBetween sums totalAmount over non-cancelled orders created in
// the window.
func (s *orderService) RevenueBetween(start, end time.Time) (decimal.Decimal, error) {
	var orders []models.Order
	err := s.db.Select("total_amount").
		Where("status <> ? AND created_at BETWEEN ? AND ?", models.OrderStatusCancelled, start, end).
		Find(&orders).Error
	if err != nil {
		return decimal.Zero, err
	}
	revenue := decimal.Zero
	for _, order := range orders {
		revenue = revenue.Add(order.TotalAmount)
	}
	return revenue, nil
}

// TopSellingProducts reports the top-N products by quantity sold across
// non-cancelled orders. Products since removed from the catalog are
// skipped, matching the read-only contract with the catalog store.
func (s *orderService) TopSellingProducts(limit int) ([]ProductSales, error) {
	if limit < 1 {
		limit = 10
	}

	type row struct {
		ProductID uuid.UUID
		Total     int
	}
	var rows []row
	err := s.db.Model(&models.OrderItem{}).
		Select("order_items.product_id AS product_id, SUM(order_items.quantity) AS total").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.status <> ?", models.OrderStatusCancelled).
		Group("order_items.product_id").
		Order("total DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	sales := make([]ProductSales, 0, len(rows))
	for _, r := range rows {
		var product models.Product
		if err := s.db.First(&product, "id = ?", r.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		sales = append(sales, ProductSales{
			ProductID:    r.ProductID,
			ProductName:  product.Name,
			QuantitySold: r.Total,
		})
	}
	return sales, nil
}

func (s *orderService) broadcast(order models.Order) {
	if s.notify != nil {
		s.notify(order)
	}
}

func stockLinesFromItems(items []models.OrderItem) []StockLine {
	lines := make([]StockLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, StockLine{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		})
	}
	return lines
}
