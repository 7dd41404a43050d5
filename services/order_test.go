package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ainan-ahmed/ecommforall-backend/apperrors"
	"github.com/ainan-ahmed/ecommforall-backend/models"
)

func TestCreateOrderFromCart(t *testing.T) {
	db := openTestDB(t)
	ledger := NewStockLedger()
	orders := NewOrderService(db, ledger, nil)
	cart := NewCartService(db)

	alice := seedUser(t, db, "alice")
	shirt := seedProduct(t, db, "Shirt", "10.00", 5)

	_, err := cart.AddItem(alice.ID, AddItemInput{ProductID: shirt.ID, Quantity: 3})
	require.NoError(t, err)

	order, err := orders.CreateOrder(alice.ID, CreateOrderInput{
		FromCart:        true,
		ShippingAddress: "1 Main St",
		BillingAddress:  "1 Main St",
		PaymentMethod:   "card",
	})
	require.NoError(t, err)

	require.Equal(t, models.OrderStatusPending, order.Status)
	require.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	require.True(t, order.TotalAmount.Equal(dec("30.00")), "got %s", order.TotalAmount)
	require.Len(t, order.Items, 1)
	require.Equal(t, "Shirt", order.Items[0].ProductName)
	require.True(t, order.Items[0].Price.Equal(dec("10.00")))

	require.Equal(t, 2, productStock(t, db, shirt.ID))

	count, err := cart.ItemCount(alice.ID)
	require.NoError(t, err)
	require.Equal(t, 0, count, "cart must be cleared")
}

func TestCreateOrderInsufficientStockHasNoSideEffects(t *testing.T) {
	db := openTestDB(t)
	orders := NewOrderService(db, NewStockLedger(), nil)
	cart := NewCartService(db)

	alice := seedUser(t, db, "alice")
	shirt := seedProduct(t, db, "Shirt", "10.00", 2)

	_, err := cart.AddItem(alice.ID, AddItemInput{ProductID: shirt.ID, Quantity: 3})
	require.NoError(t, err)

	_, err = orders.CreateOrder(alice.ID, CreateOrderInput{FromCart: true})
	require.Error(t, err)

	var stockErr *apperrors.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	require.Len(t, stockErr.Lines, 1)
	require.Equal(t, "Shirt", stockErr.Lines[0].Name)
	require.Equal(t, 3, stockErr.Lines[0].Requested)
	require.Equal(t, 2, stockErr.Lines[0].Available)

	// No order, no debit, cart untouched.
	var orderCount int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orderCount).Error)
	require.Zero(t, orderCount)
	require.Equal(t, 2, productStock(t, db, shirt.ID))

	count, err := cart.ItemCount(alice.ID)
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestCreateOrderFromEmptyCart(t *testing.T) {
	db := openTestDB(t)
	orders := NewOrderService(db, NewStockLedger(), nil)
	alice := seedUser(t, db, "alice")

	_, err := orders.CreateOrder(alice.ID, CreateOrderInput{FromCart: true})
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestCreateOrderExplicitEmptyList(t *testing.T) {
	db := openTestDB(t)
	orders := NewOrderService(db, NewStockLedger(), nil)
	alice := seedUser(t, db, "alice")

	_, err := orders.CreateOrder(alice.ID, CreateOrderInput{FromCart: false})
	require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestCreateOrderExplicitItemsSnapshotsVariant(t *testing.T) {
	db := openTestDB(t)
	orders := NewOrderService(db, NewStockLedger(), nil)
	alice := seedUser(t, db, "alice")
	hoodie := seedVariantProduct(t, db, "Hoodie")
	hoodieM := seedVariant(t, db, hoodie, "HOODIE-M", "25.00", 6)

	order, err := orders.CreateOrder(alice.ID, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: hoodie.ID, VariantID: ptr(hoodieM.ID), Quantity: 2}},
	})
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	require.Equal(t, "HOODIE-M", order.Items[0].SKU)
	require.True(t, order.Items[0].Price.Equal(dec("25.00")))
	require.True(t, order.TotalAmount.Equal(dec("50.00")))
	require.Equal(t, 4, variantStock(t, db, hoodieM.ID))
}

func TestCreateOrderRejectsVariantOfAnotherProduct(t *testing.T) {
	db := openTestDB(t)
	orders := NewOrderService(db, NewStockLedger(), nil)
	alice := seedUser(t, db, "alice")
	shirt := seedProduct(t, db, "Shirt", "10.00", 5)
	hoodie := seedVariantProduct(t, db, "Hoodie")
	hoodieM := seedVariant(t, db, hoodie, "HOODIE-M", "25.00", 8)

	_, err := orders.CreateOrder(alice.ID, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: shirt.ID, VariantID: ptr(hoodieM.ID), Quantity: 1}},
	})
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	require.Equal(t, 5, productStock(t, db, shirt.ID))
	require.Equal(t, 8, variantStock(t, db, hoodieM.ID))
}

func TestOrderItemPriceImmutableAfterCatalogEdit(t *testing.T) {
	db := openTestDB(t)
	orders := NewOrderService(db, NewStockLedger(), nil)
	alice := seedUser(t, db, "alice")
	shirt := seedProduct(t, db, "Shirt", "10.00", 5)

	order, err := orders.CreateOrder(alice.ID, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: shirt.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	newPrice := dec("99.99")
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", shirt.ID).
		Update("price", newPrice).Error)

	reloaded, err := orders.GetOrderByID(order.ID, alice.ID, false)
	require.NoError(t, err)
	require.True(t, reloaded.Items[0].Price.Equal(dec("10.00")), "snapshot price changed")
	require.True(t, reloaded.TotalAmount.Equal(dec("10.00")))
}

func TestCancelOrderRestoresStock(t *testing.T) {
	db := openTestDB(t)
	orders := NewOrderService(db, NewStockLedger(), nil)
	alice := seedUser(t, db, "alice")
	shirt := seedProduct(t, db, "Shirt", "10.00", 10)

	order, err := orders.CreateOrder(alice.ID, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: shirt.ID, Quantity: 4}},
	})
	require.NoError(t, err)
	require.Equal(t, 6, productStock(t, db, shirt.ID))

	_, err = orders.UpdateStatus(order.ID, models.OrderStatusProcessing, "admin")
	require.NoError(t, err)

	// Unrelated stock movement in between; reversal is exact, not a reset.
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", shirt.ID).
		Update("stock", 3).Error)

	require.NoError(t, orders.CancelOrder(order.ID, "changed my mind", alice.ID))

	reloaded, err := orders.GetOrderByID(order.ID, alice.ID, false)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCancelled, reloaded.Status)
	require.Equal(t, "changed my mind", reloaded.CancellationReason)
	require.NotNil(t, reloaded.CancelledAt)
	require.Equal(t, 7, productStock(t, db, shirt.ID), "credit must be exactly the debited quantity")
}

func TestCancelOrderWrongUser(t *testing.T) {
	db := openTestDB(t)
	orders := NewOrderService(db, NewStockLedger(), nil)
	alice := seedUser(t, db, "alice")
	mallory := seedUser(t, db, "mallory")
	shirt := seedProduct(t, db, "Shirt", "10.00", 5)

	order, err := orders.CreateOrder(alice.ID, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: shirt.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	err = orders.CancelOrder(order.ID, "not mine", mallory.ID)
	require.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	reloaded, err := orders.GetOrderByID(order.ID, alice.ID, false)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusPending, reloaded.Status)
	require.Nil(t, reloaded.CancelledAt)
	require.Equal(t, 4, productStock(t, db, shirt.ID))
}

func TestCancelOrderRejectedAfterShipping(t *testing.T) {
	db := openTestDB(t)
	orders := NewOrderService(db, NewStockLedger(), nil)
	alice := seedUser(t, db, "alice")
	shirt := seedProduct(t, db, "Shirt", "10.00", 5)

	order, err := orders.CreateOrder(alice.ID, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: shirt.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = orders.UpdateStatus(order.ID, models.OrderStatusProcessing, "admin")
	require.NoError(t, err)
	_, err = orders.UpdateStatus(order.ID, models.OrderStatusShipped, "admin")
	require.NoError(t, err)

	err = orders.CancelOrder(order.ID, "too late", alice.ID)
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestUpdateStatusStampsTimestamps(t *testing.T) {
	db := openTestDB(t)
	orders := NewOrderService(db, NewStockLedger(), nil)
	alice := seedUser(t, db, "alice")
	shirt := seedProduct(t, db, "Shirt", "10.00", 5)

	order, err := orders.CreateOrder(alice.ID, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: shirt.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	order, err = orders.UpdateStatus(order.ID, models.OrderStatusProcessing, "admin")
	require.NoError(t, err)
	require.NotNil(t, order.ProcessedAt)

	order, err = orders.UpdateStatus(order.ID, models.OrderStatusShipped, "admin")
	require.NoError(t, err)
	require.NotNil(t, order.ShippedAt)

	order, err = orders.UpdateStatus(order.ID, models.OrderStatusDelivered, "admin")
	require.NoError(t, err)
	require.NotNil(t, order.DeliveredAt)
}

func TestUpdateStatusRejectsIllegalTransitions(t *testing.T) {
	db := openTestDB(t)
	orders := NewOrderService(db, NewStockLedger(), nil)
	alice := seedUser(t, db, "alice")
	shirt := seedProduct(t, db, "Shirt", "10.00", 5)

	order, err := orders.CreateOrder(alice.ID, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: shirt.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	// PENDING cannot jump straight to SHIPPED.
	_, err = orders.UpdateStatus(order.ID, models.OrderStatusShipped, "admin")
	require.ErrorIs(t, err, apperrors.ErrInvalidState)

	for _, status := range []models.OrderStatus{
		models.OrderStatusProcessing, models.OrderStatusShipped, models.OrderStatusDelivered,
	} {
		_, err = orders.UpdateStatus(order.ID, status, "admin")
		require.NoError(t, err)
	}

	// DELIVERED is terminal.
	_, err = orders.UpdateStatus(order.ID, models.OrderStatusPending, "admin")
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
	_, err = orders.UpdateStatus(order.ID, models.OrderStatusCancelled, "admin")
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestUpdateStatusToCancelledCreditsStock(t *testing.T) {
	db := openTestDB(t)
	orders := NewOrderService(db, NewStockLedger(), nil)
	alice := seedUser(t, db, "alice")
	shirt := seedProduct(t, db, "Shirt", "10.00", 5)

	order, err := orders.CreateOrder(alice.ID, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: shirt.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, 3, productStock(t, db, shirt.ID))

	_, err = orders.UpdateStatus(order.ID, models.OrderStatusCancelled, "admin")
	require.NoError(t, err)
	require.Equal(t, 5, productStock(t, db, shirt.ID))
}

func TestUserHasActiveOrders(t *testing.T) {
	db := openTestDB(t)
	orders := NewOrderService(db, NewStockLedger(), nil)
	alice := seedUser(t, db, "alice")
	shirt := seedProduct(t, db, "Shirt", "10.00", 5)

	active, err := orders.UserHasActiveOrders(alice.ID)
	require.NoError(t, err)
	require.False(t, active)

	order, err := orders.CreateOrder(alice.ID, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: shirt.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	active, err = orders.UserHasActiveOrders(alice.ID)
	require.NoError(t, err)
	require.True(t, active)

	require.NoError(t, orders.CancelOrder(order.ID, "x", alice.ID))

	active, err = orders.UserHasActiveOrders(alice.ID)
	require.NoError(t, err)
	require.False(t, active)
}

func TestGetOrderByIDPermission(t *testing.T) {
	db := openTestDB(t)
	orders := NewOrderService(db, NewStockLedger(), nil)
	alice := seedUser(t, db, "alice")
	mallory := seedUser(t, db, "mallory")
	shirt := seedProduct(t, db, "Shirt", "10.00", 5)

	order, err := orders.CreateOrder(alice.ID, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: shirt.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = orders.GetOrderByID(order.ID, mallory.ID, false)
	require.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	// Admin read bypasses ownership.
	_, err = orders.GetOrderByID(order.ID, mallory.ID, true)
	require.NoError(t, err)
}

func TestRevenueExcludesCancelledOrders(t *testing.T) {
	db := openTestDB(t)
	orders := NewOrderService(db, NewStockLedger(), nil)
	alice := seedUser(t, db, "alice")
	shirt := seedProduct(t, db, "Shirt", "10.00", 100)

	_, err := orders.CreateOrder(alice.ID, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: shirt.ID, Quantity: 3}},
	})
	require.NoError(t, err)

	cancelled, err := orders.CreateOrder(alice.ID, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: shirt.ID, Quantity: 5}},
	})
	require.NoError(t, err)
	require.NoError(t, orders.CancelOrder(cancelled.ID, "x", alice.ID))

	revenue, err := orders.RevenueBetween(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.True(t, revenue.Equal(dec("30.00")), "got %s", revenue)

	count, err := orders.CountByStatus(models.OrderStatusCancelled)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	since, err := orders.CountSince(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(2), since)
}

func TestTopSellingProducts(t *testing.T) {
	db := openTestDB(t)
	orders := NewOrderService(db, NewStockLedger(), nil)
	alice := seedUser(t, db, "alice")
	shirt := seedProduct(t, db, "Shirt", "10.00", 100)
	mug := seedProduct(t, db, "Mug", "5.00", 100)

	_, err := orders.CreateOrder(alice.ID, CreateOrderInput{
		Items: []OrderLineInput{
			{ProductID: shirt.ID, Quantity: 2},
			{ProductID: mug.ID, Quantity: 7},
		},
	})
	require.NoError(t, err)

	cancelled, err := orders.CreateOrder(alice.ID, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: shirt.ID, Quantity: 50}},
	})
	require.NoError(t, err)
	require.NoError(t, orders.CancelOrder(cancelled.ID, "x", alice.ID))

	sales, err := orders.TopSellingProducts(10)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	require.Equal(t, "Mug", sales[0].ProductName)
	require.Equal(t, 7, sales[0].QuantitySold)
	require.Equal(t, "Shirt", sales[1].ProductName)
	require.Equal(t, 2, sales[1].QuantitySold, "cancelled orders must not count")
}

func TestGetUserOrdersPagination(t *testing.T) {
	db := openTestDB(t)
	orders := NewOrderService(db, NewStockLedger(), nil)
	alice := seedUser(t, db, "alice")
	shirt := seedProduct(t, db, "Shirt", "10.00", 100)

	for i := 0; i < 3; i++ {
		_, err := orders.CreateOrder(alice.ID, CreateOrderInput{
			Items: []OrderLineInput{{ProductID: shirt.ID, Quantity: 1}},
		})
		require.NoError(t, err)
	}

	page, total, err := orders.GetUserOrders(alice.ID, 1, 2)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, page, 2)

	page, _, err = orders.GetUserOrders(alice.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
}
