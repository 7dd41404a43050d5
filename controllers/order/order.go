package orderControllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ainan-ahmed/ecommforall-backend/apperrors"
	"github.com/ainan-ahmed/ecommforall-backend/models"
	"github.com/ainan-ahmed/ecommforall-backend/services"
)

type CreateOrderRequest struct {
	FromCart        bool                      `json:"from_cart"`
	Items           []services.OrderLineInput `json:"items"`
	ShippingAddress string                    `json:"shipping_address" binding:"required"`
	BillingAddress  string                    `json:"billing_address" binding:"required"`
	PaymentMethod   string                    `json:"payment_method" binding:"required"`
	OrderNotes      string                    `json:"order_notes"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required"`
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	val, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return uuid.Nil, false
	}
	id, err := uuid.Parse(val.(string))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return uuid.Nil, false
	}
	return id, true
}

func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	switch status {
	case http.StatusInternalServerError:
		c.JSON(status, gin.H{"error": "internal server error"})
	case http.StatusConflict:
		var stockErr *apperrors.InsufficientStockError
		if errors.As(err, &stockErr) {
			c.JSON(status, gin.H{"error": stockErr.Error(), "lines": stockErr.Lines})
			return
		}
		c.JSON(status, gin.H{"error": err.Error()})
	default:
		c.JSON(status, gin.H{"error": err.Error()})
	}
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, limit
}

// POST /orders
func CreateOrder(orders services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		var req CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
			return
		}

		order, err := orders.CreateOrder(userID, services.CreateOrderInput{
			FromCart:        req.FromCart,
			Items:           req.Items,
			ShippingAddress: req.ShippingAddress,
			BillingAddress:  req.BillingAddress,
			PaymentMethod:   req.PaymentMethod,
			OrderNotes:      req.OrderNotes,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

// GET /orders
func GetUserOrders(orders services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		page, limit := pageParams(c)
		result, total, err := orders.GetUserOrders(userID, page, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": result, "total": total, "page": page})
	}
}

// GET /orders/:orderID
func GetOrderByID(orders services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		orderID, err := uuid.Parse(c.Param("orderID"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
			return
		}
		order, err := orders.GetOrderByID(orderID, userID, false)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// POST /orders/:orderID/cancel
func CancelOrder(orders services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		orderID, err := uuid.Parse(c.Param("orderID"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
			return
		}
		var req CancelOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
			return
		}
		if err := orders.CancelOrder(orderID, req.Reason, userID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Order cancelled"})
	}
}

// ---- Admin handlers ----

// GET /admin/orders?status=
func GetAllOrders(orders services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, limit := pageParams(c)

		var result []models.Order
		var total int64
		var err error
		if status := c.Query("status"); status != "" {
			result, total, err = orders.GetOrdersByStatus(models.OrderStatus(status), page, limit)
		} else {
			result, total, err = orders.GetAllOrders(page, limit)
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": result, "total": total, "page": page})
	}
}

// PUT /admin/orders/:orderID/status
func UpdateOrderStatus(orders services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := uuid.Parse(c.Param("orderID"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
			return
		}
		var req UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
			return
		}
		order, err := orders.UpdateStatus(orderID, models.OrderStatus(req.Status), c.GetString("actor_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// PUT /admin/orders/:orderID/payment-status
func UpdatePaymentStatus(orders services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := uuid.Parse(c.Param("orderID"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
			return
		}
		var req UpdatePaymentStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
			return
		}
		order, err := orders.UpdatePaymentStatus(orderID, models.PaymentStatus(req.PaymentStatus), c.GetString("actor_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// GET /admin/orders/metrics?from=&to=
func OrderMetrics(orders services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, err := metricsWindow(c)
		if err != nil {
			respondError(c, err)
			return
		}

		counts := make(map[string]int64)
		for _, status := range []models.OrderStatus{
			models.OrderStatusPending, models.OrderStatusProcessing,
			models.OrderStatusShipped, models.OrderStatusDelivered,
			models.OrderStatusCancelled,
		} {
			count, err := orders.CountByStatus(status)
			if err != nil {
				respondError(c, err)
				return
			}
			counts[string(status)] = count
		}

		revenue, err := orders.RevenueBetween(from, to)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"counts_by_status": counts,
			"revenue":          revenue,
			"from":             from,
			"to":               to,
		})
	}
}

// metricsWindow defaults to the last month. Malformed bounds are an
// error, not silently replaced.
func metricsWindow(c *gin.Context) (time.Time, time.Time, error) {
	to := time.Now()
	from := to.AddDate(0, -1, 0)
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: from must be an RFC3339 timestamp", apperrors.ErrInvalidArgument)
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: to must be an RFC3339 timestamp", apperrors.ErrInvalidArgument)
		}
		to = t
	}
	return from, to, nil
}

// GET /admin/orders/top-products?limit=
func TopSellingProducts(orders services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
		sales, err := orders.TopSellingProducts(limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sales)
	}
}
