package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	orderControllers "github.com/ainan-ahmed/ecommforall-backend/controllers/order"
	"github.com/ainan-ahmed/ecommforall-backend/middleware"
	"github.com/ainan-ahmed/ecommforall-backend/services"
)

func SetupOrderRoutes(r *gin.Engine, orders services.OrderService) {
	group := r.Group("/api/orders", middleware.ValidateToken)
	{
		group.POST("", orderControllers.CreateOrder(orders))
		group.GET("", orderControllers.GetUserOrders(orders))
		group.GET("/:orderID", orderControllers.GetOrderByID(orders))
		group.POST("/:orderID/cancel", orderControllers.CancelOrder(orders))
	}
}

func SetupAdminRoutes(r *gin.Engine, db *gorm.DB, orders services.OrderService) {
	group := r.Group("/api/admin/orders", middleware.ValidateAPIKey)
	{
		group.GET("", orderControllers.GetAllOrders(orders))
		group.PUT("/:orderID/status", orderControllers.UpdateOrderStatus(orders))
		group.PUT("/:orderID/payment-status", orderControllers.UpdatePaymentStatus(orders))
		group.GET("/metrics", orderControllers.OrderMetrics(orders))
		group.GET("/top-products", orderControllers.TopSellingProducts(orders))
		group.GET("/export", orderControllers.ExportOrdersToExcel(db))

		// websocket endpoint for real-time order updates
		group.GET("/ws", orderControllers.OrderWebSocketHandler)
	}
}
