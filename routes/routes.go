package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ainan-ahmed/ecommforall-backend/services"
)

// SetupRoutes wires up the cart, order and admin route groups.
func SetupRoutes(r *gin.Engine, db *gorm.DB, cart services.CartService, orders services.OrderService) {
	SetupCartRoutes(r, cart)
	SetupOrderRoutes(r, orders)
	SetupAdminRoutes(r, db, orders)
}
