package routes

import (
	"github.com/gin-gonic/gin"

	cartControllers "github.com/ainan-ahmed/ecommforall-backend/controllers/cart"
	"github.com/ainan-ahmed/ecommforall-backend/middleware"
	"github.com/ainan-ahmed/ecommforall-backend/services"
)

func SetupCartRoutes(r *gin.Engine, cart services.CartService) {
	group := r.Group("/api/cart", middleware.ValidateToken)
	{
		group.GET("", cartControllers.GetCart(cart))
		group.POST("/items", cartControllers.AddCartItem(cart))
		group.PUT("/items/:itemID", cartControllers.UpdateCartItem(cart))
		group.DELETE("/items/:itemID", cartControllers.RemoveCartItem(cart))
		group.DELETE("", cartControllers.ClearCart(cart))
	}
}
