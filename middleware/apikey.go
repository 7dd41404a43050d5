package middleware

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// ValidateAPIKey guards the admin surface. The acting admin is recorded
// in the context for audit logging.
func ValidateAPIKey(c *gin.Context) {
	apiKey := c.GetHeader("X-API-KEY")
	if apiKey == "" || apiKey != os.Getenv("ADMIN_API_KEY") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing API key"})
		c.Abort()
		return
	}
	if actor := c.GetHeader("X-ADMIN-ID"); actor != "" {
		c.Set("actor_id", actor)
	} else {
		c.Set("actor_id", "admin")
	}
	c.Next()
}
