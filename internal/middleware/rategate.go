package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"crash-casino-backend/internal/services"
)

// RateGate admits the request under the given category before the handler
// runs. Remaining budget and window reset are surfaced as headers on every
// gated response; a denial answers 429 with a retry-after.
func RateGate(gate *services.RateGate, category services.Category) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := gateIdentity(c)

		decision, err := gate.Admit(c.Request.Context(), identity, category)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger_unavailable", "message": "Rate limit check failed"})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", decision.ResetAt.Unix()))

		if !decision.Allowed {
			retryAfter := time.Until(decision.ResetAt).Seconds()
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.Header("Retry-After", fmt.Sprintf("%.0f", retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limited",
				"message":     "Rate limit exceeded. Please wait.",
				"retry_after": retryAfter,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// gateIdentity keys the window on the authenticated user when present,
// falling back to the client address for unauthenticated routes.
func gateIdentity(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		return fmt.Sprintf("user:%d", userID.(int64))
	}
	return "ip:" + c.ClientIP()
}
