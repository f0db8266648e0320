package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"crash-casino-backend/internal/services"
)

// AuthHandler issues guest sessions. Real identity lives in an external
// provider; this endpoint only hands out an opaque user id wrapped in a JWT
// so the rest of the API has something to authenticate against.
type AuthHandler struct {
	jwtService *services.JWTService
}

func NewAuthHandler(jwtService *services.JWTService) *AuthHandler {
	return &AuthHandler{jwtService: jwtService}
}

func (h *AuthHandler) GuestSession(c *gin.Context) {
	userID := int64(uuid.New().ID())

	token, sessionID, err := h.jwtService.GenerateToken(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "ledger_unavailable",
			"message": "Failed to create session",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"user_id":    userID,
		"session_id": sessionID,
		"token":      token,
	})
}

// Refresh re-issues a token for an already-authenticated user.
func (h *AuthHandler) Refresh(c *gin.Context) {
	userID := c.GetInt64("user_id")

	token, sessionID, err := h.jwtService.GenerateToken(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "ledger_unavailable",
			"message": "Failed to refresh session",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"user_id":    userID,
		"session_id": sessionID,
		"token":      token,
	})
}
