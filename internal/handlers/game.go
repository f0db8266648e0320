package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"crash-casino-backend/internal/config"
	"crash-casino-backend/internal/models"
	"crash-casino-backend/internal/services"
)

type GameHandler struct {
	engine *services.RoundEngine
	ledger *services.Ledger
	cfg    *config.Config
}

func NewGameHandler(engine *services.RoundEngine, ledger *services.Ledger, cfg *config.Config) *GameHandler {
	return &GameHandler{
		engine: engine,
		ledger: ledger,
		cfg:    cfg,
	}
}

func (h *GameHandler) PlaceBet(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.PlaceBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   models.KindInvalidInput,
			"message": "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.engine.PlaceBet(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"bet":     result,
	})
}

func (h *GameHandler) Cashout(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.CashoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   models.KindInvalidInput,
			"message": "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	outcome, err := h.engine.Cashout(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  outcome,
	})
}

func (h *GameHandler) GetBalance(c *gin.Context) {
	userID := c.GetInt64("user_id")

	balance, err := h.ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": balance,
	})
}

func (h *GameHandler) GetCurrentRound(c *gin.Context) {
	round, multiplier, ok := h.engine.CurrentRound()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   models.KindLedgerUnavailable,
			"message": "No round is open yet",
		})
		return
	}

	response := gin.H{
		"id":               round.ID,
		"number":           round.Number,
		"phase":            round.Phase,
		"commitment_hash":  round.CommitmentHash,
		"betting_deadline": round.BettingDeadline,
	}
	if round.Phase == models.RoundRunning {
		response["multiplier"] = multiplier
		response["started_at"] = round.StartedAt
	}
	if round.Phase == models.RoundCrashed {
		response["crash_point"] = round.CrashPoint
		response["ended_at"] = round.EndedAt
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"round":   response,
	})
}

func (h *GameHandler) GetHistory(c *gin.Context) {
	userID := c.GetInt64("user_id")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	bets, err := h.ledger.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"bets":    bets,
		"count":   len(bets),
	})
}

// VerifyRound lets a player recompute a crash point from a revealed server
// seed and compare it to the observed result.
func (h *GameHandler) VerifyRound(c *gin.Context) {
	var req models.VerifyRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   models.KindInvalidInput,
			"message": "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	crashPoint, hash := services.VerifyCrashPoint(req.ServerSeed, req.RoundNumber, h.cfg.HouseEdge, h.cfg.MaxCrash)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"verification": gin.H{
			"crash_point":     crashPoint,
			"calculated_hash": hash,
			"round_number":    req.RoundNumber,
		},
	})
}

// AdjustBalance is the operator surface for non-bet ledger entries.
func (h *GameHandler) AdjustBalance(c *gin.Context) {
	var req models.AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   models.KindInvalidInput,
			"message": "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	newBalance, err := h.ledger.AdjustBalance(c.Request.Context(), req.UserID, req.Delta, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"user_id":     req.UserID,
		"new_balance": newBalance,
	})
}

// respondError maps the typed taxonomy onto HTTP statuses so every rejection
// carries a stable machine-readable kind plus a human message.
func respondError(c *gin.Context, err error) {
	var gameErr *models.GameError
	if !errors.As(err, &gameErr) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   models.KindLedgerUnavailable,
			"message": "Internal error",
		})
		return
	}

	status := http.StatusBadRequest
	switch gameErr.Kind {
	case models.KindUnauthorized:
		status = http.StatusUnauthorized
	case models.KindRoundClosed, models.KindAlreadySettled:
		status = http.StatusConflict
	case models.KindRateLimited:
		status = http.StatusTooManyRequests
	case models.KindLedgerUnavailable:
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"error":   gameErr.Kind,
		"message": gameErr.Message,
	})
}
