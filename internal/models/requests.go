package models

type PlaceBetRequest struct {
	RoundID     string  `json:"round_id" binding:"required"`
	Amount      int64   `json:"amount" binding:"required"`
	AutoCashout float64 `json:"auto_cashout,omitempty"`
}

// Validate runs the static checks that must reject a bet before any money
// moves. Bounds are in cents.
func (r *PlaceBetRequest) Validate(minBet, maxBet int64) error {
	if r.RoundID == "" {
		return NewGameError(KindInvalidInput, "round_id is required")
	}
	if r.Amount < minBet {
		return NewGameError(KindInvalidAmount, "minimum bet is %d", minBet)
	}
	if r.Amount > maxBet {
		return NewGameError(KindInvalidAmount, "maximum bet is %d", maxBet)
	}
	if r.AutoCashout != 0 && r.AutoCashout <= 1.0 {
		return NewGameError(KindInvalidInput, "auto_cashout must be greater than 1.0")
	}
	return nil
}

// CashoutRequest identifies the bet to settle. BetID is the stable
// idempotency key for retries; when omitted, the bet is resolved as the
// caller's active bet in the current round.
type CashoutRequest struct {
	BetID   string `json:"bet_id,omitempty"`
	RoundID string `json:"round_id,omitempty"`
}

type AdjustBalanceRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Delta  int64  `json:"delta" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

type VerifyRoundRequest struct {
	ServerSeed  string `json:"server_seed" binding:"required"`
	RoundNumber int64  `json:"round_number" binding:"required"`
}

type PlaceBetResponse struct {
	BetID      string `json:"bet_id"`
	RoundID    string `json:"round_id"`
	Amount     int64  `json:"amount"`
	NewBalance int64  `json:"new_balance"`
}

type HistoryEntry struct {
	Bet        Bet        `json:"bet"`
	RoundPhase RoundPhase `json:"round_phase"`
	CrashPoint float64    `json:"crash_point,omitempty"`
}
