package models

import "time"

type BetStatus string

const (
	BetActive    BetStatus = "active"
	BetCashedOut BetStatus = "cashed_out"
	BetLost      BetStatus = "lost"
)

// Bet belongs to exactly one round for its whole lifetime. It reaches exactly
// one terminal status (cashed_out or lost), at most once; Payout > 0 only
// when the status is cashed_out.
type Bet struct {
	ID                 string    `json:"id" redis:"id"`
	RoundID            string    `json:"round_id" redis:"round_id"`
	UserID             int64     `json:"user_id" redis:"user_id"`
	Amount             int64     `json:"amount" redis:"amount"`
	AutoCashout        float64   `json:"auto_cashout,omitempty" redis:"auto_cashout"`
	Status             BetStatus `json:"status" redis:"status"`
	CashoutMultiplier  float64   `json:"cashout_multiplier,omitempty" redis:"cashout_multiplier"`
	Payout             int64     `json:"payout" redis:"payout"`
	Profit             int64     `json:"profit" redis:"profit"`
	CreatedAt          time.Time `json:"created_at" redis:"created_at"`
	SettledAt          time.Time `json:"settled_at,omitempty" redis:"settled_at"`
}

func (b *Bet) Terminal() bool {
	return b.Status != BetActive
}

// BetOutcome is what settlement returns, including when the bet was already
// terminal and the prior result is replayed.
type BetOutcome struct {
	BetID      string    `json:"bet_id"`
	Status     BetStatus `json:"status"`
	Multiplier float64   `json:"multiplier,omitempty"`
	Payout     int64     `json:"payout"`
	Profit     int64     `json:"profit"`
	NewBalance int64     `json:"new_balance"`
}
