package services

import (
	"context"

	"crash-casino-backend/internal/models"
)

// Store is the atomic boundary to the persistent backend. Every balance
// mutation for a user is serialized inside the store; callers pass all
// mutation parameters through a single call instead of composing
// read-then-write across two calls.
//
// RedisStore is the production implementation (Lua scripts); MemoryStore
// backs tests and development.
type Store interface {
	// GetBalance returns the stable read projection for a user, creating
	// the account with the configured starting balance on first access.
	GetBalance(ctx context.Context, userID int64) (*models.UserBalance, error)

	// DebitForBet atomically checks balance >= amount, subtracts the stake
	// and bumps total_wagered and games_played. Returns the new balance or
	// ErrInsufficientFunds with no effect.
	DebitForBet(ctx context.Context, userID int64, amount int64) (int64, error)

	// CreditPayout atomically adds a payout to the balance and bumps
	// total_won.
	CreditPayout(ctx context.Context, userID int64, payout int64) (int64, error)

	// AdjustBalance applies a signed delta. A negative delta that would
	// drive the balance below zero is rejected with ErrInsufficientFunds
	// and has no effect.
	AdjustBalance(ctx context.Context, userID int64, delta int64) (int64, error)

	InsertBet(ctx context.Context, bet *models.Bet) error
	GetBet(ctx context.Context, betID string) (*models.Bet, error)

	// DeleteBet is the compensating action for a bet whose balance effect
	// failed or was rolled back.
	DeleteBet(ctx context.Context, betID string) error

	// SettleBet atomically transitions an active bet to the given terminal
	// status, computing payout and profit from the stored amount and the
	// multiplier. The bool reports whether this call performed the
	// transition; when the bet was already terminal the stored bet is
	// returned unchanged so duplicate deliveries replay the prior outcome.
	SettleBet(ctx context.Context, betID string, status models.BetStatus, multiplier float64) (*models.Bet, bool, error)

	// ReopenBet reverts a settled bet to active. Compensating action used
	// when the payout credit after a cash-out transition fails.
	ReopenBet(ctx context.Context, betID string) error

	// ListBetsByUser returns the user's bets newest first. limit is capped
	// at 100, offset must be >= 0.
	ListBetsByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Bet, error)

	SaveTransaction(ctx context.Context, tx *models.Transaction) error
}
