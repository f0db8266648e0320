package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"crash-casino-backend/internal/models"
)

// Ledger owns every balance and bet-record mutation. It decides when a
// mutation is attempted and how partial failure is compensated; the store's
// atomic procedures are the serialization point, so the ledger never holds a
// process-local lock across store I/O.
type Ledger struct {
	store  Store
	logger *log.Logger
	minBet int64
	maxBet int64
}

func NewLedger(store Store, logger *log.Logger, minBet, maxBet int64) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger.WithPrefix("ledger"),
		minBet: minBet,
		maxBet: maxBet,
	}
}

// DebitAndRecordBet inserts the bet record, then debits the stake through
// the store's atomic procedure. A failed debit deletes the record
// (compensating delete); a failed journal write refunds the stake and
// deletes the record, so no observer ever sees a bet without its matching
// balance effect.
func (l *Ledger) DebitAndRecordBet(ctx context.Context, userID int64, roundID string, amount int64, autoCashout float64) (*models.Bet, int64, error) {
	if amount < l.minBet || amount > l.maxBet {
		return nil, 0, models.NewGameError(models.KindInvalidAmount,
			"amount must be between %d and %d", l.minBet, l.maxBet)
	}
	if autoCashout != 0 && autoCashout <= 1.0 {
		return nil, 0, models.NewGameError(models.KindInvalidInput, "auto_cashout must be greater than 1.0")
	}

	bet := &models.Bet{
		ID:          models.GenerateBetID(),
		RoundID:     roundID,
		UserID:      userID,
		Amount:      amount,
		AutoCashout: autoCashout,
		Status:      models.BetActive,
		Payout:      0,
		Profit:      -amount,
		CreatedAt:   time.Now(),
	}

	if err := l.store.InsertBet(ctx, bet); err != nil {
		return nil, 0, l.unavailable("insert bet", err)
	}

	newBalance, err := l.store.DebitForBet(ctx, userID, amount)
	if err != nil {
		if delErr := l.store.DeleteBet(ctx, bet.ID); delErr != nil {
			l.logger.Error("compensating delete failed",
				"bet", bet.ID, "user", userID, "error", delErr)
			return nil, 0, l.unavailable("compensating delete", delErr)
		}
		if errors.Is(err, models.ErrInsufficientFunds) {
			return nil, 0, models.ErrInsufficientFunds
		}
		return nil, 0, l.unavailable("debit balance", err)
	}

	if err := l.journal(ctx, userID, models.TransactionTypeBet, -amount, newBalance, roundID, bet.ID,
		fmt.Sprintf("Bet %s placed on round %s", models.FormatCurrency(amount), roundID)); err != nil {
		l.logger.Error("journal failed after debit, rolling back",
			"bet", bet.ID, "user", userID, "error", err)
		if _, refundErr := l.store.AdjustBalance(ctx, userID, amount); refundErr != nil {
			return nil, 0, l.unavailable("rollback refund", refundErr)
		}
		if delErr := l.store.DeleteBet(ctx, bet.ID); delErr != nil {
			return nil, 0, l.unavailable("rollback delete", delErr)
		}
		return nil, 0, models.ErrLedgerUnavailable
	}

	return bet, newBalance, nil
}

// CreditFromBet settles a bet as cashed out at the given multiplier and pays
// it. The store's status transition is the race arbiter: if the bet is
// already terminal, the prior outcome is returned unchanged so duplicate
// deliveries never double-pay.
func (l *Ledger) CreditFromBet(ctx context.Context, betID string, multiplier float64) (*models.BetOutcome, error) {
	if multiplier < 1.0 {
		return nil, models.NewGameError(models.KindInvalidInput, "multiplier must be at least 1.0")
	}

	bet, transitioned, err := l.store.SettleBet(ctx, betID, models.BetCashedOut, multiplier)
	if err != nil {
		return nil, err
	}

	if !transitioned {
		return l.priorOutcome(ctx, bet)
	}

	newBalance, err := l.store.CreditPayout(ctx, bet.UserID, bet.Payout)
	if err != nil {
		// The payout never reached the balance: revert the status so a
		// retry can settle again.
		if reopenErr := l.store.ReopenBet(ctx, betID); reopenErr != nil {
			l.logger.Error("failed to reopen bet after credit failure",
				"bet", betID, "error", reopenErr)
			return nil, l.unavailable("reopen bet", reopenErr)
		}
		return nil, l.unavailable("credit payout", err)
	}

	if err := l.journal(ctx, bet.UserID, models.TransactionTypeWin, bet.Payout, newBalance, bet.RoundID, bet.ID,
		fmt.Sprintf("Cashed out at %.2fx for %s", multiplier, models.FormatCurrency(bet.Payout))); err != nil {
		l.logger.Error("journal failed after credit", "bet", betID, "error", err)
	}

	l.logger.Info("bet cashed out",
		"bet", betID, "user", bet.UserID, "multiplier", multiplier, "payout", bet.Payout)

	return &models.BetOutcome{
		BetID:      bet.ID,
		Status:     bet.Status,
		Multiplier: bet.CashoutMultiplier,
		Payout:     bet.Payout,
		Profit:     bet.Profit,
		NewBalance: newBalance,
	}, nil
}

// SettleLoss marks a bet lost at crash time. The stake was already debited
// at placement so the balance does not move. Idempotent for the same reason
// CreditFromBet is.
func (l *Ledger) SettleLoss(ctx context.Context, betID string) (*models.BetOutcome, error) {
	bet, transitioned, err := l.store.SettleBet(ctx, betID, models.BetLost, 0)
	if err != nil {
		return nil, err
	}

	if !transitioned {
		return l.priorOutcome(ctx, bet)
	}

	l.logger.Info("bet lost", "bet", betID, "user", bet.UserID, "amount", bet.Amount)

	balance, err := l.store.GetBalance(ctx, bet.UserID)
	if err != nil {
		return nil, l.unavailable("read balance", err)
	}

	return &models.BetOutcome{
		BetID:      bet.ID,
		Status:     bet.Status,
		Payout:     0,
		Profit:     bet.Profit,
		NewBalance: balance.Balance,
	}, nil
}

// AdjustBalance applies a non-bet ledger entry (bonus, manual adjustment).
// The store rejects any delta that would drive the balance below zero.
func (l *Ledger) AdjustBalance(ctx context.Context, userID int64, delta int64, reason string) (int64, error) {
	if reason == "" {
		return 0, models.NewGameError(models.KindInvalidInput, "reason is required")
	}

	newBalance, err := l.store.AdjustBalance(ctx, userID, delta)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientFunds) {
			return 0, models.ErrInsufficientFunds
		}
		return 0, l.unavailable("adjust balance", err)
	}

	if err := l.journal(ctx, userID, models.TransactionTypeAdjustment, delta, newBalance, "", "", reason); err != nil {
		l.logger.Error("journal failed after adjustment", "user", userID, "error", err)
	}

	return newBalance, nil
}

func (l *Ledger) GetBalance(ctx context.Context, userID int64) (*models.UserBalance, error) {
	balance, err := l.store.GetBalance(ctx, userID)
	if err != nil {
		return nil, l.unavailable("read balance", err)
	}
	return balance, nil
}

func (l *Ledger) GetBet(ctx context.Context, betID string) (*models.Bet, error) {
	return l.store.GetBet(ctx, betID)
}

// RollbackBet compensates a placement whose round closed while the debit was
// in flight: the stake is refunded and the record deleted, as if the bet was
// never accepted. Valid only while the bet is still active.
func (l *Ledger) RollbackBet(ctx context.Context, betID string) error {
	bet, err := l.store.GetBet(ctx, betID)
	if err != nil {
		return err
	}
	if bet.Terminal() {
		return models.ErrAlreadySettled
	}

	newBalance, err := l.store.AdjustBalance(ctx, bet.UserID, bet.Amount)
	if err != nil {
		return l.unavailable("rollback refund", err)
	}
	if err := l.store.DeleteBet(ctx, betID); err != nil {
		return l.unavailable("rollback delete", err)
	}

	if err := l.journal(ctx, bet.UserID, models.TransactionTypeRollback, bet.Amount, newBalance, bet.RoundID, bet.ID,
		"Bet rolled back: betting window closed"); err != nil {
		l.logger.Error("journal failed after rollback", "bet", betID, "error", err)
	}

	l.logger.Warn("bet rolled back", "bet", betID, "user", bet.UserID, "amount", bet.Amount)
	return nil
}

// Outcome replays the stored result of a settled bet without mutating
// anything, so duplicate settlement requests observe the original outcome.
func (l *Ledger) Outcome(ctx context.Context, betID string) (*models.BetOutcome, error) {
	bet, err := l.store.GetBet(ctx, betID)
	if err != nil {
		return nil, err
	}
	if !bet.Terminal() {
		return nil, models.NewGameError(models.KindInvalidInput, "bet is not settled: %s", betID)
	}
	return l.priorOutcome(ctx, bet)
}

func (l *Ledger) History(ctx context.Context, userID int64, limit, offset int) ([]*models.Bet, error) {
	bets, err := l.store.ListBetsByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, l.unavailable("list bets", err)
	}
	return bets, nil
}

// priorOutcome replays the result of an already-terminal bet.
func (l *Ledger) priorOutcome(ctx context.Context, bet *models.Bet) (*models.BetOutcome, error) {
	balance, err := l.store.GetBalance(ctx, bet.UserID)
	if err != nil {
		return nil, l.unavailable("read balance", err)
	}
	return &models.BetOutcome{
		BetID:      bet.ID,
		Status:     bet.Status,
		Multiplier: bet.CashoutMultiplier,
		Payout:     bet.Payout,
		Profit:     bet.Profit,
		NewBalance: balance.Balance,
	}, nil
}

func (l *Ledger) journal(ctx context.Context, userID int64, txType models.TransactionType, amount, balanceAfter int64, roundID, betID, description string) error {
	return l.store.SaveTransaction(ctx, &models.Transaction{
		ID:            models.GenerateTransactionID(),
		UserID:        userID,
		Type:          txType,
		Amount:        amount,
		BalanceBefore: balanceAfter - amount,
		BalanceAfter:  balanceAfter,
		RoundID:       roundID,
		BetID:         betID,
		Description:   description,
		CreatedAt:     time.Now(),
	})
}

func (l *Ledger) unavailable(op string, err error) error {
	var gameErr *models.GameError
	if errors.As(err, &gameErr) && gameErr.Kind != models.KindLedgerUnavailable {
		return err
	}
	return models.NewGameError(models.KindLedgerUnavailable, "%s: %v", op, err)
}
