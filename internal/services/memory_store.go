package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"crash-casino-backend/internal/models"
)

// MemoryStore keeps balances and bets in process memory behind one mutex,
// giving the same all-or-nothing semantics per call as the redis scripts.
// Used by tests and development mode.
type MemoryStore struct {
	mu              sync.Mutex
	startingBalance int64
	balances        map[int64]*models.UserBalance
	bets            map[string]*models.Bet
	userBets        map[int64][]string
	transactions    []*models.Transaction
}

func NewMemoryStore(startingBalance int64) *MemoryStore {
	return &MemoryStore{
		startingBalance: startingBalance,
		balances:        make(map[int64]*models.UserBalance),
		bets:            make(map[string]*models.Bet),
		userBets:        make(map[int64][]string),
	}
}

func (s *MemoryStore) balance(userID int64) *models.UserBalance {
	b, ok := s.balances[userID]
	if !ok {
		b = &models.UserBalance{UserID: userID, Balance: s.startingBalance}
		s.balances[userID] = b
	}
	return b
}

func (s *MemoryStore) GetBalance(_ context.Context, userID int64) (*models.UserBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.balance(userID)
	copied := *b
	return &copied, nil
}

func (s *MemoryStore) DebitForBet(_ context.Context, userID int64, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.balance(userID)
	if b.Balance < amount {
		return b.Balance, models.ErrInsufficientFunds
	}

	b.Balance -= amount
	b.TotalWagered += amount
	b.GamesPlayed++
	return b.Balance, nil
}

func (s *MemoryStore) CreditPayout(_ context.Context, userID int64, payout int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.balance(userID)
	b.Balance += payout
	b.TotalWon += payout
	return b.Balance, nil
}

func (s *MemoryStore) AdjustBalance(_ context.Context, userID int64, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.balance(userID)
	if b.Balance+delta < 0 {
		return b.Balance, models.ErrInsufficientFunds
	}
	b.Balance += delta
	return b.Balance, nil
}

func (s *MemoryStore) InsertBet(_ context.Context, bet *models.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *bet
	s.bets[bet.ID] = &copied
	s.userBets[bet.UserID] = append(s.userBets[bet.UserID], bet.ID)
	return nil
}

func (s *MemoryStore) GetBet(_ context.Context, betID string) (*models.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bet, ok := s.bets[betID]
	if !ok {
		return nil, models.NewGameError(models.KindInvalidInput, "bet not found: %s", betID)
	}
	copied := *bet
	return &copied, nil
}

func (s *MemoryStore) DeleteBet(_ context.Context, betID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bet, ok := s.bets[betID]
	if !ok {
		return nil
	}
	delete(s.bets, betID)

	ids := s.userBets[bet.UserID]
	for i, id := range ids {
		if id == betID {
			s.userBets[bet.UserID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) SettleBet(_ context.Context, betID string, status models.BetStatus, multiplier float64) (*models.Bet, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bet, ok := s.bets[betID]
	if !ok {
		return nil, false, models.NewGameError(models.KindInvalidInput, "bet not found: %s", betID)
	}

	if bet.Terminal() {
		copied := *bet
		return &copied, false, nil
	}

	bet.Status = status
	bet.SettledAt = time.Now()
	switch status {
	case models.BetCashedOut:
		bet.CashoutMultiplier = multiplier
		bet.Payout = models.CalculatePayout(bet.Amount, multiplier)
		bet.Profit = bet.Payout - bet.Amount
	case models.BetLost:
		bet.Payout = 0
		bet.Profit = -bet.Amount
	}

	copied := *bet
	return &copied, true, nil
}

func (s *MemoryStore) ReopenBet(_ context.Context, betID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bet, ok := s.bets[betID]
	if !ok {
		return models.NewGameError(models.KindInvalidInput, "bet not found: %s", betID)
	}
	bet.Status = models.BetActive
	bet.CashoutMultiplier = 0
	bet.Payout = 0
	bet.Profit = -bet.Amount
	bet.SettledAt = time.Time{}
	return nil
}

func (s *MemoryStore) ListBetsByUser(_ context.Context, userID int64, limit, offset int) ([]*models.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	ids := s.userBets[userID]
	bets := make([]*models.Bet, 0, len(ids))
	for _, id := range ids {
		if bet, ok := s.bets[id]; ok {
			copied := *bet
			bets = append(bets, &copied)
		}
	}
	sort.Slice(bets, func(i, j int) bool {
		return bets[i].CreatedAt.After(bets[j].CreatedAt)
	})

	if offset >= len(bets) {
		return []*models.Bet{}, nil
	}
	end := offset + limit
	if end > len(bets) {
		end = len(bets)
	}
	return bets[offset:end], nil
}

func (s *MemoryStore) SaveTransaction(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *tx
	s.transactions = append(s.transactions, &copied)
	return nil
}
