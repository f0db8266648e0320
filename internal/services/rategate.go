package services

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"crash-casino-backend/internal/models"
)

type Category string

const (
	CategoryBetPlacement Category = "bet_placement"
	CategoryCashout      Category = "cashout"
	CategoryAuth         Category = "auth"
	CategoryRegistration Category = "registration"
	CategoryAPIGeneral   Category = "api_general"
)

type rateBudget struct {
	limit  int64
	window time.Duration
}

var categoryBudgets = map[Category]rateBudget{
	CategoryBetPlacement: {limit: 10, window: 60 * time.Second},
	CategoryCashout:      {limit: 5, window: 10 * time.Second},
	CategoryAuth:         {limit: 5, window: 300 * time.Second},
	CategoryRegistration: {limit: 3, window: 3600 * time.Second},
	CategoryAPIGeneral:   {limit: 100, window: 60 * time.Second},
}

// Decision is the admission verdict for one action. ResetAt lets a denied
// caller compute a retry-after; Remaining is never reported negative.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Remaining int64     `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// CounterStore provides the atomic increment-and-window primitive under the
// gate. MemoryCounters backs tests and single-process mode, RedisCounters
// shares windows across processes.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// RateGate counts actions per (identity, category) inside a fixed window and
// denies once the category budget is exhausted. Exhaustion is a Decision,
// not an error; only malformed input errors.
type RateGate struct {
	counters CounterStore
	logger   *log.Logger
}

func NewRateGate(counters CounterStore, logger *log.Logger) *RateGate {
	return &RateGate{
		counters: counters,
		logger:   logger.WithPrefix("rategate"),
	}
}

func (g *RateGate) Admit(ctx context.Context, identity string, category Category) (Decision, error) {
	if identity == "" {
		return Decision{}, models.NewGameError(models.KindInvalidInput, "identity is required")
	}
	budget, ok := categoryBudgets[category]
	if !ok {
		return Decision{}, models.NewGameError(models.KindInvalidInput, "unknown rate category: %s", category)
	}

	key := identity + ":" + string(category)
	count, resetAt, err := g.counters.Incr(ctx, key, budget.window)
	if err != nil {
		return Decision{}, models.NewGameError(models.KindLedgerUnavailable, "rate counter failed: %v", err)
	}

	remaining := budget.limit - count
	if remaining < 0 {
		remaining = 0
	}

	decision := Decision{
		Allowed:   count <= budget.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}

	if !decision.Allowed {
		g.logger.Warn("admission denied",
			"identity", identity,
			"category", category,
			"count", count,
			"reset_at", resetAt)
	}

	return decision, nil
}
