package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"crash-casino-backend/internal/config"
	"crash-casino-backend/internal/models"
)

// fixedCrash always draws the same crash point so tests can reason about
// exact timing.
type fixedCrash struct {
	point float64
}

func (f *fixedCrash) CrashPoint(int64) float64 { return f.point }
func (f *fixedCrash) Commitment() string       { return "test-commitment" }
func (f *fixedCrash) Reveal() string           { return "test-seed" }

func newTestEngine(t *testing.T, crashPoint float64) (*RoundEngine, *Ledger, *quartz.Mock) {
	t.Helper()

	clock := quartz.NewMock(t)
	logger := log.New(io.Discard)
	store := NewMemoryStore(10_000)
	ledger := NewLedger(store, logger, 1, 1000)

	cfg := &config.Config{
		BettingDuration:   10 * time.Second,
		MinFlightDuration: 2 * time.Second,
		TickInterval:      100 * time.Millisecond,
		Intermission:      3 * time.Second,
		MinBet:            1,
		MaxBet:            1000,
	}

	engine := NewRoundEngine(ledger, &fixedCrash{point: crashPoint}, NopBroadcaster{}, clock, logger, cfg)
	return engine, ledger, clock
}

func startRunning(t *testing.T, engine *RoundEngine, clock *quartz.Mock) *models.Round {
	t.Helper()
	round := engine.CreateRound()
	clock.Advance(10 * time.Second)
	engine.AdvanceToRunning()
	return round
}

func TestRoundLifecycle(t *testing.T) {
	engine, _, clock := newTestEngine(t, 3.5)

	round := engine.CreateRound()
	require.Equal(t, models.RoundWaiting, round.Phase)
	require.Equal(t, int64(1), round.Number)
	require.Equal(t, "test-commitment", round.CommitmentHash)
	require.Equal(t, clock.Now().Add(10*time.Second), round.BettingDeadline)

	// Before the deadline the transition must not happen.
	engine.AdvanceToRunning()
	require.Equal(t, models.RoundWaiting, round.Phase)

	clock.Advance(10 * time.Second)
	engine.AdvanceToRunning()
	require.Equal(t, models.RoundRunning, round.Phase)
	require.Equal(t, clock.Now(), round.StartedAt)

	startedAt := round.StartedAt
	engine.AdvanceToRunning()
	require.Equal(t, startedAt, round.StartedAt, "duplicate transition must be a no-op")

	snapshot, multiplier, ok := engine.CurrentRound()
	require.True(t, ok)
	require.Zero(t, snapshot.CrashPoint, "crash point must stay hidden until the crash")
	require.InDelta(t, 1.0, multiplier, 0.01)
}

func TestCurrentMultiplierMonotonic(t *testing.T) {
	engine, _, clock := newTestEngine(t, 1000)
	round := startRunning(t, engine, clock)

	previous := engine.CurrentMultiplier(round)
	require.InDelta(t, 1.0, previous, 1e-9, "flight starts at 1.0")

	for i := 0; i < 20; i++ {
		clock.Advance(250 * time.Millisecond)
		current := engine.CurrentMultiplier(round)
		require.Greater(t, current, previous)
		previous = current
	}
}

func TestBettingWindow(t *testing.T) {
	engine, _, clock := newTestEngine(t, 3.5)
	round := engine.CreateRound()

	require.NoError(t, engine.ValidateBettingOpen(round.ID))
	require.ErrorIs(t, engine.ValidateBettingOpen("round_other"), models.ErrRoundClosed)

	clock.Advance(10 * time.Second)
	require.ErrorIs(t, engine.ValidateBettingOpen(round.ID), models.ErrRoundClosed,
		"window closes at the deadline")
}

func TestPlaceBetRejections(t *testing.T) {
	engine, ledger, clock := newTestEngine(t, 3.5)
	ctx := context.Background()
	round := engine.CreateRound()

	_, err := engine.PlaceBet(ctx, 1, &models.PlaceBetRequest{RoundID: round.ID, Amount: 1500})
	require.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = engine.PlaceBet(ctx, 1, &models.PlaceBetRequest{RoundID: round.ID, Amount: 0})
	require.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = engine.PlaceBet(ctx, 1, &models.PlaceBetRequest{RoundID: round.ID, Amount: 50, AutoCashout: 1.0})
	require.ErrorIs(t, err, models.ErrInvalidInput)

	// Nothing above touched the balance.
	balance, err := ledger.GetBalance(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(10_000), balance.Balance)

	_, err = engine.PlaceBet(ctx, 1, &models.PlaceBetRequest{RoundID: round.ID, Amount: 50})
	require.NoError(t, err)

	_, err = engine.PlaceBet(ctx, 1, &models.PlaceBetRequest{RoundID: round.ID, Amount: 50})
	require.ErrorIs(t, err, models.ErrInvalidInput, "one active bet per user per round")

	clock.Advance(10 * time.Second)
	_, err = engine.PlaceBet(ctx, 2, &models.PlaceBetRequest{RoundID: round.ID, Amount: 50})
	require.ErrorIs(t, err, models.ErrRoundClosed)
}

// debitHookStore runs a callback after the first successful debit, modeling
// a second request interleaving between a placement's debit and its
// registration against the round.
type debitHookStore struct {
	Store
	onDebit func()
}

func (s *debitHookStore) DebitForBet(ctx context.Context, userID int64, amount int64) (int64, error) {
	newBalance, err := s.Store.DebitForBet(ctx, userID, amount)
	if err == nil && s.onDebit != nil {
		hook := s.onDebit
		s.onDebit = nil
		hook()
	}
	return newBalance, err
}

func TestPlaceBetConcurrentDuplicateRolledBack(t *testing.T) {
	clock := quartz.NewMock(t)
	logger := log.New(io.Discard)
	hooked := &debitHookStore{Store: NewMemoryStore(10_000)}
	ledger := NewLedger(hooked, logger, 1, 1000)
	cfg := &config.Config{
		BettingDuration:   10 * time.Second,
		MinFlightDuration: 2 * time.Second,
		TickInterval:      100 * time.Millisecond,
		Intermission:      3 * time.Second,
		MinBet:            1,
		MaxBet:            1000,
	}
	engine := NewRoundEngine(ledger, &fixedCrash{point: 3.5}, NopBroadcaster{}, clock, logger, cfg)

	ctx := context.Background()
	round := engine.CreateRound()

	// A competing placement by the same user lands while the first one's
	// debit is in flight and wins the registration.
	var winner *models.PlaceBetResponse
	hooked.onDebit = func() {
		resp, err := engine.PlaceBet(ctx, 1, &models.PlaceBetRequest{RoundID: round.ID, Amount: 50})
		require.NoError(t, err)
		winner = resp
	}

	_, err := engine.PlaceBet(ctx, 1, &models.PlaceBetRequest{RoundID: round.ID, Amount: 50})
	require.ErrorIs(t, err, models.ErrInvalidInput, "the loser is rejected, never double-registered")
	require.NotNil(t, winner)

	balance, err := ledger.GetBalance(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(9_950), balance.Balance, "only the winning stake stays debited")

	bet, err := ledger.GetBet(ctx, winner.BetID)
	require.NoError(t, err)
	require.Equal(t, models.BetActive, bet.Status)
}

func TestAutoCashoutSettlesAtThreshold(t *testing.T) {
	engine, ledger, clock := newTestEngine(t, 3.5)
	ctx := context.Background()

	round := engine.CreateRound()
	resp, err := engine.PlaceBet(ctx, 7, &models.PlaceBetRequest{
		RoundID:     round.ID,
		Amount:      50,
		AutoCashout: 2.0,
	})
	require.NoError(t, err)
	require.Equal(t, int64(9_950), resp.NewBalance)

	clock.Advance(10 * time.Second)
	engine.AdvanceToRunning()

	// Default growth reaches 2.0x just past five seconds of flight.
	clock.Advance(5 * time.Second)
	require.False(t, engine.Tick(ctx))

	bet, err := ledger.GetBet(ctx, resp.BetID)
	require.NoError(t, err)
	require.Equal(t, models.BetActive, bet.Status, "threshold not reached yet")

	clock.Advance(200 * time.Millisecond)
	require.False(t, engine.Tick(ctx))

	bet, err = ledger.GetBet(ctx, resp.BetID)
	require.NoError(t, err)
	require.Equal(t, models.BetCashedOut, bet.Status)
	require.InDelta(t, 2.0, bet.CashoutMultiplier, 1e-9,
		"settles at the configured threshold, not the tick's multiplier")
	require.Equal(t, int64(100), bet.Payout)
	require.Equal(t, int64(50), bet.Profit)

	balance, err := ledger.GetBalance(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(10_050), balance.Balance)
}

func TestAutoCashoutAboveCrashPointLoses(t *testing.T) {
	engine, ledger, clock := newTestEngine(t, 2.0)
	ctx := context.Background()

	round := engine.CreateRound()
	resp, err := engine.PlaceBet(ctx, 3, &models.PlaceBetRequest{
		RoundID:     round.ID,
		Amount:      50,
		AutoCashout: 5.0,
	})
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	engine.AdvanceToRunning()

	clock.Advance(6 * time.Second)
	require.True(t, engine.Tick(ctx), "multiplier passed the crash point")
	require.Equal(t, models.RoundCrashed, round.Phase)

	bet, err := ledger.GetBet(ctx, resp.BetID)
	require.NoError(t, err)
	require.Equal(t, models.BetLost, bet.Status)
	require.Zero(t, bet.Payout)

	balance, err := ledger.GetBalance(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, int64(9_950), balance.Balance, "stake stays debited, no payout")
}

func TestManualCashout(t *testing.T) {
	engine, ledger, clock := newTestEngine(t, 3.5)
	ctx := context.Background()

	round := engine.CreateRound()
	resp, err := engine.PlaceBet(ctx, 9, &models.PlaceBetRequest{RoundID: round.ID, Amount: 50})
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	engine.AdvanceToRunning()
	clock.Advance(3 * time.Second)

	// exp(0.1386 * 3) = 1.5155..., floored to 1.51 for settlement.
	outcome, err := engine.Cashout(ctx, 9, &models.CashoutRequest{BetID: resp.BetID})
	require.NoError(t, err)
	require.Equal(t, models.BetCashedOut, outcome.Status)
	require.InDelta(t, 1.51, outcome.Multiplier, 1e-9)
	require.Equal(t, int64(75), outcome.Payout)
	require.Equal(t, int64(25), outcome.Profit)
	require.Equal(t, int64(10_025), outcome.NewBalance)

	balance, err := ledger.GetBalance(ctx, 9)
	require.NoError(t, err)
	require.Equal(t, int64(10_025), balance.Balance)
}

func TestCashoutResolvesActiveBetWithoutID(t *testing.T) {
	engine, _, clock := newTestEngine(t, 3.5)
	ctx := context.Background()

	round := engine.CreateRound()
	resp, err := engine.PlaceBet(ctx, 4, &models.PlaceBetRequest{RoundID: round.ID, Amount: 50})
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	engine.AdvanceToRunning()
	clock.Advance(1 * time.Second)

	outcome, err := engine.Cashout(ctx, 4, &models.CashoutRequest{RoundID: round.ID})
	require.NoError(t, err)
	require.Equal(t, resp.BetID, outcome.BetID)

	_, err = engine.Cashout(ctx, 4, &models.CashoutRequest{RoundID: round.ID})
	require.ErrorIs(t, err, models.ErrInvalidInput, "no active bet remains")
}

func TestCashoutBeforeFlightRejected(t *testing.T) {
	engine, _, _ := newTestEngine(t, 3.5)
	ctx := context.Background()

	round := engine.CreateRound()
	resp, err := engine.PlaceBet(ctx, 5, &models.PlaceBetRequest{RoundID: round.ID, Amount: 50})
	require.NoError(t, err)

	_, err = engine.Cashout(ctx, 5, &models.CashoutRequest{BetID: resp.BetID})
	require.ErrorIs(t, err, models.ErrRoundClosed)
}

func TestCashoutAfterCrashReplaysLoss(t *testing.T) {
	engine, ledger, clock := newTestEngine(t, 2.0)
	ctx := context.Background()

	round := engine.CreateRound()
	resp, err := engine.PlaceBet(ctx, 6, &models.PlaceBetRequest{RoundID: round.ID, Amount: 50})
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	engine.AdvanceToRunning()
	clock.Advance(6 * time.Second)
	require.True(t, engine.Tick(ctx))

	outcome, err := engine.Cashout(ctx, 6, &models.CashoutRequest{BetID: resp.BetID})
	require.NoError(t, err)
	require.Equal(t, models.BetLost, outcome.Status)
	require.Zero(t, outcome.Payout)

	balance, err := ledger.GetBalance(ctx, 6)
	require.NoError(t, err)
	require.Equal(t, int64(9_950), balance.Balance, "replaying the loss moves no money")
}

func TestCashoutWrongOwnerRejected(t *testing.T) {
	engine, _, clock := newTestEngine(t, 3.5)
	ctx := context.Background()

	round := engine.CreateRound()
	resp, err := engine.PlaceBet(ctx, 1, &models.PlaceBetRequest{RoundID: round.ID, Amount: 50})
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	engine.AdvanceToRunning()

	_, err = engine.Cashout(ctx, 2, &models.CashoutRequest{BetID: resp.BetID})
	require.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestMinFlightDuration(t *testing.T) {
	engine, _, clock := newTestEngine(t, 1.05)
	ctx := context.Background()

	round := startRunning(t, engine, clock)
	require.Less(t, round.GrowthRate, defaultGrowthRate,
		"growth is capped so low crash points still fly the minimum duration")

	clock.Advance(1900 * time.Millisecond)
	require.False(t, engine.Tick(ctx), "must not crash before the minimum flight duration")

	clock.Advance(150 * time.Millisecond)
	require.True(t, engine.Tick(ctx))
	require.Equal(t, models.RoundCrashed, round.Phase)
}

func TestCrashSettlesAllRemainingBets(t *testing.T) {
	engine, ledger, clock := newTestEngine(t, 2.0)
	ctx := context.Background()

	round := engine.CreateRound()
	var betIDs []string
	for userID := int64(1); userID <= 3; userID++ {
		resp, err := engine.PlaceBet(ctx, userID, &models.PlaceBetRequest{RoundID: round.ID, Amount: 100})
		require.NoError(t, err)
		betIDs = append(betIDs, resp.BetID)
	}

	clock.Advance(10 * time.Second)
	engine.AdvanceToRunning()
	clock.Advance(6 * time.Second)
	require.True(t, engine.Tick(ctx))

	for _, betID := range betIDs {
		bet, err := ledger.GetBet(ctx, betID)
		require.NoError(t, err)
		require.Equal(t, models.BetLost, bet.Status)
		require.Equal(t, int64(-100), bet.Profit)
	}
}

func TestNewRoundResetsBets(t *testing.T) {
	engine, _, clock := newTestEngine(t, 2.0)
	ctx := context.Background()

	round := engine.CreateRound()
	_, err := engine.PlaceBet(ctx, 1, &models.PlaceBetRequest{RoundID: round.ID, Amount: 50})
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	engine.AdvanceToRunning()
	clock.Advance(6 * time.Second)
	require.True(t, engine.Tick(ctx))

	next := engine.CreateRound()
	require.Equal(t, int64(2), next.Number)

	// The loss in round one does not block a bet in round two.
	_, err = engine.PlaceBet(ctx, 1, &models.PlaceBetRequest{RoundID: next.ID, Amount: 50})
	require.NoError(t, err)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	engine, _, _ := newTestEngine(t, 2.0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		engine.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
	require.ErrorIs(t, ctx.Err(), context.Canceled)
}
