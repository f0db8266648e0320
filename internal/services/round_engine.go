package services

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"crash-casino-backend/internal/config"
	"crash-casino-backend/internal/models"
)

// RoundEngine owns round phase and timing. Rounds cycle waiting -> running ->
// crashed indefinitely, driven by Run's single timer goroutine; phase and
// crash point are single-writer, multi-reader. Money only moves through the
// ledger.
type RoundEngine struct {
	mu          sync.RWMutex
	ledger      *Ledger
	crashSource CrashSource
	broadcaster Broadcaster
	clock       quartz.Clock
	logger      *log.Logger

	bettingDuration time.Duration
	minFlight       time.Duration
	tickInterval    time.Duration
	intermission    time.Duration
	minBet          int64
	maxBet          int64

	roundNumber int64
	current     *models.Round
	activeBets  map[string]*models.Bet
	userBet     map[int64]string
}

// Default multiplier growth per second of flight. With m(t) = exp(k*t) this
// doubles the multiplier roughly every five seconds.
const defaultGrowthRate = 0.1386

func NewRoundEngine(ledger *Ledger, crashSource CrashSource, broadcaster Broadcaster, clock quartz.Clock, logger *log.Logger, cfg *config.Config) *RoundEngine {
	return &RoundEngine{
		ledger:          ledger,
		crashSource:     crashSource,
		broadcaster:     broadcaster,
		clock:           clock,
		logger:          logger.WithPrefix("engine"),
		bettingDuration: cfg.BettingDuration,
		minFlight:       cfg.MinFlightDuration,
		tickInterval:    cfg.TickInterval,
		intermission:    cfg.Intermission,
		minBet:          cfg.MinBet,
		maxBet:          cfg.MaxBet,
		activeBets:      make(map[string]*models.Bet),
		userBet:         make(map[int64]string),
	}
}

// CreateRound opens a fresh betting window. The crash point is drawn and
// fixed here, before any bet is accepted, and only its commitment hash is
// public until the crash. The growth rate is capped so the crash point is
// reached no earlier than the minimum flight duration.
func (e *RoundEngine) CreateRound() *models.Round {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.roundNumber++
	crashPoint := e.crashSource.CrashPoint(e.roundNumber)

	growthRate := defaultGrowthRate
	if minSeconds := e.minFlight.Seconds(); minSeconds > 0 {
		if capped := math.Log(crashPoint) / minSeconds; capped < growthRate {
			growthRate = capped
		}
	}

	now := e.clock.Now()
	round := &models.Round{
		ID:              models.GenerateRoundID(),
		Number:          e.roundNumber,
		Phase:           models.RoundWaiting,
		CrashPoint:      crashPoint,
		GrowthRate:      growthRate,
		CommitmentHash:  e.crashSource.Commitment(),
		BettingDeadline: now.Add(e.bettingDuration),
		CreatedAt:       now,
	}

	e.current = round
	e.activeBets = make(map[string]*models.Bet)
	e.userBet = make(map[int64]string)

	e.logger.Info("round waiting",
		"round", round.ID, "number", round.Number, "deadline", round.BettingDeadline)
	e.broadcaster.BroadcastRoundWaiting(round)

	return round
}

// AdvanceToRunning moves the current round into flight once the betting
// deadline has passed. Duplicate timer fires are a no-op.
func (e *RoundEngine) AdvanceToRunning() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || e.current.Phase != models.RoundWaiting {
		return
	}
	if e.clock.Now().Before(e.current.BettingDeadline) {
		return
	}

	e.current.StartedAt = e.clock.Now()
	e.current.Phase = models.RoundRunning

	e.logger.Info("round running", "round", e.current.ID, "bets", len(e.activeBets))
	e.broadcaster.BroadcastRoundRunning(e.current)
}

// CurrentMultiplier is a pure function of elapsed flight time:
// m(t) = exp(k*t), monotonically increasing and continuous from 1.0.
// Defined only while the round is running.
func (e *RoundEngine) CurrentMultiplier(round *models.Round) float64 {
	if round == nil || round.Phase != models.RoundRunning {
		return 0
	}
	elapsed := e.clock.Now().Sub(round.StartedAt)
	if elapsed < 0 {
		return 1.0
	}
	return math.Exp(round.GrowthRate * elapsed.Seconds())
}

// AdvanceToCrashed ends the flight once the multiplier has reached the crash
// point and settles every bet still active as lost. Stakes were debited at
// placement so losses move no money.
func (e *RoundEngine) AdvanceToCrashed(ctx context.Context) {
	e.mu.Lock()
	if e.current == nil || e.current.Phase != models.RoundRunning {
		e.mu.Unlock()
		return
	}
	if e.CurrentMultiplier(e.current) < e.current.CrashPoint {
		e.mu.Unlock()
		return
	}

	e.current.Phase = models.RoundCrashed
	e.current.EndedAt = e.clock.Now()
	round := e.current

	remaining := make([]*models.Bet, 0, len(e.activeBets))
	for _, bet := range e.activeBets {
		remaining = append(remaining, bet)
	}
	e.activeBets = make(map[string]*models.Bet)
	e.userBet = make(map[int64]string)
	e.mu.Unlock()

	e.logger.Info("round crashed",
		"round", round.ID, "crash_point", round.CrashPoint, "losing_bets", len(remaining))

	for _, bet := range remaining {
		outcome, err := e.ledger.SettleLoss(ctx, bet.ID)
		if err != nil {
			e.logger.Error("loss settlement failed", "bet", bet.ID, "error", err)
			continue
		}
		e.broadcaster.BroadcastBetSettled(bet.UserID, outcome)
	}

	e.broadcaster.BroadcastRoundCrashed(round, e.crashSource.Reveal())
}

// Tick performs one step of a running round: fire due auto-cashouts at the
// multiplier observed now, crash the round if the crash point has been
// reached, otherwise publish the multiplier. Reports whether the round is
// over.
func (e *RoundEngine) Tick(ctx context.Context) bool {
	e.mu.RLock()
	round := e.current
	if round == nil || round.Phase != models.RoundRunning {
		e.mu.RUnlock()
		return true
	}
	multiplier := e.CurrentMultiplier(round)
	crashPoint := round.CrashPoint
	roundID := round.ID
	e.mu.RUnlock()

	e.evaluateAutoCashouts(ctx, multiplier)

	if multiplier >= crashPoint {
		e.AdvanceToCrashed(ctx)
		return true
	}

	e.broadcaster.BroadcastMultiplier(roundID, math.Floor(multiplier*100)/100)
	return false
}

// ValidateBettingOpen admits a bet only against the current round, while it
// is waiting and before its deadline.
func (e *RoundEngine) ValidateBettingOpen(roundID string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.current == nil || e.current.ID != roundID {
		return models.ErrRoundClosed
	}
	if e.current.Phase != models.RoundWaiting {
		return models.ErrRoundClosed
	}
	if !e.clock.Now().Before(e.current.BettingDeadline) {
		return models.ErrRoundClosed
	}
	return nil
}

// ValidateCashoutWindow admits a cash-out only while the bet is active, its
// round is in flight and the multiplier has not reached the crash point. The
// admitted multiplier (floored to 2 decimals) is returned so settlement uses
// the value observed at the validated instant.
func (e *RoundEngine) ValidateCashoutWindow(bet *models.Bet) (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if bet.Status != models.BetActive {
		return 0, models.ErrAlreadySettled
	}
	if e.current == nil || e.current.ID != bet.RoundID || e.current.Phase != models.RoundRunning {
		return 0, models.ErrRoundClosed
	}

	multiplier := e.CurrentMultiplier(e.current)
	if multiplier >= e.current.CrashPoint {
		return 0, models.ErrRoundClosed
	}

	return math.Floor(multiplier*100) / 100, nil
}

// PlaceBet is the hot path: validate statically, check the betting window,
// move the stake through the ledger, then register the bet against the
// round. If the window closed while the debit was in flight, the placement
// is compensated rather than carried into a running round.
func (e *RoundEngine) PlaceBet(ctx context.Context, userID int64, req *models.PlaceBetRequest) (*models.PlaceBetResponse, error) {
	if err := req.Validate(e.minBet, e.maxBet); err != nil {
		return nil, err
	}
	if err := e.ValidateBettingOpen(req.RoundID); err != nil {
		return nil, err
	}

	e.mu.RLock()
	_, hasBet := e.userBet[userID]
	e.mu.RUnlock()
	if hasBet {
		return nil, models.NewGameError(models.KindInvalidInput, "an active bet already exists for this round")
	}

	bet, newBalance, err := e.ledger.DebitAndRecordBet(ctx, userID, req.RoundID, req.Amount, req.AutoCashout)
	if err != nil {
		return nil, err
	}

	// Re-check both guards under the lock: the window may have closed and a
	// concurrent placement by the same user may have registered while the
	// debit was in flight.
	e.mu.Lock()
	stillOpen := e.current != nil && e.current.ID == req.RoundID && e.current.Phase == models.RoundWaiting
	_, duplicate := e.userBet[userID]
	if stillOpen && !duplicate {
		e.activeBets[bet.ID] = bet
		e.userBet[userID] = bet.ID
	}
	e.mu.Unlock()

	if !stillOpen || duplicate {
		if rbErr := e.ledger.RollbackBet(ctx, bet.ID); rbErr != nil {
			e.logger.Error("failed to roll back unregistered bet", "bet", bet.ID, "error", rbErr)
			return nil, models.ErrLedgerUnavailable
		}
		if duplicate {
			return nil, models.NewGameError(models.KindInvalidInput, "an active bet already exists for this round")
		}
		return nil, models.ErrRoundClosed
	}

	e.broadcaster.BroadcastBetPlaced(bet)

	return &models.PlaceBetResponse{
		BetID:      bet.ID,
		RoundID:    bet.RoundID,
		Amount:     bet.Amount,
		NewBalance: newBalance,
	}, nil
}

// Cashout settles a bet at the multiplier observed now. The bet id is the
// idempotency key: if placement of a duplicate request races the crash tick,
// whichever reaches the ledger's atomic transition first wins and the loser
// observes the existing outcome.
func (e *RoundEngine) Cashout(ctx context.Context, userID int64, req *models.CashoutRequest) (*models.BetOutcome, error) {
	bet, err := e.resolveBet(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	if bet.UserID != userID {
		return nil, models.ErrUnauthorized
	}

	if bet.Terminal() {
		return e.ledger.Outcome(ctx, bet.ID)
	}

	multiplier, err := e.ValidateCashoutWindow(bet)
	if err != nil {
		return nil, err
	}

	outcome, err := e.ledger.CreditFromBet(ctx, bet.ID, multiplier)
	if err != nil {
		return nil, err
	}

	e.unregisterBet(bet)
	e.broadcaster.BroadcastBetSettled(userID, outcome)

	return outcome, nil
}

func (e *RoundEngine) resolveBet(ctx context.Context, userID int64, req *models.CashoutRequest) (*models.Bet, error) {
	betID := req.BetID
	if betID == "" {
		e.mu.RLock()
		betID = e.userBet[userID]
		e.mu.RUnlock()
		if betID == "" {
			return nil, models.NewGameError(models.KindInvalidInput, "no active bet in the current round")
		}
	}

	e.mu.RLock()
	bet, ok := e.activeBets[betID]
	e.mu.RUnlock()
	if ok {
		return bet, nil
	}

	return e.ledger.GetBet(ctx, betID)
}

func (e *RoundEngine) unregisterBet(bet *models.Bet) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.activeBets, bet.ID)
	if e.userBet[bet.UserID] == bet.ID {
		delete(e.userBet, bet.UserID)
	}
}

// evaluateAutoCashouts settles every active bet whose auto-cashout threshold
// the multiplier has reached, at exactly the configured threshold rather
// than whatever the tick drifted to. Thresholds at or above the crash point
// never fire; the crash settles those bets as lost.
func (e *RoundEngine) evaluateAutoCashouts(ctx context.Context, multiplier float64) {
	e.mu.RLock()
	if e.current == nil || e.current.Phase != models.RoundRunning {
		e.mu.RUnlock()
		return
	}
	crashPoint := e.current.CrashPoint
	due := make([]*models.Bet, 0)
	for _, bet := range e.activeBets {
		if bet.AutoCashout > 0 && multiplier >= bet.AutoCashout && bet.AutoCashout < crashPoint {
			due = append(due, bet)
		}
	}
	e.mu.RUnlock()

	for _, bet := range due {
		outcome, err := e.ledger.CreditFromBet(ctx, bet.ID, bet.AutoCashout)
		if err != nil {
			e.logger.Error("auto-cashout failed", "bet", bet.ID, "error", err)
			continue
		}
		e.unregisterBet(bet)
		e.broadcaster.BroadcastBetSettled(bet.UserID, outcome)
	}
}

// CurrentRound returns a snapshot safe to expose to players: the crash point
// stays hidden until the round has crashed.
func (e *RoundEngine) CurrentRound() (models.Round, float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.current == nil {
		return models.Round{}, 0, false
	}

	snapshot := *e.current
	if snapshot.Phase != models.RoundCrashed {
		snapshot.CrashPoint = 0
	}
	multiplier := 0.0
	if snapshot.Phase == models.RoundRunning {
		multiplier = math.Floor(e.CurrentMultiplier(e.current)*100) / 100
	}
	return snapshot, multiplier, true
}

// Run drives the round lifecycle until the context is cancelled: open a
// betting window, fly, crash, pause, repeat.
func (e *RoundEngine) Run(ctx context.Context) {
	for {
		e.CreateRound()

		if !e.sleep(ctx, e.bettingDuration) {
			return
		}
		e.AdvanceToRunning()

		ticker := e.clock.NewTicker(e.tickInterval)
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
			}

			if crashed := e.Tick(ctx); crashed {
				ticker.Stop()
				break
			}
		}

		if !e.sleep(ctx, e.intermission) {
			return
		}
	}
}

func (e *RoundEngine) sleep(ctx context.Context, d time.Duration) bool {
	timer := e.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
