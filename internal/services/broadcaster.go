package services

import "crash-casino-backend/internal/models"

// Broadcaster receives the observable events the core emits: round phase
// transitions, multiplier ticks and bet settlements. The websocket hub
// implements it; tests plug in NopBroadcaster.
type Broadcaster interface {
	BroadcastRoundWaiting(round *models.Round)
	BroadcastRoundRunning(round *models.Round)
	BroadcastMultiplier(roundID string, multiplier float64)
	BroadcastRoundCrashed(round *models.Round, serverSeed string)
	BroadcastBetPlaced(bet *models.Bet)
	BroadcastBetSettled(userID int64, outcome *models.BetOutcome)
}

type NopBroadcaster struct{}

func (NopBroadcaster) BroadcastRoundWaiting(*models.Round)                  {}
func (NopBroadcaster) BroadcastRoundRunning(*models.Round)                  {}
func (NopBroadcaster) BroadcastMultiplier(string, float64)                  {}
func (NopBroadcaster) BroadcastRoundCrashed(*models.Round, string)          {}
func (NopBroadcaster) BroadcastBetPlaced(*models.Bet)                       {}
func (NopBroadcaster) BroadcastBetSettled(int64, *models.BetOutcome)        {}
