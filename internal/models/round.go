package models

import "time"

type RoundPhase string

const (
	RoundWaiting RoundPhase = "waiting"
	RoundRunning RoundPhase = "running"
	RoundCrashed RoundPhase = "crashed"
)

// Round is one betting window + multiplier flight + crash cycle. CrashPoint
// is fixed at creation and never re-drawn; phase moves waiting -> running ->
// crashed and never back.
type Round struct {
	ID              string     `json:"id" redis:"id"`
	Number          int64      `json:"number" redis:"number"`
	Phase           RoundPhase `json:"phase" redis:"phase"`
	CrashPoint      float64    `json:"-" redis:"crash_point"`
	GrowthRate      float64    `json:"-" redis:"growth_rate"`
	CommitmentHash  string     `json:"commitment_hash" redis:"commitment_hash"`
	BettingDeadline time.Time  `json:"betting_deadline" redis:"betting_deadline"`
	StartedAt       time.Time  `json:"started_at,omitempty" redis:"started_at"`
	EndedAt         time.Time  `json:"ended_at,omitempty" redis:"ended_at"`
	CreatedAt       time.Time  `json:"created_at" redis:"created_at"`
}
