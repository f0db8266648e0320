package services

import "time"

const (
	KeyBalance          = "balance:%d"
	KeyBet              = "bet:%s"
	KeyUserBets         = "user:%d:bets"
	KeyTransaction      = "transaction:%s"
	KeyUserTransactions = "user:%d:transactions"
	KeyRateLimit        = "ratelimit:%s"

	TTLBet         = 30 * 24 * time.Hour
	TTLTransaction = 30 * 24 * time.Hour
)
