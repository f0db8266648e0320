package models

// UserBalance is the single stable read projection the ledger exposes for a
// user. Balance is in cents, mutated only through ledger operations, and
// never goes negative.
type UserBalance struct {
	UserID       int64 `json:"user_id" redis:"user_id"`
	Balance      int64 `json:"balance" redis:"balance"`
	TotalWagered int64 `json:"total_wagered" redis:"total_wagered"`
	TotalWon     int64 `json:"total_won" redis:"total_won"`
	GamesPlayed  int64 `json:"games_played" redis:"games_played"`
}
