package models

import "fmt"

type ErrorKind string

const (
	KindUnauthorized      ErrorKind = "unauthorized"
	KindInvalidInput      ErrorKind = "invalid_input"
	KindInvalidAmount     ErrorKind = "invalid_amount"
	KindRoundClosed       ErrorKind = "round_closed"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindAlreadySettled    ErrorKind = "already_settled"
	KindRateLimited       ErrorKind = "rate_limited"
	KindLedgerUnavailable ErrorKind = "ledger_unavailable"
)

// GameError is the stable machine-readable rejection every operation returns.
// Two GameErrors match under errors.Is when their kinds are equal, so callers
// can branch on taxonomy without string comparison.
type GameError struct {
	Kind    ErrorKind
	Message string
}

func (e *GameError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *GameError) Is(target error) bool {
	t, ok := target.(*GameError)
	return ok && t.Kind == e.Kind
}

func NewGameError(kind ErrorKind, format string, args ...interface{}) *GameError {
	return &GameError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrUnauthorized      = &GameError{Kind: KindUnauthorized, Message: "not authenticated"}
	ErrInvalidInput      = &GameError{Kind: KindInvalidInput, Message: "invalid input"}
	ErrInvalidAmount     = &GameError{Kind: KindInvalidAmount, Message: "invalid amount"}
	ErrRoundClosed       = &GameError{Kind: KindRoundClosed, Message: "round not accepting this operation"}
	ErrInsufficientFunds = &GameError{Kind: KindInsufficientFunds, Message: "insufficient balance"}
	ErrAlreadySettled    = &GameError{Kind: KindAlreadySettled, Message: "bet already settled"}
	ErrRateLimited       = &GameError{Kind: KindRateLimited, Message: "rate limit exceeded"}
	ErrLedgerUnavailable = &GameError{Kind: KindLedgerUnavailable, Message: "ledger operation failed"}
)
