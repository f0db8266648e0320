package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlaceBetRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     PlaceBetRequest
		wantErr error
	}{
		{
			name: "valid",
			req:  PlaceBetRequest{RoundID: "round_1", Amount: 50},
		},
		{
			name: "valid with auto cashout",
			req:  PlaceBetRequest{RoundID: "round_1", Amount: 50, AutoCashout: 2.0},
		},
		{
			name:    "missing round id",
			req:     PlaceBetRequest{Amount: 50},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "below minimum",
			req:     PlaceBetRequest{RoundID: "round_1", Amount: 0},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "above maximum",
			req:     PlaceBetRequest{RoundID: "round_1", Amount: 1500},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "auto cashout not above 1.0",
			req:     PlaceBetRequest{RoundID: "round_1", Amount: 50, AutoCashout: 1.0},
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(1, 1000)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestGameErrorMatching(t *testing.T) {
	err := NewGameError(KindRoundClosed, "betting closed for round %s", "round_1")

	require.ErrorIs(t, err, ErrRoundClosed)
	require.NotErrorIs(t, err, ErrInsufficientFunds)

	// Matching survives wrapping.
	wrapped := fmt.Errorf("place bet: %w", err)
	require.ErrorIs(t, wrapped, ErrRoundClosed)

	var gameErr *GameError
	require.True(t, errors.As(wrapped, &gameErr))
	require.Equal(t, KindRoundClosed, gameErr.Kind)
}

func TestCalculatePayout(t *testing.T) {
	require.Equal(t, int64(100), CalculatePayout(50, 2.0))
	require.Equal(t, int64(75), CalculatePayout(50, 1.51))
	require.Equal(t, int64(49), CalculatePayout(33, 1.51))
	require.Equal(t, int64(1), CalculatePayout(1, 1.01))
	require.Equal(t, int64(0), CalculatePayout(0, 2.0))
}

func TestBetTerminal(t *testing.T) {
	require.False(t, (&Bet{Status: BetActive}).Terminal())
	require.True(t, (&Bet{Status: BetCashedOut}).Terminal())
	require.True(t, (&Bet{Status: BetLost}).Terminal())
}

func TestFormatCurrency(t *testing.T) {
	require.Equal(t, "$0.50", FormatCurrency(50))
	require.Equal(t, "$10.00", FormatCurrency(1000))
}
