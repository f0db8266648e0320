package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

func GenerateRoundID() string {
	return fmt.Sprintf("round_%s_%d",
		time.Now().Format("20060102"),
		uuid.New().ID())
}

func GenerateBetID() string {
	return fmt.Sprintf("bet_%s_%d",
		time.Now().Format("20060102"),
		uuid.New().ID())
}

func GenerateTransactionID() string {
	return fmt.Sprintf("tx_%s_%d",
		time.Now().Format("20060102"),
		uuid.New().ID())
}

// CalculatePayout returns the cents paid for a stake settled at the given
// multiplier, rounded down so a payout is reproducible from stored data.
func CalculatePayout(amount int64, multiplier float64) int64 {
	return int64(math.Floor(float64(amount) * multiplier))
}

func FormatCurrency(cents int64) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}
