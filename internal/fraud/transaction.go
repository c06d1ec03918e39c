// Package fraud implements the ticket risk scorer and the status classifier.
package fraud

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single ticket purchase or redemption submitted for analysis.
type Transaction struct {
	TicketID  string
	Station   string
	Amount    decimal.Decimal
	Timestamp time.Time // zero means "not supplied"
}

// Result is the outcome of analysing one transaction.
type Result struct {
	TicketID    string
	Timestamp   time.Time
	Station     string
	Amount      decimal.Decimal
	FraudScore  float64
	Status      Status
	ProcessedAt time.Time
	Factors     map[string]float64
}

// RiskLevel returns the display band for the result's score.
func (r Result) RiskLevel() RiskLevel {
	return RiskLevelFor(r.FraudScore)
}
