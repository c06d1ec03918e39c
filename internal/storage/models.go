package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"farewatch/internal/fraud"
)

// Record is a persisted, scored ticket transaction. TicketID is unique.
type Record struct {
	ID         uuid.UUID
	TicketID   string
	Timestamp  time.Time
	Station    string
	Amount     decimal.Decimal
	FraudScore float64
	Status     fraud.Status
	CreatedAt  time.Time
}

// NewRecord converts an analysis result into a record ready for insertion.
func NewRecord(res fraud.Result) Record {
	return Record{
		ID:         uuid.New(),
		TicketID:   res.TicketID,
		Timestamp:  res.Timestamp,
		Station:    res.Station,
		Amount:     res.Amount,
		FraudScore: res.FraudScore,
		Status:     res.Status,
		CreatedAt:  res.ProcessedAt,
	}
}

// RiskLevel returns the display band for the stored score.
func (r Record) RiskLevel() fraud.RiskLevel {
	return fraud.RiskLevelFor(r.FraudScore)
}

// StatusCounts tallies records per status.
type StatusCounts map[fraud.Status]int64

// Total sums all statuses.
func (c StatusCounts) Total() int64 {
	var total int64
	for _, n := range c {
		total += n
	}
	return total
}
