package fraud

import (
	"fmt"
	"strings"
)

// Status is the review lifecycle state of a transaction.
type Status string

const (
	StatusPending Status = "pending"
	StatusFlagged Status = "flagged"
	StatusCleared Status = "cleared"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusFlagged, StatusCleared:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus converts user input into a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("invalid status %q", v)
	}
	return s, nil
}

// Thresholds are the cut points separating the three statuses.
type Thresholds struct {
	Flag  float64 `mapstructure:"flag"`
	Clear float64 `mapstructure:"clear"`
}

// DefaultThresholds mirrors the values used by the detect-fraud endpoint.
func DefaultThresholds() Thresholds {
	return Thresholds{Flag: 0.7, Clear: 0.3}
}

// Validate checks that 0 <= Clear <= Flag <= 1.
func (t Thresholds) Validate() error {
	if !finite(t.Flag) || !finite(t.Clear) {
		return fmt.Errorf("thresholds must be finite numbers (clear=%v flag=%v)", t.Clear, t.Flag)
	}
	if t.Clear < 0 || t.Flag > 1 {
		return fmt.Errorf("thresholds must lie within [0,1] (clear=%.3f flag=%.3f)", t.Clear, t.Flag)
	}
	if t.Clear > t.Flag {
		return fmt.Errorf("clear threshold %.3f exceeds flag threshold %.3f", t.Clear, t.Flag)
	}
	return nil
}

// Classify maps a score to a status. Both comparisons are strict, so a score
// sitting exactly on either threshold stays pending.
func Classify(score float64, t Thresholds) Status {
	switch {
	case score > t.Flag:
		return StatusFlagged
	case score < t.Clear:
		return StatusCleared
	default:
		return StatusPending
	}
}

// RiskLevel is the coarse band shown next to a score.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "LOW"
	RiskLevelMedium RiskLevel = "MEDIUM"
	RiskLevelHigh   RiskLevel = "HIGH"
)

// RiskLevelFor derives the display band: HIGH above 0.7, MEDIUM above 0.4.
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score > 0.7:
		return RiskLevelHigh
	case score > 0.4:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}
