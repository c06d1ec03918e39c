package fraud

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Factor names recorded in Assessment.Factors.
const (
	FactorBase             = "base"
	FactorHighAmount       = "high_amount"
	FactorLowAmount        = "low_amount"
	FactorHighRiskStation  = "high_risk_station"
	FactorSuspiciousSuffix = "suspicious_suffix"
	FactorOffHours         = "off_hours"
	FactorRandom           = "random"
)

// Policy holds every tunable of the scorer. A zero increment disables its rule.
type Policy struct {
	Base                   float64      `mapstructure:"base"`
	HighAmountThreshold    float64      `mapstructure:"high_amount_threshold"`
	HighAmountRisk         float64      `mapstructure:"high_amount_risk"`
	LowAmountThreshold     float64      `mapstructure:"low_amount_threshold"`
	LowAmountRisk          float64      `mapstructure:"low_amount_risk"`
	HighRiskStations       []string     `mapstructure:"high_risk_stations"`
	StationRisk            float64      `mapstructure:"station_risk"`
	StationCaseInsensitive bool         `mapstructure:"station_case_insensitive"`
	SuspiciousSuffixes     []string     `mapstructure:"suspicious_suffixes"`
	SuffixRisk             float64      `mapstructure:"suffix_risk"`
	OffHours               OffHours     `mapstructure:"off_hours"`
	Random                 RandomBounds `mapstructure:"random"`
	Floor                  float64      `mapstructure:"floor"`
	Ceiling                float64      `mapstructure:"ceiling"`
	Thresholds             Thresholds   `mapstructure:"thresholds"`
}

// OffHours marks hours strictly before Before or strictly after After as risky.
type OffHours struct {
	Before   int     `mapstructure:"before"`
	After    int     `mapstructure:"after"`
	Risk     float64 `mapstructure:"risk"`
	Location string  `mapstructure:"location"`
}

// RandomBounds scales the random source into [Min, Max].
type RandomBounds struct {
	Source string  `mapstructure:"source"`
	Min    float64 `mapstructure:"min"`
	Max    float64 `mapstructure:"max"`
}

// DefaultPolicy returns the canonical scoring policy.
func DefaultPolicy() Policy {
	return Policy{
		Base:                0.1,
		HighAmountThreshold: 100,
		HighAmountRisk:      0.3,
		LowAmountThreshold:  1,
		LowAmountRisk:       0.4,
		HighRiskStations:    []string{"Central Station", "East Station"},
		StationRisk:         0.2,
		SuspiciousSuffixes:  []string{"7"},
		SuffixRisk:          0.3,
		OffHours: OffHours{
			Before:   5,
			After:    23,
			Risk:     0.15,
			Location: "Local",
		},
		Random: RandomBounds{
			Source: RandomTicketHash,
			Min:    0,
			Max:    0.3,
		},
		Floor:      0,
		Ceiling:    1,
		Thresholds: DefaultThresholds(),
	}
}

// Validate checks the policy for values the scorer cannot honour.
func (p Policy) Validate() error {
	for name, v := range map[string]float64{
		"base":                  p.Base,
		"high_amount_threshold": p.HighAmountThreshold,
		"high_amount_risk":      p.HighAmountRisk,
		"low_amount_threshold":  p.LowAmountThreshold,
		"low_amount_risk":       p.LowAmountRisk,
		"station_risk":          p.StationRisk,
		"suffix_risk":           p.SuffixRisk,
		"off_hours.risk":        p.OffHours.Risk,
		"random.min":            p.Random.Min,
		"random.max":            p.Random.Max,
		"floor":                 p.Floor,
		"ceiling":               p.Ceiling,
	} {
		if !finite(v) {
			return fmt.Errorf("%s must be a finite number (got %v)", name, v)
		}
	}
	if p.Floor < 0 || p.Ceiling > 1 || p.Floor > p.Ceiling {
		return fmt.Errorf("score bounds must satisfy 0 <= floor <= ceiling <= 1 (floor=%.3f ceiling=%.3f)", p.Floor, p.Ceiling)
	}
	if p.Random.Min < 0 || p.Random.Min > p.Random.Max {
		return fmt.Errorf("random bounds must satisfy 0 <= min <= max (min=%.3f max=%.3f)", p.Random.Min, p.Random.Max)
	}
	if p.OffHours.Before < 0 || p.OffHours.Before > 24 || p.OffHours.After < 0 || p.OffHours.After > 24 {
		return fmt.Errorf("off-hours window must use hours in [0,24] (before=%d after=%d)", p.OffHours.Before, p.OffHours.After)
	}
	return p.Thresholds.Validate()
}

// Assessment is the raw scorer output before classification.
type Assessment struct {
	Score       float64
	Factors     map[string]float64
	Timestamp   time.Time
	EvaluatedAt time.Time
}

// Option customises a Scorer.
type Option func(*Scorer)

// WithRandomSource overrides the source named in the policy.
func WithRandomSource(src RandomSource) Option {
	return func(s *Scorer) {
		s.random = src
	}
}

// WithClock overrides time.Now, used for defaulted timestamps and ProcessedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		s.now = now
	}
}

// Scorer assigns heuristic fraud scores. It holds only immutable state and is
// safe for concurrent use as long as its RandomSource is.
type Scorer struct {
	policy     Policy
	highAmount decimal.Decimal
	lowAmount  decimal.Decimal
	stations   map[string]struct{}
	location   *time.Location
	random     RandomSource
	now        func() time.Time
}

// NewScorer builds a scorer from a validated policy.
func NewScorer(policy Policy, opts ...Option) (*Scorer, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	loc, err := loadLocation(policy.OffHours.Location)
	if err != nil {
		return nil, err
	}

	s := &Scorer{
		policy:     policy,
		highAmount: decimal.NewFromFloat(policy.HighAmountThreshold),
		lowAmount:  decimal.NewFromFloat(policy.LowAmountThreshold),
		stations:   make(map[string]struct{}, len(policy.HighRiskStations)),
		location:   loc,
		now:        time.Now,
	}
	for _, st := range policy.HighRiskStations {
		s.stations[s.stationKey(st)] = struct{}{}
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.random == nil {
		src, err := NewRandomSource(policy.Random.Source)
		if err != nil {
			return nil, err
		}
		s.random = src
	}

	return s, nil
}

// Thresholds returns the classifier cut points the scorer was configured with.
func (s *Scorer) Thresholds() Thresholds {
	return s.policy.Thresholds
}

// Score computes the fraud score of tx. It never fails: a missing timestamp
// is replaced by the scorer's clock.
func (s *Scorer) Score(tx Transaction) Assessment {
	now := s.now()
	ts := tx.Timestamp
	if ts.IsZero() {
		ts = now
	}

	p := s.policy
	score := p.Base
	factors := map[string]float64{FactorBase: p.Base}
	add := func(name string, v float64) {
		if v == 0 {
			return
		}
		score += v
		factors[name] = v
	}

	if tx.Amount.GreaterThan(s.highAmount) {
		add(FactorHighAmount, p.HighAmountRisk)
	}
	if tx.Amount.LessThan(s.lowAmount) {
		add(FactorLowAmount, p.LowAmountRisk)
	}
	if s.isHighRiskStation(tx.Station) {
		add(FactorHighRiskStation, p.StationRisk)
	}
	if s.hasSuspiciousSuffix(tx.TicketID) {
		add(FactorSuspiciousSuffix, p.SuffixRisk)
	}
	if hour := ts.In(s.location).Hour(); hour < p.OffHours.Before || hour > p.OffHours.After {
		add(FactorOffHours, p.OffHours.Risk)
	}
	if span := p.Random.Max - p.Random.Min; span > 0 || p.Random.Min > 0 {
		add(FactorRandom, p.Random.Min+span*clamp(s.random.Unit(tx), 0, 1))
	}

	score = clamp(score, p.Floor, p.Ceiling)

	return Assessment{
		Score:       round3(score),
		Factors:     factors,
		Timestamp:   ts,
		EvaluatedAt: now,
	}
}

// Evaluate scores tx and classifies the score into a Result.
func (s *Scorer) Evaluate(tx Transaction) Result {
	a := s.Score(tx)
	return Result{
		TicketID:    tx.TicketID,
		Timestamp:   a.Timestamp,
		Station:     tx.Station,
		Amount:      tx.Amount,
		FraudScore:  a.Score,
		Status:      Classify(a.Score, s.policy.Thresholds),
		ProcessedAt: a.EvaluatedAt,
		Factors:     a.Factors,
	}
}

func (s *Scorer) stationKey(station string) string {
	if s.policy.StationCaseInsensitive {
		return strings.ToLower(station)
	}
	return station
}

func (s *Scorer) isHighRiskStation(station string) bool {
	_, ok := s.stations[s.stationKey(station)]
	return ok
}

func (s *Scorer) hasSuspiciousSuffix(ticketID string) bool {
	for _, suffix := range s.policy.SuspiciousSuffixes {
		if suffix != "" && strings.HasSuffix(ticketID, suffix) {
			return true
		}
	}
	return false
}

func loadLocation(name string) (*time.Location, error) {
	switch strings.TrimSpace(name) {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load off-hours location: %w", err)
	}
	return loc, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round3(v float64) float64 {
	return decimal.NewFromFloat(v).Round(3).InexactFloat64()
}
