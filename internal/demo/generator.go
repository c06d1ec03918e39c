// Package demo generates synthetic ticket transactions and feeds them through
// the analyzer so dashboards and alerts have something to show.
package demo

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"farewatch/internal/config"
	"farewatch/internal/fraud"
	"farewatch/internal/service"
	"farewatch/internal/storage"
)

// Sample is one generated transaction and whether it was made suspicious.
type Sample struct {
	Input      service.Input
	Suspicious bool
}

// Generator produces random ticket transactions. It is not safe for
// concurrent use.
type Generator struct {
	rng          *rand.Rand
	stations     []string
	hotStations  map[string]struct{}
	baseChance   float64
	includeFraud bool
}

// NewGenerator builds a generator from demo settings. hotStations are the
// stations that raise the chance of a suspicious transaction.
func NewGenerator(cfg config.DemoConfig, hotStations []string) (*Generator, error) {
	if len(cfg.Stations) == 0 {
		return nil, fmt.Errorf("demo.stations must not be empty")
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	hot := make(map[string]struct{}, len(hotStations))
	for _, st := range hotStations {
		hot[st] = struct{}{}
	}
	return &Generator{
		rng:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		stations:     cfg.Stations,
		hotStations:  hot,
		baseChance:   cfg.FraudRate,
		includeFraud: cfg.IncludeFraud,
	}, nil
}

// Next draws a transaction stamped with at.
func (g *Generator) Next(at time.Time) Sample {
	ticketID := fmt.Sprintf("T-%d", 1000+g.rng.IntN(9000))
	station := g.stations[g.rng.IntN(len(g.stations))]
	amount := decimal.NewFromFloat(g.rng.Float64()*14 + 1).Round(2)

	chance := g.baseChance
	if g.includeFraud {
		if amount.GreaterThan(decimal.NewFromInt(10)) {
			chance += 0.1
		}
		if _, ok := g.hotStations[station]; ok {
			chance += 0.15
		}
		if strings.HasSuffix(ticketID, "7") {
			chance += 0.3
		}
	}

	suspicious := g.rng.Float64() < chance
	if suspicious {
		factor := decimal.NewFromInt(2)
		if g.rng.Float64() < 0.5 {
			factor = decimal.NewFromFloat(0.5)
		}
		amount = amount.Mul(factor).Round(2)
	}

	ts := at
	return Sample{
		Input: service.Input{
			TicketID:  ticketID,
			Station:   station,
			Amount:    &amount,
			Timestamp: &ts,
		},
		Suspicious: suspicious,
	}
}

// Analyzer is the part of service.Analyzer the runner needs.
type Analyzer interface {
	Analyze(ctx context.Context, in service.Input) (fraud.Result, error)
}

// Runner analyses one generated transaction per tick.
type Runner struct {
	gen      *Generator
	analyzer Analyzer
	logger   zerolog.Logger

	Analysed   int
	Duplicates int
}

// NewRunner wires a generator to an analyzer.
func NewRunner(gen *Generator, analyzer Analyzer, logger zerolog.Logger) *Runner {
	return &Runner{gen: gen, analyzer: analyzer, logger: logger.With().Str("component", "demo").Logger()}
}

// Tick matches scheduler.TickFunc. Ticket ids collide now and then; those
// draws are skipped.
func (r *Runner) Tick(ctx context.Context, at time.Time) error {
	sample := r.gen.Next(at)
	res, err := r.analyzer.Analyze(ctx, sample.Input)
	if errors.Is(err, storage.ErrDuplicateKey) {
		r.Duplicates++
		r.logger.Debug().Str("ticket_id", sample.Input.TicketID).Msg("generated ticket id already recorded, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("analyse demo transaction: %w", err)
	}

	r.Analysed++
	r.logger.Info().
		Str("ticket_id", res.TicketID).
		Str("station", res.Station).
		Str("amount", res.Amount.StringFixed(2)).
		Bool("suspicious", sample.Suspicious).
		Float64("fraud_score", res.FraudScore).
		Str("status", res.Status.String()).
		Msg("demo transaction logged")
	return nil
}
