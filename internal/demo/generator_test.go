package demo

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farewatch/internal/config"
	"farewatch/internal/fraud"
	"farewatch/internal/service"
	"farewatch/internal/storage"
)

var at = time.Date(2025, 4, 14, 12, 0, 0, 0, time.UTC)

func demoConfig() config.DemoConfig {
	return config.DemoConfig{
		FraudRate:    0.05,
		IncludeFraud: true,
		Stations:     []string{"Central Station", "North Station", "East Station"},
		Seed:         42,
	}
}

func TestGeneratorProducesWellFormedInput(t *testing.T) {
	gen, err := NewGenerator(demoConfig(), []string{"Central Station", "East Station"})
	require.NoError(t, err)

	zero, fifteen, thirty := decimal.Zero, decimal.NewFromInt(15), decimal.NewFromInt(30)
	for i := 0; i < 500; i++ {
		s := gen.Next(at)
		require.NoError(t, s.Input.Validate())

		assert.True(t, strings.HasPrefix(s.Input.TicketID, "T-"))
		assert.Len(t, s.Input.TicketID, 6)
		assert.Contains(t, demoConfig().Stations, s.Input.Station)
		assert.Equal(t, at, *s.Input.Timestamp)

		amt := *s.Input.Amount
		assert.True(t, amt.Equal(amt.Round(2)), "amount %s has more than two decimals", amt)
		assert.True(t, amt.GreaterThan(zero))
		if s.Suspicious {
			assert.True(t, amt.LessThanOrEqual(thirty))
		} else {
			assert.True(t, amt.LessThanOrEqual(fifteen))
		}
	}
}

func TestGeneratorIsReproducibleWithSeed(t *testing.T) {
	a, err := NewGenerator(demoConfig(), nil)
	require.NoError(t, err)
	b, err := NewGenerator(demoConfig(), nil)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		sa, sb := a.Next(at), b.Next(at)
		assert.Equal(t, sa.Input.TicketID, sb.Input.TicketID)
		assert.True(t, sa.Input.Amount.Equal(*sb.Input.Amount))
		assert.Equal(t, sa.Suspicious, sb.Suspicious)
	}
}

func TestGeneratorWithoutFraudPatterns(t *testing.T) {
	cfg := demoConfig()
	cfg.FraudRate = 0
	cfg.IncludeFraud = false
	gen, err := NewGenerator(cfg, []string{"Central Station"})
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		assert.False(t, gen.Next(at).Suspicious)
	}
}

func TestNewGeneratorRequiresStations(t *testing.T) {
	_, err := NewGenerator(config.DemoConfig{}, nil)
	assert.Error(t, err)
}

func TestRunnerAnalysesAndSkipsDuplicates(t *testing.T) {
	p := fraud.DefaultPolicy()
	p.OffHours.Location = "UTC"
	scorer, err := fraud.NewScorer(p)
	require.NoError(t, err)

	store := storage.NewMemoryStore()
	analyzer := service.New(scorer, store, zerolog.Nop())

	cfg := demoConfig()
	cfg.Stations = []string{"North Station"}
	gen, err := NewGenerator(cfg, nil)
	require.NoError(t, err)
	runner := NewRunner(gen, analyzer, zerolog.Nop())

	for i := 0; i < 50; i++ {
		require.NoError(t, runner.Tick(context.Background(), at.Add(time.Duration(i)*time.Second)))
	}

	assert.Equal(t, 50, runner.Analysed+runner.Duplicates)
	recent, err := store.ListRecentTransactions(context.Background(), 100)
	require.NoError(t, err)
	assert.Len(t, recent, runner.Analysed)
}
