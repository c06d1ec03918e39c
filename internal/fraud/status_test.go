package fraud

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyBoundaries(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		score float64
		want  Status
	}{
		{0, StatusCleared},
		{0.299, StatusCleared},
		{0.3, StatusPending},
		{0.5, StatusPending},
		{0.7, StatusPending},
		{0.701, StatusFlagged},
		{1, StatusFlagged},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.score, th), "score %.3f", tt.score)
	}
}

func TestClassifyIsMonotonicAndIdempotent(t *testing.T) {
	th := Thresholds{Flag: 0.7, Clear: 0.4}
	rank := map[Status]int{StatusCleared: 0, StatusPending: 1, StatusFlagged: 2}

	prev := Classify(0, th)
	for i := 0; i <= 1000; i++ {
		score := float64(i) / 1000
		got := Classify(score, th)

		assert.Equal(t, got, Classify(score, th))
		assert.GreaterOrEqual(t, rank[got], rank[prev], "status regressed at %.3f", score)
		if score >= th.Flag {
			assert.NotEqual(t, StatusCleared, got)
		}
		prev = got
	}
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())
	assert.NoError(t, Thresholds{Flag: 0.5, Clear: 0.5}.Validate())
	assert.Error(t, Thresholds{Flag: 0.3, Clear: 0.7}.Validate())
	assert.Error(t, Thresholds{Flag: 1.2, Clear: 0.3}.Validate())
	assert.Error(t, Thresholds{Flag: 0.7, Clear: -0.1}.Validate())
	assert.Error(t, Thresholds{Flag: math.NaN(), Clear: 0.3}.Validate())
	assert.Error(t, Thresholds{Flag: 0.7, Clear: math.NaN()}.Validate())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Flagged ")
	require.NoError(t, err)
	assert.Equal(t, StatusFlagged, s)

	_, err = ParseStatus("deleted")
	assert.Error(t, err)
}

func TestRiskLevelFor(t *testing.T) {
	assert.Equal(t, RiskLevelLow, RiskLevelFor(0.4))
	assert.Equal(t, RiskLevelMedium, RiskLevelFor(0.41))
	assert.Equal(t, RiskLevelMedium, RiskLevelFor(0.7))
	assert.Equal(t, RiskLevelHigh, RiskLevelFor(0.71))
}

func TestNewRandomSource(t *testing.T) {
	for _, name := range []string{"", RandomTicketHash, RandomUniform, RandomNone} {
		src, err := NewRandomSource(name)
		require.NoError(t, err, name)
		v := src.Unit(Transaction{TicketID: "T-4587"})
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}

	none, _ := NewRandomSource(RandomNone)
	assert.Zero(t, none.Unit(Transaction{TicketID: "T-4587"}))

	_, err := NewRandomSource("dice")
	assert.Error(t, err)
}
