package fraud

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Names accepted by NewRandomSource.
const (
	RandomTicketHash = "ticket_hash"
	RandomUniform    = "uniform"
	RandomNone       = "none"
)

// RandomSource supplies the uncertainty term of a score as a unit value in
// [0,1). The scorer scales it into the configured bounds.
type RandomSource interface {
	Unit(tx Transaction) float64
}

// RandomFunc adapts a plain function to RandomSource.
type RandomFunc func(tx Transaction) float64

// Unit implements RandomSource.
func (f RandomFunc) Unit(tx Transaction) float64 {
	return f(tx)
}

// TicketHash derives the term from the ticket id: the sum of its code points
// modulo 1000, divided by 1000. The same ticket always gets the same value.
func TicketHash() RandomSource {
	return RandomFunc(func(tx Transaction) float64 {
		sum := 0
		for _, r := range tx.TicketID {
			sum += int(r)
		}
		return float64(sum%1000) / 1000
	})
}

// Uniform draws from math/rand/v2, which is safe for concurrent use.
func Uniform() RandomSource {
	return RandomFunc(func(Transaction) float64 {
		return rand.Float64()
	})
}

// FixedRandom always returns v.
func FixedRandom(v float64) RandomSource {
	return RandomFunc(func(Transaction) float64 {
		return v
	})
}

// NewRandomSource resolves a configured source name.
func NewRandomSource(name string) (RandomSource, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", RandomTicketHash:
		return TicketHash(), nil
	case RandomUniform:
		return Uniform(), nil
	case RandomNone:
		return FixedRandom(0), nil
	default:
		return nil, fmt.Errorf("unknown random source %q", name)
	}
}
