// Package quote derives the two-sided buy prices mirrored onto the chain
// order book from an external reference probability.
package quote

import (
	"errors"
	"fmt"
	"math"
)

// Prices are integer percentage points on the chain book, one point = $0.01.
const (
	MinPricePoints = 1
	MaxPricePoints = 99
)

var ErrOutOfRange = errors.New("quote price out of range")

// Quote is a symmetric pair of resting buy prices. BuyYes + BuyNo equals
// 100 - 2*spread, so for any positive spread the two bids can never match
// each other.
type Quote struct {
	BuyYes int
	BuyNo  int
}

// Compute turns a midpoint probability in (0,1) into a two-sided quote.
// Markets whose discounted prices leave [1,99] are not quotable at this
// spread and are rejected.
func Compute(mid float64, spreadPoints int) (Quote, error) {
	if spreadPoints <= 0 {
		return Quote{}, fmt.Errorf("spread must be positive, got %d", spreadPoints)
	}
	if mid <= 0 || mid >= 1 {
		return Quote{}, fmt.Errorf("mid price %.4f outside (0,1): %w", mid, ErrOutOfRange)
	}
	midPct := int(math.Round(mid * 100))
	q := Quote{
		BuyYes: midPct - spreadPoints,
		BuyNo:  (100 - midPct) - spreadPoints,
	}
	if q.BuyYes < MinPricePoints || q.BuyYes > MaxPricePoints {
		return Quote{}, fmt.Errorf("buy yes price %d: %w", q.BuyYes, ErrOutOfRange)
	}
	if q.BuyNo < MinPricePoints || q.BuyNo > MaxPricePoints {
		return Quote{}, fmt.Errorf("buy no price %d: %w", q.BuyNo, ErrOutOfRange)
	}
	return q, nil
}
