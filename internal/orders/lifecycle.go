// Package orders places and cancels resting quotes on the order-book
// contract, tracking ids so stale quotes can be cleared next cycle.
package orders

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"og-mm-bot/internal/chain"
	"og-mm-bot/internal/quote"
)

// Client is the subset of the chain client the lifecycle manager drives.
type Client interface {
	PlaceOrder(ctx context.Context, marketKey common.Hash, outcome uint8, pricePoints int, amount *big.Int) (*big.Int, bool, error)
	CancelOrder(ctx context.Context, orderID *big.Int) error
}

// Resting is one order the bot believes is live on the book.
type Resting struct {
	OrderID   *big.Int
	MarketKey common.Hash
	Outcome   uint8
	Price     int
	Amount    *big.Int
}

// PlaceResult reports the outcome of quoting one market. An untracked order
// confirmed on chain but its id could not be recovered from the receipt; it
// is swept up by the next startup reconciliation.
type PlaceResult struct {
	Tracked   []Resting
	Untracked int
	Failed    int
}

// CancelStats summarizes a cancel pass. AlreadyGone orders reverted with
// OrderNotActive, which means they were filled or cancelled out of band.
type CancelStats struct {
	Cancelled   int
	AlreadyGone int
	Failed      int
}

type Manager struct {
	client Client
	log    *zap.Logger
}

func NewManager(client Client, log *zap.Logger) *Manager {
	return &Manager{client: client, log: log}
}

// CancelAll cancels every id in the set, one at a time. A failure on one
// order does not stop the rest. Callers drop the whole set afterwards
// regardless of outcome; a cancel that failed transiently leaves an order
// the startup sweep will find again.
func (m *Manager) CancelAll(ctx context.Context, orderIDs []*big.Int) CancelStats {
	var stats CancelStats
	for _, id := range orderIDs {
		err := m.client.CancelOrder(ctx, id)
		switch {
		case err == nil:
			stats.Cancelled++
		case chain.IsOrderNotActive(err):
			stats.AlreadyGone++
		default:
			stats.Failed++
			m.log.Warn("cancel failed",
				zap.String("order_id", id.String()),
				zap.Error(err))
		}
	}
	return stats
}

// PlaceQuote submits both sides of a quote. The sides are independent: a
// failed YES buy does not block the NO buy. Placement is not retried; a
// duplicate order from an ambiguous failure is worse than a one-cycle gap.
func (m *Manager) PlaceQuote(ctx context.Context, marketKey common.Hash, q quote.Quote, amount *big.Int) PlaceResult {
	var res PlaceResult
	sides := []struct {
		outcome uint8
		price   int
	}{
		{chain.OutcomeYes, q.BuyYes},
		{chain.OutcomeNo, q.BuyNo},
	}
	for _, side := range sides {
		orderID, ok, err := m.client.PlaceOrder(ctx, marketKey, side.outcome, side.price, amount)
		if err != nil {
			res.Failed++
			m.log.Warn("order placement failed",
				zap.String("market", marketKey.Hex()),
				zap.Uint8("outcome", side.outcome),
				zap.Int("price", side.price),
				zap.Error(err))
			continue
		}
		if !ok {
			res.Untracked++
			m.log.Warn("order confirmed but id not recovered",
				zap.String("market", marketKey.Hex()),
				zap.Uint8("outcome", side.outcome))
			continue
		}
		res.Tracked = append(res.Tracked, Resting{
			OrderID:   orderID,
			MarketKey: marketKey,
			Outcome:   side.outcome,
			Price:     side.price,
			Amount:    amount,
		})
	}
	return res
}
