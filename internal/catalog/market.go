package catalog

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Market is a read-only row from the synced market catalog. Rows are
// re-fetched every cycle and never mutated by the maker.
type Market struct {
	ID              string
	ConditionID     string
	Question        string
	ClobTokenIDs    []string
	OutcomePrices   []string
	OnchainMarketID string
	Volume          float64
	Active          bool
	Closed          bool
	AcceptingOrders bool
}

// Eligible reports whether the maker may quote this market.
func (m Market) Eligible() bool {
	return m.Active && !m.Closed && m.AcceptingOrders && len(m.ClobTokenIDs) > 0
}

// ReferenceTokenID is the venue token whose midpoint is quoted.
// By venue convention the first token is the YES outcome.
func (m Market) ReferenceTokenID() string {
	if len(m.ClobTokenIDs) == 0 {
		return ""
	}
	return m.ClobTokenIDs[0]
}

// FallbackPrice is the last synced YES outcome price, or 0 when unusable.
func (m Market) FallbackPrice() float64 {
	if len(m.OutcomePrices) == 0 {
		return 0
	}
	price, err := strconv.ParseFloat(m.OutcomePrices[0], 64)
	if err != nil {
		return 0
	}
	return price
}

// MarketKey is the bytes32 identifier of this market on the chain order book.
// Catalog rows that carry an explicit on-chain id use it; otherwise the key
// is derived deterministically from the venue condition id.
func (m Market) MarketKey() common.Hash {
	if m.OnchainMarketID != "" {
		return common.HexToHash(m.OnchainMarketID)
	}
	return crypto.Keccak256Hash([]byte(m.ConditionID))
}
