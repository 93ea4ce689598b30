package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// OrderIDFromReceipt scans a confirmed placement receipt for the hub's
// OrderPlaced event and returns the assigned order id. The id is the first
// indexed argument.
func OrderIDFromReceipt(receipt *types.Receipt, hub common.Address) (*big.Int, bool) {
	if receipt == nil {
		return nil, false
	}
	eventID := hubABI.Events["OrderPlaced"].ID
	for _, entry := range receipt.Logs {
		if entry == nil || entry.Removed {
			continue
		}
		if entry.Address != hub {
			continue
		}
		if len(entry.Topics) < 2 || entry.Topics[0] != eventID {
			continue
		}
		return new(big.Int).SetBytes(entry.Topics[1].Bytes()), true
	}
	return nil, false
}
