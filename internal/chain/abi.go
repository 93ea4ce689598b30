package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Hand-written ABI fragments for the two contracts the maker touches.
// Only the entry points this process calls are declared.

const hubABIJSON = `[
	{"type":"function","name":"userBalances","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"lockedBalances","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"markets","stateMutability":"view","inputs":[{"name":"marketId","type":"bytes32"}],"outputs":[{"name":"exists","type":"bool"},{"name":"resolved","type":"bool"},{"name":"winningOutcome","type":"uint8"}]},
	{"type":"function","name":"getUserOrders","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]},
	{"type":"function","name":"getMarketOrders","stateMutability":"view","inputs":[{"name":"marketId","type":"bytes32"}],"outputs":[{"name":"","type":"uint256[]"}]},
	{"type":"function","name":"deposit","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"placeOrder","stateMutability":"nonpayable","inputs":[{"name":"marketId","type":"bytes32"},{"name":"outcome","type":"uint8"},{"name":"side","type":"uint8"},{"name":"price","type":"uint256"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"cancelOrder","stateMutability":"nonpayable","inputs":[{"name":"orderId","type":"uint256"}],"outputs":[]},
	{"type":"event","name":"OrderPlaced","inputs":[{"name":"orderId","type":"uint256","indexed":true},{"name":"user","type":"address","indexed":true},{"name":"marketId","type":"bytes32","indexed":true},{"name":"outcome","type":"uint8","indexed":false},{"name":"side","type":"uint8","indexed":false},{"name":"price","type":"uint256","indexed":false},{"name":"amount","type":"uint256","indexed":false}],"anonymous":false},
	{"type":"error","name":"OrderNotActive","inputs":[]},
	{"type":"error","name":"MarketNotFound","inputs":[]}
]`

const tokenABIJSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"error","name":"MintCooldownActive","inputs":[]},
	{"type":"error","name":"MintAmountTooLarge","inputs":[]}
]`

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

var (
	hubABI   = mustParseABI(hubABIJSON)
	tokenABI = mustParseABI(tokenABIJSON)
)
