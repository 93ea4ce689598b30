package chain

import "math/big"

// USDCDecimals is the collateral token precision; all on-chain amounts are
// expressed in these base units.
const USDCDecimals = 6

var usdcUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(USDCDecimals), nil)

// ToUnits converts whole USDC into token base units.
func ToUnits(usdc int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(usdc), usdcUnit)
}

// FromUnits converts token base units into whole USDC, truncating.
func FromUnits(units *big.Int) int64 {
	if units == nil {
		return 0
	}
	return new(big.Int).Div(units, usdcUnit).Int64()
}
