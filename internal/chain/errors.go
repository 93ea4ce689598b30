package chain

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// RevertCode is the closed set of contract reverts this process treats as
// expected. Everything else is RevertUnknown and handled as a real failure.
type RevertCode int

const (
	RevertUnknown RevertCode = iota
	RevertMintCooldown
	RevertOrderNotActive
)

const (
	mintCooldownName   = "MintCooldownActive"
	orderNotActiveName = "OrderNotActive"
)

// Classify maps a chain error to a RevertCode. The ABI custom-error selector
// in the RPC error data is authoritative; matching on the error text is kept
// only for nodes that return plain revert strings.
func Classify(err error) RevertCode {
	if err == nil {
		return RevertUnknown
	}
	if code, ok := classifySelector(err); ok {
		return code
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "MintCooldown"):
		return RevertMintCooldown
	case strings.Contains(msg, orderNotActiveName):
		return RevertOrderNotActive
	}
	return RevertUnknown
}

func classifySelector(err error) (RevertCode, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return RevertUnknown, false
	}
	raw, ok := dataErr.ErrorData().(string)
	if !ok {
		return RevertUnknown, false
	}
	raw = strings.TrimPrefix(raw, "0x")
	if len(raw) < 8 {
		return RevertUnknown, false
	}
	selector, err2 := hex.DecodeString(raw[:8])
	if err2 != nil {
		return RevertUnknown, false
	}
	if matchesSelector(tokenABI.Errors[mintCooldownName].ID.Bytes(), selector) {
		return RevertMintCooldown, true
	}
	if matchesSelector(hubABI.Errors[orderNotActiveName].ID.Bytes(), selector) {
		return RevertOrderNotActive, true
	}
	return RevertUnknown, false
}

func matchesSelector(id, selector []byte) bool {
	return len(id) >= 4 && string(id[:4]) == string(selector)
}

// IsMintCooldown reports whether err is the expected faucet rate-limit revert.
func IsMintCooldown(err error) bool {
	return Classify(err) == RevertMintCooldown
}

// IsOrderNotActive reports whether err is the expected already-matched or
// already-cancelled revert.
func IsOrderNotActive(err error) bool {
	return Classify(err) == RevertOrderNotActive
}
