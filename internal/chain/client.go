// Package chain is a typed facade over the on-chain order-book contract and
// the collateral token it settles in.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"og-mm-bot/internal/config"
)

// Outcome and side encodings used by the order-book contract.
const (
	OutcomeNo  uint8 = 0
	OutcomeYes uint8 = 1
	SideBuy    uint8 = 0
)

var ErrTxReverted = errors.New("transaction reverted")

// MaxAllowance is the approve-once allowance granted to the trading contract.
var MaxAllowance = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

type MarketStatus struct {
	Exists         bool
	Resolved       bool
	WinningOutcome uint8
}

type Client struct {
	eth       *ethclient.Client
	key       *ecdsa.PrivateKey
	address   common.Address
	hub       common.Address
	token     common.Address
	chainID   *big.Int
	txTimeout time.Duration
	log       *zap.Logger
}

func New(cfg config.ChainConfig, hexKey string, log *zap.Logger) (*Client, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if clean == "" {
		return nil, errors.New("private key is required")
	}
	key, err := crypto.HexToECDSA(clean)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return &Client{
		eth:       eth,
		key:       key,
		address:   crypto.PubkeyToAddress(key.PublicKey),
		hub:       common.HexToAddress(cfg.TradingHubAddress),
		token:     common.HexToAddress(cfg.CollateralAddress),
		chainID:   big.NewInt(cfg.ChainID),
		txTimeout: cfg.TxTimeout,
		log:       log,
	}, nil
}

func (c *Client) Address() common.Address {
	return c.address
}

func (c *Client) Close() {
	c.eth.Close()
}

// ---- reads ----

func (c *Client) UserBalance(ctx context.Context) (*big.Int, error) {
	return c.readUint(ctx, c.hub, hubABI, "userBalances", c.address)
}

func (c *Client) LockedBalance(ctx context.Context) (*big.Int, error) {
	return c.readUint(ctx, c.hub, hubABI, "lockedBalances", c.address)
}

func (c *Client) TokenBalance(ctx context.Context) (*big.Int, error) {
	return c.readUint(ctx, c.token, tokenABI, "balanceOf", c.address)
}

func (c *Client) Allowance(ctx context.Context) (*big.Int, error) {
	return c.readUint(ctx, c.token, tokenABI, "allowance", c.address, c.hub)
}

func (c *Client) MarketStatus(ctx context.Context, marketKey common.Hash) (MarketStatus, error) {
	out, err := c.call(ctx, c.hub, hubABI, "markets", marketKey)
	if err != nil {
		return MarketStatus{}, err
	}
	if len(out) != 3 {
		return MarketStatus{}, fmt.Errorf("markets: unexpected output arity %d", len(out))
	}
	status := MarketStatus{}
	status.Exists, _ = out[0].(bool)
	status.Resolved, _ = out[1].(bool)
	status.WinningOutcome, _ = out[2].(uint8)
	return status, nil
}

// UserOrders returns every order id the wallet has ever placed. Inactive ids
// are included; cancelling one reverts with OrderNotActive.
func (c *Client) UserOrders(ctx context.Context) ([]*big.Int, error) {
	return c.readUintSlice(ctx, c.hub, hubABI, "getUserOrders", c.address)
}

// OrderBookSnapshot returns the order ids currently resting on one market.
func (c *Client) OrderBookSnapshot(ctx context.Context, marketKey common.Hash) ([]*big.Int, error) {
	return c.readUintSlice(ctx, c.hub, hubABI, "getMarketOrders", marketKey)
}

// ---- writes (confirmed before return) ----

// Mint requests collateral from the faucet token. Subject to the token's
// cooldown; callers classify the revert.
func (c *Client) Mint(ctx context.Context, amount *big.Int) error {
	_, err := c.transact(ctx, c.token, tokenABI, "mint", c.address, amount)
	return err
}

func (c *Client) Approve(ctx context.Context, amount *big.Int) error {
	_, err := c.transact(ctx, c.token, tokenABI, "approve", c.hub, amount)
	return err
}

func (c *Client) Deposit(ctx context.Context, amount *big.Int) error {
	_, err := c.transact(ctx, c.hub, hubABI, "deposit", amount)
	return err
}

// PlaceOrder submits a buy order and waits for inclusion. The returned id is
// recovered from the OrderPlaced event in the receipt; ok is false when the
// transaction confirmed but no event could be parsed.
func (c *Client) PlaceOrder(ctx context.Context, marketKey common.Hash, outcome uint8, pricePoints int, amount *big.Int) (*big.Int, bool, error) {
	receipt, err := c.transact(ctx, c.hub, hubABI, "placeOrder",
		marketKey, outcome, SideBuy, big.NewInt(int64(pricePoints)), amount)
	if err != nil {
		return nil, false, err
	}
	orderID, ok := OrderIDFromReceipt(receipt, c.hub)
	return orderID, ok, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID *big.Int) error {
	_, err := c.transact(ctx, c.hub, hubABI, "cancelOrder", orderID)
	return err
}

// ---- plumbing ----

func (c *Client) call(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	out, err := contract.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

func (c *Client) readUint(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) (*big.Int, error) {
	out, err := c.call(ctx, to, contract, method, args...)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s: unexpected output arity %d", method, len(out))
	}
	val, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected output type %T", method, out[0])
	}
	return val, nil
}

func (c *Client) readUintSlice(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) ([]*big.Int, error) {
	out, err := c.call(ctx, to, contract, method, args...)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s: unexpected output arity %d", method, len(out))
	}
	vals, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected output type %T", method, out[0])
	}
	return vals, nil
}

func (c *Client) transact(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) (*types.Receipt, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	nonce, err := c.eth.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: c.address,
		To:   &to,
		Data: data,
	})
	if err != nil {
		// Reverting calls fail estimation; surface the revert to the caller.
		return nil, fmt.Errorf("estimate gas for %s: %w", method, err)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", method, err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}
	waitCtx := ctx
	if c.txTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.txTimeout)
		defer cancel()
	}
	receipt, err := bind.WaitMined(waitCtx, c.eth, signed)
	if err != nil {
		return nil, fmt.Errorf("wait mined %s: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s tx %s: %w", method, signed.Hash().Hex(), ErrTxReverted)
	}
	if c.log != nil {
		c.log.Debug("transaction confirmed",
			zap.String("method", method),
			zap.String("tx", signed.Hash().Hex()),
			zap.Uint64("gas_used", receipt.GasUsed),
		)
	}
	return receipt, nil
}
