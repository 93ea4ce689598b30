// Package collateral keeps the trading account funded: faucet mint, one-time
// allowance, and deposit of any loose wallet balance into the hub.
package collateral

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"og-mm-bot/internal/chain"
	"og-mm-bot/internal/retry"
)

// Client is the subset of the chain client the manager drives.
type Client interface {
	UserBalance(ctx context.Context) (*big.Int, error)
	TokenBalance(ctx context.Context) (*big.Int, error)
	Allowance(ctx context.Context) (*big.Int, error)
	Mint(ctx context.Context, amount *big.Int) error
	Approve(ctx context.Context, amount *big.Int) error
	Deposit(ctx context.Context, amount *big.Int) error
}

type Manager struct {
	client Client
	floor  *big.Int
	mint   *big.Int
	opts   retry.Options
	log    *zap.Logger

	// toppedUp records whether the last EnsureBalance moved funds into the
	// hub. Read by the top-up counter.
	toppedUp bool
}

func NewManager(client Client, minBalance, mintAmount int64, opts retry.Options, log *zap.Logger) *Manager {
	return &Manager{
		client: client,
		floor:  chain.ToUnits(minBalance),
		mint:   chain.ToUnits(mintAmount),
		opts:   opts,
		log:    log,
	}
}

// EnsureBalance tops the hub balance up to the floor. It never returns an
// error: a market-making cycle runs with whatever collateral is available,
// and a faucet cooldown is the expected steady state.
func (m *Manager) EnsureBalance(ctx context.Context) {
	m.toppedUp = false

	balance, err := retry.DoValue(ctx, m.log, "user balance", m.opts, m.client.UserBalance)
	if err != nil {
		m.log.Warn("collateral check failed", zap.Error(err))
		return
	}
	if balance.Cmp(m.floor) >= 0 {
		return
	}
	m.log.Info("hub balance below floor, replenishing",
		zap.Int64("balance", chain.FromUnits(balance)),
		zap.Int64("floor", chain.FromUnits(m.floor)),
	)

	if err := m.client.Mint(ctx, m.mint); err != nil {
		if chain.IsMintCooldown(err) {
			m.log.Debug("faucet cooldown active, skipping mint")
		} else {
			m.log.Warn("mint failed", zap.Error(err))
		}
		// Deposit whatever the wallet already holds regardless.
	}

	allowance, err := retry.DoValue(ctx, m.log, "allowance", m.opts, m.client.Allowance)
	if err != nil {
		m.log.Warn("allowance check failed", zap.Error(err))
		return
	}
	if allowance.Cmp(m.mint) < 0 {
		if err := m.client.Approve(ctx, chain.MaxAllowance); err != nil {
			m.log.Warn("approve failed", zap.Error(err))
			return
		}
	}

	wallet, err := retry.DoValue(ctx, m.log, "token balance", m.opts, m.client.TokenBalance)
	if err != nil {
		m.log.Warn("token balance check failed", zap.Error(err))
		return
	}
	if wallet.Sign() <= 0 {
		return
	}
	if err := m.client.Deposit(ctx, wallet); err != nil {
		m.log.Warn("deposit failed", zap.Error(err))
		return
	}
	m.toppedUp = true
	m.log.Info("collateral deposited", zap.Int64("amount", chain.FromUnits(wallet)))
}

// ToppedUp reports whether the most recent EnsureBalance completed a deposit.
func (m *Manager) ToppedUp() bool {
	return m.toppedUp
}
