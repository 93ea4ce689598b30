package collateral

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"go.uber.org/zap"

	"og-mm-bot/internal/chain"
	"og-mm-bot/internal/retry"
)

type fakeClient struct {
	userBalance  *big.Int
	tokenBalance *big.Int
	allowance    *big.Int

	mintErr    error
	approveErr error
	depositErr error

	mints     int
	approves  int
	deposits  int
	deposited *big.Int
}

func (f *fakeClient) UserBalance(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.userBalance), nil
}

func (f *fakeClient) TokenBalance(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.tokenBalance), nil
}

func (f *fakeClient) Allowance(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.allowance), nil
}

func (f *fakeClient) Mint(ctx context.Context, amount *big.Int) error {
	f.mints++
	if f.mintErr != nil {
		return f.mintErr
	}
	f.tokenBalance.Add(f.tokenBalance, amount)
	return nil
}

func (f *fakeClient) Approve(ctx context.Context, amount *big.Int) error {
	f.approves++
	if f.approveErr != nil {
		return f.approveErr
	}
	f.allowance = new(big.Int).Set(amount)
	return nil
}

func (f *fakeClient) Deposit(ctx context.Context, amount *big.Int) error {
	f.deposits++
	if f.depositErr != nil {
		return f.depositErr
	}
	f.deposited = new(big.Int).Set(amount)
	f.userBalance.Add(f.userBalance, amount)
	f.tokenBalance.Sub(f.tokenBalance, amount)
	return nil
}

func newFake(userBalance int64) *fakeClient {
	return &fakeClient{
		userBalance:  chain.ToUnits(userBalance),
		tokenBalance: big.NewInt(0),
		allowance:    big.NewInt(0),
	}
}

func fastOpts() retry.Options {
	return retry.Options{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
}

func TestEnsureBalanceFullReplenish(t *testing.T) {
	client := newFake(0)
	m := NewManager(client, 1000, 10000, fastOpts(), zap.NewNop())

	m.EnsureBalance(context.Background())

	if client.mints != 1 {
		t.Fatalf("mints = %d, want 1", client.mints)
	}
	if client.approves != 1 {
		t.Fatalf("approves = %d, want 1", client.approves)
	}
	if client.deposits != 1 {
		t.Fatalf("deposits = %d, want 1", client.deposits)
	}
	if want := chain.ToUnits(10000); client.deposited.Cmp(want) != 0 {
		t.Fatalf("deposited = %s, want %s", client.deposited, want)
	}
	if !m.ToppedUp() {
		t.Fatal("ToppedUp() = false after a deposit")
	}
}

func TestEnsureBalanceIdempotentWhenFunded(t *testing.T) {
	client := newFake(10000)
	m := NewManager(client, 1000, 10000, fastOpts(), zap.NewNop())

	m.EnsureBalance(context.Background())
	m.EnsureBalance(context.Background())

	if client.mints != 0 || client.approves != 0 || client.deposits != 0 {
		t.Fatalf("writes = %d/%d/%d, want none when balance is at floor",
			client.mints, client.approves, client.deposits)
	}
	if m.ToppedUp() {
		t.Fatal("ToppedUp() = true without a deposit")
	}
}

func TestEnsureBalanceSwallowsMintCooldown(t *testing.T) {
	client := newFake(0)
	client.tokenBalance = chain.ToUnits(500)
	client.mintErr = errors.New("execution reverted: MintCooldownActive")
	m := NewManager(client, 1000, 10000, fastOpts(), zap.NewNop())

	m.EnsureBalance(context.Background())

	if client.deposits != 1 {
		t.Fatalf("deposits = %d, want wallet balance deposited despite cooldown", client.deposits)
	}
	if want := chain.ToUnits(500); client.deposited.Cmp(want) != 0 {
		t.Fatalf("deposited = %s, want %s", client.deposited, want)
	}
}

func TestEnsureBalanceSkipsApproveWhenAllowanceCovers(t *testing.T) {
	client := newFake(0)
	client.allowance = chain.MaxAllowance
	m := NewManager(client, 1000, 10000, fastOpts(), zap.NewNop())

	m.EnsureBalance(context.Background())

	if client.approves != 0 {
		t.Fatalf("approves = %d, want 0 with max allowance in place", client.approves)
	}
	if client.deposits != 1 {
		t.Fatalf("deposits = %d, want 1", client.deposits)
	}
}

func TestEnsureBalanceStopsOnApproveFailure(t *testing.T) {
	client := newFake(0)
	client.approveErr = errors.New("rpc unavailable")
	m := NewManager(client, 1000, 10000, fastOpts(), zap.NewNop())

	m.EnsureBalance(context.Background())

	if client.deposits != 0 {
		t.Fatalf("deposits = %d, want 0 after approve failure", client.deposits)
	}
}

func TestEnsureBalanceNothingToDeposit(t *testing.T) {
	client := newFake(0)
	client.allowance = chain.MaxAllowance
	client.mintErr = errors.New("execution reverted: MintCooldownActive")
	m := NewManager(client, 1000, 10000, fastOpts(), zap.NewNop())

	m.EnsureBalance(context.Background())

	if client.deposits != 0 {
		t.Fatalf("deposits = %d, want 0 with an empty wallet", client.deposits)
	}
}
