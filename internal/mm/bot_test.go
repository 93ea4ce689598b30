package mm

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"og-mm-bot/internal/catalog"
	"og-mm-bot/internal/chain"
	"og-mm-bot/internal/orders"
	"og-mm-bot/internal/quote"
	"og-mm-bot/internal/retry"
	"og-mm-bot/internal/state"
)

type fakeLister struct {
	markets []catalog.Market
	err     error
}

func (f *fakeLister) ListEligibleMarkets(ctx context.Context, limit int) ([]catalog.Market, error) {
	return f.markets, f.err
}

type fakePrices struct {
	prices map[string]float64
	errs   map[string]error
}

func (f *fakePrices) ReferencePrice(ctx context.Context, tokenID string, fallback float64) (float64, error) {
	if err := f.errs[tokenID]; err != nil {
		return 0, err
	}
	return f.prices[tokenID], nil
}

type fakeCollateral struct {
	calls    atomic.Int32
	toppedUp bool
	block    chan struct{}
}

func (f *fakeCollateral) EnsureBalance(ctx context.Context) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
}

func (f *fakeCollateral) ToppedUp() bool { return f.toppedUp }

type fakeOrderMgr struct {
	mu          sync.Mutex
	cancelled   [][]*big.Int
	cancelStats orders.CancelStats
	quoted      []common.Hash
	nextID      int64
}

func (f *fakeOrderMgr) CancelAll(ctx context.Context, orderIDs []*big.Int) orders.CancelStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderIDs)
	return f.cancelStats
}

func (f *fakeOrderMgr) PlaceQuote(ctx context.Context, marketKey common.Hash, q quote.Quote, amount *big.Int) orders.PlaceResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quoted = append(f.quoted, marketKey)
	var res orders.PlaceResult
	for _, price := range []int{q.BuyYes, q.BuyNo} {
		f.nextID++
		res.Tracked = append(res.Tracked, orders.Resting{
			OrderID:   big.NewInt(f.nextID),
			MarketKey: marketKey,
			Price:     price,
			Amount:    amount,
		})
	}
	return res
}

type fakeWallet struct {
	ids []*big.Int
	err error
}

func (f *fakeWallet) UserOrders(ctx context.Context) ([]*big.Int, error) {
	return f.ids, f.err
}

type fakeStatus struct {
	statuses map[common.Hash]chain.MarketStatus
	err      error
}

func (f *fakeStatus) MarketStatus(ctx context.Context, marketKey common.Hash) (chain.MarketStatus, error) {
	return f.statuses[marketKey], f.err
}

type fakeAlerter struct {
	messages []string
}

func (f *fakeAlerter) Send(ctx context.Context, message string) error {
	f.messages = append(f.messages, message)
	return nil
}

type memStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemStore() *memStore {
	return &memStore{values: make(map[string]string)}
}

func (m *memStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *memStore) Close() error { return nil }

func testMarket(id, token, fallback string) catalog.Market {
	return catalog.Market{
		ID:              id,
		ConditionID:     "cond-" + id,
		Question:        "q-" + id,
		ClobTokenIDs:    []string{token},
		OutcomePrices:   []string{fallback},
		Active:          true,
		AcceptingOrders: true,
	}
}

func testOptions() Options {
	return Options{
		Interval:     time.Minute,
		SpreadPoints: 2,
		OrderAmount:  10,
		MaxMarkets:   5,
		Retry:        retry.Options{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2},
	}
}

func newTestBot(lister MarketLister, prices PriceSource, coll Collateral, orderMgr OrderManager, wallet OrderLister, store state.Store, alerts Alerter) *Bot {
	return NewBot(Deps{
		Lister:     lister,
		Prices:     prices,
		Collateral: coll,
		Orders:     orderMgr,
		Wallet:     wallet,
		Store:      store,
		Alerts:     alerts,
	}, testOptions(), zap.NewNop())
}

func TestRunCycleQuotesMarketsAndIsolatesFailures(t *testing.T) {
	lister := &fakeLister{markets: []catalog.Market{
		testMarket("a", "tok-a", "0.6"),
		testMarket("b", "tok-b", "0"),
	}}
	prices := &fakePrices{
		prices: map[string]float64{"tok-a": 0.55},
		errs:   map[string]error{"tok-b": errors.New("feed down")},
	}
	orderMgr := &fakeOrderMgr{}
	store := newMemStore()
	bot := newTestBot(lister, prices, &fakeCollateral{}, orderMgr, nil, store, nil)

	if !bot.RunCycle(context.Background()) {
		t.Fatal("cycle should run")
	}

	if len(orderMgr.quoted) != 1 {
		t.Fatalf("quoted markets = %d, want the failing market skipped", len(orderMgr.quoted))
	}
	if want := testMarket("a", "", "").MarketKey(); orderMgr.quoted[0] != want {
		t.Fatalf("quoted %s, want %s", orderMgr.quoted[0].Hex(), want.Hex())
	}
	ids, ok, err := state.LoadOrderSet(context.Background(), store)
	if err != nil || !ok {
		t.Fatalf("persisted set: ok=%v err=%v", ok, err)
	}
	if len(ids) != 2 {
		t.Fatalf("persisted ids = %d, want both sides of the quote", len(ids))
	}
	if bot.sm.Current() != StateIdle {
		t.Fatalf("state = %s, want %s after the cycle", bot.sm.Current(), StateIdle)
	}
}

func TestRunCycleSkipsMarketsNotLiveOnChain(t *testing.T) {
	live := testMarket("live", "tok-live", "0.6")
	resolved := testMarket("resolved", "tok-resolved", "0.6")
	gone := testMarket("gone", "tok-gone", "0.6")
	lister := &fakeLister{markets: []catalog.Market{live, resolved, gone}}
	prices := &fakePrices{prices: map[string]float64{
		"tok-live":     0.55,
		"tok-resolved": 0.55,
		"tok-gone":     0.55,
	}}
	status := &fakeStatus{statuses: map[common.Hash]chain.MarketStatus{
		live.MarketKey():     {Exists: true},
		resolved.MarketKey(): {Exists: true, Resolved: true},
		gone.MarketKey():     {},
	}}
	orderMgr := &fakeOrderMgr{}
	bot := newTestBot(lister, prices, &fakeCollateral{}, orderMgr, nil, newMemStore(), nil)
	bot.deps.Status = status

	if !bot.RunCycle(context.Background()) {
		t.Fatal("cycle should run")
	}

	if len(orderMgr.quoted) != 1 {
		t.Fatalf("quoted markets = %d, want only the live one", len(orderMgr.quoted))
	}
	if orderMgr.quoted[0] != live.MarketKey() {
		t.Fatalf("quoted %s, want %s", orderMgr.quoted[0].Hex(), live.MarketKey().Hex())
	}
}

func TestRunCycleQuotesWhenStatusReadFails(t *testing.T) {
	market := testMarket("a", "tok-a", "0.6")
	lister := &fakeLister{markets: []catalog.Market{market}}
	prices := &fakePrices{prices: map[string]float64{"tok-a": 0.55}}
	orderMgr := &fakeOrderMgr{}
	bot := newTestBot(lister, prices, &fakeCollateral{}, orderMgr, nil, newMemStore(), nil)
	bot.deps.Status = &fakeStatus{err: errors.New("rpc down")}

	if !bot.RunCycle(context.Background()) {
		t.Fatal("cycle should run")
	}
	if len(orderMgr.quoted) != 1 {
		t.Fatalf("quoted markets = %d, want the status error ignored", len(orderMgr.quoted))
	}
}

func TestRunCycleSingleFlight(t *testing.T) {
	block := make(chan struct{})
	coll := &fakeCollateral{block: block}
	orderMgr := &fakeOrderMgr{}
	bot := newTestBot(&fakeLister{}, &fakePrices{}, coll, orderMgr, nil, newMemStore(), nil)

	done := make(chan struct{})
	go func() {
		bot.RunCycle(context.Background())
		close(done)
	}()
	for coll.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	if bot.RunCycle(context.Background()) {
		t.Fatal("second cycle should be a no-op while the first is in flight")
	}
	close(block)
	<-done

	if got := coll.calls.Load(); got != 1 {
		t.Fatalf("collateral calls = %d, want 1", got)
	}
}

func TestRunCycleClearsTrackingBeforeQuoting(t *testing.T) {
	lister := &fakeLister{markets: []catalog.Market{testMarket("a", "tok-a", "0.5")}}
	prices := &fakePrices{prices: map[string]float64{"tok-a": 0.5}}
	orderMgr := &fakeOrderMgr{}
	store := newMemStore()
	bot := newTestBot(lister, prices, &fakeCollateral{}, orderMgr, nil, store, nil)

	bot.RunCycle(context.Background())
	first := append([]*big.Int(nil), bot.trackedIDs()...)
	bot.RunCycle(context.Background())

	if len(orderMgr.cancelled) != 2 {
		t.Fatalf("cancel passes = %d, want one per cycle", len(orderMgr.cancelled))
	}
	second := orderMgr.cancelled[1]
	if len(second) != len(first) {
		t.Fatalf("second cancel got %d ids, want the %d from cycle one", len(second), len(first))
	}
	for i := range second {
		if second[i].Cmp(first[i]) != 0 {
			t.Fatalf("cancel id[%d] = %s, want %s", i, second[i], first[i])
		}
	}
}

func TestRunCycleMarketSelectionFailureAlerts(t *testing.T) {
	lister := &fakeLister{err: errors.New("database unreachable")}
	orderMgr := &fakeOrderMgr{}
	alerter := &fakeAlerter{}
	bot := newTestBot(lister, &fakePrices{}, &fakeCollateral{}, orderMgr, nil, newMemStore(), alerter)

	bot.RunCycle(context.Background())

	if len(orderMgr.quoted) != 0 {
		t.Fatalf("quoted = %d, want none after selection failure", len(orderMgr.quoted))
	}
	if len(alerter.messages) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerter.messages))
	}
	if bot.sm.Current() != StateIdle {
		t.Fatalf("state = %s, want %s after abort", bot.sm.Current(), StateIdle)
	}
}

func TestSweepLeftoverOrdersUnionsPersistedAndChain(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	if err := state.SaveOrderSet(ctx, store, []*big.Int{big.NewInt(1), big.NewInt(2)}); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	wallet := &fakeWallet{ids: []*big.Int{big.NewInt(2), big.NewInt(3)}}
	orderMgr := &fakeOrderMgr{}
	bot := newTestBot(&fakeLister{}, &fakePrices{}, &fakeCollateral{}, orderMgr, wallet, store, nil)

	bot.sweepLeftoverOrders(ctx)

	if len(orderMgr.cancelled) != 1 {
		t.Fatalf("cancel passes = %d, want 1", len(orderMgr.cancelled))
	}
	if got := len(orderMgr.cancelled[0]); got != 3 {
		t.Fatalf("swept ids = %d, want deduplicated union of 3", got)
	}
	ids, _, err := state.LoadOrderSet(ctx, store)
	if err != nil {
		t.Fatalf("load after sweep: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("persisted ids after sweep = %d, want 0", len(ids))
	}
}

func TestSweepLeftoverOrdersNothingToDo(t *testing.T) {
	orderMgr := &fakeOrderMgr{}
	bot := newTestBot(&fakeLister{}, &fakePrices{}, &fakeCollateral{}, orderMgr, &fakeWallet{}, newMemStore(), nil)

	bot.sweepLeftoverOrders(context.Background())

	if len(orderMgr.cancelled) != 0 {
		t.Fatalf("cancel passes = %d, want none with an empty union", len(orderMgr.cancelled))
	}
}
