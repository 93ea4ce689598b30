package feed

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Stream keeps a freshness-bounded midpoint cache fed by the venue's market
// websocket channel. It is an optimization only: the HTTP midpoint remains
// the authoritative per-cycle read when the cache is cold or stale.
type Stream struct {
	url            string
	reconnectDelay time.Duration
	staleAfter     time.Duration
	log            *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	assets []string
	cache  map[string]cacheEntry

	now func() time.Time
}

type cacheEntry struct {
	mid float64
	at  time.Time
}

type marketSubscription struct {
	AssetsIDs []string `json:"assets_ids"`
	Type      string   `json:"type"`
}

type bookEvent struct {
	EventType string      `json:"event_type"`
	AssetID   string      `json:"asset_id"`
	Bids      []bookLevel `json:"bids"`
	Asks      []bookLevel `json:"asks"`
}

type bookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

func NewStream(url string, reconnectDelay, staleAfter time.Duration, log *zap.Logger) *Stream {
	return &Stream{
		url:            url,
		reconnectDelay: reconnectDelay,
		staleAfter:     staleAfter,
		log:            log,
		cache:          make(map[string]cacheEntry),
		now:            time.Now,
	}
}

// UpdateAssets replaces the subscribed token set. A changed set drops the
// current connection so the read loop resubscribes with the new one.
func (s *Stream) UpdateAssets(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if equalSets(s.assets, ids) {
		return
	}
	s.assets = append([]string(nil), ids...)
	if s.conn != nil {
		_ = s.conn.Close(websocket.StatusNormalClosure, "resubscribe")
		s.conn = nil
	}
}

// Midpoint returns the cached midpoint for a token if it is fresh enough.
func (s *Stream) Midpoint(tokenID string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[tokenID]
	if !ok {
		return 0, false
	}
	if s.staleAfter > 0 && s.now().Sub(entry.at) > s.staleAfter {
		return 0, false
	}
	return entry.mid, true
}

// Run dials, subscribes and consumes book events until ctx is cancelled,
// reconnecting after the configured delay on any failure.
func (s *Stream) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.connectAndRead(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if s.log != nil {
				s.log.Warn("price stream disconnected", zap.Error(err))
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *Stream) connectAndRead(ctx context.Context) error {
	s.mu.Lock()
	assets := append([]string(nil), s.assets...)
	s.mu.Unlock()
	if len(assets) == 0 {
		// Nothing to subscribe to yet; poll until the first cycle selects markets.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.reconnectDelay):
			return nil
		}
	}
	conn, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	sub := marketSubscription{AssetsIDs: assets, Type: "market"}
	payload, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return err
	}
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		s.handleMessage(data)
	}
}

func (s *Stream) handleMessage(data []byte) {
	var events []bookEvent
	if err := json.Unmarshal(data, &events); err != nil {
		// Single-object frames show up as well.
		var single bookEvent
		if err := json.Unmarshal(data, &single); err != nil {
			return
		}
		events = []bookEvent{single}
	}
	for _, ev := range events {
		if ev.EventType != "book" || ev.AssetID == "" {
			continue
		}
		mid, ok := midFromBook(ev)
		if !ok {
			continue
		}
		s.mu.Lock()
		s.cache[ev.AssetID] = cacheEntry{mid: mid, at: s.now()}
		s.mu.Unlock()
	}
}

func midFromBook(ev bookEvent) (float64, bool) {
	bestBid, okBid := bestPrice(ev.Bids, true)
	bestAsk, okAsk := bestPrice(ev.Asks, false)
	if !okBid || !okAsk {
		return 0, false
	}
	mid := (bestBid + bestAsk) / 2
	if mid <= 0 || mid >= 1 {
		return 0, false
	}
	return mid, true
}

func bestPrice(levels []bookLevel, highest bool) (float64, bool) {
	best := 0.0
	found := false
	for _, lvl := range levels {
		price, err := strconv.ParseFloat(lvl.Price, 64)
		if err != nil || price <= 0 {
			continue
		}
		if !found || (highest && price > best) || (!highest && price < best) {
			best = price
			found = true
		}
	}
	return best, found
}

func equalSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
