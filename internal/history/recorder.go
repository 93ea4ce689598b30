// Package history records quoting activity into Postgres for later review.
// Writes are asynchronous and best effort; a full queue drops records rather
// than stalling the quoting cycle.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"og-mm-bot/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// QuoteRecord is one market quoted in one cycle.
type QuoteRecord struct {
	Time         time.Time
	MarketKey    string
	Question     string
	ReferenceMid float64
	BuyYes       int
	BuyNo        int
	Placed       int
	Failed       int
}

// CycleRecord summarizes one full quoting cycle.
type CycleRecord struct {
	Time          time.Time
	Markets       int
	Skipped       int
	OrdersPlaced  int
	OrdersFailed  int
	RestingOrders int
	Duration      time.Duration
}

type Recorder struct {
	db        *sql.DB
	log       *zap.Logger
	schema    string
	quotes    chan QuoteRecord
	cycles    chan CycleRecord
	started   atomic.Bool
	dropQuote atomic.Uint64
	dropCycle atomic.Uint64
}

// New returns nil when history recording is disabled; a nil *Recorder is
// safe to enqueue into.
func New(cfg config.HistoryConfig, dsn string, log *zap.Logger) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("history recording requires a database dsn")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	recorder := &Recorder{
		db:     db,
		log:    log,
		schema: schema,
		quotes: make(chan QuoteRecord, queueSize),
		cycles: make(chan CycleRecord, queueSize),
	}
	if err := recorder.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return recorder, nil
}

func (r *Recorder) Start(ctx context.Context) {
	if r == nil {
		return
	}
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	go r.run(ctx)
}

func (r *Recorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Recorder) EnqueueQuote(record QuoteRecord) {
	if r == nil {
		return
	}
	select {
	case r.quotes <- record:
		return
	default:
		if r.dropQuote.Add(1) == 1 && r.log != nil {
			r.log.Warn("history quote queue full")
		}
	}
}

func (r *Recorder) EnqueueCycle(record CycleRecord) {
	if r == nil {
		return
	}
	select {
	case r.cycles <- record:
		return
	default:
		if r.dropCycle.Add(1) == 1 && r.log != nil {
			r.log.Warn("history cycle queue full")
		}
	}
}

func (r *Recorder) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case record := <-r.quotes:
			r.writeQuote(ctx, record)
		case record := <-r.cycles:
			r.writeCycle(ctx, record)
		}
	}
}

func (r *Recorder) ensureSchema(ctx context.Context) error {
	if r.db == nil {
		return errors.New("history db not initialized")
	}
	if r.schema != "public" {
		if err := r.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", r.schema)); err != nil {
			return err
		}
	}
	if err := r.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		market_key TEXT NOT NULL,
		question TEXT NOT NULL,
		reference_mid DOUBLE PRECISION NOT NULL,
		buy_yes INTEGER NOT NULL,
		buy_no INTEGER NOT NULL,
		placed INTEGER NOT NULL,
		failed INTEGER NOT NULL
	)`, r.table("quote_history"))); err != nil {
		return err
	}
	return r.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		markets INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		orders_placed INTEGER NOT NULL,
		orders_failed INTEGER NOT NULL,
		resting_orders INTEGER NOT NULL,
		duration_ms BIGINT NOT NULL
	)`, r.table("cycle_history")))
}

func (r *Recorder) writeQuote(ctx context.Context, record QuoteRecord) {
	if r.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, market_key, question, reference_mid, buy_yes, buy_no, placed, failed
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, r.table("quote_history"))
	if _, err := r.db.ExecContext(ctx, query,
		record.Time,
		record.MarketKey,
		record.Question,
		record.ReferenceMid,
		record.BuyYes,
		record.BuyNo,
		record.Placed,
		record.Failed,
	); err != nil && r.log != nil {
		r.log.Warn("history quote insert failed", zap.Error(err))
	}
}

func (r *Recorder) writeCycle(ctx context.Context, record CycleRecord) {
	if r.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, markets, skipped, orders_placed, orders_failed, resting_orders, duration_ms
	) VALUES ($1,$2,$3,$4,$5,$6,$7)`, r.table("cycle_history"))
	if _, err := r.db.ExecContext(ctx, query,
		record.Time,
		record.Markets,
		record.Skipped,
		record.OrdersPlaced,
		record.OrdersFailed,
		record.RestingOrders,
		record.Duration.Milliseconds(),
	); err != nil && r.log != nil {
		r.log.Warn("history cycle insert failed", zap.Error(err))
	}
}

func (r *Recorder) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx, query)
	return err
}

func (r *Recorder) table(name string) string {
	return r.schema + "." + name
}
