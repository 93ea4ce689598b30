package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "og_mm_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry         *prometheus.Registry
	cyclesRun        prometheus.Counter
	cyclesSkipped    prometheus.Counter
	ordersPlaced     prometheus.Counter
	ordersFailed     prometheus.Counter
	ordersCancelled  prometheus.Counter
	collateralTopUps prometheus.Counter
	marketsSkipped   prometheus.Counter
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	cyclesRun := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "cycles_run_total",
		Help:      "Total number of quoting cycles completed.",
	})
	cyclesSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "cycles_skipped_total",
		Help:      "Total number of cycle ticks skipped because the previous cycle was still running.",
	})
	ordersPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_placed_total",
		Help:      "Total number of orders placed.",
	})
	ordersFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_failed_total",
		Help:      "Total number of order placement failures.",
	})
	ordersCancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_cancelled_total",
		Help:      "Total number of orders cancelled.",
	})
	collateralTopUps := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "collateral_topups_total",
		Help:      "Total number of collateral deposits into the trading contract.",
	})
	marketsSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "markets_skipped_total",
		Help:      "Total number of markets skipped for lack of a usable price.",
	})

	registry.MustRegister(cyclesRun, cyclesSkipped, ordersPlaced, ordersFailed, ordersCancelled, collateralTopUps, marketsSkipped)

	m := &Metrics{
		CyclesRun:        promCounter{cyclesRun},
		CyclesSkipped:    promCounter{cyclesSkipped},
		OrdersPlaced:     promCounter{ordersPlaced},
		OrdersFailed:     promCounter{ordersFailed},
		OrdersCancelled:  promCounter{ordersCancelled},
		CollateralTopUps: promCounter{collateralTopUps},
		MarketsSkipped:   promCounter{marketsSkipped},
	}

	return &Prometheus{
		Metrics:          m,
		registry:         registry,
		cyclesRun:        cyclesRun,
		cyclesSkipped:    cyclesSkipped,
		ordersPlaced:     ordersPlaced,
		ordersFailed:     ordersFailed,
		ordersCancelled:  ordersCancelled,
		collateralTopUps: collateralTopUps,
		marketsSkipped:   marketsSkipped,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
