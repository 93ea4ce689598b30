package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	CyclesRun        Counter
	CyclesSkipped    Counter
	OrdersPlaced     Counter
	OrdersFailed     Counter
	OrdersCancelled  Counter
	CollateralTopUps Counter
	MarketsSkipped   Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		CyclesRun:        n,
		CyclesSkipped:    n,
		OrdersPlaced:     n,
		OrdersFailed:     n,
		OrdersCancelled:  n,
		CollateralTopUps: n,
		MarketsSkipped:   n,
	}
}
