package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics tracks ingestion, spins and settlement.
type EngineMetrics struct {
	ingested           *prometheus.CounterVec
	pollFailures       *prometheus.CounterVec
	spins              *prometheus.CounterVec
	prizeTotal         prometheus.Counter
	pending            prometheus.Gauge
	completed          prometheus.Gauge
	settlementAttempts *prometheus.CounterVec
}

var (
	engineOnce     sync.Once
	engineRegistry *EngineMetrics
)

// Engine returns the process-wide metrics, registering them on first use.
func Engine() *EngineMetrics {
	engineOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "spinrewards_redemptions_total",
				Help: "Redemptions processed by ingestion, by outcome.",
			}, []string{"outcome"}),
			pollFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "spinrewards_poll_failures_total",
				Help: "Failed ingestion cycles by error kind.",
			}, []string{"kind"}),
			spins: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "spinrewards_spins_total",
				Help: "Spin attempts by outcome.",
			}, []string{"outcome"}),
			prizeTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "spinrewards_prize_awarded_total",
				Help: "Sum of prize values awarded.",
			}),
			pending: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "spinrewards_pending_participants",
				Help: "Participants waiting to be drawn.",
			}),
			completed: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "spinrewards_completed_results",
				Help: "Entries in the completed log.",
			}),
			settlementAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "spinrewards_settlement_attempts_total",
				Help: "Approve and settle attempts by phase and outcome.",
			}, []string{"phase", "outcome"}),
		}
		prometheus.MustRegister(
			engineRegistry.ingested,
			engineRegistry.pollFailures,
			engineRegistry.spins,
			engineRegistry.prizeTotal,
			engineRegistry.pending,
			engineRegistry.completed,
			engineRegistry.settlementAttempts,
		)
	})
	return engineRegistry
}

func (m *EngineMetrics) ObserveRedemption(outcome string) {
	if m == nil {
		return
	}
	m.ingested.WithLabelValues(outcome).Inc()
}

func (m *EngineMetrics) ObservePollFailure(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.pollFailures.WithLabelValues(kind).Inc()
}

func (m *EngineMetrics) ObserveSpin(outcome string, prize float64) {
	if m == nil {
		return
	}
	m.spins.WithLabelValues(outcome).Inc()
	if prize > 0 {
		m.prizeTotal.Add(prize)
	}
}

func (m *EngineMetrics) SetQueueSizes(pending, completed int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(pending))
	m.completed.Set(float64(completed))
}

func (m *EngineMetrics) ObserveSettlement(phase, outcome string) {
	if m == nil {
		return
	}
	m.settlementAttempts.WithLabelValues(phase, outcome).Inc()
}
