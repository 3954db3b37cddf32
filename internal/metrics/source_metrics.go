package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SourceMetrics provides Prometheus metrics for the Source Handler.
// All methods are nil-safe: calls on a nil *SourceMetrics are no-ops,
// so a handler can hold one unconditionally and callers never need a
// metrics-enabled check of their own.
type SourceMetrics struct {
	// TransactionsStarted counts transactions admitted by transmission mode.
	// Label: mode ("acknowledged", "unacknowledged").
	TransactionsStarted *prometheus.CounterVec

	// TransactionsCompleted counts transactions reaching Transaction
	// Finished, by final condition code.
	// Label: condition_code.
	TransactionsCompleted *prometheus.CounterVec

	// BytesSent counts File Data payload bytes enqueued for transmission.
	BytesSent prometheus.Counter

	// SegmentsSent counts File Data PDUs enqueued for transmission,
	// including retransmissions.
	SegmentsSent prometheus.Counter

	// RetransmitSegments counts File Data PDUs re-sent in response to a NAK.
	RetransmitSegments prometheus.Counter

	// NakBatchesReceived counts NAK PDUs processed.
	NakBatchesReceived prometheus.Counter

	// ActiveTransactions tracks the number of Handlers not in StateIdle.
	ActiveTransactions prometheus.Gauge
}

// NewSourceMetrics creates and registers Source Handler metrics with
// reg. If reg is nil, metrics are created but not registered (useful
// for testing).
func NewSourceMetrics(reg prometheus.Registerer) *SourceMetrics {
	m := &SourceMetrics{
		TransactionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfdp",
			Subsystem: "source",
			Name:      "transactions_started_total",
			Help:      "Total number of transactions admitted by the source handler",
		}, []string{"mode"}),
		TransactionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfdp",
			Subsystem: "source",
			Name:      "transactions_completed_total",
			Help:      "Total number of transactions reaching Transaction Finished, by condition code",
		}, []string{"condition_code"}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cfdp",
			Subsystem: "source",
			Name:      "bytes_sent_total",
			Help:      "Total File Data payload bytes enqueued for transmission",
		}),
		SegmentsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cfdp",
			Subsystem: "source",
			Name:      "segments_sent_total",
			Help:      "Total File Data PDUs enqueued for transmission, including retransmissions",
		}),
		RetransmitSegments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cfdp",
			Subsystem: "source",
			Name:      "retransmit_segments_total",
			Help:      "Total File Data PDUs re-sent in response to a NAK",
		}),
		NakBatchesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cfdp",
			Subsystem: "source",
			Name:      "nak_batches_received_total",
			Help:      "Total NAK PDUs processed",
		}),
		ActiveTransactions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cfdp",
			Subsystem: "source",
			Name:      "active_transactions",
			Help:      "Number of source handlers not currently idle",
		}),
	}

	if reg != nil {
		m.TransactionsStarted = registerOrReuse(reg, m.TransactionsStarted).(*prometheus.CounterVec)
		m.TransactionsCompleted = registerOrReuse(reg, m.TransactionsCompleted).(*prometheus.CounterVec)
		m.BytesSent = registerOrReuse(reg, m.BytesSent).(prometheus.Counter)
		m.SegmentsSent = registerOrReuse(reg, m.SegmentsSent).(prometheus.Counter)
		m.RetransmitSegments = registerOrReuse(reg, m.RetransmitSegments).(prometheus.Counter)
		m.NakBatchesReceived = registerOrReuse(reg, m.NakBatchesReceived).(prometheus.Counter)
		m.ActiveTransactions = registerOrReuse(reg, m.ActiveTransactions).(prometheus.Gauge)
	}

	return m
}

func (m *SourceMetrics) RecordTransactionStarted(mode string) {
	if m == nil {
		return
	}
	m.TransactionsStarted.WithLabelValues(mode).Inc()
}

func (m *SourceMetrics) RecordTransactionCompleted(conditionCode string) {
	if m == nil {
		return
	}
	m.TransactionsCompleted.WithLabelValues(conditionCode).Inc()
}

func (m *SourceMetrics) AddBytesSent(n float64) {
	if m == nil {
		return
	}
	m.BytesSent.Add(n)
}

func (m *SourceMetrics) IncSegmentsSent() {
	if m == nil {
		return
	}
	m.SegmentsSent.Inc()
}

func (m *SourceMetrics) IncRetransmitSegments() {
	if m == nil {
		return
	}
	m.RetransmitSegments.Inc()
}

func (m *SourceMetrics) IncNakBatchesReceived() {
	if m == nil {
		return
	}
	m.NakBatchesReceived.Inc()
}

func (m *SourceMetrics) SetActiveTransactions(n float64) {
	if m == nil {
		return
	}
	m.ActiveTransactions.Set(n)
}
