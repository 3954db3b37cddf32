package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DestMetrics provides Prometheus metrics for the Destination Handler.
// All methods are nil-safe: calls on a nil *DestMetrics are no-ops.
type DestMetrics struct {
	// TransactionsStarted counts transactions admitted by transmission mode.
	// Label: mode.
	TransactionsStarted *prometheus.CounterVec

	// TransactionsCompleted counts transactions reaching Transfer
	// Completion, by final condition code.
	// Label: condition_code.
	TransactionsCompleted *prometheus.CounterVec

	// BytesReceived counts File Data payload bytes written to the filestore.
	BytesReceived prometheus.Counter

	// SegmentsReceived counts File Data PDUs processed, including
	// duplicates delivered during retransmission.
	SegmentsReceived prometheus.Counter

	// NakBatchesSent counts NAK PDUs enqueued.
	NakBatchesSent prometheus.Counter

	// ChecksumFailures counts checksum mismatches detected at EOF,
	// check-limit expiry or deferred lost-segment completion.
	ChecksumFailures prometheus.Counter

	// ActiveTransactions tracks the number of Handlers not in StateIdle.
	ActiveTransactions prometheus.Gauge
}

// NewDestMetrics creates and registers Destination Handler metrics
// with reg. If reg is nil, metrics are created but not registered.
func NewDestMetrics(reg prometheus.Registerer) *DestMetrics {
	m := &DestMetrics{
		TransactionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfdp",
			Subsystem: "dest",
			Name:      "transactions_started_total",
			Help:      "Total number of transactions admitted by the destination handler",
		}, []string{"mode"}),
		TransactionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfdp",
			Subsystem: "dest",
			Name:      "transactions_completed_total",
			Help:      "Total number of transactions reaching Transfer Completion, by condition code",
		}, []string{"condition_code"}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cfdp",
			Subsystem: "dest",
			Name:      "bytes_received_total",
			Help:      "Total File Data payload bytes written to the filestore",
		}),
		SegmentsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cfdp",
			Subsystem: "dest",
			Name:      "segments_received_total",
			Help:      "Total File Data PDUs processed, including retransmitted duplicates",
		}),
		NakBatchesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cfdp",
			Subsystem: "dest",
			Name:      "nak_batches_sent_total",
			Help:      "Total NAK PDUs enqueued",
		}),
		ChecksumFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cfdp",
			Subsystem: "dest",
			Name:      "checksum_failures_total",
			Help:      "Total checksum mismatches detected",
		}),
		ActiveTransactions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cfdp",
			Subsystem: "dest",
			Name:      "active_transactions",
			Help:      "Number of destination handlers not currently idle",
		}),
	}

	if reg != nil {
		m.TransactionsStarted = registerOrReuse(reg, m.TransactionsStarted).(*prometheus.CounterVec)
		m.TransactionsCompleted = registerOrReuse(reg, m.TransactionsCompleted).(*prometheus.CounterVec)
		m.BytesReceived = registerOrReuse(reg, m.BytesReceived).(prometheus.Counter)
		m.SegmentsReceived = registerOrReuse(reg, m.SegmentsReceived).(prometheus.Counter)
		m.NakBatchesSent = registerOrReuse(reg, m.NakBatchesSent).(prometheus.Counter)
		m.ChecksumFailures = registerOrReuse(reg, m.ChecksumFailures).(prometheus.Counter)
		m.ActiveTransactions = registerOrReuse(reg, m.ActiveTransactions).(prometheus.Gauge)
	}

	return m
}

func (m *DestMetrics) RecordTransactionStarted(mode string) {
	if m == nil {
		return
	}
	m.TransactionsStarted.WithLabelValues(mode).Inc()
}

func (m *DestMetrics) RecordTransactionCompleted(conditionCode string) {
	if m == nil {
		return
	}
	m.TransactionsCompleted.WithLabelValues(conditionCode).Inc()
}

func (m *DestMetrics) AddBytesReceived(n float64) {
	if m == nil {
		return
	}
	m.BytesReceived.Add(n)
}

func (m *DestMetrics) IncSegmentsReceived() {
	if m == nil {
		return
	}
	m.SegmentsReceived.Inc()
}

func (m *DestMetrics) IncNakBatchesSent() {
	if m == nil {
		return
	}
	m.NakBatchesSent.Inc()
}

func (m *DestMetrics) IncChecksumFailures() {
	if m == nil {
		return
	}
	m.ChecksumFailures.Inc()
}

func (m *DestMetrics) SetActiveTransactions(n float64) {
	if m == nil {
		return
	}
	m.ActiveTransactions.Set(n)
}
