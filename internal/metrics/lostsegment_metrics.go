package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LostSegmentMetrics provides Prometheus metrics for lost-segment
// tracking on the destination side. All methods are nil-safe.
type LostSegmentMetrics struct {
	// GapsOpened counts ranges added to a Tracker (a new hole detected
	// in the received byte stream).
	GapsOpened prometheus.Counter

	// GapsClosed counts successful Tracker.Remove calls (a gap filled
	// by an arriving or retransmitted segment).
	GapsClosed prometheus.Counter

	// OpenGaps holds the number of outstanding ranges in the tracker of
	// whichever transaction updated it last; it is not summed across
	// transactions.
	OpenGaps prometheus.Gauge
}

// NewLostSegmentMetrics creates and registers lost-segment tracker
// metrics with reg. If reg is nil, metrics are created but not
// registered.
func NewLostSegmentMetrics(reg prometheus.Registerer) *LostSegmentMetrics {
	m := &LostSegmentMetrics{
		GapsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cfdp",
			Subsystem: "lostsegment",
			Name:      "gaps_opened_total",
			Help:      "Total ranges added to a lost-segment tracker",
		}),
		GapsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cfdp",
			Subsystem: "lostsegment",
			Name:      "gaps_closed_total",
			Help:      "Total ranges removed from a lost-segment tracker",
		}),
		OpenGaps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cfdp",
			Subsystem: "lostsegment",
			Name:      "open_gaps",
			Help:      "Outstanding lost-segment ranges of the most recently updated transaction",
		}),
	}

	if reg != nil {
		m.GapsOpened = registerOrReuse(reg, m.GapsOpened).(prometheus.Counter)
		m.GapsClosed = registerOrReuse(reg, m.GapsClosed).(prometheus.Counter)
		m.OpenGaps = registerOrReuse(reg, m.OpenGaps).(prometheus.Gauge)
	}

	return m
}

func (m *LostSegmentMetrics) IncGapsOpened() {
	if m == nil {
		return
	}
	m.GapsOpened.Inc()
}

func (m *LostSegmentMetrics) IncGapsClosed() {
	if m == nil {
		return
	}
	m.GapsClosed.Inc()
}

func (m *LostSegmentMetrics) SetOpenGaps(n float64) {
	if m == nil {
		return
	}
	m.OpenGaps.Set(n)
}
