// Package metrics writes per-tick endpoint snapshots to metrics.jsonl and
// fans page summaries and mid-stream errors out to a final summary.json
// and (when enabled) Prometheus gauges/counters, per the design notes'
// metrics sink component.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nettools/pagemon/internal/page"
	"github.com/nettools/pagemon/internal/perr"
)

// Prom holds the Prometheus collectors exported while a monitor run is
// active. Grounded on the registration style of the teacher's SIP dialog
// metrics collector (promauto.New*, Namespace/Subsystem/Name/Help),
// adapted to this package's page/network/audio vocabulary.
type Prom struct {
	pagesTotal       prometheus.Counter
	pagesActive      prometheus.Gauge
	pagesDiscarded   prometheus.Counter
	pageDuration     prometheus.Histogram
	packetsTotal     *prometheus.CounterVec
	packetsLost      *prometheus.CounterVec
	jitterMs         *prometheus.GaugeVec
	errorsTotal      *prometheus.CounterVec
	metricsDropped   prometheus.Counter
}

// NewProm registers a fresh set of collectors under namespace/subsystem.
// Call once per process; registering twice against the default registry
// panics, matching promauto's documented behavior.
func NewProm(namespace, subsystem string) *Prom {
	return &Prom{
		pagesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pages_total",
			Help:      "Total number of paging sessions reported",
		}),
		pagesActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pages_active",
			Help:      "Number of currently open paging sessions",
		}),
		pagesDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pages_discarded_total",
			Help:      "Paging sessions discarded for falling under the minimum packet count",
		}),
		pageDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "page_duration_seconds",
			Help:      "Duration of reported paging sessions",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 300},
		}),
		packetsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_total",
			Help:      "Total RTP packets observed per endpoint",
		}, []string{"endpoint"}),
		packetsLost: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_lost_total",
			Help:      "Estimated lost RTP packets per endpoint",
		}, []string{"endpoint"}),
		jitterMs: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jitter_ms",
			Help:      "Most recently reported RFC 3550 jitter estimate per endpoint",
		}, []string{"endpoint"}),
		errorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total errors observed by kind",
		}, []string{"kind"}),
		metricsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "metrics_dropped_total",
			Help:      "Metrics events dropped because the event channel was full",
		}),
	}
}

// ObservePage updates the page-related collectors directly from a closed
// page's summary, for callers (e.g. monitor's console sink) that don't
// route through a Sink's event queue.
func (p *Prom) ObservePage(sum page.Summary) {
	p.observePage(sum.Endpoint, sum.Network.Packets, sum.Network.Lost, sum.Network.JitterMs, sum.DurationSecs, false)
}

// ObserveError increments errors_total for err's kind, for callers that
// don't route through a Sink's event queue.
func (p *Prom) ObserveError(err *perr.Error) {
	p.observeError(err.Kind.String())
}

func (p *Prom) observePage(endpointStr string, packets, lost uint64, jitterMs, durationSecs float64, discarded bool) {
	if p == nil {
		return
	}
	if discarded {
		p.pagesDiscarded.Inc()
		return
	}
	p.pagesTotal.Inc()
	p.pageDuration.Observe(durationSecs)
	p.packetsTotal.WithLabelValues(endpointStr).Add(float64(packets))
	p.packetsLost.WithLabelValues(endpointStr).Add(float64(lost))
	p.jitterMs.WithLabelValues(endpointStr).Set(jitterMs)
}

func (p *Prom) observeError(kind string) {
	if p == nil {
		return
	}
	p.errorsTotal.WithLabelValues(kind).Inc()
}

func (p *Prom) setActivePages(n float64) {
	if p == nil {
		return
	}
	p.pagesActive.Set(n)
}

func (p *Prom) incDropped() {
	if p == nil {
		return
	}
	p.metricsDropped.Inc()
}
