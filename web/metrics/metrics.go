// Package metrics exposes the feed counters and latencies to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/screwyprof/oppfeed/feed"
)

const (
	namespace = "oppfeed"
	subsystem = "feed"

	MetricsRoute = http.MethodGet + " " + "/metrics"
)

// Recorder implements feed.Recorder on its own registry
type Recorder struct {
	registry *prometheus.Registry

	pagesServed      *prometheus.CounterVec
	pageDuration     *prometheus.HistogramVec
	pageItems        prometheus.Histogram
	historyDegraded  prometheus.Counter
	sponsoredSkipped prometheus.Counter
	cursorResets     prometheus.Counter
}

var _ feed.Recorder = (*Recorder)(nil)

// NewRecorder registers the feed metrics together with the process and Go runtime collectors
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		pagesServed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pages_served_total",
			Help:      "Total number of feed pages served by sort and scoring mode",
		}, []string{"sort", "personalized"}),
		pageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "page_duration_seconds",
			Help:      "Time spent assembling one feed page",
			Buckets:   []float64{.005, .01, .025, .05, .1, .15, .25, .5, 1},
		}, []string{"sort"}),
		pageItems: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "page_items",
			Help:      "Number of items per served page",
			Buckets:   []float64{0, 1, 6, 12, 25, 50},
		}),
		historyDegraded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "history_degraded_total",
			Help:      "Pages ranked cold because wallet history was unavailable",
		}),
		sponsoredSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sponsored_skipped_total",
			Help:      "Sponsored items dropped by the window cap",
		}),
		cursorResets: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cursor_resets_total",
			Help:      "Sessions restarted because the cursor was invalid or stale",
		}),
	}
}

func (r *Recorder) PageServed(sort feed.Sort, personalized bool, items int, duration time.Duration) {
	r.pagesServed.WithLabelValues(string(sort), strconv.FormatBool(personalized)).Inc()
	r.pageDuration.WithLabelValues(string(sort)).Observe(duration.Seconds())
	r.pageItems.Observe(float64(items))
}

func (r *Recorder) HistoryDegraded() {
	r.historyDegraded.Inc()
}

func (r *Recorder) SponsoredSkipped(n int) {
	if n > 0 {
		r.sponsoredSkipped.Add(float64(n))
	}
}

func (r *Recorder) CursorReset() {
	r.cursorResets.Inc()
}

// Registry returns the registry the feed metrics live on
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) AddRoutes(m *http.ServeMux) {
	m.Handle(MetricsRoute, r.Handler())
}
