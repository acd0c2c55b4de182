package anttop

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Instruments are anttop's own metrics
type Instruments struct {
	registry *prometheus.Registry

	fetchCycles    *prometheus.CounterVec
	busyRejections prometheus.Counter
	renderDuration *prometheus.HistogramVec
	charts         *prometheus.GaugeVec
}

func NewInstruments() *Instruments {
	i := &Instruments{
		registry: prometheus.NewRegistry(),
		fetchCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anttop",
			Name:      "fetch_cycles_total",
			Help:      "Completed fetch cycles by outcome.",
		}, []string{"outcome"}),
		busyRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "anttop",
			Name:      "busy_rejections_total",
			Help:      "Fetch triggers rejected because a cycle was in flight.",
		}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "anttop",
			Name:      "render_duration_seconds",
			Help:      "Time spent sampling and building charts.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"view"}),
		charts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "anttop",
			Name:      "charts",
			Help:      "Charts currently registered per view.",
		}, []string{"view"}),
	}
	i.registry.MustRegister(i.fetchCycles, i.busyRejections, i.renderDuration, i.charts)
	return i
}

func (i *Instruments) fetched(err error) {
	if i == nil {
		return
	}
	if err != nil {
		i.fetchCycles.WithLabelValues("error").Inc()
		return
	}
	i.fetchCycles.WithLabelValues("ok").Inc()
}

func (i *Instruments) busy() {
	if i == nil {
		return
	}
	i.busyRejections.Inc()
}

func (i *Instruments) rendered(view string, start time.Time, charts int) {
	if i == nil {
		return
	}
	i.renderDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
	i.charts.WithLabelValues(view).Set(float64(charts))
}

// Handler serves the metrics in the Prometheus text format
func (i *Instruments) Handler() http.Handler {
	return promhttp.HandlerFor(i.registry, promhttp.HandlerOpts{})
}
