package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/benywifi/beny/internal/charger"
	"github.com/benywifi/beny/internal/protocol"
)

const namespace = "beny"

// Metrics holds the exporter's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	exchanges *prometheus.CounterVec
	duration  *prometheus.HistogramVec

	power      prometheus.Gauge
	energy     prometheus.Gauge
	maxCurrent prometheus.Gauge
	voltage    *prometheus.GaugeVec
	current    *prometheus.GaugeVec
	state      *prometheus.GaugeVec
	updated    prometheus.Gauge
}

// New creates and registers all collectors, plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchanges_total",
			Help:      "Request/response exchanges with the charger, by outcome.",
		}, []string{"operation", "result"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_duration_seconds",
			Help:      "Round trip time of charger exchanges.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"operation"}),

		power: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "power_kilowatts",
			Help:      "Current charging power.",
		}),

		energy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "energy_kilowatt_hours",
			Help:      "Energy delivered in the current session.",
		}),

		maxCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "max_current_amperes",
			Help:      "Configured maximum charging current.",
		}),

		voltage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "voltage_volts",
			Help:      "Supply voltage per phase.",
		}, []string{"phase"}),

		current: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_amperes",
			Help:      "Charging current per phase.",
		}, []string{"phase"}),

		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "charger_state",
			Help:      "1 for the charger's current state, 0 for the others.",
		}, []string{"state"}),

		updated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_reading_timestamp_seconds",
			Help:      "Unix time of the last successful reading.",
		}),
	}

	m.registry.MustRegister(
		m.exchanges,
		m.duration,
		m.power,
		m.energy,
		m.maxCurrent,
		m.voltage,
		m.current,
		m.state,
		m.updated,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveExchange implements charger.Observer.
func (m *Metrics) ObserveExchange(operation string, d time.Duration, err error) {
	m.exchanges.WithLabelValues(operation, Result(err)).Inc()
	m.duration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveReading updates the gauges from a reading.
func (m *Metrics) ObserveReading(r *charger.Reading) {
	if r == nil {
		return
	}
	m.power.Set(r.Power)
	m.energy.Set(r.TotalKWh)
	m.maxCurrent.Set(float64(r.MaxCurrent))

	for i, ph := range r.Phases() {
		label := string(rune('1' + i))
		m.voltage.WithLabelValues(label).Set(float64(ph.Voltage))
		m.current.WithLabelValues(label).Set(float64(ph.Current))
	}

	for s := protocol.StateAbnormal; s.Valid(); s++ {
		v := 0.0
		if s == r.State {
			v = 1
		}
		m.state.WithLabelValues(s.Label()).Set(v)
	}

	if !r.UpdatedAt.IsZero() {
		m.updated.Set(float64(r.UpdatedAt.Unix()))
	}
}

// Result maps an exchange error to the "result" label.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	var devErr *charger.DeviceError
	if !errors.As(err, &devErr) {
		return "error"
	}
	switch devErr.Type {
	case charger.ErrTypeTimeout:
		return "timeout"
	case charger.ErrTypeConnectionRefused:
		return "refused"
	case charger.ErrTypeDecode:
		return "decode_error"
	case charger.ErrTypeAccessDenied:
		return "access_denied"
	case charger.ErrTypeCanceled:
		return "canceled"
	case charger.ErrTypeNetwork:
		return "network_error"
	default:
		return "error"
	}
}
