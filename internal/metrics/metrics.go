package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	serviceLaunches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devrun",
			Subsystem: "service",
			Name:      "launches_total",
			Help:      "Number of successful service launches.",
		}, []string{"name"},
	)
	serviceStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devrun",
			Subsystem: "service",
			Name:      "stops_total",
			Help:      "Number of termination requests delivered.",
		}, []string{"name"},
	)
	terminationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devrun",
			Subsystem: "service",
			Name:      "termination_failures_total",
			Help:      "Tolerated termination failures (missing, denied, zombie).",
		}, []string{"name"},
	)
	relayLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devrun",
			Subsystem: "relay",
			Name:      "lines_total",
			Help:      "Lines relayed from child output streams.",
		}, []string{"name"},
	)
	runningServices = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "devrun",
			Subsystem: "service",
			Name:      "running",
			Help:      "Services currently running in this session.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		serviceLaunches, serviceStops, terminationFailures, relayLines, runningServices,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// MustRegisterDefault registers against the default registry, ignoring
// duplicate registration.
func MustRegisterDefault() { _ = Register(prometheus.DefaultRegisterer) }

// Handler exposes the default registry for a status server mount.
func Handler() http.Handler { return promhttp.Handler() }

func IncLaunch(name string)             { serviceLaunches.WithLabelValues(name).Inc() }
func IncStop(name string)               { serviceStops.WithLabelValues(name).Inc() }
func IncTerminationFailure(name string) { terminationFailures.WithLabelValues(name).Inc() }
func AddRelayLines(name string, n int)  { relayLines.WithLabelValues(name).Add(float64(n)) }
func SetRunning(n int)                  { runningServices.Set(float64(n)) }
