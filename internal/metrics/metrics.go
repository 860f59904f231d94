// Package metrics exposes Prometheus instrumentation for the monitoring
// session and the chat service.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/irisdrone/pipewatch/internal/detection"
	"github.com/irisdrone/pipewatch/internal/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pipewatch"

var (
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "registry",
		Name:      "refresh_total",
		Help:      "Registry refreshes by result",
	}, []string{"result"})

	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "registry",
		Name:      "refresh_duration_seconds",
		Help:      "Time spent acquiring and reconciling a snapshot",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	registryEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "registry",
		Name:      "entries",
		Help:      "Registry entries by status",
	}, []string{"status"})

	activeEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "registry",
		Name:      "active_entries",
		Help:      "Registry entries corroborated at least once this session",
	})

	detectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "detection",
		Name:      "raw_total",
		Help:      "Raw detections received by subsystem",
	}, []string{"subsystem"})

	chatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "requests_total",
		Help:      "Chat completions by result",
	}, []string{"result"})
)

// RefreshResult buckets a Session.Refresh error for the refresh counter.
func RefreshResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, registry.ErrRefreshInProgress):
		return "in_progress"
	case errors.Is(err, registry.ErrRefreshDiscarded), errors.Is(err, context.Canceled):
		return "discarded"
	case errors.Is(err, detection.ErrSnapshotUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// ObserveRefresh records one refresh attempt.
func ObserveRefresh(err error, took time.Duration) {
	refreshTotal.WithLabelValues(RefreshResult(err)).Inc()
	if err == nil {
		refreshDuration.Observe(took.Seconds())
	}
}

// ObserveUpdate records the registry shape after an update. It is meant to be
// registered as a session listener.
func ObserveUpdate(u registry.Update) {
	counts := map[registry.Status]int{
		registry.StatusPending:    0,
		registry.StatusInProgress: 0,
		registry.StatusResolved:   0,
	}
	active := 0
	for _, d := range u.Defects {
		counts[d.Status]++
		if d.Active() {
			active++
		}
	}
	for status, n := range counts {
		registryEntries.WithLabelValues(string(status)).Set(float64(n))
	}
	activeEntries.Set(float64(active))

	if u.Kind == registry.UpdateReconciled {
		detectionsTotal.WithLabelValues("control_system").Add(float64(len(u.Snapshot.ControlSystem.Detections)))
		detectionsTotal.WithLabelValues("drone").Add(float64(len(u.Snapshot.Drone.Detections)))
	}
}

// ObserveChat records one chat completion.
func ObserveChat(result string) {
	chatRequests.WithLabelValues(result).Inc()
}
