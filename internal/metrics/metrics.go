// ============================================================================
// UWS Core — Prometheus Metrics
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: Expose UWS job-lifecycle metrics for Prometheus scraping.
//
// Grounding:
//   Directly adapts the teacher's metrics.Collector (internal/metrics/
//   metrics.go): same Counter/Gauge/Histogram shape and the same
//   promhttp.Handler()-backed StartServer, retargeted from a flat
//   pending/in-flight/completed/dead job model onto the ten-phase UWS
//   automaton (phase-transition counters instead of per-state counters,
//   since a job can revisit non-terminal phases) plus execution/
//   destruction backlog gauges.
//
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gmantele/vollt-uws/pkg/uws"
)

// Collector collects UWS Prometheus metrics.
type Collector struct {
	phaseTransitions *prometheus.CounterVec
	jobLatency       prometheus.Histogram

	runningJobs prometheus.Gauge
	queuedJobs  prometheus.Gauge
	scheduledDestructions prometheus.Gauge
}

// NewCollector creates and registers a new metrics collector.
func NewCollector() *Collector {
	c := &Collector{
		phaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uws_job_phase_transitions_total",
			Help: "Total number of job phase transitions, labeled by origin and destination phase",
		}, []string{"from", "to"}),
		jobLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "uws_job_latency_seconds",
			Help:    "Job EXECUTING duration in seconds, recorded once a job reaches a terminal phase",
			Buckets: prometheus.DefBuckets,
		}),
		runningJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uws_jobs_running",
			Help: "Current number of EXECUTING jobs",
		}),
		queuedJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uws_jobs_queued",
			Help: "Current number of QUEUED jobs awaiting an execution slot",
		}),
		scheduledDestructions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uws_jobs_scheduled_for_destruction",
			Help: "Current number of jobs with a pending destruction deadline",
		}),
	}

	prometheus.MustRegister(c.phaseTransitions)
	prometheus.MustRegister(c.jobLatency)
	prometheus.MustRegister(c.runningJobs)
	prometheus.MustRegister(c.queuedJobs)
	prometheus.MustRegister(c.scheduledDestructions)

	return c
}

// Observer returns a uws.Observer that records every phase transition of
// the jobs it is attached to. Callers attach it to each job themselves;
// nothing in this module (JobList included) attaches it automatically.
func (c *Collector) Observer() uws.Observer {
	return uws.ObserverFunc(func(job *uws.Job, old, new uws.ExecutionPhase) {
		c.phaseTransitions.WithLabelValues(old.String(), new.String()).Inc()
		if new.IsTerminal() && !job.StartTime().IsZero() && !job.EndTime().IsZero() {
			c.jobLatency.Observe(job.EndTime().Sub(job.StartTime()).Seconds())
		}
	})
}

// UpdateBacklog sets the current running/queued/scheduled gauges. Callers
// poll their execution and destruction managers and report the counts
// here on whatever cadence suits them (the core holds no ticker of its
// own for this).
func (c *Collector) UpdateBacklog(running, queued, scheduledDestructions int) {
	c.runningJobs.Set(float64(running))
	c.queuedJobs.Set(float64(queued))
	c.scheduledDestructions.Set(float64(scheduledDestructions))
}

// StartServer starts the Prometheus metrics HTTP server on port, serving
// at /metrics.
func StartServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, mux)
}
