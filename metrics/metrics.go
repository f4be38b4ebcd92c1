package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Lending records the lending workflow and HTTP traffic. A nil *Lending is a no-op.
type Lending struct {
	scans       *prometheus.CounterVec
	loans       *prometheus.CounterVec
	flags       *prometheus.CounterVec
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	jobDuration *prometheus.HistogramVec
	jobRuns     *prometheus.CounterVec
}

// New registers the collectors on reg. A nil registerer yields a no-op recorder.
func New(reg prometheus.Registerer) *Lending {
	if reg == nil {
		return nil
	}
	m := &Lending{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lager_scans_total",
			Help: "Resolved scans by result type.",
		}, []string{"type"}),
		loans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lager_loan_events_total",
			Help: "Loan ledger operations by event and outcome.",
		}, []string{"event", "outcome"}),
		flags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lager_flags_total",
			Help: "Flags opened and resolved by type or status.",
		}, []string{"event", "kind"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lager_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lager_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lager_job_duration_seconds",
			Help:    "Duration of scheduled jobs in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lager_job_runs_total",
			Help: "Scheduled job runs by result.",
		}, []string{"job", "result"}),
	}
	reg.MustRegister(m.scans, m.loans, m.flags, m.requests, m.latency, m.jobDuration, m.jobRuns)
	return m
}

func (m *Lending) Scan(resultType string) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(label(resultType)).Inc()
}

// LoanEvent counts create/return/extend attempts; outcome is "ok" or an error kind.
func (m *Lending) LoanEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.loans.WithLabelValues(label(event), label(outcome)).Inc()
}

func (m *Lending) FlagOpened(flagType string) {
	if m == nil {
		return
	}
	m.flags.WithLabelValues("opened", label(flagType)).Inc()
}

func (m *Lending) FlagResolved(status string) {
	if m == nil {
		return
	}
	m.flags.WithLabelValues("resolved", label(status)).Inc()
}

func (m *Lending) Request(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	route = label(route)
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Lending) JobRun(job string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.jobDuration.WithLabelValues(label(job)).Observe(elapsed.Seconds())
	m.jobRuns.WithLabelValues(label(job), result).Inc()
}

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
