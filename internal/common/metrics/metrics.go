package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StepValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_step_validations_total",
			Help: "Step validations by step key and result",
		},
		[]string{"step", "result"},
	)

	StepTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_step_transitions_total",
			Help: "Navigation attempts by direction and outcome",
		},
		[]string{"direction", "outcome"},
	)

	DraftSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_draft_saves_total",
			Help: "Draft save attempts by outcome",
		},
		[]string{"outcome"},
	)

	MirrorWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_snapshot_writes_total",
			Help: "Snapshot mirror writes by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_submissions_total",
			Help: "Submission attempts by outcome",
		},
		[]string{"outcome"},
	)

	SubmissionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "form_submission_duration_seconds",
			Help:    "Time spent transmitting a submission",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "form_sessions_active",
			Help: "Form sessions currently held in memory",
		},
	)

	ApplicationsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applications_stored_total",
			Help: "Applications accepted by the submission endpoint, by outcome",
		},
		[]string{"outcome"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served, by method, route and status",
		},
		[]string{"method", "route", "status"},
	)
)
