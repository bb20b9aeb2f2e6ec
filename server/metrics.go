package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	observationsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "auditor",
		Name:      "observations_accepted_total",
		Help:      "Number of observations appended to the store.",
	})
	submissionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auditor",
		Name:      "submissions_rejected_total",
		Help:      "Number of rejected statistics submissions by reason.",
	}, []string{"reason"})
	proofQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auditor",
		Name:      "proof_queries_total",
		Help:      "Number of proof of computation queries by result.",
	}, []string{"result"})
)
