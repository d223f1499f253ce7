package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roundsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memorix_rounds_started_total",
		Help: "Rounds started, by kind.",
	}, []string{"kind"})
	roundsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memorix_rounds_submitted_total",
		Help: "Rounds submitted, by kind.",
	}, []string{"kind"})
	roundsAbandoned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memorix_rounds_abandoned_total",
		Help: "Rounds retired by the expiry sweep without a submission.",
	})
	anticheatFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memorix_anticheat_failures_total",
		Help: "Submissions that failed reaction-time verification.",
	})
	levelUps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memorix_level_ups_total",
		Help: "Verified perfect progression rounds that advanced a level.",
	})
)
