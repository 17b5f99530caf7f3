package repair

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes recorded on specforge_repair_outcomes_total.
const (
	OutcomeFixed     = "fixed"
	OutcomeExhausted = "exhausted"
	OutcomeError     = "error"
	OutcomeSkipped   = "skipped"
)

var (
	// attemptsTotal counts repair prompts sent
	attemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "specforge_repair_attempts_total",
		Help: "Total auto-repair attempts",
	})

	// outcomesTotal counts finished repair runs by outcome
	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "specforge_repair_outcomes_total",
		Help: "Auto-repair runs by outcome",
	}, []string{"outcome"})
)
