package metrics

import (
	"expvar"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "arena"

var (
	StageTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stage_transitions_total",
		Help:      "Stage transitions applied, by target stage",
	}, []string{"stage"})

	SchedulerErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_errors_total",
		Help:      "Per-unit scheduler failures",
	}, []string{"scheduler"})

	TickDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scheduler_tick_seconds",
		Help:      "Scheduler sweep latency",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"scheduler"})

	ActiveGames = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_games",
		Help:      "Games present in the ephemeral store at the last stage tick",
	})

	EffectsRemoved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "effects_removed_total",
		Help:      "Active effects removed, by reason",
	}, []string{"reason"})

	Flushes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "flushes_total",
		Help:      "Snapshot flushes, by kind and outcome",
	}, []string{"kind", "outcome"})

	EconomyActions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "economy_actions_total",
		Help:      "Purchases and uses, by action and outcome code",
	}, []string{"action", "outcome"})
)

var (
	metricGamesStarted  = expvar.NewInt("games_started_total")
	metricGamesFinished = expvar.NewInt("games_finished_total")
	metricRoomsFlushed  = expvar.NewInt("rooms_flushed_total")
)

func init() {
	prometheus.MustRegister(
		StageTransitions,
		SchedulerErrors,
		TickDuration,
		ActiveGames,
		EffectsRemoved,
		Flushes,
		EconomyActions,
	)
}

func ObserveTick(scheduler string, started time.Time) {
	TickDuration.WithLabelValues(scheduler).Observe(time.Since(started).Seconds())
}

// Outcome labels err by its taxonomy code, "ok" for nil.
func Outcome(code string) string {
	if code == "" {
		return "ok"
	}
	return code
}

func GameStarted()  { metricGamesStarted.Add(1) }
func GameFinished() { metricGamesFinished.Add(1) }
func RoomFlushed()  { metricRoomsFlushed.Add(1) }
