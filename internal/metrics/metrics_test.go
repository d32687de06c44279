package metrics

import (
	"expvar"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOutcome(t *testing.T) {
	if Outcome("") != "ok" || Outcome("insufficient_funds") != "insufficient_funds" {
		t.Fatalf("outcome labels wrong")
	}
}

func TestCountersMove(t *testing.T) {
	before := testutil.ToFloat64(Flushes.WithLabelValues("game", "ok"))
	Flushes.WithLabelValues("game", "ok").Inc()
	if got := testutil.ToFloat64(Flushes.WithLabelValues("game", "ok")); got != before+1 {
		t.Fatalf("flushes = %v, want %v", got, before+1)
	}

	ObserveTick("stage", time.Now().Add(-10*time.Millisecond))
	if n := testutil.CollectAndCount(TickDuration); n == 0 {
		t.Fatalf("tick histogram empty")
	}

	started := expvar.Get("games_started_total").(*expvar.Int).Value()
	GameStarted()
	if got := expvar.Get("games_started_total").(*expvar.Int).Value(); got != started+1 {
		t.Fatalf("games_started_total = %d", got)
	}
}
