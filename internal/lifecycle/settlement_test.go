package lifecycle

import (
	"testing"
	"time"

	"algo-arena/internal/domain"
)

func players(ids ...string) []domain.GamePlayer {
	out := make([]domain.GamePlayer, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.GamePlayer{GameID: "g1", UserID: id})
	}
	return out
}

func accepted(userID string, elapsed int64, at time.Time) domain.Submission {
	return domain.Submission{GameID: "g1", UserID: userID, Status: domain.SubmissionAccepted, ElapsedMS: elapsed, CreatedAt: at}
}

func byUser(sets []domain.Settlement) map[string]domain.Settlement {
	out := map[string]domain.Settlement{}
	for _, s := range sets {
		out[s.UserID] = s
	}
	return out
}

func TestSettleRankedThreePlayers(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	subs := []domain.Submission{
		accepted("a", 3000, t0),
		accepted("b", 3000, t0.Add(time.Second)),
		{GameID: "g1", UserID: "c", Status: "WRONG_ANSWER", ElapsedMS: 4000, CreatedAt: t0.Add(2 * time.Second)},
		accepted("a", 5000, t0.Add(3*time.Second)),
	}
	got := byUser(Settle(domain.GameTypeRanked, players("a", "b", "c"), subs, DefaultRewards()))

	a, b, c := got["a"], got["b"], got["c"]
	if a.Rank != 1 || a.ScoreDelta != 30 || a.CoinDelta != 100 || a.ExpDelta != 50 || a.Result != domain.ResultWin || !a.Solved {
		t.Fatalf("a = %+v", a)
	}
	if b.Rank != 2 || b.ScoreDelta != 10 || b.Result != domain.ResultLose {
		t.Fatalf("b = %+v", b)
	}
	if c.Rank != 3 || c.ScoreDelta != -10 || c.Result != domain.ResultLose || c.Solved {
		t.Fatalf("c = %+v", c)
	}
}

func TestSettleTieSharesRankOne(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	subs := []domain.Submission{accepted("a", 4200, t0), accepted("b", 4200, t0.Add(time.Second))}
	got := byUser(Settle(domain.GameTypeRanked, players("a", "b", "c"), subs, DefaultRewards()))

	if got["a"].Rank != 1 || got["b"].Rank != 1 {
		t.Fatalf("ranks = %d %d", got["a"].Rank, got["b"].Rank)
	}
	if got["a"].Result != domain.ResultDraw || got["b"].Result != domain.ResultDraw {
		t.Fatalf("results = %s %s", got["a"].Result, got["b"].Result)
	}
	if got["c"].Rank != 3 {
		t.Fatalf("competition ranking skips rank 2, got %d", got["c"].Rank)
	}
}

func TestSettleFasterFinalAcceptedWins(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	subs := []domain.Submission{accepted("a", 9000, t0), accepted("b", 7000, t0)}
	got := byUser(Settle(domain.GameTypeRanked, players("a", "b"), subs, DefaultRewards()))
	if got["b"].Result != domain.ResultWin || got["a"].Rank != 2 {
		t.Fatalf("settlements = %+v", got)
	}
}

func TestSettleNormalIsFlat(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := Settle(domain.GameTypeNormal, players("a", "b"), []domain.Submission{accepted("a", 1000, t0)}, DefaultRewards())
	for _, s := range got {
		if s.ScoreDelta != 0 || s.CoinDelta != 50 || s.ExpDelta != 20 || s.Result != domain.ResultDraw {
			t.Fatalf("normal settlement = %+v", s)
		}
	}
}

func TestSettleNobodySolved(t *testing.T) {
	got := Settle(domain.GameTypeRanked, players("a", "b"), nil, DefaultRewards())
	for _, s := range got {
		if s.Rank != 1 || s.Result != domain.ResultDraw || s.ScoreDelta != -10 {
			t.Fatalf("unsolved settlement = %+v", s)
		}
	}
}

func TestSettleTwoPlayersUnsolvedRunnerUpPaysLastTier(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	got := byUser(Settle(domain.GameTypeRanked, players("a", "b"), []domain.Submission{accepted("a", 3000, t0)}, DefaultRewards()))
	if a := got["a"]; a.Rank != 1 || a.ScoreDelta != 30 || a.Result != domain.ResultWin {
		t.Fatalf("a = %+v", a)
	}
	if b := got["b"]; b.Rank != 2 || b.ScoreDelta != -10 || b.CoinDelta != 20 || b.Result != domain.ResultLose || b.Solved {
		t.Fatalf("unsolved runner-up = %+v", b)
	}

	subs := []domain.Submission{accepted("a", 3000, t0), accepted("b", 6000, t0.Add(time.Second))}
	got = byUser(Settle(domain.GameTypeRanked, players("a", "b"), subs, DefaultRewards()))
	if b := got["b"]; b.Rank != 2 || b.ScoreDelta != 10 || b.CoinDelta != 50 || b.Result != domain.ResultLose || !b.Solved {
		t.Fatalf("solved runner-up = %+v", b)
	}
}
