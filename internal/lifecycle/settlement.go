package lifecycle

import (
	"sort"

	"algo-arena/internal/domain"
)

type Reward struct {
	Score int64
	Coin  int64
	Exp   float64
}

// Rewards is the settlement policy. Tiers[i] pays rank i+1; the last tier
// pays every rank past it.
type Rewards struct {
	Tiers      []Reward
	NormalCoin int64
	NormalExp  float64
}

func DefaultRewards() Rewards {
	return Rewards{
		Tiers: []Reward{
			{Score: 30, Coin: 100, Exp: 50},
			{Score: 10, Coin: 50, Exp: 30},
			{Score: -10, Coin: 20, Exp: 20},
		},
		NormalCoin: 50,
		NormalExp:  20,
	}
}

func (r Rewards) tier(rank int) Reward {
	if len(r.Tiers) == 0 {
		return Reward{}
	}
	if rank < 1 {
		rank = 1
	}
	if rank > len(r.Tiers) {
		rank = len(r.Tiers)
	}
	return r.Tiers[rank-1]
}

type standing struct {
	userID   string
	accepted int
	// finalMS is the elapsed time of the player's last accepted submission.
	finalMS int64
}

func (a standing) beats(b standing) bool {
	if a.accepted != b.accepted {
		return a.accepted > b.accepted
	}
	if a.accepted == 0 {
		return false
	}
	return a.finalMS < b.finalMS
}

func standings(players []domain.GamePlayer, subs []domain.Submission) []standing {
	byUser := make(map[string]*standing, len(players))
	out := make([]standing, 0, len(players))
	for _, p := range players {
		byUser[p.UserID] = &standing{userID: p.UserID}
	}
	ordered := append([]domain.Submission(nil), subs...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].CreatedAt.Before(ordered[j].CreatedAt) })
	for _, s := range ordered {
		st, ok := byUser[s.UserID]
		if !ok || s.Status != domain.SubmissionAccepted {
			continue
		}
		st.accepted++
		st.finalMS = s.ElapsedMS
	}
	for _, p := range players {
		out = append(out, *byUser[p.UserID])
	}
	return out
}

// Settle computes every player's outcome. Ranks follow competition ranking:
// tied players share a rank and the next rank is skipped. A player with no
// accepted submission is paid the lowest tier whatever their rank.
func Settle(gameType domain.GameType, players []domain.GamePlayer, subs []domain.Submission, r Rewards) []domain.Settlement {
	st := standings(players, subs)
	ranks := make([]int, len(st))
	for i := range st {
		ranks[i] = 1
		for j := range st {
			if st[j].beats(st[i]) {
				ranks[i]++
			}
		}
	}
	topShared := 0
	for _, rank := range ranks {
		if rank == 1 {
			topShared++
		}
	}

	out := make([]domain.Settlement, 0, len(st))
	for i, s := range st {
		set := domain.Settlement{UserID: s.userID, Rank: ranks[i], Solved: s.accepted > 0}
		if gameType == domain.GameTypeNormal {
			set.CoinDelta = r.NormalCoin
			set.ExpDelta = r.NormalExp
			set.Result = domain.ResultDraw
			out = append(out, set)
			continue
		}
		reward := r.tier(ranks[i])
		if !set.Solved {
			reward = r.tier(len(r.Tiers))
		}
		set.ScoreDelta, set.CoinDelta, set.ExpDelta = reward.Score, reward.Coin, reward.Exp
		switch {
		case ranks[i] == 1 && topShared == 1:
			set.Result = domain.ResultWin
		case ranks[i] == 1:
			set.Result = domain.ResultDraw
		default:
			set.Result = domain.ResultLose
		}
		out = append(out, set)
	}
	return out
}
