package domain

import "time"

type Stage string

const (
	StageLobby    Stage = "LOBBY"
	StageBan      Stage = "BAN"
	StagePick     Stage = "PICK"
	StageShop     Stage = "SHOP"
	StagePlay     Stage = "PLAY"
	StageFinished Stage = "FINISHED"
)

type GameType string

const (
	GameTypeNormal GameType = "NORMAL"
	GameTypeRanked GameType = "RANKED"
)

var stageGraphs = map[GameType][]Stage{
	GameTypeNormal: {StageLobby, StagePlay, StageFinished},
	GameTypeRanked: {StageLobby, StageBan, StagePick, StageShop, StagePlay, StageFinished},
}

func (t GameType) Valid() bool {
	_, ok := stageGraphs[t]
	return ok
}

// Stages returns the ordered stage graph for the game type.
func (t GameType) Stages() []Stage {
	g := stageGraphs[t]
	out := make([]Stage, len(g))
	copy(out, g)
	return out
}

// NextStage returns the stage that directly follows s in the graph of t.
// It reports false for FINISHED and for stages outside the graph.
func NextStage(t GameType, s Stage) (Stage, bool) {
	g := stageGraphs[t]
	for i, st := range g {
		if st == s && i+1 < len(g) {
			return g[i+1], true
		}
	}
	return "", false
}

// FirstStage is the stage a game enters when it leaves LOBBY.
func FirstStage(t GameType) Stage {
	next, _ := NextStage(t, StageLobby)
	return next
}

// IsNextStage reports whether to directly follows from in the graph of t.
func IsNextStage(t GameType, from, to Stage) bool {
	next, ok := NextStage(t, from)
	return ok && next == to
}

func (s Stage) Terminal() bool {
	return s == StageFinished
}

type StageDurations struct {
	Ban  time.Duration
	Pick time.Duration
	Shop time.Duration
	Play time.Duration
}

func DefaultStageDurations() StageDurations {
	return StageDurations{
		Ban:  60 * time.Second,
		Pick: 60 * time.Second,
		Shop: 120 * time.Second,
		Play: 1800 * time.Second,
	}
}

func (d StageDurations) For(s Stage) time.Duration {
	switch s {
	case StageBan:
		return d.Ban
	case StagePick:
		return d.Pick
	case StageShop:
		return d.Shop
	case StagePlay:
		return d.Play
	default:
		return 0
	}
}

// Deadline returns nil for LOBBY and FINISHED.
func (d StageDurations) Deadline(s Stage, startedAt time.Time) *time.Time {
	dur := d.For(s)
	if dur <= 0 {
		return nil
	}
	out := startedAt.Add(dur)
	return &out
}
