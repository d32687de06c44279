package domain

import "time"

type MemberState string

const (
	MemberUnready MemberState = "UNREADY"
	MemberReady   MemberState = "READY"
)

type Room struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	GameType   GameType  `json:"game_type"`
	Language   string    `json:"language"`
	Capacity   int       `json:"capacity"`
	HostUserID string    `json:"host_user_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	// ActiveGameID is claimed atomically by game start and released by the
	// game's final flush. It is never persisted.
	ActiveGameID string `json:"active_game_id,omitempty"`
}

type RoomPlayer struct {
	ID             string      `json:"id"`
	RoomID         string      `json:"room_id"`
	UserID         string      `json:"user_id"`
	State          MemberState `json:"state"`
	JoinedAt       time.Time   `json:"joined_at"`
	LeftAt         *time.Time  `json:"left_at,omitempty"`
	DisconnectedAt *time.Time  `json:"disconnected_at,omitempty"`
}

func (p RoomPlayer) Active() bool {
	return p.LeftAt == nil
}

type HostChange struct {
	FromUserID string    `json:"from_user_id"`
	ToUserID   string    `json:"to_user_id"`
	Reason     string    `json:"reason"`
	ChangedAt  time.Time `json:"changed_at"`
}

type Game struct {
	ID               string     `json:"id"`
	RoomID           string     `json:"room_id"`
	GameType         GameType   `json:"game_type"`
	Stage            Stage      `json:"stage"`
	StageStartedAt   time.Time  `json:"stage_started_at"`
	StageDeadlineAt  *time.Time `json:"stage_deadline_at,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	FinalAlgorithmID string     `json:"final_algorithm_id,omitempty"`
}

// RemainingMS is measured against now; callers pass the same instant they stamp events with.
func (g Game) RemainingMS(now time.Time) int64 {
	if g.StageDeadlineAt == nil {
		return 0
	}
	left := g.StageDeadlineAt.Sub(now)
	if left < 0 {
		return 0
	}
	return left.Milliseconds()
}

type Result string

const (
	ResultWin  Result = "WIN"
	ResultLose Result = "LOSE"
	ResultDraw Result = "DRAW"
)

type GamePlayer struct {
	GameID     string    `json:"game_id"`
	UserID     string    `json:"user_id"`
	PreScore   int64     `json:"pre_score"`
	PreCoin    int64     `json:"pre_coin"`
	PreExp     float64   `json:"pre_exp"`
	JoinedAt   time.Time `json:"joined_at"`
	ScoreDelta *int64    `json:"score_delta,omitempty"`
	CoinDelta  *int64    `json:"coin_delta,omitempty"`
	ExpDelta   *float64  `json:"exp_delta,omitempty"`
	Result     *Result   `json:"result,omitempty"`
	RankInGame *int      `json:"rank_in_game,omitempty"`
	Solved     *bool     `json:"solved,omitempty"`
}

func (p GamePlayer) Settled() bool {
	return p.Result != nil
}

// Settlement carries the write-once outcome applied to a GamePlayer.
type Settlement struct {
	UserID     string
	ScoreDelta int64
	CoinDelta  int64
	ExpDelta   float64
	Result     Result
	Rank       int
	Solved     bool
}

// Apply sets the outcome fields. It is a no-op when the player was already settled.
func (p *GamePlayer) Apply(s Settlement) bool {
	if p.Settled() {
		return false
	}
	score, coin, exp := s.ScoreDelta, s.CoinDelta, s.ExpDelta
	result, rank, solved := s.Result, s.Rank, s.Solved
	p.ScoreDelta = &score
	p.CoinDelta = &coin
	p.ExpDelta = &exp
	p.Result = &result
	p.RankInGame = &rank
	p.Solved = &solved
	return true
}

type GameBan struct {
	ID          string    `json:"id"`
	GameID      string    `json:"game_id"`
	UserID      string    `json:"user_id"`
	AlgorithmID string    `json:"algorithm_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type GamePick struct {
	ID          string    `json:"id"`
	GameID      string    `json:"game_id"`
	UserID      string    `json:"user_id"`
	AlgorithmID string    `json:"algorithm_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type AssetKind string

const (
	AssetItem  AssetKind = "ITEM"
	AssetSpell AssetKind = "SPELL"
)

type ActiveEffect struct {
	ID           string    `json:"id"`
	GameID       string    `json:"game_id"`
	TargetUserID string    `json:"target_user_id"`
	SourceUserID string    `json:"source_user_id"`
	SourceID     string    `json:"source_id"`
	Kind         AssetKind `json:"kind"`
	StartedAt    time.Time `json:"started_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	// Removed is set by whoever claims the removal; only that caller notifies.
	Removed bool `json:"removed,omitempty"`
}

func (e ActiveEffect) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

type TypingStatus struct {
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Heartbeat struct {
	UserID string    `json:"user_id"`
	SeenAt time.Time `json:"seen_at"`
}

// Purchase is an append-only ledger row.
type Purchase struct {
	ID         string    `json:"id"`
	GameID     string    `json:"game_id"`
	UserID     string    `json:"user_id"`
	Kind       AssetKind `json:"kind"`
	RefID      string    `json:"ref_id"`
	Quantity   int       `json:"quantity"`
	UnitPrice  int64     `json:"unit_price"`
	TotalPrice int64     `json:"total_price"`
	CreatedAt  time.Time `json:"created_at"`
}

// Usage is an append-only ledger row.
type Usage struct {
	ID         string    `json:"id"`
	GameID     string    `json:"game_id"`
	FromUserID string    `json:"from_user_id"`
	ToUserID   string    `json:"to_user_id"`
	Kind       AssetKind `json:"kind"`
	RefID      string    `json:"ref_id"`
	CreatedAt  time.Time `json:"created_at"`
}

const SubmissionAccepted = "ACCEPTED"

type Submission struct {
	ID          string
	GameID      string
	UserID      string
	AlgorithmID string
	Status      string
	ElapsedMS   int64
	CreatedAt   time.Time
}

// DefaultScore is the rating a user starts from.
const DefaultScore int64 = 1000

// PlayerAggregate is the durable per-user score/coin/exp row.
type PlayerAggregate struct {
	UserID       string
	Name         string
	Score        int64
	Coin         int64
	Exp          float64
	ActiveGameID string
}
