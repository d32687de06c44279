package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"algo-arena/internal/domain"
	"algo-arena/internal/metrics"
	"algo-arena/internal/notify"

	"github.com/rs/zerolog/log"
)

const schedulerName = "stages"

// errStale aborts a transition whose source stage was already left.
var errStale = errors.New("stage moved")

type retryState struct {
	attempts int
	next     time.Time
}

// Run ticks every interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick advances every active game once. Each game is independent: a
// failure is logged and the sweep continues.
func (s *Service) Tick(ctx context.Context) {
	started := time.Now()
	defer metrics.ObserveTick(schedulerName, started)

	ids, err := s.games.ActiveIDs(ctx)
	if err != nil {
		metrics.SchedulerErrors.WithLabelValues(schedulerName).Inc()
		log.Error().Err(err).Msg("stage sweep: list games")
		return
	}
	metrics.ActiveGames.Set(float64(len(ids)))
	now := s.Clock()
	for _, id := range ids {
		if err := s.advance(ctx, id, now); err != nil {
			metrics.SchedulerErrors.WithLabelValues(schedulerName).Inc()
			log.Error().Err(err).Str("game_id", id).Msg("stage advance failed")
		}
	}
}

func (s *Service) advance(ctx context.Context, gameID string, now time.Time) error {
	g, ok, err := s.games.Get(ctx, gameID)
	if err != nil || !ok {
		return err
	}
	switch {
	case g.Stage == domain.StageFinished:
		return s.retryFlush(ctx, gameID, now)
	case g.Stage == domain.StageLobby:
		_, err := s.transition(ctx, g, domain.FirstStage(g.GameType), now)
		return err
	case g.StageDeadlineAt == nil || now.Before(*g.StageDeadlineAt):
		return nil
	case g.Stage == domain.StagePlay:
		return s.finish(ctx, g, now)
	default:
		next, ok := domain.NextStage(g.GameType, g.Stage)
		if !ok {
			return fmt.Errorf("stage %s has no successor for %s", g.Stage, g.GameType)
		}
		_, err := s.transition(ctx, g, next, now)
		return err
	}
}

// transition moves g from its current stage to to in one atomic update and
// notifies. It reports false when another caller already moved the game.
func (s *Service) transition(ctx context.Context, g domain.Game, to domain.Stage, now time.Time) (bool, error) {
	from := g.Stage
	if !domain.IsNextStage(g.GameType, from, to) {
		return false, fmt.Errorf("illegal transition %s -> %s", from, to)
	}
	final, err := s.finalAlgorithm(ctx, g, to)
	if err != nil {
		return false, err
	}
	out, ok, err := s.games.Update(ctx, g.ID, func(cur *domain.Game) error {
		if cur.Stage != from {
			return errStale
		}
		cur.Stage = to
		cur.StageStartedAt = now
		cur.StageDeadlineAt = s.cfg.Durations.Deadline(to, now)
		if final != "" && cur.FinalAlgorithmID == "" {
			cur.FinalAlgorithmID = final
		}
		if to == domain.StageFinished && cur.FinishedAt == nil {
			finished := now
			cur.FinishedAt = &finished
		}
		return nil
	})
	if errors.Is(err, errStale) || (err == nil && !ok) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	metrics.StageTransitions.WithLabelValues(string(to)).Inc()
	log.Info().Str("game_id", g.ID).Str("from", string(from)).Str("stage", string(to)).Msg("stage changed")
	notify.Send(ctx, s.notifier, domain.NewStageEvent(out, now))
	return true, nil
}

// finalAlgorithm is decided when a game enters SHOP (ranked) or PLAY
// (normal): the most picked algorithm nobody banned, ties to the lowest id.
// Without picks a catalog algorithm is chosen from the game id.
func (s *Service) finalAlgorithm(ctx context.Context, g domain.Game, to domain.Stage) (string, error) {
	decide := (g.GameType == domain.GameTypeRanked && to == domain.StageShop) ||
		(g.GameType == domain.GameTypeNormal && to == domain.StagePlay)
	if !decide || g.FinalAlgorithmID != "" {
		return "", nil
	}
	bans, err := s.games.Bans(ctx, g.ID)
	if err != nil {
		return "", err
	}
	picks, err := s.games.Picks(ctx, g.ID)
	if err != nil {
		return "", err
	}
	return chooseAlgorithm(g.ID, bans, picks, s.catalogIDs()), nil
}

func (s *Service) catalogIDs() []string {
	if s.catalog == nil {
		return nil
	}
	algos := s.catalog.Algorithms()
	ids := make([]string, 0, len(algos))
	for _, a := range algos {
		ids = append(ids, a.ID)
	}
	return ids
}

func chooseAlgorithm(gameID string, bans []domain.GameBan, picks []domain.GamePick, catalogIDs []string) string {
	banned := map[string]bool{}
	for _, b := range bans {
		banned[b.AlgorithmID] = true
	}
	counts := map[string]int{}
	for _, p := range picks {
		if !banned[p.AlgorithmID] {
			counts[p.AlgorithmID]++
		}
	}
	best, bestN := "", 0
	for id, n := range counts {
		if n > bestN || (n == bestN && id < best) {
			best, bestN = id, n
		}
	}
	if best != "" {
		return best
	}
	open := make([]string, 0, len(catalogIDs))
	for _, id := range catalogIDs {
		if !banned[id] {
			open = append(open, id)
		}
	}
	if len(open) == 0 {
		return ""
	}
	sort.Strings(open)
	h := fnv.New32a()
	_, _ = h.Write([]byte(gameID))
	return open[int(h.Sum32()%uint32(len(open)))]
}

// finish settles the players, closes the game and flushes it. Settlement
// is written first and is write-once, so a repeated finish settles nothing
// twice; only the caller that wins the PLAY -> FINISHED update notifies
// and flushes.
func (s *Service) finish(ctx context.Context, g domain.Game, now time.Time) error {
	subs, err := s.durable.ListSubmissions(ctx, g.ID)
	if err != nil {
		return fmt.Errorf("submissions: %w", err)
	}
	players, err := s.games.Players(ctx, g.ID)
	if err != nil {
		return fmt.Errorf("players: %w", err)
	}
	settlements := Settle(g.GameType, players, subs, s.cfg.Rewards)
	for _, set := range settlements {
		if _, _, err := s.games.UpdatePlayer(ctx, g.ID, set.UserID, func(p *domain.GamePlayer) error {
			p.Apply(set)
			return nil
		}); err != nil {
			return fmt.Errorf("settle %s: %w", set.UserID, err)
		}
	}
	moved, err := s.transition(ctx, g, domain.StageFinished, now)
	if err != nil || !moved {
		return err
	}
	notify.Send(ctx, s.notifier, domain.NewGameEvent(domain.EventGameFinished, g.ID, now, settlements))
	if err := s.flusher.FlushGame(ctx, g.ID); err != nil {
		s.scheduleRetry(g.ID, now)
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// retryFlush re-runs the idempotent flush for a FINISHED game still in the
// ephemeral store, backing off per game.
func (s *Service) retryFlush(ctx context.Context, gameID string, now time.Time) error {
	s.mu.Lock()
	st, ok := s.retries[gameID]
	s.mu.Unlock()
	if ok && now.Before(st.next) {
		return nil
	}
	if err := s.flusher.FlushGame(ctx, gameID); err != nil {
		s.scheduleRetry(gameID, now)
		return fmt.Errorf("flush retry: %w", err)
	}
	s.mu.Lock()
	delete(s.retries, gameID)
	s.mu.Unlock()
	if ok {
		log.Info().Str("game_id", gameID).Int("attempts", st.attempts).Msg("flush retry succeeded")
	}
	return nil
}

func (s *Service) scheduleRetry(gameID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.retries[gameID]
	delay := s.cfg.FlushRetryMax
	if st.attempts < 20 {
		if d := s.cfg.FlushRetryBase << st.attempts; d < delay {
			delay = d
		}
	}
	st.attempts++
	st.next = now.Add(delay)
	s.retries[gameID] = st
}

// pendingRetry reports the next retry time for gameID, if any.
func (s *Service) pendingRetry(gameID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.retries[gameID]
	return st.next, ok
}
