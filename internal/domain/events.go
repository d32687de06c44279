package domain

import "time"

type EventType string

const (
	EventStageChanged       EventType = "stage-changed"
	EventBanSubmitted       EventType = "ban-submitted"
	EventPickSubmitted      EventType = "pick-submitted"
	EventItemPurchased      EventType = "item-purchased"
	EventSpellPurchased     EventType = "spell-purchased"
	EventItemEffectApplied  EventType = "item-effect-applied"
	EventItemEffectBlocked  EventType = "item-effect-blocked"
	EventSpellEffectApplied EventType = "spell-effect-applied"
	EventEffectRemoved      EventType = "effect-removed"
	EventInventorySync      EventType = "inventory-sync"
	EventGameFinished       EventType = "game-finished"

	EventRoomUpdated   EventType = "room-updated"
	EventPlayerJoined  EventType = "player-joined"
	EventPlayerLeft    EventType = "player-left"
	EventHostChanged   EventType = "host-changed"
	EventPlayerKicked  EventType = "player-kicked"
	EventPlayerReady   EventType = "player-ready"
	EventTyping        EventType = "typing"
	EventGameStarted   EventType = "game-started"
	EventPlayerOffline EventType = "player-disconnected"
)

const (
	RemovalExpired   = "EXPIRED"
	RemovalDispelled = "DISPELLED"
	RemovalCleansed  = "CLEANSED"
)

// Event is the envelope handed to the Notifier. Timestamp and RemainingMS
// are always derived from the same instant.
type Event struct {
	Type        EventType `json:"type"`
	Topic       string    `json:"topic"`
	GameID      string    `json:"game_id,omitempty"`
	RoomID      string    `json:"room_id,omitempty"`
	UserID      string    `json:"user_id,omitempty"`
	Timestamp   string    `json:"timestamp"`
	RemainingMS *int64    `json:"remaining_ms,omitempty"`
	Data        any       `json:"data,omitempty"`
}

func Timestamp(now time.Time) string {
	return now.UTC().Format(time.RFC3339Nano)
}

func GameTopic(gameID string) string { return "game:" + gameID }
func RoomTopic(roomID string) string { return "room:" + roomID }
func UserTopic(userID string) string { return "user:" + userID }

// NewGameEvent stamps an event for a game topic at now.
func NewGameEvent(t EventType, gameID string, now time.Time, data any) Event {
	return Event{Type: t, Topic: GameTopic(gameID), GameID: gameID, Timestamp: Timestamp(now), Data: data}
}

// NewStageEvent carries remaining time computed from the same now as the timestamp.
func NewStageEvent(g Game, now time.Time) Event {
	remaining := g.RemainingMS(now)
	ev := NewGameEvent(EventStageChanged, g.ID, now, map[string]any{
		"stage":             g.Stage,
		"game_type":         g.GameType,
		"stage_started_at":  Timestamp(g.StageStartedAt),
		"stage_deadline_at": deadlineString(g.StageDeadlineAt),
	})
	ev.RoomID = g.RoomID
	ev.RemainingMS = &remaining
	return ev
}

func deadlineString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return Timestamp(*t)
}

// NewUserEvent addresses a single player.
func NewUserEvent(t EventType, gameID, userID string, now time.Time, data any) Event {
	return Event{Type: t, Topic: UserTopic(userID), GameID: gameID, UserID: userID, Timestamp: Timestamp(now), Data: data}
}

// NewEffectRemovedEvent announces the removal of e on its game topic.
func NewEffectRemovedEvent(e ActiveEffect, reason string, now time.Time) Event {
	ev := NewGameEvent(EventEffectRemoved, e.GameID, now, map[string]any{
		"effect_id":      e.ID,
		"target_user_id": e.TargetUserID,
		"source_id":      e.SourceID,
		"kind":           e.Kind,
		"reason":         reason,
	})
	ev.UserID = e.TargetUserID
	return ev
}
