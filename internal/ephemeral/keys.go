package ephemeral

import "strings"

// Key namespace shared by every component that touches the ephemeral store.

const (
	RoomListVersionKey = "room:list:version"
	RankingScoreKey    = "ranking:score"
	gamePrefix         = "game:"
)

func RoomKey(roomID string) string        { return "room:" + roomID }
func RoomPlayersKey(roomID string) string { return "room:" + roomID + ":players" }
func RoomKicksKey(roomID string) string   { return "room:" + roomID + ":kicks" }
func RoomHostHistoryKey(roomID string) string {
	return "room:" + roomID + ":host_history"
}

func GameKey(gameID string) string        { return gamePrefix + gameID }
func GamePlayersKey(gameID string) string { return gamePrefix + gameID + ":players" }
func GameBansKey(gameID string) string    { return gamePrefix + gameID + ":bans" }
func GamePicksKey(gameID string) string   { return gamePrefix + gameID + ":picks" }

func EffectKey(gameID, effectID string) string { return "effect:" + gameID + ":" + effectID }
func EffectPrefix(gameID string) string        { return "effect:" + gameID + ":" }

func TypingKey(roomID, userID string) string { return "typing:" + roomID + ":" + userID }
func TypingPrefix(roomID string) string      { return "typing:" + roomID + ":" }
func HeartbeatKey(userID string) string      { return "heartbeat:" + userID }

// GameKeyPattern matches game records and their sub-collections; use
// GameIDFromKey to keep only the records.
const GameKeyPattern = gamePrefix + "*"

// GameIDFromKey returns the id for a game:{id} record key and false for
// sub-collection keys such as game:{id}:players.
func GameIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, gamePrefix) {
		return "", false
	}
	id := strings.TrimPrefix(key, gamePrefix)
	if id == "" || strings.Contains(id, ":") {
		return "", false
	}
	return id, true
}

// GameFootprint lists every fixed key owned by a game. Effect keys are
// discovered by prefix.
func GameFootprint(gameID string) []string {
	return []string{GameKey(gameID), GamePlayersKey(gameID), GameBansKey(gameID), GamePicksKey(gameID)}
}

func RoomFootprint(roomID string) []string {
	return []string{RoomKey(roomID), RoomPlayersKey(roomID), RoomKicksKey(roomID), RoomHostHistoryKey(roomID)}
}

// globEscape escapes glob metacharacters so a literal prefix can be used
// in a SCAN MATCH pattern.
func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
