package store

type Algorithm struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Difficulty int    `json:"difficulty"`
}

type Item struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	DurationMS int64  `json:"duration_ms"`
}

type SpellEffect string

const (
	SpellShield  SpellEffect = "SHIELD"
	SpellCleanse SpellEffect = "CLEANSE"
	SpellBuff    SpellEffect = "BUFF"
)

type Spell struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Price      int64       `json:"price"`
	DurationMS int64       `json:"duration_ms"`
	Effect     SpellEffect `json:"effect"`
}
