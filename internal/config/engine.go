package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// EngineConfig carries the session engine timing and economy constants.
type EngineConfig struct {
	StageTick  time.Duration `env:"STAGE_TICK" envDefault:"1s"`
	EffectTick time.Duration `env:"EFFECT_TICK" envDefault:"1s"`

	BanDuration  time.Duration `env:"BAN_DURATION" envDefault:"60s"`
	PickDuration time.Duration `env:"PICK_DURATION" envDefault:"60s"`
	ShopDuration time.Duration `env:"SHOP_DURATION" envDefault:"120s"`
	PlayDuration time.Duration `env:"PLAY_DURATION" envDefault:"1800s"`

	InitialCoin int64 `env:"INITIAL_COIN" envDefault:"3000"`
	MaxItems    int   `env:"MAX_ITEMS" envDefault:"3"`
	MaxSpells   int   `env:"MAX_SPELLS" envDefault:"2"`

	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"6h"`
	TypingTTL    time.Duration `env:"TYPING_TTL" envDefault:"5s"`
	HeartbeatTTL time.Duration `env:"HEARTBEAT_TTL" envDefault:"30s"`
	EffectGrace  time.Duration `env:"EFFECT_GRACE" envDefault:"5s"`

	NormalCoinReward int64   `env:"NORMAL_COIN_REWARD" envDefault:"50"`
	NormalExpReward  float64 `env:"NORMAL_EXP_REWARD" envDefault:"20"`

	FlushRetryMaxBackoff time.Duration `env:"FLUSH_RETRY_MAX_BACKOFF" envDefault:"1m"`
}

func LoadEngine() (EngineConfig, error) {
	var cfg EngineConfig
	err := env.Parse(&cfg)
	return cfg, err
}
