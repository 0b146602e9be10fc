package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Game      GameConfig      `mapstructure:"game"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Sim       SimConfig       `mapstructure:"sim"`
	Retention RetentionConfig `mapstructure:"retention"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

// GameConfig holds the round engine knobs. Monetary values are plain numbers
// here and converted to decimals at wiring time.
type GameConfig struct {
	Asset         string        `mapstructure:"asset"`
	RoundDuration time.Duration `mapstructure:"round_duration"`
	LockWindow    time.Duration `mapstructure:"lock_window"`

	MinBet    float64 `mapstructure:"min_bet"`
	MaxBet    float64 `mapstructure:"max_bet"`
	Liquidity float64 `mapstructure:"liquidity"`

	// FeeRate is charged on the stake and debited at submission.
	FeeRate float64 `mapstructure:"fee_rate"`

	// AcceptanceFloor is the equalizer's minimum accepted share, 0 => 0.7.
	AcceptanceFloor float64 `mapstructure:"acceptance_floor"`

	// LossRefundChance keeps the legacy partial-refund-on-loss behavior
	// available as an explicit game-design choice. Off by default.
	LossRefundChance float64 `mapstructure:"loss_refund_chance"`
	LossRefundRatio  float64 `mapstructure:"loss_refund_ratio"`

	StartingBalance float64 `mapstructure:"starting_balance"`

	// PriceFreshness is how old a feed sample may be before phase
	// transitions stall waiting for a live price.
	PriceFreshness time.Duration `mapstructure:"price_freshness"`
}

type FeedConfig struct {
	// Mode selects the price source: "binance" or "synthetic".
	Mode      string          `mapstructure:"mode"`
	WSURL     string          `mapstructure:"ws_url"`
	Symbol    string          `mapstructure:"symbol"`
	Synthetic SyntheticConfig `mapstructure:"synthetic"`
}

type SyntheticConfig struct {
	StartPrice float64       `mapstructure:"start_price"`
	StepPct    float64       `mapstructure:"step_pct"`
	Interval   time.Duration `mapstructure:"interval"`
	Seed       int64         `mapstructure:"seed"`
}

type SimConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Traders  int           `mapstructure:"traders"`
	MinDelay time.Duration `mapstructure:"min_delay"`
	MaxDelay time.Duration `mapstructure:"max_delay"`
	Seed     int64         `mapstructure:"seed"`
}

type RetentionConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Schedule string        `mapstructure:"schedule"`
	TradeTTL time.Duration `mapstructure:"trade_ttl"`
	RoundTTL time.Duration `mapstructure:"round_ttl"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DUEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")

	v.SetDefault("game.asset", "BTCUSDT")
	v.SetDefault("game.round_duration", "60s")
	v.SetDefault("game.lock_window", "5s")
	v.SetDefault("game.min_bet", 1)
	v.SetDefault("game.max_bet", 1000)
	v.SetDefault("game.liquidity", 10000)
	v.SetDefault("game.fee_rate", 0.05)
	v.SetDefault("game.acceptance_floor", 0.7)
	v.SetDefault("game.loss_refund_chance", 0)
	v.SetDefault("game.loss_refund_ratio", 0.5)
	v.SetDefault("game.starting_balance", 1000)
	v.SetDefault("game.price_freshness", "10s")

	v.SetDefault("feed.mode", "binance")
	v.SetDefault("feed.ws_url", "wss://stream.binance.com:9443/ws")
	v.SetDefault("feed.symbol", "btcusdt")
	v.SetDefault("feed.synthetic.start_price", 64000)
	v.SetDefault("feed.synthetic.step_pct", 0.05)
	v.SetDefault("feed.synthetic.interval", "1s")
	v.SetDefault("feed.synthetic.seed", 0)

	v.SetDefault("sim.enabled", true)
	v.SetDefault("sim.traders", 8)
	v.SetDefault("sim.min_delay", "5s")
	v.SetDefault("sim.max_delay", "20s")
	v.SetDefault("sim.seed", 0)

	v.SetDefault("retention.enabled", true)
	v.SetDefault("retention.schedule", "@every 1h")
	v.SetDefault("retention.trade_ttl", "720h")
	v.SetDefault("retention.round_ttl", "168h")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
