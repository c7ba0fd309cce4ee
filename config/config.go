package config

import (
	"fmt"
	"strings"
	"time"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log         Logger         `mapstructure:"logger"`
	DB          Database       `mapstructure:"database"`
	API         API            `mapstructure:"api"`
	Scheduler   Scheduler      `mapstructure:"scheduler"`
	Cache       Cache          `mapstructure:"cache"`
	Kucoin      Kucoin         `mapstructure:"kucoin"`
	Executor    Executor       `mapstructure:"executor"`
	Scanner     Scanner        `mapstructure:"scanner"`
	TP          TP             `mapstructure:"tp"`
	SessionBias SessionBias    `mapstructure:"session_bias"`
	Storage     Storage        `mapstructure:"storage"`
	Telegram    TelegramConfig `mapstructure:"telegram"`
}

type Logger struct {
	Level      string `mapstructure:"level" validate:"required"`
	Encoding   string `mapstructure:"encoding" validate:"oneof=json console"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

type Database struct {
	Enabled         bool   `mapstructure:"enabled"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type API struct {
	Port int `mapstructure:"port" validate:"gt=0"`
}

// Scheduler holds cron expressions (seconds field enabled) for each background job.
type Scheduler struct {
	MarketScanCron      string        `mapstructure:"market_scan_cron"`
	PositionMonitorCron string        `mapstructure:"position_monitor_cron"`
	CleanUpCron         string        `mapstructure:"clean_up_cron"`
	TimeoutDuration     time.Duration `mapstructure:"timeout_duration"`
	FeedRetention       time.Duration `mapstructure:"feed_retention"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	TATTL             time.Duration `mapstructure:"ta_ttl"`
}

type Kucoin struct {
	BaseURL          string        `mapstructure:"base_url" validate:"required,url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRequestPerMin int           `mapstructure:"max_request_per_min" validate:"gt=0"`
	WeightQuota      int           `mapstructure:"weight_quota" validate:"gt=0"`
	QuotaWindow      time.Duration `mapstructure:"quota_window"`
	RetryCount       int           `mapstructure:"retry_count"`
}

type Executor struct {
	Mode             string        `mapstructure:"mode" validate:"oneof=paper http"`
	BaseURL          string        `mapstructure:"base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	PaperBalanceUSDT float64       `mapstructure:"paper_balance_usdt"`
}

type Scanner struct {
	Active           bool          `mapstructure:"active"`
	AutoExecute      bool          `mapstructure:"auto_execute"`
	TopN             int           `mapstructure:"top_n"`
	Watchlist        []string      `mapstructure:"watchlist"`
	MaxConcurrency   int           `mapstructure:"max_concurrency" validate:"gt=0"`
	MinConfidence    float64       `mapstructure:"min_confidence"`
	MaxQuoteVolume   float64       `mapstructure:"max_quote_volume"`
	Majors           []string      `mapstructure:"majors"`
	Memes            []string      `mapstructure:"memes"`
	Denylist         []string      `mapstructure:"denylist"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	SkipCooldown     time.Duration `mapstructure:"skip_cooldown"`
	MarginPerTrade   float64       `mapstructure:"margin_per_trade"`
	Leverage         float64       `mapstructure:"leverage"`
	MaxOpenPositions int           `mapstructure:"max_open_positions"`
	MoverChangePct   float64       `mapstructure:"mover_change_pct"`
}

type TPStep struct {
	Roi  float64 `mapstructure:"roi"`
	Take float64 `mapstructure:"take"`
}

type TP struct {
	Policy                string        `mapstructure:"policy" validate:"oneof=ladder single"`
	Steps                 []TPStep      `mapstructure:"steps"`
	StepPct               float64       `mapstructure:"step_pct"`
	TakeFraction          float64       `mapstructure:"take_fraction"`
	MaxSteps              int           `mapstructure:"max_steps"`
	TrailDropPct          float64       `mapstructure:"trail_drop_pct"`
	MinExitConfidence     float64       `mapstructure:"min_exit_confidence"`
	EmitThrottle          time.Duration `mapstructure:"emit_throttle"`
	MinRemainderContracts float64       `mapstructure:"min_remainder_contracts"`
	MarginFallbackRatio   float64       `mapstructure:"margin_fallback_ratio"`
	ExecutorTimeout       time.Duration `mapstructure:"executor_timeout"`
	PartialTriggerRoi     float64       `mapstructure:"partial_trigger_roi"`
	PartialTakeFraction   float64       `mapstructure:"partial_take_fraction"`
	RoiDrawdownPct        float64       `mapstructure:"roi_drawdown_pct"`
}

// SessionBias is the time-of-day adjustment table for the confidence score.
type SessionBias struct {
	Asia        float64 `mapstructure:"asia"`
	London      float64 `mapstructure:"london"`
	Overlap     float64 `mapstructure:"overlap"`
	NewYork     float64 `mapstructure:"new_york"`
	LateSession float64 `mapstructure:"late_session"`
	Weekend     float64 `mapstructure:"weekend"`
}

type Storage struct {
	StatePath string `mapstructure:"state_path"`
}

type TelegramConfig struct {
	BotToken                  string        `mapstructure:"bot_token"`
	ChatID                    int64         `mapstructure:"chat_id"`
	TimeoutDuration           time.Duration `mapstructure:"timeout_duration"`
	MaxGlobalRequestPerSecond int           `mapstructure:"max_global_request_per_second"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("api.port", 8080)

	v.SetDefault("scheduler.market_scan_cron", "*/30 * * * * *")
	v.SetDefault("scheduler.position_monitor_cron", "*/5 * * * * *")
	v.SetDefault("scheduler.clean_up_cron", "0 0 3 * * *")
	v.SetDefault("scheduler.timeout_duration", 25*time.Second)
	v.SetDefault("scheduler.feed_retention", 7*24*time.Hour)

	v.SetDefault("cache.default_expiration", 5*time.Minute)
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)
	v.SetDefault("cache.ta_ttl", 60*time.Second)

	v.SetDefault("kucoin.base_url", "https://api-futures.kucoin.com")
	v.SetDefault("kucoin.timeout", 10*time.Second)
	v.SetDefault("kucoin.max_request_per_min", 600)
	v.SetDefault("kucoin.weight_quota", 2000)
	v.SetDefault("kucoin.quota_window", 30*time.Second)
	v.SetDefault("kucoin.retry_count", 2)

	v.SetDefault("executor.mode", "paper")
	v.SetDefault("executor.timeout", 10*time.Second)
	v.SetDefault("executor.paper_balance_usdt", 1000.0)

	v.SetDefault("scanner.active", true)
	v.SetDefault("scanner.auto_execute", false)
	v.SetDefault("scanner.top_n", 30)
	v.SetDefault("scanner.max_concurrency", 4)
	v.SetDefault("scanner.min_confidence", 70.0)
	v.SetDefault("scanner.max_quote_volume", 20_000_000.0)
	v.SetDefault("scanner.majors", []string{"XBT", "BTC", "ETH", "SOL", "BNB", "XRP", "ADA", "AVAX", "LINK", "LTC"})
	v.SetDefault("scanner.memes", []string{"DOGE", "SHIB", "PEPE", "WIF", "BONK", "FLOKI", "1000PEPE", "1000BONK"})
	v.SetDefault("scanner.denylist", []string{`(?i)^TEST`, `(?i)^DEMO`, `(?i)^MOCK`, `(?i)^(NULL|UNDEFINED|NAN)$`, `^[0-9]+$`})
	v.SetDefault("scanner.cache_ttl", 15*time.Second)
	v.SetDefault("scanner.skip_cooldown", 15*time.Second)
	v.SetDefault("scanner.margin_per_trade", 20.0)
	v.SetDefault("scanner.leverage", 5.0)
	v.SetDefault("scanner.max_open_positions", 5)
	v.SetDefault("scanner.mover_change_pct", 10.0)

	v.SetDefault("tp.policy", "ladder")
	v.SetDefault("tp.step_pct", 50.0)
	v.SetDefault("tp.take_fraction", 0.25)
	v.SetDefault("tp.max_steps", 4)
	v.SetDefault("tp.trail_drop_pct", 0.25)
	v.SetDefault("tp.min_exit_confidence", 60.0)
	v.SetDefault("tp.emit_throttle", 15*time.Second)
	v.SetDefault("tp.margin_fallback_ratio", 0.2)
	v.SetDefault("tp.executor_timeout", 10*time.Second)
	v.SetDefault("tp.partial_trigger_roi", 100.0)
	v.SetDefault("tp.partial_take_fraction", 0.4)
	v.SetDefault("tp.roi_drawdown_pct", 0.30)

	v.SetDefault("session_bias.asia", -2.0)
	v.SetDefault("session_bias.london", 2.0)
	v.SetDefault("session_bias.overlap", 3.0)
	v.SetDefault("session_bias.new_york", 1.0)
	v.SetDefault("session_bias.late_session", -3.0)
	v.SetDefault("session_bias.weekend", -3.0)

	v.SetDefault("storage.state_path", "./data/tracker")

	v.SetDefault("telegram.timeout_duration", 10*time.Second)
	v.SetDefault("telegram.max_global_request_per_second", 20)
}

// Load reads config.yaml (or the file at path) plus environment overrides.
func Load(path ...string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if len(path) > 0 && path[0] != "" {
		v.SetConfigFile(path[0])
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := goValidator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Executor.Mode == "http" && c.Executor.BaseURL == "" {
		return fmt.Errorf("invalid configuration: executor.base_url is required in http mode")
	}
	return nil
}
