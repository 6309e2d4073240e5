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
	Cron      CronConfig      `mapstructure:"cron"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	OrderBook OrderBookConfig `mapstructure:"order_book"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
	// Storage selects the plan store backend: "postgres" or "memory".
	Storage string `mapstructure:"storage"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
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

type CronConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// DailyRun triggers ProcessScheduledPlans for the current business date.
	DailyRun string `mapstructure:"daily_run"`
	// RetrySweep triggers RetryFailedExecutions; the sweep is a no-op outside
	// the retry windows, so a frequent spec is safe.
	RetrySweep string `mapstructure:"retry_sweep"`
}

type SchedulerConfig struct {
	// CutoffTime is the daily hard stop for execution attempts, "HH:MM"
	// in the business timezone.
	CutoffTime        string        `mapstructure:"cutoff_time"`
	FirstRetryOffset  time.Duration `mapstructure:"first_retry_offset"`
	SecondRetryOffset time.Duration `mapstructure:"second_retry_offset"`
	MaxRetries        int           `mapstructure:"max_retries"`
	Timezone          string        `mapstructure:"timezone"`
}

type OrderBookConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Simulate replaces the HTTP gateway with the randomized simulator.
	Simulate            bool    `mapstructure:"simulate"`
	SimulateSuccessRate float64 `mapstructure:"simulate_success_rate"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.storage", "postgres")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.daily_run", "0 0 9 * * *")
	v.SetDefault("cron.retry_sweep", "0 */5 9-15 * * *")
	v.SetDefault("scheduler.cutoff_time", "15:00")
	v.SetDefault("scheduler.first_retry_offset", "2h")
	v.SetDefault("scheduler.second_retry_offset", "1h")
	v.SetDefault("scheduler.max_retries", 3)
	v.SetDefault("scheduler.timezone", "Asia/Kolkata")
	v.SetDefault("order_book.base_url", "http://localhost:9090")
	v.SetDefault("order_book.timeout", "15s")
	v.SetDefault("order_book.simulate", false)
	v.SetDefault("order_book.simulate_success_rate", 0.8)

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
