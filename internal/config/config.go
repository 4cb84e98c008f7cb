package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"DipHunter/internal/collector"
	"DipHunter/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		// AdminChatID receives replies to bot commands only.
		AdminChatID string `yaml:"admin_chat_id"`
	} `yaml:"telegram"`
	Email struct {
		Host     string        `yaml:"host"`
		Port     int           `yaml:"port" default:"587" validate:"gte=1,lte=65535"`
		Username string        `yaml:"username"`
		Password string        `yaml:"password"`
		From     string        `yaml:"from" validate:"omitempty,email"`
		Timeout  time.Duration `yaml:"timeout" default:"10s"`
	} `yaml:"email"`
	DataSource struct {
		BaseURL      string        `yaml:"base_url" default:"https://api.binance.com" validate:"required,url"`
		Timeout      time.Duration `yaml:"timeout" default:"30s"`
		Retries      int           `yaml:"retries" default:"3" validate:"gte=0,lte=10"`
		RetryBackoff time.Duration `yaml:"retry_backoff" default:"1s"`
		PageLimit    int           `yaml:"page_limit" default:"1000" validate:"gte=1,lte=1000"`
	} `yaml:"data_source"`
	Notifications struct {
		// Retries is how many times a failed send is retried per channel.
		Retries      int           `yaml:"retries" default:"3" validate:"gte=0,lte=10"`
		RetryBackoff time.Duration `yaml:"retry_backoff" default:"1s"`
	} `yaml:"notifications"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Database struct {
		SQLitePath  string `yaml:"sqlite_path" default:"data/dip_hunter.db" validate:"required"`
		HistoryPath string `yaml:"history_path" default:"data/dip_hunter_history.db"`
	} `yaml:"database"`
	Cache struct {
		RedisAddr     string        `yaml:"redis_addr"`
		RedisPassword string        `yaml:"redis_password"`
		RedisDB       int           `yaml:"redis_db" default:"0"`
		Prefix        string        `yaml:"prefix" default:"diphunter"`
		KlinesTTL     time.Duration `yaml:"klines_ttl" default:"30s"`
		InputsTTL     time.Duration `yaml:"inputs_ttl" default:"24h"`
	} `yaml:"cache"`
	HTTP struct {
		Addr string `yaml:"addr" default:":8080"`
	} `yaml:"http"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	} `yaml:"log"`
	// ZeroFill lists indicator columns whose missing values read as zero.
	ZeroFill []string `yaml:"zero_fill"`
	Proxy    string   `yaml:"proxy"`
}

// ScheduleConfig holds the cron cadences of the batch jobs.
type ScheduleConfig struct {
	MinuteCron     string        `yaml:"minute_cron" default:"0 * * * * *" validate:"required"`
	FourHourCron   string        `yaml:"four_hour_cron" default:"0 0 */4 * * *" validate:"required"`
	DailyCron      string        `yaml:"daily_cron" default:"0 0 0 * * *" validate:"required"`
	AnalysisCron   string        `yaml:"analysis_cron" default:"0 5 * * * *" validate:"required"`
	ShortIntervals []string      `yaml:"short_intervals" default:"[\"1m\",\"3m\",\"5m\",\"15m\",\"30m\",\"1h\",\"2h\"]"`
	MisfireGrace   time.Duration `yaml:"misfire_grace" default:"30s"`
}

// Intervals lists every interval a job runs: the short intervals, 4h and 1d.
func (s ScheduleConfig) Intervals() []string {
	out := make([]string, 0, len(s.ShortIntervals)+2)
	out = append(out, s.ShortIntervals...)
	return append(out, "4h", "1d")
}

// Load fills defaults, then applies a .env file if present, the YAML config
// and environment overrides on top. Explicit zero values in the file stick.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	str := map[string]*string{
		"TELEGRAM_BOT_TOKEN":     &cfg.Telegram.BotToken,
		"TELEGRAM_ADMIN_CHAT_ID": &cfg.Telegram.AdminChatID,
		"SMTP_HOST":              &cfg.Email.Host,
		"SMTP_USERNAME":          &cfg.Email.Username,
		"SMTP_PASSWORD":          &cfg.Email.Password,
		"SMTP_FROM":              &cfg.Email.From,
		"BINANCE_BASE_URL":       &cfg.DataSource.BaseURL,
		"CRON_MINUTE":            &cfg.Schedule.MinuteCron,
		"CRON_FOUR_HOUR":         &cfg.Schedule.FourHourCron,
		"CRON_DAILY":             &cfg.Schedule.DailyCron,
		"CRON_ANALYSIS":          &cfg.Schedule.AnalysisCron,
		"SQLITE_PATH":            &cfg.Database.SQLitePath,
		"HISTORY_PATH":           &cfg.Database.HistoryPath,
		"REDIS_ADDR":             &cfg.Cache.RedisAddr,
		"REDIS_PASSWORD":         &cfg.Cache.RedisPassword,
		"HTTP_ADDR":              &cfg.HTTP.Addr,
		"LOG_LEVEL":              &cfg.Log.Level,
		"LOG_FORMAT":             &cfg.Log.Format,
		"HTTPS_PROXY":            &cfg.Proxy,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Email.Port = port
		}
	}
	if v := os.Getenv("NOTIFY_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Notifications.Retries = n
		}
	}
	if v := os.Getenv("MISFIRE_GRACE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Schedule.MisfireGrace = d
		}
	}
	if v := os.Getenv("SHORT_INTERVALS"); v != "" {
		cfg.Schedule.ShortIntervals = strings.Split(v, ",")
	}
}

var validate = validator.New()

// Validate checks field bounds and that every short interval parses.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return &model.ConfigurationError{Field: "config", Err: err}
	}
	if c.Email.Host != "" && c.Email.From == "" {
		return &model.ConfigurationError{Field: "email.from", Err: errors.New("required when email.host is set")}
	}
	for _, iv := range c.Schedule.ShortIntervals {
		if err := shortInterval(iv); err != nil {
			return &model.ConfigurationError{Field: "schedule.short_intervals", Err: err}
		}
	}
	return nil
}

// shortInterval accepts exchange intervals in minutes or hours only.
func shortInterval(iv string) error {
	if _, err := collector.ParseInterval(iv); err != nil {
		return err
	}
	if iv == "4h" {
		return errors.New("4h has its own job")
	}
	if u := iv[len(iv)-1]; u != 'm' && u != 'h' {
		return fmt.Errorf("short interval %q must be in minutes or hours", iv)
	}
	return nil
}
