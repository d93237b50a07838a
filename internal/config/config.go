package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken      string       `yaml:"discord_token"`
	GuildID           string       `yaml:"guild_id"`
	TriggerChannelID  string       `yaml:"trigger_channel_id"`
	CategoryID        string       `yaml:"category_id"`
	StorePath         string       `yaml:"store_path"`
	DatabasePath      string       `yaml:"database_path"`
	RoomNameTemplate  string       `yaml:"room_name_template"`
	GraceDelaySeconds int          `yaml:"grace_delay_seconds"`
	DefaultUserLimit  int          `yaml:"default_user_limit"`
	RetentionDays     int          `yaml:"retention_days"`
	LogLevel          string       `yaml:"log_level"`
	Log               LogConfig    `yaml:"log"`
	Health            HealthConfig `yaml:"health"`
}

type LogConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Console    bool   `yaml:"console"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

func DefaultConfig() Config {
	return Config{
		StorePath:         "/data/rooms.json",
		DatabasePath:      "/data/roomkeeper.db",
		RoomNameTemplate:  "{name}'s room",
		GraceDelaySeconds: 1,
		DefaultUserLimit:  0,
		RetentionDays:     14,
		LogLevel:          "info",
		Log: LogConfig{
			Path:       "./logs/roomkeeper.log",
			MaxSizeMB:  25,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Console:    true,
		},
		Health: HealthConfig{Enabled: false, Addr: ":8080"},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.GuildID == "" {
		return Config{}, errors.New("GUILD_ID is required")
	}
	if cfg.TriggerChannelID == "" {
		return Config{}, errors.New("TRIGGER_CHANNEL_ID is required")
	}
	if cfg.GraceDelaySeconds <= 0 {
		cfg.GraceDelaySeconds = 1
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.GuildID = envString("GUILD_ID", cfg.GuildID)
	cfg.TriggerChannelID = envString("TRIGGER_CHANNEL_ID", cfg.TriggerChannelID)
	cfg.CategoryID = envString("CATEGORY_ID", cfg.CategoryID)
	cfg.StorePath = envString("STORE_PATH", cfg.StorePath)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.RoomNameTemplate = envString("ROOM_NAME_TEMPLATE", cfg.RoomNameTemplate)
	cfg.GraceDelaySeconds = envInt("GRACE_DELAY_SECONDS", cfg.GraceDelaySeconds)
	cfg.DefaultUserLimit = envInt("DEFAULT_USER_LIMIT", cfg.DefaultUserLimit)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.Log.Path = envString("LOG_PATH", cfg.Log.Path)
	cfg.Log.Console = envBool("LOG_CONSOLE", cfg.Log.Console)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
}

// BuildLogger writes JSON to a size-rotated file and, optionally, console
// output for development.
func BuildLogger(level string, log LogConfig) (*zap.Logger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.MessageKey = "message"
	encoderCfg.LevelKey = "level"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := parseLevel(strings.ToLower(level))

	fileWriter := &lumberjack.Logger{
		Filename:   log.Path,
		MaxSize:    log.MaxSizeMB,
		MaxBackups: log.MaxBackups,
		MaxAge:     log.MaxAgeDays,
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(fileWriter), lvl),
	}
	if log.Console {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(os.Stdout), lvl))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
