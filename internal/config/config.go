package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Backup   BackupConfig   `mapstructure:"backup"`
	S3       S3Config       `mapstructure:"s3"`
	Rsync    RsyncConfig    `mapstructure:"rsync"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Restore  RestoreConfig  `mapstructure:"restore"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type BackupConfig struct {
	Path          string `mapstructure:"path"`
	Schedule      string `mapstructure:"schedule"`
	RetentionDays int    `mapstructure:"retention_days"`
}

type S3Config struct {
	Enabled       bool   `mapstructure:"enabled"`
	Bucket        string `mapstructure:"bucket"`
	Region        string `mapstructure:"region"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Endpoint      string `mapstructure:"endpoint"`
	Prefix        string `mapstructure:"prefix"`
	RetentionDays int    `mapstructure:"retention_days"`
}

type RsyncConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Host          string `mapstructure:"host"`
	User          string `mapstructure:"user"`
	Port          int    `mapstructure:"port"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// RestoreConfig carries the automated-restore parameters.
type RestoreConfig struct {
	Source   string `mapstructure:"source"`
	Folder   string `mapstructure:"folder"`
	Type     string `mapstructure:"type"`
	Database string `mapstructure:"database"`
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"app.log_level": "LOG_LEVEL",
	"app.log_file":  "LOG_FILE",

	"postgres.host":     "PGHOST",
	"postgres.port":     "PGPORT",
	"postgres.user":     "PGUSER",
	"postgres.password": "PGPASSWORD",

	"backup.path":           "BACKUP_PATH",
	"backup.schedule":       "BACKUP_SCHEDULE",
	"backup.retention_days": "LOCAL_RETENTION_DAYS",

	"s3.enabled":        "S3_ENABLED",
	"s3.bucket":         "S3_BUCKET",
	"s3.region":         "S3_REGION",
	"s3.access_key":     "S3_ACCESS_KEY",
	"s3.secret_key":     "S3_SECRET_KEY",
	"s3.endpoint":       "S3_ENDPOINT",
	"s3.prefix":         "S3_PREFIX",
	"s3.retention_days": "S3_RETENTION_DAYS",

	"rsync.enabled":        "RSYNC_ENABLED",
	"rsync.host":           "RSYNC_HOST",
	"rsync.user":           "RSYNC_USER",
	"rsync.port":           "RSYNC_PORT",
	"rsync.path":           "RSYNC_PATH",
	"rsync.retention_days": "RSYNC_RETENTION_DAYS",

	"telegram.enabled":   "TELEGRAM_ENABLED",
	"telegram.bot_token": "TELEGRAM_BOT_TOKEN",
	"telegram.chat_id":   "TELEGRAM_CHAT_ID",

	"restore.source":   "RESTORE_SOURCE",
	"restore.folder":   "RESTORE_FOLDER",
	"restore.type":     "RESTORE_TYPE",
	"restore.database": "RESTORE_DATABASE",
}

// Load builds the configuration from environment variables, optionally
// layered over a yaml file when path is non-empty.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("app.name", "pg-backups")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("backup.path", "/backups")
	v.SetDefault("backup.schedule", "0 0 2 * * *")
	v.SetDefault("backup.retention_days", 1)
	v.SetDefault("s3.prefix", "postgres-backups")
	v.SetDefault("s3.retention_days", 7)
	v.SetDefault("rsync.port", 22)
	v.SetDefault("rsync.retention_days", 30)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings every run depends on. Destination-specific
// settings are checked separately; one bad destination only disables itself.
func (c *Config) Validate() error {
	if c.Postgres.Host == "" {
		return fmt.Errorf("PGHOST is required")
	}
	if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
		return fmt.Errorf("PGPORT %d is out of range", c.Postgres.Port)
	}
	if c.Backup.Path == "" {
		return fmt.Errorf("BACKUP_PATH is required")
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("LOCAL_RETENTION_DAYS must not be negative")
	}
	return nil
}

func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required")
	}
	if c.Region == "" && c.Endpoint == "" {
		return fmt.Errorf("one of S3_REGION or S3_ENDPOINT is required")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required")
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("S3_RETENTION_DAYS must not be negative")
	}
	return nil
}

func (c *RsyncConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("RSYNC_HOST is required")
	}
	if c.User == "" {
		return fmt.Errorf("RSYNC_USER is required")
	}
	if c.Path == "" {
		return fmt.Errorf("RSYNC_PATH is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("RSYNC_PORT %d is out of range", c.Port)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("RSYNC_RETENTION_DAYS must not be negative")
	}
	return nil
}

func (c *RestoreConfig) Automated() bool {
	return c.Source != "" && c.Folder != "" && c.Type != ""
}
