package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultSnapshotPattern = "toptraded_*"
	DefaultKeep            = 2
	DefaultGracePeriod     = 5 * time.Second
)

var DefaultTempPatterns = []string{"*.tmp", "*.bak"}

type Config struct {
	Version       int                  `mapstructure:"version"`
	Telegram      TelegramConfig       `mapstructure:"telegram"`
	Service       ServiceConfig        `mapstructure:"service"`
	Storage       StorageConfig        `mapstructure:"storage"`
	Cleanup       CleanupConfig        `mapstructure:"cleanup"`
	Archive       *ArchiveConfig       `mapstructure:"archive"`
	Notifications []NotificationConfig `mapstructure:"notifications"`
	RunLog        RunLogConfig         `mapstructure:"runlog"`
}

// TelegramConfig is the bot's own credential and destination: the channel
// the supervised process posts into, reused for operational notifications.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	ThreadID string `mapstructure:"thread_id"`
}

type ServiceConfig struct {
	Name        string            `mapstructure:"name"`
	ExecStart   string            `mapstructure:"exec_start"`
	WorkingDir  string            `mapstructure:"working_dir"`
	User        string            `mapstructure:"user"`
	Environment map[string]string `mapstructure:"environment"`
	GracePeriod time.Duration     `mapstructure:"grace_period"`
}

type StorageConfig struct {
	Dir string `mapstructure:"dir"`
}

type CleanupConfig struct {
	SnapshotPattern string   `mapstructure:"snapshot_pattern"`
	Keep            int      `mapstructure:"keep"`
	TempPatterns    []string `mapstructure:"temp_patterns"`
	Schedule        string   `mapstructure:"schedule"`
}

type ArchiveConfig struct {
	S3          S3Config         `mapstructure:"s3"`
	Compression bool             `mapstructure:"compression"`
	Encryption  EncryptionConfig `mapstructure:"encryption"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type EncryptionConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Password string `mapstructure:"password"`
}

type NotificationConfig struct {
	Type   string              `mapstructure:"type"`
	On     []string            `mapstructure:"on"`
	Config NotificationDetails `mapstructure:"config"`
}

type NotificationDetails struct {
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type RunLogConfig struct {
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	expandConfig(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Cleanup.SnapshotPattern == "" {
		cfg.Cleanup.SnapshotPattern = DefaultSnapshotPattern
	}
	if cfg.Cleanup.Keep == 0 {
		cfg.Cleanup.Keep = DefaultKeep
	}
	if len(cfg.Cleanup.TempPatterns) == 0 {
		cfg.Cleanup.TempPatterns = append([]string(nil), DefaultTempPatterns...)
	}
	if cfg.Service.GracePeriod == 0 {
		cfg.Service.GracePeriod = DefaultGracePeriod
	}
}

// expandConfig resolves ${VAR} references so secrets can live in the
// environment instead of the config file.
func expandConfig(cfg *Config) {
	cfg.Telegram.BotToken = os.ExpandEnv(cfg.Telegram.BotToken)
	cfg.Telegram.ChatID = os.ExpandEnv(cfg.Telegram.ChatID)
	cfg.Telegram.ThreadID = os.ExpandEnv(cfg.Telegram.ThreadID)

	cfg.Service.Name = os.ExpandEnv(cfg.Service.Name)
	cfg.Service.ExecStart = os.ExpandEnv(cfg.Service.ExecStart)
	cfg.Service.WorkingDir = os.ExpandEnv(cfg.Service.WorkingDir)
	cfg.Service.User = os.ExpandEnv(cfg.Service.User)
	for k, v := range cfg.Service.Environment {
		cfg.Service.Environment[k] = os.ExpandEnv(v)
	}

	cfg.Storage.Dir = os.ExpandEnv(cfg.Storage.Dir)
	cfg.Cleanup.SnapshotPattern = os.ExpandEnv(cfg.Cleanup.SnapshotPattern)
	cfg.Cleanup.Schedule = os.ExpandEnv(cfg.Cleanup.Schedule)

	if cfg.Archive != nil {
		s3 := &cfg.Archive.S3
		s3.Bucket = os.ExpandEnv(s3.Bucket)
		s3.Region = os.ExpandEnv(s3.Region)
		s3.Prefix = os.ExpandEnv(s3.Prefix)
		s3.AccessKey = os.ExpandEnv(s3.AccessKey)
		s3.SecretKey = os.ExpandEnv(s3.SecretKey)
		cfg.Archive.Encryption.Password = os.ExpandEnv(cfg.Archive.Encryption.Password)
	}

	for i := range cfg.Notifications {
		nt := &cfg.Notifications[i]
		nt.Type = os.ExpandEnv(nt.Type)
		nt.Config.URL = os.ExpandEnv(nt.Config.URL)
		for k, v := range nt.Config.Headers {
			nt.Config.Headers[k] = os.ExpandEnv(v)
		}
	}

	cfg.RunLog.Path = os.ExpandEnv(cfg.RunLog.Path)
}
