package config

import (
	"errors"
	"strings"
	"testing"
)

func baseValidConfig() *Config {
	return &Config{
		Version: 1,
		Telegram: TelegramConfig{
			BotToken: "123456:abcdef",
			ChatID:   "-1001234567890",
		},
		Service: ServiceConfig{
			Name:      "solab-bot",
			ExecStart: "/usr/bin/python3 /opt/solab/main.py",
		},
		Storage: StorageConfig{
			Dir: "/opt/solab/data",
		},
		Cleanup: CleanupConfig{
			SnapshotPattern: "toptraded_*",
			Keep:            2,
			TempPatterns:    []string{"*.tmp", "*.bak"},
			Schedule:        "*/30 * * * *",
		},
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	cfg := baseValidConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
}

func TestValidateRequiresBotToken(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Telegram.BotToken = ""

	err := cfg.Validate()
	if !errors.Is(err, ErrConfigMissing) {
		t.Fatalf("expected ErrConfigMissing, got: %v", err)
	}
	if !strings.Contains(err.Error(), "bot_token") {
		t.Fatalf("expected bot_token error, got: %v", err)
	}
}

func TestValidateRequiresChatID(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Telegram.ChatID = ""

	if err := cfg.Validate(); !errors.Is(err, ErrConfigMissing) {
		t.Fatalf("expected ErrConfigMissing, got: %v", err)
	}
}

func TestValidateRejectsInvalidSchedule(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Cleanup.Schedule = "61 * * * *"

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "cleanup.schedule") {
		t.Fatalf("expected cleanup.schedule error, got: %v", err)
	}
}

func TestValidateAllowsEmptySchedule(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Cleanup.Schedule = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error for empty schedule: %v", err)
	}
}

func TestValidateRejectsNegativeKeep(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Cleanup.Keep = -1

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for negative keep")
	}
}

func TestValidateArchiveRequiresCredentials(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Archive = &ArchiveConfig{
		S3: S3Config{Bucket: "snapshots", Region: "eu-central-1"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error for missing s3 credentials")
	}
	if !strings.Contains(err.Error(), "access_key") {
		t.Fatalf("expected access_key error, got: %v", err)
	}
}

func TestValidateEncryptionNeedsPassword(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Archive = &ArchiveConfig{
		S3:         S3Config{Bucket: "snapshots", Region: "eu-central-1", AccessKey: "ak", SecretKey: "sk"},
		Encryption: EncryptionConfig{Enabled: true},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for empty encryption password")
	}
}
