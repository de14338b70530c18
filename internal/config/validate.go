package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/solab-labs/botctl/internal/schedule"
)

// ErrConfigMissing marks a required credential or destination that must be
// present before any service action runs.
var ErrConfigMissing = errors.New("config missing")

func (c *Config) Validate() error {
	if c.Version == 0 {
		return fmt.Errorf("config.version must be > 0")
	}

	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		return fmt.Errorf("%w: telegram.bot_token is required", ErrConfigMissing)
	}
	if strings.TrimSpace(c.Telegram.ChatID) == "" {
		return fmt.Errorf("%w: telegram.chat_id is required", ErrConfigMissing)
	}

	if strings.TrimSpace(c.Service.Name) == "" {
		return fmt.Errorf("%w: service.name is required", ErrConfigMissing)
	}
	if c.Service.GracePeriod < 0 {
		return fmt.Errorf("service.grace_period must be >= 0")
	}

	if strings.TrimSpace(c.Storage.Dir) == "" {
		return fmt.Errorf("%w: storage.dir is required", ErrConfigMissing)
	}
	if c.Cleanup.Keep < 0 {
		return fmt.Errorf("cleanup.keep must be >= 0")
	}
	if s := strings.TrimSpace(c.Cleanup.Schedule); s != "" {
		if _, err := schedule.ParseCronSpec(s); err != nil {
			return fmt.Errorf("cleanup.schedule %q: %w", s, err)
		}
	}

	if c.Archive != nil {
		s3 := c.Archive.S3
		if s3.Bucket == "" || s3.Region == "" {
			return fmt.Errorf("archive.s3 bucket and region are required")
		}
		if s3.AccessKey == "" || s3.SecretKey == "" {
			return fmt.Errorf("archive.s3 access_key and secret_key are required (or env expansion failed)")
		}
		if c.Archive.Encryption.Enabled && c.Archive.Encryption.Password == "" {
			return fmt.Errorf("archive.encryption.password is required when encryption is enabled")
		}
	}

	for i, nt := range c.Notifications {
		switch strings.ToLower(strings.TrimSpace(nt.Type)) {
		case "telegram", "webhook":
		default:
			return fmt.Errorf("notifications[%d]: unsupported type %q", i, nt.Type)
		}
	}

	return nil
}
