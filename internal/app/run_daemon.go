package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/solab-labs/botctl/internal/config"
	"github.com/solab-labs/botctl/internal/notify"
	"github.com/solab-labs/botctl/internal/schedule"
)

// RunDaemon runs the restart sequence whenever the cleanup schedule fires,
// polling minute boundaries. A failed run is logged and notified; the daemon
// keeps going so one bad restart does not stop future cleanups. Returns nil
// when ctx is canceled.
func RunDaemon(ctx context.Context, cfg *config.Config, sup Supervisor, archiver SnapshotArchiver, dispatcher *notify.Dispatcher, runTimeout time.Duration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s := strings.TrimSpace(cfg.Cleanup.Schedule)
	if s == "" {
		return fmt.Errorf("daemon: cleanup.schedule is required")
	}
	spec, err := schedule.ParseCronSpec(s)
	if err != nil {
		return fmt.Errorf("invalid cleanup.schedule %q: %w", s, err)
	}

	logger.Infof("daemon: started for %s with schedule %q", cfg.Service.Name, s)

	lastMinute := time.Time{}

	for {
		select {
		case <-ctx.Done():
			logger.Infof("daemon: shutdown requested")
			return nil
		default:
		}

		now := time.Now().UTC()
		currentMinute := now.Truncate(time.Minute)
		if currentMinute.Equal(lastMinute) {
			sleepUntilNextPoll(ctx, 500*time.Millisecond)
			continue
		}
		lastMinute = currentMinute

		if !spec.Matches(currentMinute) {
			continue
		}

		logger.Infof("daemon: triggering restart at %s UTC", currentMinute.Format(time.RFC3339))

		runCtx := ctx
		cancel := func() {}
		if runTimeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, runTimeout)
		}

		if _, err := RunRestart(runCtx, cfg, sup, archiver, dispatcher); err != nil {
			logger.Errorf("daemon: scheduled restart failed: %v", err)
		}
		cancel()
	}
}

func sleepUntilNextPoll(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
