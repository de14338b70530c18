package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/solab-labs/botctl/internal/cleanup"
	"github.com/solab-labs/botctl/internal/config"
	"github.com/solab-labs/botctl/internal/notify"
)

const notificationTimeout = 5 * time.Second

// Fatal lifecycle errors. Cleanup failures are never in this set.
var (
	ErrProcessStartFailed        = errors.New("process start failed")
	ErrProcessVerificationFailed = errors.New("process verification failed")
)

// Phase is the orchestrator's position in the restart sequence.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseStopping  Phase = "stopping"
	PhasePruning   Phase = "pruning"
	PhaseSweeping  Phase = "sweeping"
	PhaseStarting  Phase = "starting"
	PhaseVerifying Phase = "verifying"
	PhaseDone      Phase = "done"
	PhaseFailed    Phase = "failed"
)

// Supervisor is the process-supervision boundary the orchestrator drives.
type Supervisor interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning(ctx context.Context) (bool, error)
}

type RestartResult struct {
	Phase    Phase
	Cleanup  CleanupResult
	Duration time.Duration
	Err      error
}

// RunRestart sequences stop -> prune -> sweep -> start -> verify. Cleanup
// failures are logged and never prevent the service from restarting;
// start and verification failures are fatal.
func RunRestart(ctx context.Context, cfg *config.Config, sup Supervisor, archiver SnapshotArchiver, dispatcher *notify.Dispatcher) (RestartResult, error) {
	started := time.Now()
	res := RestartResult{Phase: PhaseIdle}

	fail := func(phase Phase, err error) (RestartResult, error) {
		res.Phase = PhaseFailed
		res.Err = err
		res.Duration = time.Since(started)
		logger.Errorf("restart %s: %s failed: %v", cfg.Service.Name, phase, err)
		notifyRun(ctx, dispatcher, cfg, "restart", res)
		return res, err
	}

	res.Phase = PhaseStopping
	running, err := sup.IsRunning(ctx)
	if err != nil {
		return fail(PhaseStopping, fmt.Errorf("query service state: %w", err))
	}
	if running {
		if err := sup.Stop(ctx); err != nil {
			return fail(PhaseStopping, fmt.Errorf("stop service: %w", err))
		}
	} else {
		logger.Infof("restart %s: already stopped, skipping stop", cfg.Service.Name)
	}

	res.Phase = PhasePruning
	pruned, archived, archiveErrs, pruneErr := PruneSnapshots(ctx, cfg, archiver)
	res.Cleanup.Pruned = pruned
	res.Cleanup.Archived = archived
	res.Cleanup.Errors = archiveErrs
	if pruneErr != nil {
		// cleanup must never block the restart
		res.Cleanup.Errors = append(res.Cleanup.Errors, pruneErr)
	}

	res.Phase = PhaseSweeping
	var sweepErr error
	res.Cleanup.Swept, sweepErr = cleanup.Sweep(cfg.Storage.Dir, cfg.Cleanup.TempPatterns)
	if sweepErr != nil {
		res.Cleanup.Errors = append(res.Cleanup.Errors, sweepErr)
	}
	for _, e := range res.Cleanup.Errors {
		logger.Errorf("restart %s: cleanup: %v", cfg.Service.Name, e)
	}

	res.Phase = PhaseStarting
	if err := sup.Start(ctx); err != nil {
		return fail(PhaseStarting, fmt.Errorf("%w: %v", ErrProcessStartFailed, err))
	}

	res.Phase = PhaseVerifying
	sleepUntilNextPoll(ctx, cfg.Service.GracePeriod)
	if ctx.Err() != nil {
		return fail(PhaseVerifying, ctx.Err())
	}

	running, err = sup.IsRunning(ctx)
	if err != nil {
		return fail(PhaseVerifying, fmt.Errorf("%w: %v", ErrProcessVerificationFailed, err))
	}
	if !running {
		return fail(PhaseVerifying, fmt.Errorf("%w: %s not active after %s grace period",
			ErrProcessVerificationFailed, cfg.Service.Name, cfg.Service.GracePeriod))
	}

	res.Phase = PhaseDone
	res.Duration = time.Since(started)
	logger.Infof("restart %s: done pruned=%d swept=%d duration=%s",
		cfg.Service.Name, res.Cleanup.Pruned.Deleted, res.Cleanup.Swept.Deleted,
		res.Duration.Round(time.Millisecond))
	notifyRun(ctx, dispatcher, cfg, "restart", res)
	return res, nil
}

func notifyRun(ctx context.Context, dispatcher *notify.Dispatcher, cfg *config.Config, action string, res RestartResult) {
	status := notify.StatusSuccess
	errMsg := ""
	if res.Err != nil {
		status = notify.StatusFailure
		errMsg = res.Err.Error()
	}

	event := notify.Event{
		Service:  cfg.Service.Name,
		Action:   action,
		Status:   status,
		Pruned:   res.Cleanup.Pruned.Deleted,
		Swept:    res.Cleanup.Swept.Deleted,
		Duration: res.Duration.Round(time.Millisecond).String(),
		Error:    errMsg,
	}

	notifyCtx, cancel := notificationContext(ctx)
	defer cancel()

	if err := dispatcher.Notify(notifyCtx, event); err != nil {
		logger.Warningf("notification failed: service=%s status=%s err=%v", cfg.Service.Name, status, err)
	}
}

func notificationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), notificationTimeout)
	}
	return context.WithTimeout(context.WithoutCancel(ctx), notificationTimeout)
}
