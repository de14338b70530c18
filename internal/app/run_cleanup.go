package app

import (
	"context"
	"fmt"

	"github.com/juju/loggo"

	"github.com/solab-labs/botctl/internal/archive"
	"github.com/solab-labs/botctl/internal/cleanup"
	"github.com/solab-labs/botctl/internal/config"
)

var logger = loggo.GetLogger("botctl.app")

// SnapshotArchiver uploads a snapshot before the pruner deletes it.
type SnapshotArchiver interface {
	Store(ctx context.Context, path string) (string, error)
}

// CleanupResult aggregates one prune+sweep pass. Errors holds failures above
// the per-file level (listing, archive uploads); all of them are collected,
// none abort the pass.
type CleanupResult struct {
	Pruned   cleanup.Result
	Swept    cleanup.Result
	Archived int
	Errors   []error
}

func (r CleanupResult) ErrorCount() int {
	return len(r.Pruned.Errors) + len(r.Swept.Errors) + len(r.Errors)
}

// PruneSnapshots prunes the storage directory down to the configured
// retention. With an archiver, each victim is uploaded first; a snapshot
// whose upload fails stays on disk and is reported as a collected error.
func PruneSnapshots(ctx context.Context, cfg *config.Config, archiver SnapshotArchiver) (cleanup.Result, int, []error, error) {
	victims, err := cleanup.Plan(cfg.Storage.Dir, cfg.Cleanup.SnapshotPattern, cfg.Cleanup.Keep)
	if err != nil {
		return cleanup.Result{}, 0, nil, err
	}

	var archived int
	var errs []error
	deletable := victims
	if archiver != nil && len(victims) > 0 {
		deletable = make([]cleanup.Snapshot, 0, len(victims))
		for _, v := range victims {
			if _, err := archiver.Store(ctx, v.Path); err != nil {
				errs = append(errs, fmt.Errorf("archive %s: %w", v.Path, err))
				continue
			}
			archived++
			deletable = append(deletable, v)
		}
	}

	return cleanup.Remove(deletable), archived, errs, nil
}

// RunCleanup runs a full prune+sweep pass.
func RunCleanup(ctx context.Context, cfg *config.Config, archiver SnapshotArchiver) (CleanupResult, error) {
	var out CleanupResult

	pruned, archived, errs, err := PruneSnapshots(ctx, cfg, archiver)
	if err != nil {
		return out, err
	}
	out.Pruned = pruned
	out.Archived = archived
	out.Errors = errs

	out.Swept, err = cleanup.Sweep(cfg.Storage.Dir, cfg.Cleanup.TempPatterns)
	if err != nil {
		return out, err
	}

	logger.Infof("cleanup: pruned=%d swept=%d archived=%d errors=%d",
		out.Pruned.Deleted, out.Swept.Deleted, out.Archived, out.ErrorCount())
	return out, nil
}

// NewArchiver builds the S3 archiver when one is configured, nil otherwise.
func NewArchiver(ctx context.Context, cfg *config.Config) (SnapshotArchiver, error) {
	if cfg.Archive == nil {
		return nil, nil
	}
	a, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		return nil, err
	}
	return a, nil
}
