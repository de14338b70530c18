package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/solab-labs/botctl/internal/cleanup"
)

type fakeArchiver struct {
	stored  []string
	failFor string
}

func (f *fakeArchiver) Store(_ context.Context, path string) (string, error) {
	if f.failFor != "" && strings.HasSuffix(path, f.failFor) {
		return "", fmt.Errorf("upload rejected")
	}
	f.stored = append(f.stored, filepath.Base(path))
	return "s3://snapshots/" + filepath.Base(path), nil
}

func TestRunCleanupArchivesBeforeDelete(t *testing.T) {
	dir := t.TempDir()
	seedSnapshots(t, dir, 5)

	arch := &fakeArchiver{}
	res, err := RunCleanup(context.Background(), testConfig(dir), arch)
	if err != nil {
		t.Fatalf("RunCleanup: %v", err)
	}

	if res.Pruned.Deleted != 3 {
		t.Fatalf("expected 3 pruned, got %d", res.Pruned.Deleted)
	}
	if res.Archived != 3 {
		t.Fatalf("expected 3 archived, got %d", res.Archived)
	}
	if len(arch.stored) != 3 {
		t.Fatalf("expected 3 uploads, got %v", arch.stored)
	}
}

func TestRunCleanupKeepsSnapshotWhenArchiveFails(t *testing.T) {
	dir := t.TempDir()
	seedSnapshots(t, dir, 5)

	// oldest snapshot is a victim; make its upload fail
	arch := &fakeArchiver{failFor: "toptraded_a.yaml"}
	res, err := RunCleanup(context.Background(), testConfig(dir), arch)
	if err != nil {
		t.Fatalf("RunCleanup: %v", err)
	}

	if res.Pruned.Deleted != 2 {
		t.Fatalf("expected 2 pruned, got %d", res.Pruned.Deleted)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected 1 archive error, got %v", res.Errors)
	}
	if _, err := os.Stat(filepath.Join(dir, "toptraded_a.yaml")); err != nil {
		t.Fatalf("unarchived snapshot must stay on disk: %v", err)
	}
}

func TestRunCleanupWithoutArchiverDeletesDirectly(t *testing.T) {
	dir := t.TempDir()
	seedSnapshots(t, dir, 5)

	res, err := RunCleanup(context.Background(), testConfig(dir), nil)
	if err != nil {
		t.Fatalf("RunCleanup: %v", err)
	}
	if res.Pruned.Deleted != 3 || res.Archived != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunCleanupMissingDirectory(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "missing"))

	_, err := RunCleanup(context.Background(), cfg, nil)
	if !errors.Is(err, cleanup.ErrDirectoryNotFound) {
		t.Fatalf("expected ErrDirectoryNotFound, got %v", err)
	}
}
