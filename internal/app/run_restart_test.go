package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/solab-labs/botctl/internal/config"
)

type fakeSupervisor struct {
	running      bool
	runningAfter bool
	startErr     error
	stopErr      error
	isRunningErr error
	calls        []string
}

func (f *fakeSupervisor) IsRunning(_ context.Context) (bool, error) {
	f.calls = append(f.calls, "isrunning")
	return f.running, f.isRunningErr
}

func (f *fakeSupervisor) Stop(_ context.Context) error {
	f.calls = append(f.calls, "stop")
	if f.stopErr != nil {
		return f.stopErr
	}
	f.running = false
	return nil
}

func (f *fakeSupervisor) Start(_ context.Context) error {
	f.calls = append(f.calls, "start")
	if f.startErr != nil {
		return f.startErr
	}
	f.running = f.runningAfter
	return nil
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Version: 1,
		Service: config.ServiceConfig{
			Name:        "solab-bot",
			GracePeriod: time.Millisecond,
		},
		Storage: config.StorageConfig{Dir: dir},
		Cleanup: config.CleanupConfig{
			SnapshotPattern: "toptraded_*",
			Keep:            2,
			TempPatterns:    []string{"*.tmp", "*.bak"},
		},
	}
}

func seedSnapshots(t *testing.T, dir string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		name := filepath.Join(dir, "toptraded_"+string(rune('a'+i))+".yaml")
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		mt := time.Now().Add(-time.Duration(n-i) * time.Hour)
		if err := os.Chtimes(name, mt, mt); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
}

func TestRunRestartDone(t *testing.T) {
	dir := t.TempDir()
	seedSnapshots(t, dir, 5)
	if err := os.WriteFile(filepath.Join(dir, "stale.tmp"), nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	sup := &fakeSupervisor{running: true, runningAfter: true}
	res, err := RunRestart(context.Background(), testConfig(dir), sup, nil, nil)
	if err != nil {
		t.Fatalf("RunRestart: %v", err)
	}

	if res.Phase != PhaseDone {
		t.Fatalf("expected phase done, got %s", res.Phase)
	}
	if res.Cleanup.Pruned.Deleted != 3 {
		t.Fatalf("expected 3 pruned, got %d", res.Cleanup.Pruned.Deleted)
	}
	if res.Cleanup.Swept.Deleted != 1 {
		t.Fatalf("expected 1 swept, got %d", res.Cleanup.Swept.Deleted)
	}

	want := []string{"isrunning", "stop", "start", "isrunning"}
	if len(sup.calls) != len(want) {
		t.Fatalf("unexpected calls: %v", sup.calls)
	}
	for i := range want {
		if sup.calls[i] != want[i] {
			t.Fatalf("unexpected calls: %v", sup.calls)
		}
	}
}

func TestRunRestartVerificationFailed(t *testing.T) {
	dir := t.TempDir()
	seedSnapshots(t, dir, 5)

	sup := &fakeSupervisor{running: true, runningAfter: false}
	res, err := RunRestart(context.Background(), testConfig(dir), sup, nil, nil)
	if !errors.Is(err, ErrProcessVerificationFailed) {
		t.Fatalf("expected ErrProcessVerificationFailed, got %v", err)
	}
	if res.Phase != PhaseFailed {
		t.Fatalf("expected phase failed, got %s", res.Phase)
	}
	// cleanup had already succeeded; the failure must not hide that
	if res.Cleanup.Pruned.Deleted != 3 {
		t.Fatalf("expected 3 pruned despite failure, got %d", res.Cleanup.Pruned.Deleted)
	}
}

func TestRunRestartStartFailed(t *testing.T) {
	sup := &fakeSupervisor{running: true, startErr: errors.New("unit masked")}
	_, err := RunRestart(context.Background(), testConfig(t.TempDir()), sup, nil, nil)
	if !errors.Is(err, ErrProcessStartFailed) {
		t.Fatalf("expected ErrProcessStartFailed, got %v", err)
	}
}

func TestRunRestartSkipsStopWhenAlreadyStopped(t *testing.T) {
	sup := &fakeSupervisor{running: false, runningAfter: true}
	res, err := RunRestart(context.Background(), testConfig(t.TempDir()), sup, nil, nil)
	if err != nil {
		t.Fatalf("RunRestart: %v", err)
	}
	if res.Phase != PhaseDone {
		t.Fatalf("expected phase done, got %s", res.Phase)
	}
	for _, c := range sup.calls {
		if c == "stop" {
			t.Fatalf("stop must be skipped when already stopped: %v", sup.calls)
		}
	}
}

func TestRunRestartCleanupFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "missing"))

	sup := &fakeSupervisor{running: true, runningAfter: true}
	res, err := RunRestart(context.Background(), cfg, sup, nil, nil)
	if err != nil {
		t.Fatalf("cleanup failure must not fail the restart: %v", err)
	}
	if res.Phase != PhaseDone {
		t.Fatalf("expected phase done, got %s", res.Phase)
	}
	if len(res.Cleanup.Errors) == 0 {
		t.Fatalf("expected cleanup errors to be collected")
	}
}
