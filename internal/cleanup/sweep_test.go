package cleanup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSweepDeletesMatchingPatterns(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.tmp", "b.bak", "c.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	res, err := Sweep(dir, []string{"*.tmp", "*.bak"})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", res.Deleted)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}

	if _, err := os.Stat(filepath.Join(dir, "a.tmp")); !os.IsNotExist(err) {
		t.Fatalf("a.tmp should be gone")
	}
	if _, err := os.Stat(filepath.Join(dir, "b.bak")); !os.IsNotExist(err) {
		t.Fatalf("b.bak should be gone")
	}
	if _, err := os.Stat(filepath.Join(dir, "c.txt")); err != nil {
		t.Fatalf("c.txt must survive: %v", err)
	}
}

func TestSweepEmptyPatternListIsNoOp(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.tmp"), nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	res, err := Sweep(dir, nil)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Deleted != 0 {
		t.Fatalf("expected 0 deleted, got %d", res.Deleted)
	}
}

func TestSweepPatternWithNoMatchesIsSuccess(t *testing.T) {
	res, err := Sweep(t.TempDir(), []string{"*.tmp", "*.bak"})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Deleted != 0 || len(res.Errors) != 0 {
		t.Fatalf("expected clean no-op, got %+v", res)
	}
}

func TestSweepMissingDirectory(t *testing.T) {
	_, err := Sweep(filepath.Join(t.TempDir(), "nope"), []string{"*.tmp"})
	if !errors.Is(err, ErrDirectoryNotFound) {
		t.Fatalf("expected ErrDirectoryNotFound, got %v", err)
	}
}
