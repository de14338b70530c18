// Package runlog wires the loggo hierarchy to stderr and to a persistent,
// timestamped run log file.
package runlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/juju/loggo"
)

const writerName = "runlog"

// Setup configures the root log level and, when path is non-empty, registers
// a file writer so every component's output lands in the run log. The
// returned closer owns the file handle.
func Setup(path, level string) (io.Closer, error) {
	if level == "" {
		level = "INFO"
	}
	if _, ok := loggo.ParseLevel(level); !ok {
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	if err := loggo.ConfigureLoggers("<root>=" + level); err != nil {
		return nil, fmt.Errorf("configure loggers: %w", err)
	}

	if path == "" {
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create run log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}

	// replace any writer left over from a previous Setup
	_, _ = loggo.RemoveWriter(writerName)
	if err := loggo.RegisterWriter(writerName, loggo.NewSimpleWriter(f, loggo.DefaultFormatter)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("register run log writer: %w", err)
	}

	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
