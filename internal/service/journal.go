package service

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
)

// TailLogs streams the unit's journal to w. With follow set it blocks until
// ctx is canceled; cancellation is a clean exit, not an error.
func (s *Systemd) TailLogs(ctx context.Context, w io.Writer, lines int, follow bool) error {
	args := []string{"-u", s.unitName, "--no-pager"}
	if lines > 0 {
		args = append(args, "-n", strconv.Itoa(lines))
	}
	if follow {
		args = append(args, "-f")
	}

	cmd := exec.CommandContext(ctx, "journalctl", args...)
	cmd.Stdout = w
	cmd.Stderr = w

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("journalctl: %w", err)
	}
	return nil
}
