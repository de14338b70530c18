package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/solab-labs/botctl/internal/archive"
	"github.com/solab-labs/botctl/internal/config"
)

// RunRetrieve downloads an archived snapshot back to a local file. With an
// empty outPath the snapshot lands in the storage directory under its
// original name.
func RunRetrieve(ctx context.Context, cfg *config.Config, key, outPath string) error {
	if cfg.Archive == nil {
		return fmt.Errorf("archive is not configured")
	}

	a, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		return err
	}

	if outPath == "" {
		name := filepath.Base(key)
		name = strings.TrimSuffix(name, ".enc")
		name = strings.TrimSuffix(name, ".gz")
		outPath = filepath.Join(cfg.Storage.Dir, name)
	}

	return a.Retrieve(ctx, key, outPath)
}
