// Package archive uploads snapshots to S3 before the pruner deletes them,
// optionally gzipping and encrypting the stream, and can retrieve an
// archived snapshot back to a local file.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/loggo"

	"github.com/solab-labs/botctl/internal/config"
)

var logger = loggo.GetLogger("botctl.archive")

type objectWriter interface {
	io.WriteCloser
	Location() string
}

type objectStore interface {
	OpenWriter(ctx context.Context, key string) (objectWriter, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type Archiver struct {
	store       objectStore
	compression bool
	encPassword string
}

func New(ctx context.Context, cfg *config.ArchiveConfig) (*Archiver, error) {
	st, err := newS3Store(ctx, s3Options{
		Bucket:    cfg.S3.Bucket,
		Region:    cfg.S3.Region,
		Prefix:    cfg.S3.Prefix,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
	})
	if err != nil {
		return nil, err
	}

	password := ""
	if cfg.Encryption.Enabled {
		password = cfg.Encryption.Password
	}

	return &Archiver{
		store:       st,
		compression: cfg.Compression,
		encPassword: password,
	}, nil
}

// Key returns the object key a snapshot is stored under: its base name plus
// an extension per enabled stage.
func (a *Archiver) Key(snapshotPath string) string {
	key := filepath.Base(snapshotPath)
	if a.compression {
		key += ".gz"
	}
	if a.encPassword != "" {
		key += ".enc"
	}
	return key
}

// Store uploads the file at path through the configured stages and returns
// the destination location.
func (a *Archiver) Store(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open snapshot: %w", err)
	}

	w, err := a.store.OpenWriter(ctx, a.Key(path))
	if err != nil {
		_ = f.Close()
		return "", fmt.Errorf("open archive writer: %w", err)
	}

	stream := io.Reader(f)
	var cs closeStack
	if a.compression {
		stream = gzipReader(stream, &cs)
	}
	if a.encPassword != "" {
		stream = encryptReader(stream, a.encPassword, &cs)
	}

	_, copyErr := io.Copy(w, stream)

	// close order matters
	cs.closeAll()
	closeSrcErr := f.Close()
	closeErr := w.Close()

	if copyErr != nil {
		return "", fmt.Errorf("archive %s: %w", path, copyErr)
	}
	if closeSrcErr != nil {
		return "", fmt.Errorf("close snapshot: %w", closeSrcErr)
	}
	if closeErr != nil {
		return "", fmt.Errorf("finalize archive upload: %w", closeErr)
	}

	logger.Infof("archived %s to %s", path, w.Location())
	return w.Location(), nil
}

// Retrieve downloads the archived object and reverses the stages implied by
// the key's extensions, writing the result to outPath.
func (a *Archiver) Retrieve(ctx context.Context, key, outPath string) error {
	rc, err := a.store.Open(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	stream := io.Reader(rc)
	var cs closeStack
	defer cs.closeAll()

	rest := key
	if strings.HasSuffix(rest, ".enc") {
		if a.encPassword == "" {
			return fmt.Errorf("%s is encrypted but no archive password is configured", key)
		}
		stream = decryptReader(stream, a.encPassword, &cs)
		rest = strings.TrimSuffix(rest, ".enc")
	}
	if strings.HasSuffix(rest, ".gz") {
		stream = gunzipReader(stream, &cs)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	// write via a temp file so a failed retrieve never leaves a partial snapshot
	tmpPath := outPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	if _, err := io.Copy(out, stream); err != nil {
		_ = out.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("retrieve %s: %w", key, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	logger.Infof("retrieved %s to %s", key, outPath)
	return nil
}
