package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/podcasts/internal/models"
)

const (
	dirPerm       = 0o755
	filePerm      = 0o644
	partialSuffix = ".part"
)

// ErrNoData is returned by WriteStream when the source produced zero bytes.
var ErrNoData = errors.New("stream produced no data")

// WriteFileExclusive creates path (and its parent directories) and writes data.
// It fails with an error wrapping os.ErrExist if path already exists.
func WriteFileExclusive(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WriteStream copies r to path in arrival order. Data goes to "<path>.part"
// first and is renamed into place only after the stream ends cleanly, so a
// failed stream never leaves a truncated file at path.
func WriteStream(path string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	partial := path + partialSuffix
	f, err := os.OpenFile(partial, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", filepath.Base(partial), err)
	}

	n, err := io.Copy(f, r)
	if err == nil && n == 0 {
		err = ErrNoData
	}
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		removePartial(partial)
		return n, fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	if err := os.Rename(partial, path); err != nil {
		removePartial(partial)
		return n, fmt.Errorf("failed to move %s into place: %w", filepath.Base(path), err)
	}
	return n, nil
}

func removePartial(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", path).Msg("Failed to remove partial file")
	}
}

// ResolveDownload returns the canonical path of rawPath if it names an existing
// regular file strictly inside outputDir. Every other outcome is models.ErrNotFound.
func ResolveDownload(rawPath, outputDir string) (string, error) {
	if strings.TrimSpace(rawPath) == "" || outputDir == "" {
		return "", models.ErrNotFound
	}

	root, err := canonical(outputDir)
	if err != nil {
		return "", models.ErrNotFound
	}
	target, err := canonical(rawPath)
	if err != nil {
		return "", models.ErrNotFound
	}

	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", models.ErrNotFound
	}

	info, err := os.Stat(target)
	if err != nil || !info.Mode().IsRegular() {
		return "", models.ErrNotFound
	}
	return target, nil
}

// canonical returns an absolute path with symlinks resolved.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
