package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// fileArchive implements Archive on a local directory.
type fileArchive struct {
	dir    string
	logger zerolog.Logger
}

// NewFileArchive creates an archive rooted at dir, creating it if needed.
func NewFileArchive(dir string, logger zerolog.Logger) (Archive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory %s: %w", dir, err)
	}
	return &fileArchive{
		dir:    dir,
		logger: logger.With().Str("component", "export-file-archive").Logger(),
	}, nil
}

func (a *fileArchive) Put(_ context.Context, key string, body []byte) error {
	if !ValidKey(key) {
		return ErrInvalidKey
	}

	path := filepath.Join(a.dir, key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		a.logger.Error().Err(err).Str("file", path).Msg("failed to write export file")
		return fmt.Errorf("failed to write export file %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to finalise export file %s: %w", path, err)
	}

	a.logger.Info().Str("file", path).Int("bytes", len(body)).Msg("export stored locally")
	return nil
}

func (a *fileArchive) Get(_ context.Context, key string) (io.ReadCloser, error) {
	if !ValidKey(key) {
		return nil, ErrInvalidKey
	}

	path := filepath.Join(a.dir, key)
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrArchiveNotFound
		}
		a.logger.Error().Err(err).Str("file", path).Msg("failed to open export file")
		return nil, fmt.Errorf("failed to open export file %s: %w", path, err)
	}
	return file, nil
}
