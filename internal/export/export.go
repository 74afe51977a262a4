// Package export renders stored quotes as CSV and keeps gzipped CSV snapshots
// in an archive (S3 with a local directory fallback).
package export

import (
	"context"
	"errors"
	"io"
	"regexp"

	"estimate-api/internal/model"
)

// ErrArchiveNotFound is returned when an archived export does not exist.
var ErrArchiveNotFound = errors.New("export not found")

// ErrInvalidKey is returned for archive keys that are not plain file names.
var ErrInvalidKey = errors.New("invalid export key")

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidKey reports whether key is acceptable as an archive object name.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// Archive stores export snapshots by key. Bodies are opaque to the archive.
type Archive interface {
	// Put stores body under key.
	Put(ctx context.Context, key string, body []byte) error

	// Get opens the object stored under key. Returns ErrArchiveNotFound if absent.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// QuoteSearcher is the read side the exporter pages through.
type QuoteSearcher interface {
	Search(ctx context.Context, filter model.SearchFilter, page, size int) (model.PageResult[model.PersistedQuote], error)
}
