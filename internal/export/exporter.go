package export

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"time"

	"estimate-api/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const exportPageSize = 100

// Exporter renders search results as CSV.
type Exporter struct {
	quotes  QuoteSearcher
	archive Archive
	logger  zerolog.Logger
	now     func() time.Time
}

// NewExporter creates an exporter reading through quotes and storing snapshots in archive.
func NewExporter(quotes QuoteSearcher, archive Archive, logger zerolog.Logger) *Exporter {
	return &Exporter{
		quotes:  quotes,
		archive: archive,
		logger:  logger.With().Str("component", "exporter").Logger(),
		now:     time.Now,
	}
}

// WriteCSV writes every quote matching filter to w, newest first, and returns
// the number of rows written.
func (e *Exporter) WriteCSV(ctx context.Context, w io.Writer, filter model.SearchFilter) (int, error) {
	cw := NewCSVWriter(w)

	for page := 0; ; page++ {
		result, err := e.quotes.Search(ctx, filter, page, exportPageSize)
		if err != nil {
			return cw.Rows(), err
		}
		if page == 0 && len(result.Content) > 0 {
			filter = pinUpperBound(filter, result.Content[0].CreatedAt)
		}
		if err := cw.Write(result.Content); err != nil {
			return cw.Rows(), err
		}
		if result.Last || len(result.Content) == 0 {
			break
		}
	}

	if err := cw.Flush(); err != nil {
		return cw.Rows(), fmt.Errorf("flush csv: %w", err)
	}
	return cw.Rows(), nil
}

// pinUpperBound caps filter at the newest row of the first page so quotes
// stored while the export runs do not shift later pages. Rows stored with the
// very same timestamp can still move.
func pinUpperBound(filter model.SearchFilter, newest time.Time) model.SearchFilter {
	if filter.CreatedTo == nil || newest.Before(*filter.CreatedTo) {
		filter.CreatedTo = &newest
	}
	return filter
}

// Snapshot renders the matching quotes, gzips them and stores the result in
// the archive. It returns the archive key.
func (e *Exporter) Snapshot(ctx context.Context, filter model.SearchFilter) (string, int, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)

	rows, err := e.WriteCSV(ctx, gz, filter)
	if err != nil {
		return "", rows, err
	}
	if err := gz.Close(); err != nil {
		return "", rows, fmt.Errorf("gzip export: %w", err)
	}

	key := fmt.Sprintf("quotes-%s-%s.csv.gz", e.now().UTC().Format("20060102T150405Z"), uuid.NewString()[:8])
	if err := e.archive.Put(ctx, key, buf.Bytes()); err != nil {
		return "", rows, err
	}

	e.logger.Info().Str("key", key).Int("rows", rows).Msg("export snapshot stored")
	return key, rows, nil
}

// Open returns the decompressed CSV stored under key.
func (e *Exporter) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	body, err := e.archive.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(body)
	if err != nil {
		body.Close()
		return nil, fmt.Errorf("failed to create gzip reader for export %s: %w", key, err)
	}
	return &gzipReadCloser{Reader: gz, body: body}, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	body io.Closer
}

func (r *gzipReadCloser) Close() error {
	gzErr := r.Reader.Close()
	if err := r.body.Close(); err != nil {
		return err
	}
	return gzErr
}
