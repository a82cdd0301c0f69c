// Package pipeline persists normalized catalogue snapshots as tabular files.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aluiziolira/go-scrape-catalogue/models"
)

// ErrUnsupportedFormat is returned for an output format with no writer.
var ErrUnsupportedFormat = errors.New("pipeline: unsupported format")

// PersistError reports a directory or file that could not be written.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Path() string
	Write(books []models.Book) error
	Close() error
	Validate() error
	// Abort releases the writer without leaving an artifact behind.
	Abort() error
}

// Artifact file names, relative to the output directory.
var artifactNames = map[string]string{
	"csv":   "products.csv",
	"xlsx":  "products.xlsx",
	"jsonl": "products.jsonl",
}

// Sink writes one snapshot to every configured format.
type Sink struct {
	formats []string
}

// NewSink builds a sink for the given formats, e.g. "csv", "xlsx".
func NewSink(formats []string) *Sink {
	return &Sink{formats: formats}
}

// Persist creates dir if needed and writes the snapshot in each format. It
// returns the written artifact paths in format order. Any failure is fatal.
func (s *Sink) Persist(books []models.Book, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &PersistError{Path: dir, Err: fmt.Errorf("create directory: %w", err)}
	}

	writers := make([]OutputWriter, 0, len(s.formats))
	for _, format := range s.formats {
		w, err := NewWriter(format, dir)
		if err != nil {
			abortWriters(writers)
			return nil, err
		}
		writers = append(writers, w)
	}

	out := NewMultiWriter(writers...)
	if err := out.Write(books); err != nil {
		abortWriters(writers)
		return nil, err
	}
	if err := out.Close(); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}

	paths := out.Paths()
	slog.Info("data saved",
		slog.Int("records", len(books)),
		slog.Any("paths", paths),
	)
	return paths, nil
}

func abortWriters(writers []OutputWriter) {
	for _, w := range writers {
		if err := w.Abort(); err != nil {
			slog.Warn("discard partial artifact failed",
				slog.String("path", w.Path()),
				slog.Any("error", err),
			)
		}
	}
}

// NewWriter opens the writer for format at its fixed path under dir.
func NewWriter(format, dir string) (OutputWriter, error) {
	name, ok := artifactNames[format]
	if !ok {
		return nil, &PersistError{Path: dir, Err: fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)}
	}
	path := filepath.Join(dir, name)

	switch format {
	case "csv":
		return NewCSVWriter(path)
	case "xlsx":
		return NewXLSXWriter(path)
	default:
		return NewJSONWriter(path)
	}
}
