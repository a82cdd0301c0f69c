package pipeline

import (
	"errors"
	"fmt"

	"github.com/aluiziolira/go-scrape-catalogue/models"
)

// MultiWriter fans the same rows out to several formats.
type MultiWriter struct {
	writers []OutputWriter
}

// NewMultiWriter wraps the given writers. Order is preserved in Paths.
func NewMultiWriter(writers ...OutputWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Path returns the first writer's artifact location.
func (mw *MultiWriter) Path() string {
	if len(mw.writers) == 0 {
		return ""
	}
	return mw.writers[0].Path()
}

// Paths returns every artifact location.
func (mw *MultiWriter) Paths() []string {
	paths := make([]string, 0, len(mw.writers))
	for _, w := range mw.writers {
		paths = append(paths, w.Path())
	}
	return paths
}

// Write writes books to every format, stopping at the first failure.
func (mw *MultiWriter) Write(books []models.Book) error {
	for _, w := range mw.writers {
		if err := w.Write(books); err != nil {
			return fmt.Errorf("write %s: %w", w.Path(), err)
		}
	}
	return nil
}

// Close closes every writer and reports all failures.
func (mw *MultiWriter) Close() error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", w.Path(), err))
		}
	}
	return errors.Join(errs...)
}

// Validate validates every output file.
func (mw *MultiWriter) Validate() error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Abort discards every writer's output and reports all failures.
func (mw *MultiWriter) Abort() error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.Abort(); err != nil {
			errs = append(errs, fmt.Errorf("abort %s: %w", w.Path(), err))
		}
	}
	return errors.Join(errs...)
}
