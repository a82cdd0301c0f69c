package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/aluiziolira/go-scrape-catalogue/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(raw, utf8BOM))).ReadAll()
	require.NoError(t, err)
	return records
}

func TestSinkPersistRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	books := sampleBooks()

	paths, err := NewSink([]string{"csv", "xlsx"}).Persist(books, dir)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "products.csv"),
		filepath.Join(dir, "products.xlsx"),
	}, paths)

	records := readCSV(t, paths[0])
	require.Len(t, records, len(books)+1)
	assert.Equal(t, Header, records[0])

	for i, book := range books {
		row := records[i+1]
		price, err := strconv.ParseFloat(row[1], 64)
		require.NoError(t, err)
		assert.Equal(t, book.Title, row[0])
		assert.Equal(t, book.Price, price)
		assert.Equal(t, book.Availability, row[2])
		assert.Equal(t, book.Rating.String(), row[3])
		assert.Equal(t, book.URL, row[4])
	}

	info, err := os.Stat(paths[1])
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestSinkPersistIsIdempotentOnDirectory(t *testing.T) {
	dir := t.TempDir()
	sink := NewSink([]string{"csv"})

	_, err := sink.Persist(sampleBooks(), dir)
	require.NoError(t, err)
	paths, err := sink.Persist(sampleBooks()[:1], dir)
	require.NoError(t, err)

	assert.Len(t, readCSV(t, paths[0]), 2)
}

func TestSinkPersistJSONL(t *testing.T) {
	dir := t.TempDir()
	paths, err := NewSink([]string{"jsonl"}).Persist(sampleBooks(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "products.jsonl")}, paths)
}

func TestSinkPersistUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	_, err := NewSink([]string{"csv", "parquet"}).Persist(sampleBooks(), dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	var persistErr *PersistError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, dir, persistErr.Path)
}

func TestSinkPersistFailureLeavesNoArtifacts(t *testing.T) {
	dir := t.TempDir()
	_, err := NewSink([]string{"csv", "xlsx", "parquet"}).Persist(sampleBooks(), dir)
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	for _, name := range []string{"products.csv", "products.xlsx"} {
		_, statErr := os.Stat(filepath.Join(dir, name))
		assert.True(t, os.IsNotExist(statErr), "%s must not be left behind", name)
	}
}

func TestSinkPersistDirectoryFailure(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := NewSink([]string{"csv"}).Persist(sampleBooks(), filepath.Join(blocker, "output"))
	var persistErr *PersistError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, filepath.Join(blocker, "output"), persistErr.Path)
}

func TestMultiWriterReportsFailures(t *testing.T) {
	good := &recordingWriter{path: "good"}
	bad := &recordingWriter{path: "bad", writeErr: errors.New("disk full"), closeErr: errors.New("close failed")}
	mw := NewMultiWriter(good, bad)

	err := mw.Write(sampleBooks())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Len(t, good.books, 2)

	err = mw.Close()
	require.Error(t, err)
	assert.True(t, good.closed)
	assert.True(t, bad.closed)
	assert.Equal(t, []string{"good", "bad"}, mw.Paths())
}

func TestMultiWriterAbortReportsFailures(t *testing.T) {
	good := &recordingWriter{path: "good"}
	bad := &recordingWriter{path: "bad", abortErr: errors.New("remove failed")}

	err := NewMultiWriter(good, bad).Abort()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "abort bad")
	assert.True(t, good.aborted)
	assert.True(t, bad.aborted)
	assert.False(t, good.closed)
}

type recordingWriter struct {
	path     string
	books    []models.Book
	closed   bool
	aborted  bool
	writeErr error
	closeErr error
	abortErr error
}

func (rw *recordingWriter) Path() string {
	return rw.path
}

func (rw *recordingWriter) Write(books []models.Book) error {
	if rw.writeErr != nil {
		return rw.writeErr
	}
	rw.books = append(rw.books, books...)
	return nil
}

func (rw *recordingWriter) Close() error {
	rw.closed = true
	return rw.closeErr
}

func (rw *recordingWriter) Validate() error {
	return nil
}

func (rw *recordingWriter) Abort() error {
	rw.aborted = true
	return rw.abortErr
}
