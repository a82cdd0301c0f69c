package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aluiziolira/go-scrape-catalogue/models"
	"github.com/xuri/excelize/v2"
)

// Header is the fixed column order of every tabular artifact.
var Header = []string{"Title", "Price", "Availability", "Rating", "Product URL"}

// utf8BOM lets spreadsheet tools detect the CSV encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes records to a UTF-8 (with BOM) CSV file.
type CSVWriter struct {
	path   string
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter initialises a CSV writer and writes the BOM and header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, &PersistError{Path: filename, Err: fmt.Errorf("create csv file: %w", err)}
	}
	if _, err := f.Write(utf8BOM); err != nil {
		f.Close()
		return nil, &PersistError{Path: filename, Err: fmt.Errorf("write csv bom: %w", err)}
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(Header); err != nil {
		f.Close()
		return nil, &PersistError{Path: filename, Err: fmt.Errorf("write csv header: %w", err)}
	}

	return &CSVWriter{
		path:   filename,
		file:   f,
		writer: writer,
	}, nil
}

// Path returns the artifact location.
func (cw *CSVWriter) Path() string {
	return cw.path
}

// Write appends books to the CSV output.
func (cw *CSVWriter) Write(books []models.Book) error {
	for _, book := range books {
		if err := cw.writer.Write(rowStrings(book)); err != nil {
			return &PersistError{Path: cw.path, Err: fmt.Errorf("write csv record: %w", err)}
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return &PersistError{Path: cw.path, Err: fmt.Errorf("flush csv records: %w", err)}
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.file.Close()
		return &PersistError{Path: cw.path, Err: fmt.Errorf("flush csv writer: %w", err)}
	}
	if err := cw.file.Close(); err != nil {
		return &PersistError{Path: cw.path, Err: err}
	}
	return nil
}

// Validate ensures the file has content.
func (cw *CSVWriter) Validate() error {
	return validateFile(cw.path)
}

// Abort closes and removes the partial file.
func (cw *CSVWriter) Abort() error {
	return discardFile(cw.file, cw.path)
}

// XLSXWriter writes records to the first sheet of a spreadsheet workbook.
// Nothing reaches disk until Close.
type XLSXWriter struct {
	path  string
	book  *excelize.File
	sheet string
	row   int
}

// NewXLSXWriter prepares a workbook with the header row.
func NewXLSXWriter(filename string) (*XLSXWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	book := excelize.NewFile()
	xw := &XLSXWriter{
		path:  filename,
		book:  book,
		sheet: book.GetSheetName(0),
		row:   1,
	}

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := xw.setRow(header); err != nil {
		book.Close()
		return nil, err
	}
	return xw, nil
}

// Path returns the artifact location.
func (xw *XLSXWriter) Path() string {
	return xw.path
}

// Write appends books as rows. Price and rating are stored as numbers.
func (xw *XLSXWriter) Write(books []models.Book) error {
	for _, book := range books {
		var rating interface{}
		if book.Rating.Valid() {
			rating = int(book.Rating)
		}
		if err := xw.setRow([]interface{}{book.Title, book.Price, book.Availability, rating, book.URL}); err != nil {
			return err
		}
	}
	return nil
}

// Close saves the workbook to disk.
func (xw *XLSXWriter) Close() error {
	defer xw.book.Close()
	if err := xw.book.SaveAs(xw.path); err != nil {
		return &PersistError{Path: xw.path, Err: fmt.Errorf("save workbook: %w", err)}
	}
	return nil
}

// Validate ensures the workbook was written.
func (xw *XLSXWriter) Validate() error {
	return validateFile(xw.path)
}

// Abort drops the in-memory workbook without saving it.
func (xw *XLSXWriter) Abort() error {
	if err := xw.book.Close(); err != nil {
		return &PersistError{Path: xw.path, Err: fmt.Errorf("discard workbook: %w", err)}
	}
	return nil
}

func (xw *XLSXWriter) setRow(values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, xw.row)
	if err != nil {
		return &PersistError{Path: xw.path, Err: err}
	}
	if err := xw.book.SetSheetRow(xw.sheet, cell, &values); err != nil {
		return &PersistError{Path: xw.path, Err: fmt.Errorf("write row %d: %w", xw.row, err)}
	}
	xw.row++
	return nil
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter struct {
	path    string
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, &PersistError{Path: filename, Err: fmt.Errorf("create json file: %w", err)}
	}

	buffer := bufio.NewWriter(f)
	return &JSONWriter{
		path:    filename,
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// Path returns the artifact location.
func (jw *JSONWriter) Path() string {
	return jw.path
}

// Write appends books in JSONL format.
func (jw *JSONWriter) Write(books []models.Book) error {
	for _, book := range books {
		if err := jw.encoder.Encode(book); err != nil {
			return &PersistError{Path: jw.path, Err: fmt.Errorf("encode json record: %w", err)}
		}
	}

	if err := jw.writer.Flush(); err != nil {
		return &PersistError{Path: jw.path, Err: fmt.Errorf("flush json writer: %w", err)}
	}

	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	if err := jw.writer.Flush(); err != nil {
		jw.file.Close()
		return &PersistError{Path: jw.path, Err: fmt.Errorf("flush json writer: %w", err)}
	}
	if err := jw.file.Close(); err != nil {
		return &PersistError{Path: jw.path, Err: err}
	}
	return nil
}

// Validate ensures the JSON file exists.
func (jw *JSONWriter) Validate() error {
	info, err := os.Stat(jw.path)
	if err != nil {
		return &PersistError{Path: jw.path, Err: fmt.Errorf("stat json file: %w", err)}
	}
	if !info.Mode().IsRegular() {
		return &PersistError{Path: jw.path, Err: fmt.Errorf("not a regular file")}
	}
	return nil
}

// Abort closes and removes the partial file.
func (jw *JSONWriter) Abort() error {
	return discardFile(jw.file, jw.path)
}

func rowStrings(book models.Book) []string {
	return []string{
		book.Title,
		strconv.FormatFloat(book.Price, 'f', -1, 64),
		book.Availability,
		book.Rating.String(),
		book.URL,
	}
}

func discardFile(f *os.File, path string) error {
	closeErr := f.Close()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &PersistError{Path: path, Err: errors.Join(closeErr, fmt.Errorf("remove partial file: %w", err))}
	}
	if closeErr != nil {
		return &PersistError{Path: path, Err: closeErr}
	}
	return nil
}

func validateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &PersistError{Path: path, Err: fmt.Errorf("stat file: %w", err)}
	}
	if info.Size() <= 0 {
		return &PersistError{Path: path, Err: fmt.Errorf("file is empty")}
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &PersistError{Path: dir, Err: fmt.Errorf("create directory: %w", err)}
	}
	return nil
}
