// Package excel reads curated variant tables from CSV, TSV and XLSX files.
package excel

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"govariant/domain/variant"
	"govariant/internal"
	"govariant/ports"
)

// FileType is the tabular container format.
type FileType string

const (
	FileTypeCSV  FileType = "csv"
	FileTypeTSV  FileType = "tsv"
	FileTypeXLSX FileType = "xlsx"
)

// DataReader reads variant rows from a file. The format is inferred from the
// extension; a trailing .gz is decompressed for delimited files.
type DataReader struct {
	filePath   string
	fileType   FileType
	compressed bool
	logger     *internal.Logger
}

var _ ports.RecordReader = (*DataReader)(nil)

// NewDataReader creates a reader for filePath.
func NewDataReader(filePath string, logger *internal.Logger) *DataReader {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	name := strings.ToLower(filePath)
	compressed := strings.HasSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".gz")

	fileType := FileTypeCSV
	switch filepath.Ext(name) {
	case ".xlsx", ".xlsm":
		fileType = FileTypeXLSX
	case ".tsv", ".txt":
		fileType = FileTypeTSV
	}
	return &DataReader{filePath: filePath, fileType: fileType, compressed: compressed, logger: logger}
}

// FileType returns the inferred format.
func (r *DataReader) FileType() FileType { return r.fileType }

// ReadRecords loads every data row as an unparsed RawRecord.
func (r *DataReader) ReadRecords(ctx context.Context) ([]variant.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(string(r.fileType)), r.filePath)
	}

	start := time.Now()
	var (
		records []variant.RawRecord
		err     error
	)
	switch r.fileType {
	case FileTypeXLSX:
		records, err = r.readExcel()
	default:
		records, err = r.readDelimited()
	}
	if err != nil {
		return nil, err
	}
	r.logger.Debug("[DataReader] read %d rows from %s in %s", len(records), r.filePath, time.Since(start))
	return records, nil
}

func (r *DataReader) readDelimited() ([]variant.RawRecord, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file: %w", r.fileType, err)
	}
	defer file.Close()

	var in io.Reader = file
	if r.compressed {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		in = gz
	}

	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if r.fileType == FileTypeTSV {
		reader.Comma = '\t'
	}
	return decodeRows(reader)
}

// readExcel reads the first worksheet.
func (r *DataReader) readExcel() ([]variant.RawRecord, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("Excel file has no worksheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheets[0], err)
	}
	return decodeRows(&sliceRows{rows: padRows(rows)})
}

// padRows extends short worksheet rows; excelize trims trailing empty cells.
func padRows(rows [][]string) [][]string {
	if len(rows) == 0 {
		return rows
	}
	width := len(rows[0])
	for i, row := range rows {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			rows[i] = padded
		}
	}
	return rows
}

func decodeRows(src rowSource) ([]variant.RawRecord, error) {
	reader := newAliasReader(src)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("file must have a header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if missing := missingColumns(header); len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	// gocsv expects to read the header itself.
	replay := &headerReplay{header: header, rest: reader}
	var records []variant.RawRecord
	if err := gocsv.UnmarshalCSV(replay, &records); err != nil {
		if err == gocsv.ErrEmptyCSVFile {
			return []variant.RawRecord{}, nil
		}
		return nil, fmt.Errorf("failed to decode rows: %w", err)
	}
	return records, nil
}

type headerReplay struct {
	header []string
	sent   bool
	rest   *aliasReader
}

func (h *headerReplay) Read() ([]string, error) {
	if !h.sent {
		h.sent = true
		return h.header, nil
	}
	return h.rest.Read()
}

func (h *headerReplay) ReadAll() ([][]string, error) {
	var rows [][]string
	if !h.sent {
		h.sent = true
		rows = append(rows, h.header)
	}
	rest, err := h.rest.ReadAll()
	if err != nil {
		return nil, err
	}
	return append(rows, rest...), nil
}
