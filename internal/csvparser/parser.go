// =============================================================================
// CPS Tax-Unit Builder - CSV Parser Module
// =============================================================================
//
// This module reads the tabular inputs of the pipeline:
//   - The merged person table of each survey year (streamed, one row at a time)
//   - Small lookup tables such as state targets (read whole)
//
// Every file has a single header row. Rows are exposed as maps of
// header -> value so callers can look fields up by column name. Files whose
// name ends in ".gz" are decompressed while they are read.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/ginjaninja78/cps-tax-units/internal/config"
)

// =============================================================================
// CSV DATA STRUCTURE
// =============================================================================

// CSVData represents a fully parsed CSV file.
type CSVData struct {
	// Headers contains the column headers from the CSV file.
	Headers []string

	// Rows contains the data rows as maps of header -> value.
	Rows []map[string]string

	// SourceFile is the path to the source CSV file.
	SourceFile string
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a whole CSV file.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: The CSV parsing settings.
//
// RETURNS:
//   - A pointer to the CSVData struct containing the parsed data.
//   - An error if the file cannot be read or parsed.
func Parse(filePath string, settings config.CSVSettings) (*CSVData, error) {
	parser, err := NewStreamingParser(filePath, settings)
	if err != nil {
		return nil, err
	}
	defer parser.Close()

	data := &CSVData{
		Headers:    parser.Headers(),
		SourceFile: filePath,
	}
	for parser.Next() {
		data.Rows = append(data.Rows, parser.Row())
	}
	if err := parser.Err(); err != nil {
		return nil, err
	}

	return data, nil
}

// ReadHeaders returns only the header row of a CSV file.
func ReadHeaders(filePath string, settings config.CSVSettings) ([]string, error) {
	parser, err := NewStreamingParser(filePath, settings)
	if err != nil {
		return nil, err
	}
	defer parser.Close()
	return parser.Headers(), nil
}

// MissingColumns returns the required columns absent from headers, in the
// order they were required.
func MissingColumns(headers, required []string) []string {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}

	var missing []string
	for _, r := range required {
		if !present[r] {
			missing = append(missing, r)
		}
	}
	return missing
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Short rows are padded with empty values in Next.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true
}

// cleanHeaders trims header values and names empty headers by position.
// pandas exports an unnamed leading index column, which becomes "Column_1".
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))

	for i, header := range headers {
		header = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}

	return cleaned
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// STREAMING PARSER FOR LARGE FILES
// =============================================================================

// StreamingParser reads a CSV file one row at a time.
//
//	parser, err := NewStreamingParser(path, settings)
//	if err != nil {
//		return err
//	}
//	defer parser.Close()
//	for parser.Next() {
//		row := parser.Row()
//	}
//	return parser.Err()
type StreamingParser struct {
	file       *os.File
	gz         *gzip.Reader
	reader     *csv.Reader
	headers    []string
	currentRow map[string]string
	rowNumber  int
	err        error
}

// NewStreamingParser opens a CSV file and reads its header row.
//
// PARAMETERS:
//   - filePath: The path to the CSV file, optionally gzip-compressed.
//   - settings: The CSV parsing settings.
//
// RETURNS:
//   - A pointer to the StreamingParser.
//   - An error if the file cannot be opened or has no header row.
func NewStreamingParser(filePath string, settings config.CSVSettings) (*StreamingParser, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	parser := &StreamingParser{file: file}

	var src io.Reader = bufio.NewReaderSize(file, 1<<16)
	if strings.HasSuffix(strings.ToLower(filePath), ".gz") {
		parser.gz, err = gzip.NewReader(src)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		src = parser.gz
	}

	parser.reader = csv.NewReader(src)
	configureReader(parser.reader, settings)

	if err := parser.readHeaders(); err != nil {
		parser.Close()
		return nil, err
	}

	return parser, nil
}

// readHeaders reads and cleans the header row.
func (p *StreamingParser) readHeaders() error {
	row, err := p.reader.Read()
	if errors.Is(err, io.EOF) {
		return errors.New("CSV file is empty")
	}
	if err != nil {
		return fmt.Errorf("error reading header row: %w", err)
	}
	p.rowNumber++
	p.headers = cleanHeaders(row)
	return nil
}

// Next advances to the next row. Returns false when there are no more rows.
func (p *StreamingParser) Next() bool {
	for p.err == nil {
		row, err := p.reader.Read()
		if errors.Is(err, io.EOF) {
			return false
		}
		if err != nil {
			p.err = fmt.Errorf("error reading row %d: %w", p.rowNumber+1, err)
			return false
		}

		p.rowNumber++

		if isRowEmpty(row) {
			continue
		}

		p.currentRow = make(map[string]string, len(p.headers))
		for i, header := range p.headers {
			if i < len(row) {
				p.currentRow[header] = strings.TrimSpace(row[i])
			} else {
				p.currentRow[header] = ""
			}
		}
		return true
	}
	return false
}

// Row returns the current row as a map. The map is not reused between rows.
func (p *StreamingParser) Row() map[string]string {
	return p.currentRow
}

// Headers returns the parsed headers.
func (p *StreamingParser) Headers() []string {
	return p.headers
}

// RowNumber returns the current row number (1-indexed, header included).
func (p *StreamingParser) RowNumber() int {
	return p.rowNumber
}

// Err returns any error that occurred during parsing.
func (p *StreamingParser) Err() error {
	return p.err
}

// Close closes the underlying file.
func (p *StreamingParser) Close() error {
	if p.gz != nil {
		p.gz.Close()
	}
	return p.file.Close()
}
