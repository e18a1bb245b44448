package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"

	"github.com/ginjaninja78/cps-tax-units/internal/taxunit"
)

// WriteCSV writes the records as CSV to path, gzip-compressed when compress
// is set.
//
// PARAMETERS:
//   - path: The output file. The caller chooses the extension.
//   - records: The records to write, in order.
//   - slots: The number of benefit slots per program.
//   - compress: Whether to gzip the output.
//
// RETURNS:
//   - An error if the file cannot be created or written.
func WriteCSV(path string, records []taxunit.Record, slots int, compress bool) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()

	buffered := bufio.NewWriterSize(file, 1<<20)

	var out io.Writer = buffered
	var zw *gzip.Writer
	if compress {
		zw = gzip.NewWriter(buffered)
		out = zw
	}

	if err := writeRecords(out, records, slots); err != nil {
		return err
	}

	if zw != nil {
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to finish gzip stream: %w", err)
		}
	}
	if err := buffered.Flush(); err != nil {
		return fmt.Errorf("failed to flush output file: %w", err)
	}
	return nil
}

func writeRecords(w io.Writer, records []taxunit.Record, slots int) error {
	cols := Columns(slots)
	cw := csv.NewWriter(w)

	if err := cw.Write(Header(cols)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]string, len(cols))
	for i := range records {
		rec := &records[i]
		for j, c := range cols {
			row[j] = FormatValue(c.Value(rec))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i+1, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}
