// Package importer bulk-submits loan applications from CSV or XLSX sheets.
package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter rune // default ','
	Comment   rune // comment character (0 = none)
}

// Record is one parsed row. Line is the 1-based line of the source file the
// row starts on, so skipped blank and comment lines still count.
type Record struct {
	Line   int
	Fields []string
}

// StreamCSV reads CSV records and sends them to a channel with fields
// trimmed. Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan Record, <-chan error) {
	rowCh := make(chan Record, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.FieldsPerRecord = -1

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			line, _ := reader.FieldPos(0)
			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}

			select {
			case rowCh <- Record{Line: line, Fields: record}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// streamCSVFile streams a CSV file from disk.
func streamCSVFile(ctx context.Context, path string) (<-chan Record, <-chan error) {
	body, err := os.ReadFile(path)
	if err != nil {
		rowCh := make(chan Record)
		errCh := make(chan error, 1)
		errCh <- eris.Wrapf(err, "csv: open %s", path)
		close(rowCh)
		close(errCh)
		return rowCh, errCh
	}
	return StreamCSV(ctx, bytes.NewReader(body), CSVOptions{Comment: '#'})
}
