// Package fetcher reads and writes the JSON, CSV and XLSX files that pipeline
// stages exchange.
package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures StreamCSV.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // 0 disables comments
	LazyQuotes bool
	TrimSpace  bool
	SkipHeader bool
}

func (o CSVOptions) reader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	if o.Delimiter != 0 {
		cr.Comma = o.Delimiter
	}
	cr.Comment = o.Comment
	cr.LazyQuotes = o.LazyQuotes
	cr.FieldsPerRecord = -1
	return cr
}

// StreamCSV sends the rows of r on the returned channel. Rows may differ in
// field count. Both channels are closed when the input is drained, on the
// first read error, or when ctx is done.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		cr := opts.reader(r)
		for line := 0; ; line++ {
			if err := ctx.Err(); err != nil {
				errCh <- eris.Wrap(err, "csv: context cancelled")
				return
			}
			record, err := cr.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			if line == 0 && opts.SkipHeader {
				continue
			}
			if opts.TrimSpace {
				for i := range record {
					record[i] = strings.TrimSpace(record[i])
				}
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// CollectCSV drains StreamCSV into memory. Rows read before an error are
// returned with it.
func CollectCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([][]string, error) {
	rowCh, errCh := StreamCSV(ctx, r, opts)
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	return rows, <-errCh
}
