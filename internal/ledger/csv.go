package ledger

import (
	"encoding/csv"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

type CSVOptions struct {
	// Prepend a UTF-8 byte order mark. Spreadsheet tools use it to detect the
	// encoding of non-ASCII user and device names.
	BOM bool
}

// WriteCSV writes the header followed by rows. Separator rows become blank
// lines.
func WriteCSV(w io.Writer, rows []Row, opts CSVOptions) error {
	out := w
	var tw *transform.Writer
	if opts.BOM {
		tw = transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
		out = tw
	}

	cw := csv.NewWriter(out)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row.Record()); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	if tw != nil {
		if err := tw.Close(); err != nil {
			return fmt.Errorf("close bom writer: %w", err)
		}
	}
	return nil
}
