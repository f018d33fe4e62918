// Package ledger projects the usage log into its CSV export: entries grouped by
// day with per-day serial numbers and human readable durations.
package ledger

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"device-reservation/internal/storage"
)

// LogSource is the read side of the store used by the ledger.
type LogSource interface {
	QueryLogEntries(ctx context.Context, r storage.DateRange) ([]storage.LogEntry, error)
}

type Ledger struct {
	store LogSource
	opts  CSVOptions
}

func New(store LogSource, opts CSVOptions) *Ledger {
	return &Ledger{store: store, opts: opts}
}

// Query returns entries ordered by start date, start time, then id.
func (l *Ledger) Query(ctx context.Context, r storage.DateRange) ([]storage.LogEntry, error) {
	entries, err := l.store.QueryLogEntries(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("query log: %w", err)
	}
	return entries, nil
}

// ExportCSV writes the serialized log, optionally limited to a date range.
func (l *Ledger) ExportCSV(ctx context.Context, r storage.DateRange, w io.Writer) error {
	entries, err := l.Query(ctx, r)
	if err != nil {
		return err
	}
	return WriteCSV(w, Serialize(entries), l.opts)
}

// ExportBytes is ExportCSV into memory.
func (l *Ledger) ExportBytes(ctx context.Context, r storage.DateRange) ([]byte, error) {
	var buf bytes.Buffer
	if err := l.ExportCSV(ctx, r, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportFilename names a download: logs_all.csv without bounds, otherwise
// logs_<start>_to_<end>.csv with "start"/"end" standing in for an open side.
func ExportFilename(r storage.DateRange) string {
	if r.IsZero() {
		return "logs_all.csv"
	}
	start, end := "start", "end"
	if r.Start != nil {
		start = r.Start.Format(storage.DateLayout)
	}
	if r.End != nil {
		end = r.End.Format(storage.DateLayout)
	}
	return fmt.Sprintf("logs_%s_to_%s.csv", start, end)
}
