package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"device-reservation/internal/storage"
)

// FileExporter keeps a CSV copy of the whole log at a fixed path. Each Sync
// rewrites the file through a temp file and rename, so readers never see a
// partial export.
type FileExporter struct {
	mu     sync.Mutex
	path   string
	ledger *Ledger
	logger *slog.Logger
}

func NewFileExporter(path string, ledger *Ledger) *FileExporter {
	return &FileExporter{
		path:   path,
		ledger: ledger,
		logger: slog.With("component", "exporter", "path", path),
	}
}

func (x *FileExporter) Path() string {
	return x.path
}

func (x *FileExporter) Sync(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	dir := filepath.Dir(x.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir export dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(x.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp export: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := x.ledger.ExportCSV(ctx, storage.DateRange{}, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp export: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod export: %w", err)
	}
	if err := os.Rename(tmp.Name(), x.path); err != nil {
		return fmt.Errorf("replace export: %w", err)
	}

	x.logger.Debug("Exported log")
	return nil
}
