package storage

import (
	"context"
	"log/slog"
	"time"

	"device-reservation/internal/config"
)

type Provider interface {
	Close() error
	GetSchemaVersion(ctx context.Context) (int, error)

	// Device reads
	ListDevices(ctx context.Context) ([]Device, error)
	GetDevice(ctx context.Context, id int64) (*Device, error)

	// Log reads
	RecentLogEntries(ctx context.Context, limit int) ([]LogEntry, error)
	QueryLogEntries(ctx context.Context, r DateRange) ([]LogEntry, error)

	// InsertDeviceAuto inserts outside of any caller transaction, letting the
	// database pick the ID.
	InsertDeviceAuto(ctx context.Context, name string) (int64, error)

	// WithTx runs fn inside one exclusive write transaction. The transaction
	// commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of writes available inside WithTx.
type Tx interface {
	GetDevice(ctx context.Context, id int64) (*Device, error)
	DeviceIDs(ctx context.Context) ([]int64, error)

	InsertDevice(ctx context.Context, id int64, name string) error
	InsertDeviceAuto(ctx context.Context, name string) (int64, error)
	RenameDevice(ctx context.Context, id int64, name string) error
	DeleteDevice(ctx context.Context, id int64) error

	// MarkInUse flips an Available device to InUse. It reports false when the
	// device was not Available.
	MarkInUse(ctx context.Context, id int64, user string, eta time.Time) (bool, error)
	MarkAvailable(ctx context.Context, id int64) error

	OpenLogEntry(ctx context.Context, deviceID int64, user string, start time.Time) (int64, error)
	// CloseLatestOpenLogEntry sets end_time on the newest open entry of the
	// device. It reports false when there was none.
	CloseLatestOpenLogEntry(ctx context.Context, deviceID int64, end time.Time) (bool, error)
}

func NewProvider(config *config.Storage, loc *time.Location) (Provider, error) {
	switch {
	case config.SQLite != nil:
		provider, err := NewSQLiteProvider(config, loc)
		if err != nil {
			return nil, err
		}
		if err := provider.runMigrations("sqlite3"); err != nil {
			slog.Error("Failed to run migrations", "error", err)
			provider.Close()
			return nil, err
		}
		return provider, nil

	default:
		slog.Error("Unsupported storage configuration", "config", config)
	}

	return nil, ErrUnsupportedDriver
}
