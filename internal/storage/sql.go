package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"device-reservation/internal/config"

	"github.com/jmoiron/sqlx"
)

type SQLProvider struct {
	db *sqlx.DB

	config *config.Storage

	// Zone of the persisted wall clock timestamps.
	loc *time.Location

	logger *slog.Logger
}

func NewSQLProvider(config *config.Storage, driverName string, dataSource string, loc *time.Location) (*SQLProvider, error) {
	db, err := sqlx.Open(driverName, dataSource)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	if loc == nil {
		loc = time.Local
	}

	logger := slog.With("component", "storage")

	return &SQLProvider{
		db:     db,
		config: config,
		loc:    loc,
		logger: logger,
	}, nil
}

func (p *SQLProvider) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

const selectDevices = `SELECT id, name, status, current_user, eta FROM devices`

const selectLogs = `
SELECT l.id, l.device_id, d.name AS device_name, l.user, l.start_time, l.end_time
FROM logs l
LEFT JOIN devices d ON d.id = l.device_id`

func (p *SQLProvider) ListDevices(ctx context.Context) ([]Device, error) {
	var rows []deviceRow
	if err := p.db.SelectContext(ctx, &rows, selectDevices+` ORDER BY id`); err != nil {
		return nil, fmt.Errorf("ListDevices: %w", err)
	}
	devices := make([]Device, 0, len(rows))
	for _, r := range rows {
		d, err := r.toDevice(p.loc)
		if err != nil {
			return nil, fmt.Errorf("ListDevices: %w", err)
		}
		devices = append(devices, d)
	}
	return devices, nil
}

func (p *SQLProvider) GetDevice(ctx context.Context, id int64) (*Device, error) {
	return getDevice(ctx, p.db, id, p.loc)
}

func (p *SQLProvider) RecentLogEntries(ctx context.Context, limit int) ([]LogEntry, error) {
	var rows []logRow
	if err := p.db.SelectContext(ctx, &rows, selectLogs+` ORDER BY l.id DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("RecentLogEntries: %w", err)
	}
	return p.toLogEntries(rows)
}

// QueryLogEntries returns entries ordered by start date, start time, then id.
func (p *SQLProvider) QueryLogEntries(ctx context.Context, r DateRange) ([]LogEntry, error) {
	query := selectLogs + ` WHERE 1 = 1`
	var args []any
	if r.Start != nil {
		query += ` AND date(l.start_time) >= date(?)`
		args = append(args, r.Start.Format(DateLayout))
	}
	if r.End != nil {
		query += ` AND date(l.start_time) <= date(?)`
		args = append(args, r.End.Format(DateLayout))
	}
	query += ` ORDER BY date(l.start_time) ASC, l.start_time ASC, l.id ASC`

	var rows []logRow
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("QueryLogEntries: %w", err)
	}
	return p.toLogEntries(rows)
}

func (p *SQLProvider) toLogEntries(rows []logRow) ([]LogEntry, error) {
	entries := make([]LogEntry, 0, len(rows))
	for _, r := range rows {
		e, err := r.toLogEntry(p.loc)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (p *SQLProvider) InsertDeviceAuto(ctx context.Context, name string) (int64, error) {
	return insertDeviceAuto(ctx, p.db, name)
}

func (p *SQLProvider) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&sqlTx{tx: tx, loc: p.loc}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			p.logger.Warn("Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (p *SQLProvider) GetSchemaVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	err := p.db.GetContext(ctx, &version, `SELECT MAX(version) FROM schema_migrations`)
	if err != nil {
		return 0, fmt.Errorf("GetSchemaVersion: %w", err)
	}
	return int(version.Int64), nil
}

// sqlTx implements Tx on top of a sqlx transaction.
type sqlTx struct {
	tx  *sqlx.Tx
	loc *time.Location
}

func (t *sqlTx) GetDevice(ctx context.Context, id int64) (*Device, error) {
	return getDevice(ctx, t.tx, id, t.loc)
}

func (t *sqlTx) DeviceIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := t.tx.SelectContext(ctx, &ids, `SELECT id FROM devices ORDER BY id`); err != nil {
		return nil, fmt.Errorf("DeviceIDs: %w", err)
	}
	return ids, nil
}

func (t *sqlTx) InsertDevice(ctx context.Context, id int64, name string) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO devices (id, name, status) VALUES (?, ?, ?)`,
		id, name, DeviceStatusAvailable)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("InsertDevice %d: %w", id, ErrDuplicateID)
		}
		return fmt.Errorf("InsertDevice %d: %w", id, err)
	}
	return nil
}

func (t *sqlTx) InsertDeviceAuto(ctx context.Context, name string) (int64, error) {
	return insertDeviceAuto(ctx, t.tx, name)
}

func (t *sqlTx) RenameDevice(ctx context.Context, id int64, name string) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE devices SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("RenameDevice %d: %w", id, err)
	}
	return requireAffected(res, id)
}

func (t *sqlTx) DeleteDevice(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("DeleteDevice %d: %w", id, err)
	}
	return requireAffected(res, id)
}

func (t *sqlTx) MarkInUse(ctx context.Context, id int64, user string, eta time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
UPDATE devices SET status = ?, current_user = ?, eta = ?
WHERE id = ? AND status = ?`,
		DeviceStatusInUse, user, formatTime(eta, t.loc), id, DeviceStatusAvailable)
	if err != nil {
		return false, fmt.Errorf("MarkInUse %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("MarkInUse %d rows: %w", id, err)
	}
	return n == 1, nil
}

func (t *sqlTx) MarkAvailable(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `
UPDATE devices SET status = ?, current_user = NULL, eta = NULL
WHERE id = ?`, DeviceStatusAvailable, id)
	if err != nil {
		return fmt.Errorf("MarkAvailable %d: %w", id, err)
	}
	return requireAffected(res, id)
}

func (t *sqlTx) OpenLogEntry(ctx context.Context, deviceID int64, user string, start time.Time) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `INSERT INTO logs (device_id, user, start_time) VALUES (?, ?, ?)`,
		deviceID, user, formatTime(start, t.loc))
	if err != nil {
		return 0, fmt.Errorf("OpenLogEntry device %d: %w", deviceID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("OpenLogEntry device %d id: %w", deviceID, err)
	}
	return id, nil
}

func (t *sqlTx) CloseLatestOpenLogEntry(ctx context.Context, deviceID int64, end time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
UPDATE logs SET end_time = ?
WHERE id = (
    SELECT id FROM logs
    WHERE device_id = ? AND end_time IS NULL
    ORDER BY id DESC
    LIMIT 1
)`, formatTime(end, t.loc), deviceID)
	if err != nil {
		return false, fmt.Errorf("CloseLatestOpenLogEntry device %d: %w", deviceID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("CloseLatestOpenLogEntry device %d rows: %w", deviceID, err)
	}
	return n == 1, nil
}

func getDevice(ctx context.Context, q sqlx.QueryerContext, id int64, loc *time.Location) (*Device, error) {
	var row deviceRow
	err := sqlx.GetContext(ctx, q, &row, selectDevices+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("device %d: %w", id, ErrDeviceNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetDevice %d: %w", id, err)
	}
	d, err := row.toDevice(loc)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func insertDeviceAuto(ctx context.Context, e sqlx.ExecerContext, name string) (int64, error) {
	res, err := e.ExecContext(ctx, `INSERT INTO devices (name, status) VALUES (?, ?)`, name, DeviceStatusAvailable)
	if err != nil {
		return 0, fmt.Errorf("InsertDeviceAuto: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("InsertDeviceAuto id: %w", err)
	}
	return id, nil
}

func requireAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("device %d: %w", id, ErrDeviceNotFound)
	}
	return nil
}
