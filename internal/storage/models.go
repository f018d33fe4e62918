package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// TimeLayout is the persisted wall clock format, minute precision.
const TimeLayout = "2006-01-02T15:04"

// DateLayout is used for calendar date filters.
const DateLayout = "2006-01-02"

type DeviceStatus string

const (
	DeviceStatusAvailable DeviceStatus = "Available"
	DeviceStatusInUse     DeviceStatus = "In Use"
)

// Device is a reservable slot. CurrentUser and ETA are set iff Status is InUse.
type Device struct {
	ID          int64
	Name        string
	Status      DeviceStatus
	CurrentUser *string
	ETA         *time.Time
}

func (d *Device) InUse() bool {
	return d.Status == DeviceStatusInUse
}

// LogEntry is one reservation interval. EndTime nil means ongoing.
type LogEntry struct {
	ID       int64
	DeviceID int64
	// Empty when the device has been deleted since.
	DeviceName string
	User       string
	StartTime  time.Time
	EndTime    *time.Time
}

func (e *LogEntry) Ongoing() bool {
	return e.EndTime == nil
}

// DateRange bounds log queries by the calendar date of the start time. Both ends
// are inclusive and optional.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

func (r DateRange) IsZero() bool {
	return r.Start == nil && r.End == nil
}

type deviceRow struct {
	ID          int64          `db:"id"`
	Name        string         `db:"name"`
	Status      string         `db:"status"`
	CurrentUser sql.NullString `db:"current_user"`
	ETA         sql.NullString `db:"eta"`
}

type logRow struct {
	ID         int64          `db:"id"`
	DeviceID   int64          `db:"device_id"`
	DeviceName sql.NullString `db:"device_name"`
	User       string         `db:"user"`
	StartTime  string         `db:"start_time"`
	EndTime    sql.NullString `db:"end_time"`
}

func formatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(TimeLayout)
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(TimeLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q: %v", ErrMalformedRecord, s, err)
	}
	return t, nil
}

func (r deviceRow) toDevice(loc *time.Location) (Device, error) {
	d := Device{
		ID:     r.ID,
		Name:   r.Name,
		Status: DeviceStatus(r.Status),
	}
	if r.CurrentUser.Valid {
		user := r.CurrentUser.String
		d.CurrentUser = &user
	}
	if r.ETA.Valid {
		eta, err := parseTime(r.ETA.String, loc)
		if err != nil {
			return Device{}, fmt.Errorf("device %d eta: %w", r.ID, err)
		}
		d.ETA = &eta
	}
	return d, nil
}

func (r logRow) toLogEntry(loc *time.Location) (LogEntry, error) {
	start, err := parseTime(r.StartTime, loc)
	if err != nil {
		return LogEntry{}, fmt.Errorf("log %d start_time: %w", r.ID, err)
	}
	e := LogEntry{
		ID:         r.ID,
		DeviceID:   r.DeviceID,
		DeviceName: r.DeviceName.String,
		User:       r.User,
		StartTime:  start,
	}
	if r.EndTime.Valid {
		end, err := parseTime(r.EndTime.String, loc)
		if err != nil {
			return LogEntry{}, fmt.Errorf("log %d end_time: %w", r.ID, err)
		}
		e.EndTime = &end
	}
	return e, nil
}
