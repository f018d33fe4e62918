package ledger

import (
	"fmt"
	"strconv"
	"time"

	"device-reservation/internal/storage"
)

// Placeholder is rendered for absent or anomalous values.
const Placeholder = "-"

const (
	StatusOngoing   = "Ongoing"
	StatusCompleted = "Completed"
)

// Header is the export column order.
var Header = []string{"date", "serial", "device_id", "device_name", "user", "start_time", "end_time", "duration", "status"}

// Row is one export line. A Separator row sits between two date groups and
// carries no data.
type Row struct {
	Separator bool

	Date       string
	Serial     int
	DeviceID   int64
	DeviceName string
	User       string
	StartTime  string
	EndTime    string
	Duration   string
	Status     string
}

func (r Row) Record() []string {
	if r.Separator {
		return []string{}
	}
	return []string{
		r.Date,
		strconv.Itoa(r.Serial),
		strconv.FormatInt(r.DeviceID, 10),
		r.DeviceName,
		r.User,
		r.StartTime,
		r.EndTime,
		r.Duration,
		r.Status,
	}
}

// Serialize groups entries by the calendar date of their start time. Entries
// must already be in query order. Serials restart at 1 for each date.
func Serialize(entries []storage.LogEntry) []Row {
	rows := make([]Row, 0, len(entries))
	current := ""
	serial := 0

	for i := range entries {
		e := &entries[i]
		date := e.StartTime.Format(storage.DateLayout)
		if serial == 0 || date != current {
			if serial > 0 {
				rows = append(rows, Row{Separator: true})
			}
			current = date
			serial = 1
		} else {
			serial++
		}

		row := Row{
			Date:       date,
			Serial:     serial,
			DeviceID:   e.DeviceID,
			DeviceName: e.DeviceName,
			User:       e.User,
			StartTime:  e.StartTime.Format("15:04"),
			Duration:   Duration(e),
			Status:     Status(e),
		}
		if e.EndTime != nil {
			row.EndTime = e.EndTime.Format("15:04")
		}
		rows = append(rows, row)
	}
	return rows
}

// Status is Ongoing for open entries and Completed otherwise.
func Status(e *storage.LogEntry) string {
	if e.Ongoing() {
		return StatusOngoing
	}
	return StatusCompleted
}

// Duration renders the length of a closed entry.
func Duration(e *storage.LogEntry) string {
	if e.EndTime == nil {
		return Placeholder
	}
	return FormatDuration(e.StartTime, *e.EndTime)
}

// FormatDuration renders whole minutes between start and end as "2h 10m" or
// "15m". A negative span renders as the placeholder.
func FormatDuration(start, end time.Time) string {
	minutes := int64(end.Sub(start) / time.Minute)
	if end.Before(start) {
		return Placeholder
	}
	if minutes >= 60 {
		return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}
