package routes

import (
	"context"
	"net/http"
	"time"

	"device-reservation/internal/ledger"
	"device-reservation/internal/reservation"
	"device-reservation/internal/storage"

	"github.com/gin-gonic/gin"
)

// Display layout of timestamps on the dashboard.
const displayLayout = "02-01-2006 03:04 PM"

type deviceView struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	InUse     bool   `json:"in_use"`
	User      string `json:"current_user,omitempty"`
	ETA       string `json:"eta,omitempty"`
	ETADisp   string `json:"eta_display"`
	ETAStatus string `json:"eta_status"`
}

type historyView struct {
	ID         int64  `json:"id"`
	DeviceID   int64  `json:"device_id"`
	DeviceName string `json:"device_name"`
	User       string `json:"user"`
	Start      string `json:"start_display"`
	End        string `json:"end_display"`
	Duration   string `json:"duration"`
	Status     string `json:"status"`
	Ongoing    bool   `json:"is_ongoing"`
}

type dashboardState struct {
	Devices   []deviceView  `json:"devices"`
	History   []historyView `json:"history"`
	IsHost    bool          `json:"is_host"`
	RefreshMS int           `json:"refresh_ms"`
	Today     string        `json:"today"`
	// Bounds for the ETA input.
	MinETA string `json:"min_eta"`
	MaxETA string `json:"max_eta"`
}

func newDeviceView(d reservation.DeviceView) deviceView {
	v := deviceView{
		ID:        d.ID,
		Name:      d.Name,
		Status:    string(d.Status),
		InUse:     d.InUse(),
		ETADisp:   ledger.Placeholder,
		ETAStatus: string(d.ETAStatus),
	}
	if d.CurrentUser != nil {
		v.User = *d.CurrentUser
	}
	if d.ETA != nil {
		v.ETA = d.ETA.Format(storage.TimeLayout)
		v.ETADisp = d.ETA.Format(displayLayout)
	}
	return v
}

func newHistoryView(e storage.LogEntry) historyView {
	v := historyView{
		ID:         e.ID,
		DeviceID:   e.DeviceID,
		DeviceName: e.DeviceName,
		User:       e.User,
		Start:      e.StartTime.Format(displayLayout),
		End:        ledger.StatusOngoing,
		Duration:   ledger.Duration(&e),
		Status:     ledger.Status(&e),
		Ongoing:    e.Ongoing(),
	}
	if e.EndTime != nil {
		v.End = e.EndTime.Format(displayLayout)
	}
	return v
}

func loadDashboard(ctx context.Context, c *gin.Context) (*dashboardState, error) {
	s := services(c)

	devices, err := s.Engine.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.Engine.RecentHistory(ctx, s.HistoryLimit)
	if err != nil {
		return nil, err
	}

	now := s.Engine.Now()
	state := &dashboardState{
		Devices:   make([]deviceView, 0, len(devices)),
		History:   make([]historyView, 0, len(entries)),
		IsHost:    IsHost(c),
		RefreshMS: s.RefreshMS,
		Today:     now.Format(storage.DateLayout),
		MinETA:    earliestETA(now).Format(storage.TimeLayout),
		MaxETA:    now.Add(s.Engine.MaxReservation()).Format(storage.TimeLayout),
	}
	for _, d := range devices {
		state.Devices = append(state.Devices, newDeviceView(d))
	}
	for _, e := range entries {
		state.History = append(state.History, newHistoryView(e))
	}
	return state, nil
}

// earliestETA is the first whole minute Lock accepts: now rounded up.
func earliestETA(now time.Time) time.Time {
	return now.Add(time.Minute - time.Nanosecond).Truncate(time.Minute)
}

func Dashboard(r *gin.RouterGroup) {
	r.GET("/", func(c *gin.Context) {
		state, err := loadDashboard(c.Request.Context(), c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		var notice string
		if code := c.Query("notice"); code != "" {
			notice = noticeMessage(code)
		}

		HTML(c, http.StatusOK, "dashboard.html.tmpl", gin.H{
			"State":  state,
			"Notice": notice,
		})
	})

	// Polling clients refresh from this instead of reloading the page.
	r.GET("/state.json", func(c *gin.Context) {
		state, err := loadDashboard(c.Request.Context(), c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, state)
	})
}

// noticeMessage maps a stop code back to its message. Unknown codes are
// ignored so the query string cannot inject text.
func noticeMessage(code string) string {
	for _, info := range errorInfoMap {
		for _, sc := range info.StopCodes {
			if sc == code {
				return info.Message
			}
		}
	}
	if msg, ok := successNotices[code]; ok {
		return msg
	}
	return ""
}

var successNotices = map[string]string{
	"LOCKED":    "Device reserved",
	"UNLOCKED":  "Device released",
	"ADDED":     "Device added",
	"RENAMED":   "Device renamed",
	"DELETED":   "Device deleted",
	"RECOVERED": "Missing devices restored",
}
