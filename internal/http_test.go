package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"device-reservation/internal/access"
	"device-reservation/internal/config"
	"device-reservation/internal/ledger"
	"device-reservation/internal/reservation"
	"device-reservation/internal/routes"
	"device-reservation/internal/storage"
	"device-reservation/web"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hostAddr  = "192.0.2.10:40000"
	guestAddr = "192.0.2.99:40000"
)

type testServer struct {
	router *gin.Engine
	engine *reservation.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewProvider(&config.Storage{
		SQLite: &config.SQLiteStorage{Path: filepath.Join(t.TempDir(), "devices.db")},
	}, time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine := reservation.NewEngine(store, reservation.Options{Location: time.UTC})
	router, err := HTTPServer(&routes.Services{
		Engine:       engine,
		Ledger:       ledger.New(store, ledger.CSVOptions{}),
		Policy:       access.NewHostPolicy("192.0.2.10"),
		BaseURL:      "/",
		HistoryLimit: 10,
		RefreshMS:    30000,
	})
	require.NoError(t, err)

	return &testServer{router: router, engine: engine}
}

type request struct {
	method string
	path   string
	form   url.Values
	json   bool
	remote string
	header map[string]string
}

func (s *testServer) do(r request) *httptest.ResponseRecorder {
	var body *strings.Reader
	if r.form != nil {
		body = strings.NewReader(r.form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(r.method, r.path, body)
	if r.form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if r.json {
		req.Header.Set("Accept", "application/json")
	}
	req.RemoteAddr = guestAddr
	if r.remote != "" {
		req.RemoteAddr = r.remote
	}
	for k, v := range r.header {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) device(t *testing.T, id int64) (reservation.DeviceView, bool) {
	t.Helper()
	devices, err := s.engine.ListDevices(context.Background())
	require.NoError(t, err)
	for _, d := range devices {
		if d.ID == id {
			return d, true
		}
	}
	return reservation.DeviceView{}, false
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func etaIn(d time.Duration) string {
	return time.Now().UTC().Add(d).Format(storage.TimeLayout)
}

func lockForm(user, eta string) url.Values {
	return url.Values{"user": {user}, "eta": {eta}}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(request{method: http.MethodGet, path: "/health?ping=hello"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", decode(t, w)["message"])
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	s := newTestServer(t)
	id := uuid.NewString()

	w := s.do(request{method: http.MethodGet, path: "/health", header: map[string]string{routes.RequestIDHeader: id}})
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, id, w.Header().Get(routes.RequestIDHeader))

	w = s.do(request{method: http.MethodGet, path: "/health", header: map[string]string{routes.RequestIDHeader: "<script>"}})
	_, err := uuid.Parse(w.Header().Get(routes.RequestIDHeader))
	assert.NoError(t, err, "malformed ids are replaced")
}

func TestDashboardRenders(t *testing.T) {
	s := newTestServer(t)

	w := s.do(request{method: http.MethodGet, path: "/"})
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Device 15")
	assert.Contains(t, body, `action="/lock/1"`)
	assert.Contains(t, body, "No reservations yet")
	assert.NotContains(t, body, `action="/delete/1"`)
	assert.NotContains(t, body, `action="/recover"`)

	w = s.do(request{method: http.MethodGet, path: "/", remote: hostAddr})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/delete/1"`)
	assert.Contains(t, w.Body.String(), `action="/recover"`)
}

func TestDashboardNotice(t *testing.T) {
	s := newTestServer(t)

	w := s.do(request{method: http.MethodGet, path: "/?notice=DEVICE_IN_USE"})
	assert.Contains(t, w.Body.String(), "Device is in use")

	w = s.do(request{method: http.MethodGet, path: "/?notice=%3Cb%3Ehi%3C%2Fb%3E"})
	assert.NotContains(t, w.Body.String(), `class="notice"`)
}

func TestLockAndUnlockFromBrowser(t *testing.T) {
	s := newTestServer(t)

	w := s.do(request{method: http.MethodPost, path: "/lock/3", form: lockForm("alice", etaIn(time.Hour))})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/?notice=LOCKED", w.Header().Get("Location"))

	d, _ := s.device(t, 3)
	assert.True(t, d.InUse())
	assert.Equal(t, "ALICE", *d.CurrentUser)

	w = s.do(request{method: http.MethodGet, path: "/"})
	assert.Contains(t, w.Body.String(), `action="/unlock/3"`)

	w = s.do(request{method: http.MethodPost, path: "/unlock/3"})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/?notice=UNLOCKED", w.Header().Get("Location"))

	// Already available
	w = s.do(request{method: http.MethodPost, path: "/unlock/3"})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestLockRejectedFromBrowser(t *testing.T) {
	s := newTestServer(t)

	w := s.do(request{method: http.MethodPost, path: "/lock/4", form: lockForm("", etaIn(time.Hour))})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/?notice=USER_REQUIRED", w.Header().Get("Location"))

	w = s.do(request{method: http.MethodPost, path: "/lock/4", form: lockForm("bob", etaIn(-time.Hour))})
	assert.Equal(t, "/?notice=ETA_IN_PAST", w.Header().Get("Location"))

	d, _ := s.device(t, 4)
	assert.False(t, d.InUse())
}

func TestLockJSON(t *testing.T) {
	s := newTestServer(t)

	w := s.do(request{method: http.MethodPost, path: "/lock/2", form: lockForm("alice", etaIn(time.Hour)), json: true})
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, float64(2), out["device_id"])

	w = s.do(request{method: http.MethodPost, path: "/lock/2", form: lockForm("bob", etaIn(time.Hour)), json: true})
	assert.Equal(t, http.StatusConflict, w.Code)
	out = decode(t, w)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, []any{"DEVICE_IN_USE"}, out["code"])

	w = s.do(request{method: http.MethodPost, path: "/lock/99", form: lockForm("bob", etaIn(time.Hour)), json: true})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, []any{"DEVICE_NOT_FOUND"}, decode(t, w)["code"])

	w = s.do(request{method: http.MethodPost, path: "/lock/abc", form: lockForm("bob", etaIn(time.Hour)), json: true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []any{"INVALID_DEVICE_ID"}, decode(t, w)["code"])

	w = s.do(request{method: http.MethodPost, path: "/lock/5", form: lockForm("bob", etaIn(40*24*time.Hour)), json: true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []any{"ETA_TOO_FAR"}, decode(t, w)["code"])
}

func TestUnlockJSONReportsChange(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.engine.Lock(context.Background(), 1, "alice", etaIn(time.Hour)))

	w := s.do(request{method: http.MethodPost, path: "/unlock/1", json: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["changed"])

	w = s.do(request{method: http.MethodPost, path: "/unlock/1", json: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["changed"])
}

func TestAddDevice(t *testing.T) {
	s := newTestServer(t)

	w := s.do(request{method: http.MethodPost, path: "/add", form: url.Values{"name": {"Scope"}}, json: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(16), decode(t, w)["device_id"])

	w = s.do(request{method: http.MethodPost, path: "/add", form: url.Values{"name": {" "}}})
	assert.Equal(t, "/?notice=NAME_REQUIRED", w.Header().Get("Location"))
}

func TestHostOnlyActionsIgnoredForGuests(t *testing.T) {
	s := newTestServer(t)

	w := s.do(request{method: http.MethodPost, path: "/delete/5"})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = s.do(request{method: http.MethodPost, path: "/edit/5", form: url.Values{"name": {"Mine"}}})
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = s.do(request{method: http.MethodPost, path: "/delete/5", json: true})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, []any{"HOST_ONLY"}, decode(t, w)["code"])

	d, ok := s.device(t, 5)
	require.True(t, ok)
	assert.Equal(t, "Device 5", d.Name)
}

func TestForwardedForIsNotTrusted(t *testing.T) {
	s := newTestServer(t)

	w := s.do(request{
		method: http.MethodPost,
		path:   "/delete/6",
		json:   true,
		header: map[string]string{"X-Forwarded-For": "192.0.2.10"},
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	_, ok := s.device(t, 6)
	assert.True(t, ok)
}

func TestHostActions(t *testing.T) {
	s := newTestServer(t)

	w := s.do(request{method: http.MethodPost, path: "/edit/2", form: url.Values{"name": {"Oscilloscope"}}, remote: hostAddr})
	assert.Equal(t, "/?notice=RENAMED", w.Header().Get("Location"))
	d, _ := s.device(t, 2)
	assert.Equal(t, "Oscilloscope", d.Name)

	w = s.do(request{method: http.MethodPost, path: "/delete/5", remote: hostAddr})
	assert.Equal(t, "/?notice=DELETED", w.Header().Get("Location"))
	_, ok := s.device(t, 5)
	assert.False(t, ok)

	w = s.do(request{method: http.MethodPost, path: "/recover", remote: hostAddr, json: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{float64(5)}, decode(t, w)["created"])

	w = s.do(request{method: http.MethodPost, path: "/recover", remote: hostAddr, json: true})
	assert.Equal(t, []any{}, decode(t, w)["created"])
}

func TestDeleteInUseRejected(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.engine.Lock(context.Background(), 7, "alice", etaIn(time.Hour)))

	w := s.do(request{method: http.MethodPost, path: "/delete/7", remote: hostAddr})
	assert.Equal(t, "/?notice=DEVICE_IN_USE", w.Header().Get("Location"))
	_, ok := s.device(t, 7)
	assert.True(t, ok)
}

func TestStateJSON(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.engine.Lock(context.Background(), 1, "alice", etaIn(time.Hour)))

	w := s.do(request{method: http.MethodGet, path: "/state.json"})
	require.Equal(t, http.StatusOK, w.Code)

	var state struct {
		Devices []struct {
			ID        int64  `json:"id"`
			InUse     bool   `json:"in_use"`
			User      string `json:"current_user"`
			ETAStatus string `json:"eta_status"`
		} `json:"devices"`
		History []struct {
			User    string `json:"user"`
			Ongoing bool   `json:"is_ongoing"`
		} `json:"history"`
		IsHost bool `json:"is_host"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))

	require.Len(t, state.Devices, 15)
	assert.True(t, state.Devices[0].InUse)
	assert.Equal(t, "ALICE", state.Devices[0].User)
	assert.Equal(t, "Active", state.Devices[0].ETAStatus)
	require.Len(t, state.History, 1)
	assert.True(t, state.History[0].Ongoing)
	assert.False(t, state.IsHost)
}

func TestDownloadLogs(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.engine.Lock(context.Background(), 1, "alice", etaIn(time.Hour)))

	w := s.do(request{method: http.MethodGet, path: "/download_logs"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="logs_all.csv"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv"))
	assert.True(t, strings.HasPrefix(w.Body.String(), strings.Join(ledger.Header, ",")+"\n"))
	assert.Contains(t, w.Body.String(), ",ALICE,")

	w = s.do(request{method: http.MethodGet, path: "/download_logs?start_date=2000-01-01&end_date=2000-01-31"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="logs_2000-01-01_to_2000-01-31.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, strings.Join(ledger.Header, ",")+"\n", w.Body.String())
}

func TestDownloadLogsInvalidDate(t *testing.T) {
	s := newTestServer(t)

	w := s.do(request{method: http.MethodGet, path: "/download_logs?start_date=yesterday", json: true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []any{"INVALID_DATE"}, decode(t, w)["code"])

	w = s.do(request{method: http.MethodGet, path: "/download_logs?end_date=31.01.2024"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "YYYY-MM-DD")
}

func TestQRCode(t *testing.T) {
	s := newTestServer(t)

	w := s.do(request{method: http.MethodGet, path: "/qr.png"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "\x89PNG"))
}

func TestParseNetworks(t *testing.T) {
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.0.0/16"}, parseNetworks(" 10.0.0.0/8, ,192.168.0.0/16,"))
	assert.Nil(t, parseNetworks(""))
}

func TestIPAccessControl(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("GIN_MODE", "release")

	r := gin.New()
	r.Use(IPAccessControl([]string{"10.0.0.0/8"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for remote, want := range map[string]int{
		"10.1.2.3:1000":  http.StatusNoContent,
		"192.0.2.1:1000": http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, remote)
	}
}

func TestRendererHasEveryPage(t *testing.T) {
	_, err := Renderer(web.Templates)
	require.NoError(t, err)
}
