package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sightsrobotics/console/internal/health"
	"github.com/sightsrobotics/console/internal/store"
	"github.com/sightsrobotics/console/internal/theme"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type keyReport struct {
	session string
	key     string
	down    bool
}

type fakeSession struct {
	name    string
	backend *fakeBackend
}

func (f *fakeSession) Feed(key string, down bool) {
	f.backend.mu.Lock()
	f.backend.reports = append(f.backend.reports, keyReport{f.name, key, down})
	f.backend.mu.Unlock()
}

func (f *fakeSession) Close() {
	f.backend.mu.Lock()
	f.backend.closed = append(f.backend.closed, f.name)
	f.backend.mu.Unlock()
}

type fakeBackend struct {
	mu       sync.Mutex
	speed    int
	mounted  map[string]bool
	powered  []string
	powerErr error
	reports  []keyReport
	closed   []string
	theme    *theme.State
	sample   health.Sample
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		speed:   3,
		mounted: map[string]bool{"CPU": false},
		theme:   theme.NewState(theme.ModeSystem),
		sample:  health.Sample{Quality: health.QualityConnecting},
	}
}

func (f *fakeBackend) OpenInput(name string) KeySession {
	return &fakeSession{name: name, backend: f}
}

func (f *fakeBackend) Bindings() []Binding {
	return []Binding{{Action: "drive-forward", Description: "Drive forward", Keys: []string{"KeyW", "ArrowUp"}, Holdable: true}}
}

func (f *fakeBackend) Speed() int { return f.speed }

func (f *fakeBackend) ResetSpeed() int {
	f.speed = 3
	return f.speed
}

func (f *fakeBackend) Mount(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.mounted[name]; !ok {
		return fmt.Errorf("widget %q: %w", name, ErrNotFound)
	}
	if f.mounted[name] {
		return errors.New("already mounted")
	}
	f.mounted[name] = true
	return nil
}

func (f *fakeBackend) Unmount(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.mounted[name]; !ok {
		return fmt.Errorf("widget %q: %w", name, ErrNotFound)
	}
	f.mounted[name] = false
	return nil
}

func (f *fakeBackend) Power(_ context.Context, action string) error {
	f.powered = append(f.powered, action)
	return f.powerErr
}

func (f *fakeBackend) Connection() health.Sample { return f.sample }

func (f *fakeBackend) Theme() *theme.State { return f.theme }

func (f *fakeBackend) snapshotReports() ([]keyReport, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]keyReport(nil), f.reports...), append([]string(nil), f.closed...)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// --- SSE ---

func TestHandleSSE_SendsInitialSnapshots(t *testing.T) {
	st := store.NewMemoryStore()
	st.Update(store.WidgetSnapshot{Name: "CPU", Kind: "gauge"})
	st.Update(store.WidgetSnapshot{Name: "Uptime", Kind: "uptime"})

	srv := NewServer(st, nil, 0, nil, "", testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	srv.handleSSE(rec, req)

	events := parseSSEEvents(rec.Body.String())
	if len(events) != 2 || events[0].Name != "CPU" || events[1].Name != "Uptime" {
		t.Errorf("initial events = %+v", events)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestHandleSSE_StreamsUpdatesAndRemovals(t *testing.T) {
	st := store.NewMemoryStore()
	srv := NewServer(st, nil, 0, nil, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	st.Update(store.WidgetSnapshot{Name: "Memory", Kind: "gauge"})
	st.Remove("Memory")
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not exit after context cancellation")
	}

	events := parseSSEEvents(rec.Body.String())
	if len(events) != 2 {
		t.Fatalf("events = %+v, want update then removal", events)
	}
	if events[0].Removed || !events[1].Removed {
		t.Errorf("events = %+v", events)
	}
}

type nonFlushWriter struct {
	header http.Header
	code   int
}

func (n *nonFlushWriter) Header() http.Header { return n.header }

func (n *nonFlushWriter) Write(b []byte) (int, error) { return len(b), nil }

func (n *nonFlushWriter) WriteHeader(code int) { n.code = code }

func TestHandleSSE_FlushNotSupported(t *testing.T) {
	srv := NewServer(store.NewMemoryStore(), nil, 0, nil, "", testLogger())
	w := &nonFlushWriter{header: http.Header{}}

	srv.handleSSE(w, httptest.NewRequest(http.MethodGet, "/api/sse", nil))

	if w.code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.code)
	}
}

func TestHandleSSE_ServerShutdownIntegration(t *testing.T) {
	st := store.NewMemoryStore()
	st.Update(store.WidgetSnapshot{Name: "CPU"})
	srv := NewServer(st, nil, 0, nil, "", testLogger())

	serverCtx, serverCancel := context.WithCancel(context.Background())
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.handleSSE(w, r.WithContext(serverCtx))
	}))
	defer ts.Close()

	connDone := make(chan struct{})
	go func() {
		defer close(connDone)
		resp, err := ts.Client().Get(ts.URL)
		if err != nil {
			return
		}
		defer func() { _ = resp.Body.Close() }()
		_, _ = io.Copy(io.Discard, resp.Body)
	}()

	time.Sleep(100 * time.Millisecond)
	serverCancel()

	select {
	case <-connDone:
	case <-time.After(3 * time.Second):
		t.Fatal("SSE connection did not close after server shutdown")
	}
}

func parseSSEEvents(body string) []store.WidgetSnapshot {
	var results []store.WidgetSnapshot
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var snap store.WidgetSnapshot
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &snap); err == nil {
			results = append(results, snap)
		}
	}
	return results
}

// --- Start ---

func TestStart_AvailablePort(t *testing.T) {
	srv := NewServer(store.NewMemoryStore(), nil, 0, nil, "", testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		t.Errorf("Start() on available port returned error: %v", err)
	}
}

func TestStart_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer func() { _ = ln.Close() }()

	srv := NewServer(store.NewMemoryStore(), nil, ln.Addr().(*net.TCPAddr).Port, nil, "", testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = srv.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "failed to bind") {
		t.Errorf("Start() on occupied port = %v, want bind error", err)
	}
}

// --- Dashboard ---

type mockFS struct {
	content string
}

func (m *mockFS) Open(string) (fs.File, error) { return nil, fs.ErrNotExist }

func (m *mockFS) ReadFile(name string) ([]byte, error) {
	if name == "assets/index.html" {
		return []byte(m.content), nil
	}
	return nil, fs.ErrNotExist
}

func TestHandleDashboard_Title(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"custom", "Rover One", "<title>Rover One</title>"},
		{"default", "", "<title>SIGHTS</title>"},
		{"escaped", "<script>x</script>", "<title>&lt;script&gt;x&lt;/script&gt;</title>"},
		{"ampersand", "Arm & Drive", "<title>Arm &amp; Drive</title>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(store.NewMemoryStore(), nil, 0, &mockFS{content: "<title>{{.Title}}</title>"}, tt.title, testLogger())
			rec := do(t, srv.Handler(), http.MethodGet, "/", "")
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.want)
			}
		})
	}
}

func TestHandleDashboard_NonRootPath(t *testing.T) {
	srv := NewServer(store.NewMemoryStore(), nil, 0, &mockFS{content: "x"}, "", testLogger())
	rec := do(t, srv.Handler(), http.MethodGet, "/other", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleDashboard_MissingAssets(t *testing.T) {
	srv := NewServer(store.NewMemoryStore(), nil, 0, nil, "", testLogger())
	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

// --- Control routes ---

func TestWidgets(t *testing.T) {
	st := store.NewMemoryStore()
	st.Update(store.WidgetSnapshot{Name: "CPU", Kind: "gauge", Value: 12.5})
	srv := NewServer(st, nil, 0, nil, "", testLogger())

	rec := do(t, srv.Handler(), http.MethodGet, "/api/widgets", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []store.WidgetSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Value != 12.5 {
		t.Errorf("widgets = %+v", got)
	}
}

func TestControlRoutes_NoBackend(t *testing.T) {
	srv := NewServer(store.NewMemoryStore(), nil, 0, nil, "", testLogger())
	for _, path := range []string{"/api/speed", "/api/connection", "/api/theme", "/api/bindings"} {
		if rec := do(t, srv.Handler(), http.MethodGet, path, ""); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s status = %d, want 503", path, rec.Code)
		}
	}
}

func TestMountUnmount(t *testing.T) {
	fb := newFakeBackend()
	h := NewServer(store.NewMemoryStore(), fb, 0, nil, "", testLogger()).Handler()

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodPost, "/api/widgets/CPU/mount", http.StatusNoContent},
		{http.MethodPost, "/api/widgets/CPU/mount", http.StatusConflict},
		{http.MethodDelete, "/api/widgets/CPU/mount", http.StatusNoContent},
		{http.MethodPost, "/api/widgets/Nope/mount", http.StatusNotFound},
		{http.MethodGet, "/api/widgets/CPU/mount", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		if rec := do(t, h, tt.method, tt.path, ""); rec.Code != tt.want {
			t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
	}
}

func TestSpeed(t *testing.T) {
	fb := newFakeBackend()
	fb.speed = 7
	h := NewServer(store.NewMemoryStore(), fb, 0, nil, "", testLogger()).Handler()

	rec := do(t, h, http.MethodGet, "/api/speed", "")
	if !strings.Contains(rec.Body.String(), `"speed":7`) {
		t.Errorf("GET /api/speed = %s", rec.Body.String())
	}
	rec = do(t, h, http.MethodPost, "/api/speed/reset", "")
	if !strings.Contains(rec.Body.String(), `"speed":3`) {
		t.Errorf("POST /api/speed/reset = %s", rec.Body.String())
	}
}

func TestConnection(t *testing.T) {
	fb := newFakeBackend()
	rtt := int64(42)
	fb.sample = health.Sample{RoundTripMs: &rtt, Quality: health.QualityGood, Connected: true}
	h := NewServer(store.NewMemoryStore(), fb, 0, nil, "", testLogger()).Handler()

	rec := do(t, h, http.MethodGet, "/api/connection", "")
	body := rec.Body.String()
	if !strings.Contains(body, `"round_trip_ms":42`) || !strings.Contains(body, `"good"`) {
		t.Errorf("GET /api/connection = %s", body)
	}
}

func TestPower(t *testing.T) {
	fb := newFakeBackend()
	h := NewServer(store.NewMemoryStore(), fb, 0, nil, "", testLogger()).Handler()

	if rec := do(t, h, http.MethodPost, "/api/power/reboot", ""); rec.Code != http.StatusAccepted {
		t.Errorf("reboot status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/power/explode", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown action status = %d", rec.Code)
	}
	fb.powerErr = errors.New("robot unreachable")
	if rec := do(t, h, http.MethodPost, "/api/power/poweroff", ""); rec.Code != http.StatusBadGateway {
		t.Errorf("failed poweroff status = %d", rec.Code)
	}
	if len(fb.powered) != 2 || fb.powered[0] != "reboot" || fb.powered[1] != "poweroff" {
		t.Errorf("powered = %v", fb.powered)
	}
}

func TestTheme(t *testing.T) {
	fb := newFakeBackend()
	h := NewServer(store.NewMemoryStore(), fb, 0, nil, "", testLogger()).Handler()

	decode := func(rec *httptest.ResponseRecorder) theme.Snapshot {
		t.Helper()
		var snap theme.Snapshot
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
		return snap
	}

	snap := decode(do(t, h, http.MethodPost, "/api/theme", `{"system_dark":true}`))
	if snap.Mode != theme.ModeSystem || snap.Appearance != theme.Dark {
		t.Errorf("after system signal = %+v", snap)
	}

	snap = decode(do(t, h, http.MethodPost, "/api/theme/cycle", ""))
	if snap.Mode != theme.ModeLight || snap.Appearance != theme.Light {
		t.Errorf("after cycle = %+v", snap)
	}

	snap = decode(do(t, h, http.MethodPost, "/api/theme", `{"override":"dark"}`))
	if snap.Appearance != theme.Dark {
		t.Errorf("after override = %+v", snap)
	}

	snap = decode(do(t, h, http.MethodPost, "/api/theme", `{"override":""}`))
	if snap.Override != nil || snap.Appearance != theme.Light {
		t.Errorf("after clearing override = %+v", snap)
	}

	for _, body := range []string{`{"mode":"sepia"}`, `{"override":"blue"}`, `not json`} {
		if rec := do(t, h, http.MethodPost, "/api/theme", body); rec.Code != http.StatusBadRequest {
			t.Errorf("POST /api/theme %s status = %d, want 400", body, rec.Code)
		}
	}

	if snap := decode(do(t, h, http.MethodGet, "/api/theme", "")); snap.Mode != theme.ModeLight {
		t.Errorf("GET /api/theme = %+v", snap)
	}
}

func TestBindings(t *testing.T) {
	h := NewServer(store.NewMemoryStore(), newFakeBackend(), 0, nil, "", testLogger()).Handler()
	rec := do(t, h, http.MethodGet, "/api/bindings", "")
	if !strings.Contains(rec.Body.String(), `"keys":["KeyW","ArrowUp"]`) {
		t.Errorf("GET /api/bindings = %s", rec.Body.String())
	}
}

// --- Key relay ---

func TestKeys_RelaysAndClosesSession(t *testing.T) {
	fb := newFakeBackend()
	ts := httptest.NewServer(NewServer(store.NewMemoryStore(), fb, 0, nil, "", testLogger()).Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/keys"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	frames := []keyFrame{{"KeyW", true}, {"KeyW", true}, {"", true}, {"KeyW", false}}
	for _, f := range frames {
		if err := conn.WriteJSON(f); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		reports, closed := fb.snapshotReports()
		if len(closed) == 1 {
			if len(reports) != 3 {
				t.Errorf("reports = %+v, want 3 (empty key skipped)", reports)
			}
			if reports[0].session != closed[0] {
				t.Errorf("session %q closed, reports from %q", closed[0], reports[0].session)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("session not closed; reports = %+v", reports)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
