package command

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

func robotServer(t *testing.T, status int) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), reqs...)
	}
}

func TestNewHTTPTransport_Validation(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"http://robot.local:5000", false},
		{"https://robot.local", false},
		{"ftp://robot.local", true},
		{"://bad", true},
	}
	for _, tt := range tests {
		_, err := NewHTTPTransport(tt.url, 0)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewHTTPTransport(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestHTTPTransport_Routes(t *testing.T) {
	srv, requests := robotServer(t, http.StatusOK)
	tr, err := NewHTTPTransport(srv.URL+"/", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	ctx := context.Background()
	calls := []func() error{
		func() error { return tr.Drive(ctx, 375, 375) },
		func() error { return tr.DriveStop(ctx) },
		func() error { return tr.MoveArmServo(ctx, WristUD, false) },
		func() error { return tr.HomeArm(ctx) },
		func() error { return tr.HomeArmToPreset(ctx, "drive") },
		func() error { return tr.PowerOff(ctx) },
		func() error { return tr.Reboot(ctx) },
	}
	for i, call := range calls {
		if err := call(); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	want := []struct {
		path string
		body map[string]any
	}{
		{"/api/drive/", map[string]any{"speed": []any{375.0, 375.0}}},
		{"/api/drive/stop", nil},
		{"/api/arm/servo/WRISTUD", map[string]any{"direction": false}},
		{"/api/arm/home", nil},
		{"/api/arm/preset/drive", nil},
		{"/api/poweroff", nil},
		{"/api/reboot", nil},
	}

	got := requests()
	if len(got) != len(want) {
		t.Fatalf("got %d requests, want %d", len(got), len(want))
	}
	for i, w := range want {
		r := got[i]
		if r.Method != http.MethodPost {
			t.Errorf("request %d method = %s, want POST", i, r.Method)
		}
		if r.Path != w.path {
			t.Errorf("request %d path = %s, want %s", i, r.Path, w.path)
		}
		if w.body == nil {
			if r.Body != "" {
				t.Errorf("request %d body = %q, want empty", i, r.Body)
			}
			continue
		}
		var body map[string]any
		if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
			t.Fatalf("request %d body %q: %v", i, r.Body, err)
		}
		if i == 0 {
			speed, _ := body["speed"].([]any)
			if len(speed) != 2 || speed[0] != 375.0 || speed[1] != 375.0 {
				t.Errorf("drive body = %v", body)
			}
			continue
		}
		for k, v := range w.body {
			if body[k] != v {
				t.Errorf("request %d %s = %v, want %v", i, k, body[k], v)
			}
		}
	}
}

func TestHTTPTransport_Non2xxIsError(t *testing.T) {
	srv, _ := robotServer(t, http.StatusInternalServerError)
	tr, _ := NewHTTPTransport(srv.URL, time.Second)

	err := tr.DriveStop(context.Background())
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error %q should mention status", err)
	}
}

func TestHTTPTransport_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	tr, _ := NewHTTPTransport(srv.URL, 50*time.Millisecond)
	start := time.Now()
	if err := tr.HomeArm(context.Background()); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Errorf("timeout took %v", time.Since(start))
	}
}

func TestMQTTTransport_PublishesPerKindTopic(t *testing.T) {
	pub := &FakePublisher{}
	tr, err := NewMQTTTransport(pub, "robots/rover1/")
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := tr.Drive(ctx, 250, -250); err != nil {
		t.Fatal(err)
	}
	if err := tr.MoveArmServo(ctx, Claw, true); err != nil {
		t.Fatal(err)
	}
	if err := tr.DriveStop(ctx); err != nil {
		t.Fatal(err)
	}

	wantTopics := []string{"robots/rover1/drive", "robots/rover1/arm_servo", "robots/rover1/drive_stop"}
	if len(pub.Topics) != len(wantTopics) {
		t.Fatalf("topics = %v, want %v", pub.Topics, wantTopics)
	}
	for i, w := range wantTopics {
		if pub.Topics[i] != w {
			t.Errorf("topic[%d] = %s, want %s", i, pub.Topics[i], w)
		}
	}

	var payload map[string]any
	if err := json.Unmarshal(pub.Payloads[1], &payload); err != nil {
		t.Fatal(err)
	}
	if payload["servo"] != "CLAW" || payload["direction"] != true {
		t.Errorf("servo payload = %v", payload)
	}

	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if !pub.Closed {
		t.Error("Close should close the publisher")
	}
}

func TestMQTTTransport_DefaultPrefix(t *testing.T) {
	tr, _ := NewMQTTTransport(&FakePublisher{}, "")
	if got := tr.Topic(KindReboot); got != DefaultTopic+"/reboot" {
		t.Errorf("Topic = %s", got)
	}
}

func TestMQTTTransport_PublishError(t *testing.T) {
	boom := errors.New("broker down")
	tr, _ := NewMQTTTransport(&FakePublisher{PublishError: boom}, "")

	err := tr.PowerOff(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}

func TestNewMQTTTransport_NilPublisher(t *testing.T) {
	if _, err := NewMQTTTransport(nil, ""); err == nil {
		t.Error("expected error for nil publisher")
	}
}

func TestNewPahoPublisher_InvalidQoS(t *testing.T) {
	if _, err := NewPahoPublisher("tcp://localhost:1883", "", 3); err == nil {
		t.Error("expected error for qos 3")
	}
}
