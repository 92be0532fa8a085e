package console

import (
	"testing"
	"time"
)

func TestNewWidget_Valid(t *testing.T) {
	w, err := NewWidget("CPU", KindGauge, WithSensor("system_info"), WithField("cpu_percent"), WithSuffix("%"))
	if err != nil {
		t.Fatalf("NewWidget() error = %v", err)
	}

	if w.Name() != "CPU" {
		t.Errorf("Name() = %v, want %v", w.Name(), "CPU")
	}
	if w.Sensor() != "system_info" {
		t.Errorf("Sensor() = %v, want system_info", w.Sensor())
	}
	if w.Period() != time.Second {
		t.Errorf("Period() = %v, want 1s", w.Period())
	}
	if w.History() != 0 {
		t.Errorf("History() = %v, want 0", w.History())
	}
	if !w.AutoMount() {
		t.Error("AutoMount() = false, want true")
	}
	if w.Shared() {
		t.Error("Shared() = true, want false")
	}
	if w.Suffix() != "%" {
		t.Errorf("Suffix() = %q, want %%", w.Suffix())
	}
}

func TestNewWidget_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		wname string
		kind  WidgetKind
		opts  []WidgetOption
	}{
		{"empty name", "", KindLogs, nil},
		{"blank name", "   ", KindLogs, nil},
		{"reserved speed", SpeedWidgetName, KindLogs, nil},
		{"reserved connection", ConnectionWidgetName, KindLogs, nil},
		{"unknown kind", "X", "radar", nil},
		{"built in kind", "X", KindSpeed, nil},
		{"gauge without sensor", "X", KindGauge, []WidgetOption{WithField("cpu_percent")}},
		{"gauge without field", "X", KindGauge, []WidgetOption{WithSensor("system_info")}},
		{"graph without series", "X", KindGraph, []WidgetOption{WithSensor("system_info")}},
		{"uptime without sensor", "X", KindUptime, nil},
		{"logs with sensor", "X", KindLogs, []WidgetOption{WithSensor("system_info")}},
		{"cameras shared", "X", KindCameras, []WidgetOption{WithShared()}},
		{"empty sensor", "X", KindGauge, []WidgetOption{WithSensor(" "), WithField("a")}},
		{"empty field", "X", KindGauge, []WidgetOption{WithSensor("s"), WithField("")}},
		{"nil extractor", "X", KindGauge, []WidgetOption{WithSensor("s"), WithExtractor(nil)}},
		{"empty series", "X", KindGraph, []WidgetOption{WithSensor("s"), WithSeries(nil)}},
		{"blank series path", "X", KindGraph, []WidgetOption{WithSensor("s"), WithSeries(map[string]string{"a": ""})}},
		{"rounding digits", "X", KindGauge, []WidgetOption{WithSensor("s"), WithRoundedField("a", 7)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewWidget(tt.wname, tt.kind, tt.opts...); err == nil {
				t.Errorf("NewWidget() expected error, got nil")
			}
		})
	}
}

func TestNewWidget_DefaultPeriods(t *testing.T) {
	tests := []struct {
		kind WidgetKind
		opts []WidgetOption
		want time.Duration
	}{
		{KindGauge, []WidgetOption{WithSensor("s"), WithField("f")}, time.Second},
		{KindUptime, []WidgetOption{WithSensor("s")}, time.Second},
		{KindLogs, nil, 3 * time.Second},
		{KindCameras, nil, 10 * time.Second},
	}
	for _, tt := range tests {
		w, err := NewWidget("W", tt.kind, tt.opts...)
		if err != nil {
			t.Fatalf("NewWidget(%s) error = %v", tt.kind, err)
		}
		if w.Period() != tt.want {
			t.Errorf("%s Period() = %v, want %v", tt.kind, w.Period(), tt.want)
		}
	}
}

func TestNewWidget_GraphDefaultsHistory(t *testing.T) {
	w, err := NewWidget("Motors", KindGraph, WithSensor("motors"), WithSeries(map[string]string{"Left": "left", "Right": "right"}))
	if err != nil {
		t.Fatalf("NewWidget() error = %v", err)
	}
	if w.History() != 30 {
		t.Errorf("History() = %d, want 30", w.History())
	}

	w, err = NewWidget("Motors", KindGraph, WithSensor("motors"), WithSeries(map[string]string{"Left": "left"}), WithHistory(0))
	if err != nil {
		t.Fatalf("NewWidget() error = %v", err)
	}
	if w.History() != 0 {
		t.Errorf("History() = %d with explicit 0, want 0", w.History())
	}
}

func TestNewWidget_UptimeDefaultExtractor(t *testing.T) {
	w, err := NewWidget("Uptime", KindUptime, WithSensor("system_info"))
	if err != nil {
		t.Fatalf("NewWidget() error = %v", err)
	}
	v, err := w.Extractor()(Reading{"uptime_seconds": 90061.0})
	if err != nil {
		t.Fatalf("extractor error = %v", err)
	}
	if v != "1d 1h" {
		t.Errorf("extractor = %v, want 1d 1h", v)
	}
}

func TestWithPeriod(t *testing.T) {
	tests := []struct {
		d       time.Duration
		wantErr bool
	}{
		{50 * time.Millisecond, true},
		{100 * time.Millisecond, false},
		{500 * time.Millisecond, false},
		{time.Hour, false},
		{time.Hour + time.Second, true},
	}
	for _, tt := range tests {
		_, err := NewWidget("W", KindLogs, WithPeriod(tt.d))
		if (err != nil) != tt.wantErr {
			t.Errorf("WithPeriod(%v) error = %v, wantErr %v", tt.d, err, tt.wantErr)
		}
	}
}

func TestWithHistory_Invalid(t *testing.T) {
	for _, n := range []int{-1, 3601} {
		if _, err := NewWidget("W", KindLogs, WithHistory(n)); err == nil {
			t.Errorf("WithHistory(%d) expected error", n)
		}
	}
}

func TestWithLabels(t *testing.T) {
	w, err := NewWidget("W", KindLogs, WithLabels("robot", "sights-1", "group", "system"))
	if err != nil {
		t.Fatalf("NewWidget() error = %v", err)
	}
	labels := w.Labels()
	if labels["robot"] != "sights-1" || labels["group"] != "system" {
		t.Errorf("Labels() = %v", labels)
	}
}

func TestWithLabels_OddArgs(t *testing.T) {
	if _, err := NewWidget("W", KindLogs, WithLabels("robot")); err == nil {
		t.Error("NewWidget() expected error for odd labels")
	}
}

func TestWithLabels_Immutability(t *testing.T) {
	w, _ := NewWidget("W", KindLogs, WithLabels("robot", "sights-1"))

	labels := w.Labels()
	labels["robot"] = "modified"
	labels["new"] = "value"

	if w.Labels()["robot"] != "sights-1" {
		t.Error("modifying returned labels affected widget")
	}
	if _, ok := w.Labels()["new"]; ok {
		t.Error("adding to returned labels affected widget")
	}
}

func TestWithAutoMount(t *testing.T) {
	w, _ := NewWidget("W", KindLogs, WithAutoMount(false))
	if w.AutoMount() {
		t.Error("AutoMount() = true, want false")
	}
}
