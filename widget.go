package console

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// WidgetKind selects what a widget fetches and how it is drawn.
type WidgetKind string

const (
	// KindGauge shows one number from a sensor reading.
	KindGauge WidgetKind = "gauge"

	// KindGraph shows one or more sensor fields as time series.
	KindGraph WidgetKind = "graph"

	// KindUptime shows a sensor's uptime as "Nd Nh" or "HH:MM:SS".
	KindUptime WidgetKind = "uptime"

	// KindLogs shows the robot's log text.
	KindLogs WidgetKind = "logs"

	// KindCameras lists the robot's camera streams.
	KindCameras WidgetKind = "cameras"

	// KindSpeed and KindConnection are the built-in widgets every console
	// carries. They cannot be configured.
	KindSpeed      WidgetKind = "speed"
	KindConnection WidgetKind = "connection"
)

// Names of the built-in widgets.
const (
	SpeedWidgetName      = "Speed"
	ConnectionWidgetName = "Connection"
)

const (
	defaultSensorPeriod  = time.Second
	defaultLogsPeriod    = 3 * time.Second
	defaultCamerasPeriod = 10 * time.Second
	defaultGraphHistory  = 30

	minWidgetPeriod  = 100 * time.Millisecond
	maxWidgetPeriod  = time.Hour
	maxWidgetHistory = 3600
)

// Widget is one telemetry panel. Each mounted widget owns a polling task,
// or, when shared, is fed by one poll of its sensor that several widgets
// subscribe to.
//
// Widget is immutable after [NewWidget]; getters return copies.
type Widget struct {
	name      string
	kind      WidgetKind
	sensor    string
	extractor Extractor
	period    time.Duration
	history   int
	labels    map[string]string
	suffix    string
	shared    bool
	autoMount bool
}

// Name returns the widget's display name, unique within a console.
func (w Widget) Name() string { return w.name }

// Kind returns the widget kind.
func (w Widget) Kind() WidgetKind { return w.kind }

// Sensor returns the sensor id polled by gauge, graph and uptime widgets.
func (w Widget) Sensor() string { return w.sensor }

// Extractor returns the function that turns a reading into the displayed
// value. Nil for logs and cameras widgets.
func (w Widget) Extractor() Extractor { return w.extractor }

// Period returns the polling period.
func (w Widget) Period() time.Duration { return w.period }

// History returns how many past values are retained for display.
func (w Widget) History() int { return w.history }

// Labels returns a copy of the widget's labels.
func (w Widget) Labels() map[string]string { return copyMap(w.labels) }

// Suffix returns the unit shown after the value, such as "%".
func (w Widget) Suffix() string { return w.suffix }

// Shared reports whether the widget is fed by a shared sensor poll.
func (w Widget) Shared() bool { return w.shared }

// AutoMount reports whether the widget starts when the console starts.
func (w Widget) AutoMount() bool { return w.autoMount }

// usesSensor reports whether the widget polls a sensor reading.
func (w Widget) usesSensor() bool {
	switch w.kind {
	case KindGauge, KindGraph, KindUptime:
		return true
	}
	return false
}

// NewWidget creates a [Widget].
//
// Gauge, graph and uptime widgets need a sensor ([WithSensor]). Gauges need
// [WithField] or [WithExtractor]; graphs need [WithSeries] or
// [WithExtractor]; uptime widgets default to the "uptime_seconds" field.
//
// Example:
//
//	cpu, err := console.NewWidget("CPU", console.KindGauge,
//	    console.WithSensor("system_info"),
//	    console.WithField("cpu_percent"),
//	    console.WithSuffix("%"),
//	    console.WithShared(),
//	)
func NewWidget(name string, kind WidgetKind, opts ...WidgetOption) (Widget, error) {
	if strings.TrimSpace(name) == "" {
		return Widget{}, errors.New("widget name cannot be empty")
	}
	if name == SpeedWidgetName || name == ConnectionWidgetName {
		return Widget{}, fmt.Errorf("widget name %q is reserved", name)
	}

	cfg := &widgetConfig{
		labels:    make(map[string]string),
		autoMount: true,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Widget{}, err
		}
	}

	w := Widget{
		name:      name,
		kind:      kind,
		sensor:    cfg.sensor,
		extractor: cfg.extractor,
		period:    cfg.period,
		history:   cfg.history,
		labels:    cfg.labels,
		suffix:    cfg.suffix,
		shared:    cfg.shared,
		autoMount: cfg.autoMount,
	}

	switch kind {
	case KindGauge:
		if w.extractor == nil {
			return Widget{}, fmt.Errorf("gauge widget %q needs a field or extractor", name)
		}
	case KindGraph:
		if w.extractor == nil {
			return Widget{}, fmt.Errorf("graph widget %q needs series or an extractor", name)
		}
		if !cfg.historySet {
			w.history = defaultGraphHistory
		}
	case KindUptime:
		if w.extractor == nil {
			w.extractor = UptimeExtractor("uptime_seconds")
		}
	case KindLogs, KindCameras:
		if w.extractor != nil || w.sensor != "" {
			return Widget{}, fmt.Errorf("%s widget %q does not read a sensor", kind, name)
		}
		if w.shared {
			return Widget{}, fmt.Errorf("%s widget %q cannot be shared", kind, name)
		}
	case KindSpeed, KindConnection:
		return Widget{}, fmt.Errorf("%s widgets are built in", kind)
	default:
		return Widget{}, fmt.Errorf("unknown widget kind %q", kind)
	}

	if w.usesSensor() && w.sensor == "" {
		return Widget{}, fmt.Errorf("%s widget %q needs a sensor", kind, name)
	}

	if w.period == 0 {
		switch kind {
		case KindLogs:
			w.period = defaultLogsPeriod
		case KindCameras:
			w.period = defaultCamerasPeriod
		default:
			w.period = defaultSensorPeriod
		}
	}

	return w, nil
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
