package console

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// widgetConfig holds mutable state during widget construction.
type widgetConfig struct {
	sensor     string
	extractor  Extractor
	period     time.Duration
	history    int
	historySet bool
	labels     map[string]string
	suffix     string
	shared     bool
	autoMount  bool
}

// WidgetOption configures a [Widget] during [NewWidget].
type WidgetOption func(*widgetConfig) error

// WithSensor sets the sensor id the widget reads, as listed by the robot's
// /api/sensor/list/ endpoint.
func WithSensor(id string) WidgetOption {
	return func(cfg *widgetConfig) error {
		id = strings.TrimSpace(id)
		if id == "" {
			return errors.New("sensor id cannot be empty")
		}
		cfg.sensor = id
		return nil
	}
}

// WithField displays one numeric field of the reading, addressed with dot
// notation ("cpu.temperature").
func WithField(path string) WidgetOption {
	return func(cfg *widgetConfig) error {
		if path == "" {
			return errors.New("field path cannot be empty")
		}
		cfg.extractor = FieldExtractor(path)
		return nil
	}
}

// WithRoundedField is [WithField] rounded to digits decimal places.
func WithRoundedField(path string, digits int) WidgetOption {
	return func(cfg *widgetConfig) error {
		if path == "" {
			return errors.New("field path cannot be empty")
		}
		if digits < 0 || digits > 6 {
			return fmt.Errorf("digits must be between 0 and 6, got %d", digits)
		}
		cfg.extractor = RoundedFieldExtractor(path, digits)
		return nil
	}
}

// WithSeries plots several fields. Each series label maps to a field path.
//
// Example:
//
//	console.WithSeries(map[string]string{"Left": "motors.left", "Right": "motors.right"})
func WithSeries(series map[string]string) WidgetOption {
	return func(cfg *widgetConfig) error {
		if len(series) == 0 {
			return errors.New("at least one series required")
		}
		for label, path := range series {
			if label == "" || path == "" {
				return errors.New("series labels and paths cannot be empty")
			}
		}
		cfg.extractor = SeriesExtractor(series)
		return nil
	}
}

// WithExtractor sets a custom [Extractor], replacing any field or series.
func WithExtractor(e Extractor) WidgetOption {
	return func(cfg *widgetConfig) error {
		if e == nil {
			return errors.New("extractor cannot be nil")
		}
		cfg.extractor = e
		return nil
	}
}

// WithPeriod sets how often the widget polls. Must be between 100ms and
// one hour. Defaults to 1s for sensor widgets, 3s for logs and 10s for
// cameras.
func WithPeriod(d time.Duration) WidgetOption {
	return func(cfg *widgetConfig) error {
		if d < minWidgetPeriod {
			return fmt.Errorf("period must be at least %s", minWidgetPeriod)
		}
		if d > maxWidgetPeriod {
			return fmt.Errorf("period must not exceed %s", maxWidgetPeriod)
		}
		cfg.period = d
		return nil
	}
}

// WithHistory retains the last n values for display. Graphs default to 30;
// other kinds retain nothing unless set.
func WithHistory(n int) WidgetOption {
	return func(cfg *widgetConfig) error {
		if n < 0 || n > maxWidgetHistory {
			return fmt.Errorf("history must be between 0 and %d, got %d", maxWidgetHistory, n)
		}
		cfg.history = n
		cfg.historySet = true
		return nil
	}
}

// WithLabels adds key-value labels for grouping on the dashboard.
//
// Returns an error if an odd number of arguments is provided.
func WithLabels(keyValues ...string) WidgetOption {
	return func(cfg *widgetConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithLabels requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.labels[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithSuffix sets the unit shown after the value.
func WithSuffix(s string) WidgetOption {
	return func(cfg *widgetConfig) error {
		cfg.suffix = s
		return nil
	}
}

// WithShared feeds the widget from a single poll of its sensor shared by
// every shared widget with the same sensor and period, instead of a poll
// of its own.
func WithShared() WidgetOption {
	return func(cfg *widgetConfig) error {
		cfg.shared = true
		return nil
	}
}

// WithAutoMount controls whether the widget starts with the console.
// Widgets that do not auto-mount start on [Console.Mount].
func WithAutoMount(on bool) WidgetOption {
	return func(cfg *widgetConfig) error {
		cfg.autoMount = on
		return nil
	}
}
