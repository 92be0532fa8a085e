package console

import (
	"errors"
	"fmt"
	"time"
)

// gridConfig holds configuration during widget grid construction.
type gridConfig struct {
	sensorTemplate string
	dimensions     map[string][]string
	staticLabels   map[string]string
	kind           WidgetKind
	field          string
	series         map[string]string
	extractor      Extractor
	period         time.Duration
	history        int
	historySet     bool
	suffix         string
	shared         bool
}

// GridOption configures [NewWidgetGrid].
type GridOption func(*gridConfig) error

// WithSensorTemplate sets the sensor id template, such as
// "motor_{{.side}}".
func WithSensorTemplate(tmpl string) GridOption {
	return func(cfg *gridConfig) error {
		if tmpl == "" {
			return errors.New("sensor template required")
		}
		cfg.sensorTemplate = tmpl
		return nil
	}
}

// WithDimensions sets the dimension values for cartesian product expansion.
// Each key becomes a template variable.
//
// Example:
//
//	WithDimensions(map[string][]string{
//	    "side": {"left", "right"},
//	    "axle": {"front", "rear"},
//	})
//
// Returns an error if the map is empty, any dimension has no values,
// or any value is an empty string.
func WithDimensions(dims map[string][]string) GridOption {
	return func(cfg *gridConfig) error {
		if len(dims) == 0 {
			return errors.New("at least one dimension required")
		}
		for k, vals := range dims {
			if len(vals) == 0 {
				return fmt.Errorf("dimension '%s' has no values", k)
			}
			for i, v := range vals {
				if v == "" {
					return fmt.Errorf("dimension '%s' contains empty value at index %d", k, i)
				}
			}
		}
		cfg.dimensions = dims
		return nil
	}
}

// WithGridLabels adds static labels to all generated widgets. On
// collision, static labels take precedence over dimension labels.
func WithGridLabels(keyValues ...string) GridOption {
	return func(cfg *gridConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithGridLabels requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.staticLabels[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithGridKind sets the kind of every generated widget. Defaults to gauge.
// Only sensor kinds (gauge, graph, uptime) are accepted.
func WithGridKind(k WidgetKind) GridOption {
	return func(cfg *gridConfig) error {
		switch k {
		case KindGauge, KindGraph, KindUptime:
			cfg.kind = k
			return nil
		default:
			return fmt.Errorf("grid widgets must be gauge, graph or uptime, got %q", k)
		}
	}
}

// WithGridField is [WithField] for every generated widget.
func WithGridField(path string) GridOption {
	return func(cfg *gridConfig) error {
		if path == "" {
			return errors.New("field path cannot be empty")
		}
		cfg.field = path
		return nil
	}
}

// WithGridSeries is [WithSeries] for every generated widget.
func WithGridSeries(series map[string]string) GridOption {
	return func(cfg *gridConfig) error {
		if len(series) == 0 {
			return errors.New("at least one series required")
		}
		cfg.series = series
		return nil
	}
}

// WithGridExtractor is [WithExtractor] for every generated widget.
func WithGridExtractor(e Extractor) GridOption {
	return func(cfg *gridConfig) error {
		cfg.extractor = e
		return nil
	}
}

// WithGridPeriod is [WithPeriod] for every generated widget. Zero keeps
// the kind's default.
func WithGridPeriod(d time.Duration) GridOption {
	return func(cfg *gridConfig) error {
		if d < 0 {
			return errors.New("period cannot be negative")
		}
		cfg.period = d
		return nil
	}
}

// WithGridHistory is [WithHistory] for every generated widget.
func WithGridHistory(n int) GridOption {
	return func(cfg *gridConfig) error {
		if n < 0 {
			return errors.New("history cannot be negative")
		}
		cfg.history = n
		cfg.historySet = true
		return nil
	}
}

// WithGridSuffix is [WithSuffix] for every generated widget.
func WithGridSuffix(s string) GridOption {
	return func(cfg *gridConfig) error {
		cfg.suffix = s
		return nil
	}
}

// WithGridShared is [WithShared] for every generated widget.
func WithGridShared() GridOption {
	return func(cfg *gridConfig) error {
		cfg.shared = true
		return nil
	}
}
