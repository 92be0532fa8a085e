package console

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sightsrobotics/console/internal/telemetry"
)

// Reading is one decoded sensor response; fields are addressed with dot
// paths such as "motors.left".
type Reading = telemetry.Reading

// Extractor derives the displayed value of a widget from a sensor reading.
// Returning an error puts the widget in the error state while keeping its
// last good value on screen.
type Extractor func(Reading) (any, error)

// errNoSeries is returned by SeriesExtractor when no configured field is
// present in the reading.
var errNoSeries = errors.New("no series fields present in reading")

// FieldExtractor returns an [Extractor] that reads one numeric field.
//
// Numeric strings and booleans are converted; a missing or non-numeric
// field is an error.
//
// Example:
//
//	// For reading: {"cpu_percent": 12.5}
//	extractor := console.FieldExtractor("cpu_percent")
func FieldExtractor(path string) Extractor {
	return func(r Reading) (any, error) {
		v, ok := r.Number(path)
		if !ok {
			return nil, fmt.Errorf("field %q missing or not numeric", path)
		}
		return v, nil
	}
}

// RoundedFieldExtractor is [FieldExtractor] rounded to digits decimal places.
func RoundedFieldExtractor(path string, digits int) Extractor {
	base := FieldExtractor(path)
	scale := math.Pow(10, float64(digits))
	return func(r Reading) (any, error) {
		v, err := base(r)
		if err != nil {
			return nil, err
		}
		return math.Round(v.(float64)*scale) / scale, nil
	}
}

// SeriesExtractor returns an [Extractor] producing map[string]float64, one
// entry per series label whose field is present. Missing fields are left
// out of the point; the reading is an error only when every field is
// missing.
func SeriesExtractor(series map[string]string) Extractor {
	labels := make([]string, 0, len(series))
	paths := make(map[string]string, len(series))
	for label, path := range series {
		labels = append(labels, label)
		paths[label] = path
	}
	sort.Strings(labels)

	return func(r Reading) (any, error) {
		point := make(map[string]float64, len(labels))
		for _, label := range labels {
			if v, ok := r.Number(paths[label]); ok {
				point[label] = v
			}
		}
		if len(point) == 0 {
			return nil, errNoSeries
		}
		return point, nil
	}
}

// UptimeExtractor returns an [Extractor] that formats a seconds field with
// [FormatUptime]. A missing field formats as the placeholder rather than
// failing, matching a robot that has not reported uptime yet.
func UptimeExtractor(path string) Extractor {
	return func(r Reading) (any, error) {
		secs, _ := r.Number(path)
		return FormatUptime(secs), nil
	}
}

// FormatUptime renders seconds as "Nd Nh" once a full day has passed and
// as zero-padded "HH:MM:SS" below that. Zero or negative input renders as
// "--:--:--".
func FormatUptime(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) {
		return "--:--:--"
	}
	total := int64(seconds)
	days := total / 86400
	hours := (total % 86400) / 3600
	if days > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	minutes := (total % 3600) / 60
	secs := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}

// FirstMatch returns an [Extractor] that tries each extractor in order and
// returns the first success. If all fail, the last error is returned.
//
// Example:
//
//	// Robots before 2.0 report "temp" instead of "temperature"
//	extractor := console.FirstMatch(
//	    console.FieldExtractor("temperature"),
//	    console.FieldExtractor("temp"),
//	)
func FirstMatch(extractors ...Extractor) Extractor {
	return func(r Reading) (any, error) {
		err := errors.New("no extractors configured")
		for _, e := range extractors {
			var v any
			if v, err = e(r); err == nil {
				return v, nil
			}
		}
		return nil, err
	}
}
