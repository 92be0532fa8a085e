package telemetry

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Reading is one decoded sensor response. Sensors return arbitrary JSON
// objects; fields are addressed with dot paths.
type Reading map[string]any

// SystemInfo is the typed view of the robot's system_info sensor. Fields the
// robot did not report are nil.
type SystemInfo struct {
	Temperature   *float64 `json:"temperature"`
	CPUPercent    *float64 `json:"cpu_percent"`
	Memory        *float64 `json:"memory"`
	DiskUsage     *float64 `json:"disk_usage"`
	UptimeSeconds *float64 `json:"uptime_seconds"`
}

// DecodeReading parses a sensor response body. The body must be a JSON object.
func DecodeReading(body []byte) (Reading, error) {
	var r Reading
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("failed to decode sensor reading: %w", err)
	}
	if r == nil {
		return nil, fmt.Errorf("sensor reading is not an object")
	}
	return r, nil
}

// Lookup walks a dot path ("data.temperature") and returns the raw value.
func (r Reading) Lookup(path string) (any, bool) {
	var current any = map[string]any(r)
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Number returns the value at path as a float. Numeric strings and booleans
// are converted; null and missing fields report false.
func (r Reading) Number(path string) (float64, bool) {
	v, ok := r.Lookup(path)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// SystemInfo extracts the well-known system_info fields.
func (r Reading) SystemInfo() SystemInfo {
	field := func(name string) *float64 {
		if f, ok := r.Number(name); ok {
			return &f
		}
		return nil
	}
	return SystemInfo{
		Temperature:   field("temperature"),
		CPUPercent:    field("cpu_percent"),
		Memory:        field("memory"),
		DiskUsage:     field("disk_usage"),
		UptimeSeconds: field("uptime_seconds"),
	}
}
