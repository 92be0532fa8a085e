package console

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// NewWidgetGrid creates one widget per combination of dimension values,
// for robots that expose a family of similar sensors (one per motor, one
// per battery cell).
//
// The sensor template uses Go's text/template syntax with dimension keys
// as variables. Missing template keys cause an error (fail-fast).
//
// Each widget is named "Base Name (val1/val2)", values ordered by sorted
// dimension key. Dimension values are added as labels; static labels from
// [WithGridLabels] win on collision.
//
// Example:
//
//	widgets, err := console.NewWidgetGrid("Motor Temp",
//	    console.WithSensorTemplate("motor_{{.side}}"),
//	    console.WithDimensions(map[string][]string{"side": {"left", "right"}}),
//	    console.WithGridField("temperature"),
//	)
//	// Returns 2 widgets, usable with WithWidgets(widgets...)
func NewWidgetGrid(baseName string, opts ...GridOption) ([]Widget, error) {
	if strings.TrimSpace(baseName) == "" {
		return nil, errors.New("base name cannot be empty")
	}

	cfg := &gridConfig{
		kind:         KindGauge,
		staticLabels: make(map[string]string),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.sensorTemplate == "" {
		return nil, errors.New("sensor template required")
	}
	if len(cfg.dimensions) == 0 {
		return nil, errors.New("at least one dimension required")
	}

	tmpl, err := template.New("sensor").Option("missingkey=error").Parse(cfg.sensorTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid sensor template: %w", err)
	}

	combinations := cartesianProduct(cfg.dimensions)
	if len(combinations) == 0 {
		return nil, nil
	}

	widgets := make([]Widget, 0, len(combinations))
	for _, combo := range combinations {
		sensor, err := executeTemplate(tmpl, combo)
		if err != nil {
			return nil, fmt.Errorf("template execution failed: %w", err)
		}

		name := formatWidgetName(baseName, combo)
		labels := mergeMaps(combo, cfg.staticLabels)

		wOpts := []WidgetOption{
			WithSensor(sensor),
			WithLabels(flattenMap(labels)...),
		}
		if cfg.field != "" {
			wOpts = append(wOpts, WithField(cfg.field))
		}
		if len(cfg.series) > 0 {
			wOpts = append(wOpts, WithSeries(cfg.series))
		}
		if cfg.extractor != nil {
			wOpts = append(wOpts, WithExtractor(cfg.extractor))
		}
		if cfg.period > 0 {
			wOpts = append(wOpts, WithPeriod(cfg.period))
		}
		if cfg.historySet {
			wOpts = append(wOpts, WithHistory(cfg.history))
		}
		if cfg.suffix != "" {
			wOpts = append(wOpts, WithSuffix(cfg.suffix))
		}
		if cfg.shared {
			wOpts = append(wOpts, WithShared())
		}

		w, err := NewWidget(name, cfg.kind, wOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create widget '%s': %w", name, err)
		}
		widgets = append(widgets, w)
	}

	return widgets, nil
}

// cartesianProduct expands dims into one map per combination, varying the
// last key (by name) fastest and keeping each key's value order:
//
//	{"side": ["left","right"], "wheel": ["front","rear"]}
//	=> left/front, left/rear, right/front, right/rear
func cartesianProduct(dims map[string][]string) []map[string]string {
	if len(dims) == 0 {
		return nil
	}

	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	total := 1
	for _, k := range keys {
		if len(dims[k]) == 0 {
			return nil
		}
		total *= len(dims[k])
	}

	result := make([]map[string]string, 0, total)
	indices := make([]int, len(keys))
	for {
		combo := make(map[string]string, len(keys))
		for i, k := range keys {
			combo[k] = dims[k][indices[i]]
		}
		result = append(result, combo)

		// odometer increment, rightmost key fastest
		for i := len(keys) - 1; i >= 0; i-- {
			indices[i]++
			if indices[i] < len(dims[keys[i]]) {
				break
			}
			indices[i] = 0
			if i == 0 {
				return result
			}
		}
	}
}

func executeTemplate(tmpl *template.Template, data map[string]string) (string, error) {
	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// formatWidgetName creates a name in the format "Base (v1/v2)".
func formatWidgetName(baseName string, combo map[string]string) string {
	keys := make([]string, 0, len(combo))
	for k := range combo {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = combo[k]
	}
	return fmt.Sprintf("%s (%s)", baseName, strings.Join(parts, "/"))
}

// mergeMaps merges maps left to right; later maps win.
func mergeMaps(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// flattenMap converts a map to sorted key-value pairs for variadic options.
func flattenMap(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(m)*2)
	for _, k := range keys {
		result = append(result, k, m[k])
	}
	return result
}
