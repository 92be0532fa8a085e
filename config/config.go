// Package config provides YAML configuration parsing for the SIGHTS
// console.
//
// This package enables running the console as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: SIGHTS Rover
//	port: 8080
//	robot:
//	  url: http://${ROBOT_HOST:-sights.local}:5000
//	  timeout: 2s
//	speed: 3
//
//	widgets:
//	  - name: CPU
//	    kind: gauge
//	    sensor: system_info
//	    field: cpu_percent
//	    suffix: "%"
//
//	grids:
//	  - name: Motor Temp
//	    sensor_template: "motor_{{.side}}"
//	    dimensions:
//	      side: [left, right]
//	    field: temperature
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sightsrobotics/console/internal/input"
)

const (
	defaultPort         = 8080
	defaultSpeed        = 3
	minPeriod           = 100 * time.Millisecond
	maxPeriod           = time.Hour
	maxHistory          = 3600
	minPingInterval     = 100 * time.Millisecond
	defaultMQTTClientID = "sights-console"
)

// Transport types accepted by transport.type.
const (
	TransportHTTP = "http"
	TransportMQTT = "mqtt"
)

// Config is the root configuration structure.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "SIGHTS" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// Robot is the robot's HTTP API, used for telemetry and, unless
	// transport says otherwise, for commands.
	Robot RobotConfig `yaml:"robot"`

	// Speed is the initial speed scale, 1 to 8. Defaults to 3.
	Speed int `yaml:"speed"`

	// PingInterval is the connection probe period. Defaults to 2.75s.
	PingInterval Duration `yaml:"ping_interval"`

	// CommandTimeout bounds each command sent to the robot.
	CommandTimeout Duration `yaml:"command_timeout"`

	// Theme is the initial theme mode: system, light or dark.
	Theme string `yaml:"theme"`

	Transport TransportConfig `yaml:"transport"`
	Inputs    InputsConfig    `yaml:"inputs"`

	// Widgets defines individual telemetry widgets.
	Widgets []WidgetConfig `yaml:"widgets"`

	// Grids defines widget grids that expand via cartesian product.
	Grids []GridConfig `yaml:"grids"`
}

// RobotConfig locates the robot's HTTP API.
type RobotConfig struct {
	// URL supports environment variable substitution: ${VAR} or
	// ${VAR:-default}.
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// TransportConfig selects how commands reach the robot.
type TransportConfig struct {
	// Type is "http" (default) or "mqtt".
	Type string     `yaml:"type"`
	MQTT MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig configures the broker transport.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883. Supports
	// environment variable substitution.
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      int    `yaml:"qos"`
}

// InputsConfig lists hardware key sources. Browser keys are always
// available through the dashboard.
type InputsConfig struct {
	// Evdev lists keyboard device paths such as /dev/input/event0.
	Evdev []string    `yaml:"evdev"`
	GPIO  *GPIOConfig `yaml:"gpio"`
}

// GPIOConfig maps push buttons on a GPIO chip to key names.
type GPIOConfig struct {
	Chip     string         `yaml:"chip"`
	Debounce Duration       `yaml:"debounce"`
	Buttons  []ButtonConfig `yaml:"buttons"`
}

// ButtonConfig binds one GPIO line to a key name such as "KeyW".
type ButtonConfig struct {
	Line int    `yaml:"line"`
	Key  string `yaml:"key"`
}

// WidgetConfig defines a single telemetry widget.
type WidgetConfig struct {
	// Name is the display name shown in the dashboard.
	Name string `yaml:"name"`

	// Kind is gauge, graph, uptime, logs or cameras.
	Kind string `yaml:"kind"`

	// Sensor is the robot sensor id. Required for gauge, graph and uptime.
	Sensor string `yaml:"sensor"`

	// Field is a dot path into the sensor reading (gauge, uptime).
	Field string `yaml:"field"`

	// Round rounds the field to this many decimal places.
	Round *int `yaml:"round"`

	// Series maps graph series labels to field paths (graph).
	Series map[string]string `yaml:"series"`

	// Period overrides the kind's default polling period.
	// Must be between 100ms and 1h.
	Period Duration `yaml:"period"`

	// History is the number of past values kept.
	History *int `yaml:"history"`

	Labels map[string]string `yaml:"labels"`
	Suffix string            `yaml:"suffix"`

	// Shared widgets reading the same sensor at the same period share one
	// poll.
	Shared bool `yaml:"shared"`

	// AutoMount defaults to true.
	AutoMount *bool `yaml:"auto_mount"`
}

// GridConfig defines a widget grid that expands via cartesian product.
//
// For example, with dimensions {side: [left, right], axle: [front, rear]},
// the grid expands to 4 widgets.
type GridConfig struct {
	// Name is the base name for generated widgets.
	Name string `yaml:"name"`

	// Kind is gauge (default), graph or uptime.
	Kind string `yaml:"kind"`

	// SensorTemplate is a Go template for generating sensor ids.
	// Dimension keys are available as template variables: {{.side}}
	SensorTemplate string `yaml:"sensor_template"`

	// Dimensions maps dimension names to their possible values.
	Dimensions map[string][]string `yaml:"dimensions"`

	Field   string            `yaml:"field"`
	Series  map[string]string `yaml:"series"`
	Period  Duration          `yaml:"period"`
	History *int              `yaml:"history"`

	// Labels are merged over the auto-generated dimension labels.
	Labels map[string]string `yaml:"labels"`
	Suffix string            `yaml:"suffix"`
	Shared bool              `yaml:"shared"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the robot URL, the MQTT broker and
// sensor templates. Defaults are applied for Port (8080) and Speed (3).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Speed == 0 {
		cfg.Speed = defaultSpeed
	}
	if cfg.Transport.Type == "" {
		cfg.Transport.Type = TransportHTTP
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if err := c.validateRobot(); err != nil {
		return err
	}

	if c.Speed < 1 || c.Speed > 8 {
		return fmt.Errorf("speed must be between 1 and 8, got %d", c.Speed)
	}
	if c.PingInterval != 0 && c.PingInterval.Duration() < minPingInterval {
		return fmt.Errorf("ping_interval must be at least %s, got %s", minPingInterval, c.PingInterval.Duration())
	}
	if c.CommandTimeout.Duration() < 0 {
		return fmt.Errorf("command_timeout cannot be negative, got %s", c.CommandTimeout.Duration())
	}
	switch strings.ToLower(c.Theme) {
	case "", "system", "light", "dark":
	default:
		return fmt.Errorf("theme must be system, light or dark, got %q", c.Theme)
	}

	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := c.validateInputs(); err != nil {
		return err
	}

	names := make(map[string]string)
	claim := func(name, where string) error {
		if prev, ok := names[name]; ok {
			return fmt.Errorf("%s: name %q already used by %s", where, name, prev)
		}
		names[name] = where
		return nil
	}

	for i := range c.Widgets {
		w := &c.Widgets[i]
		where := fmt.Sprintf("widgets[%d]", i)
		if w.Name == "" {
			return fmt.Errorf("%s: name is required", where)
		}
		where = fmt.Sprintf("widgets[%d] (%s)", i, w.Name)
		if err := validateWidget(w, where); err != nil {
			return err
		}
		if err := claim(w.Name, where); err != nil {
			return err
		}
	}

	for i := range c.Grids {
		g := &c.Grids[i]
		if g.Name == "" {
			return fmt.Errorf("grids[%d]: name is required", i)
		}
		if err := validateGrid(g, fmt.Sprintf("grids[%d] (%s)", i, g.Name)); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validateRobot() error {
	if c.Robot.URL == "" {
		return errors.New("robot: url is required")
	}
	expanded, err := expandEnvVars(c.Robot.URL)
	if err != nil {
		return fmt.Errorf("robot: url: %w", err)
	}
	c.Robot.URL = expanded

	parsedURL, err := url.Parse(c.Robot.URL)
	if err != nil {
		return fmt.Errorf("robot: invalid url: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("robot: url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return errors.New("robot: url must include a host")
	}

	if c.Robot.Timeout.Duration() < 0 {
		return fmt.Errorf("robot: timeout cannot be negative, got %s", c.Robot.Timeout.Duration())
	}
	return nil
}

func (c *Config) validateTransport() error {
	switch c.Transport.Type {
	case TransportHTTP:
		return nil
	case TransportMQTT:
	default:
		return fmt.Errorf("transport: type must be http or mqtt, got %q", c.Transport.Type)
	}

	m := &c.Transport.MQTT
	if m.Broker == "" {
		return errors.New("transport.mqtt: broker is required")
	}
	expanded, err := expandEnvVars(m.Broker)
	if err != nil {
		return fmt.Errorf("transport.mqtt: broker: %w", err)
	}
	m.Broker = expanded
	if _, err := url.Parse(m.Broker); err != nil {
		return fmt.Errorf("transport.mqtt: invalid broker: %w", err)
	}
	if m.QoS < 0 || m.QoS > 2 {
		return fmt.Errorf("transport.mqtt: qos must be 0, 1 or 2, got %d", m.QoS)
	}
	if m.ClientID == "" {
		m.ClientID = defaultMQTTClientID
	}
	return nil
}

func (c *Config) validateInputs() error {
	for i, p := range c.Inputs.Evdev {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("inputs.evdev[%d]: path cannot be empty", i)
		}
	}

	g := c.Inputs.GPIO
	if g == nil {
		return nil
	}
	if len(g.Buttons) == 0 {
		return errors.New("inputs.gpio: at least one button is required")
	}
	if g.Debounce.Duration() < 0 {
		return fmt.Errorf("inputs.gpio: debounce cannot be negative, got %s", g.Debounce.Duration())
	}
	seen := make(map[int]struct{}, len(g.Buttons))
	for i, b := range g.Buttons {
		if b.Line < 0 {
			return fmt.Errorf("inputs.gpio.buttons[%d]: line cannot be negative, got %d", i, b.Line)
		}
		if _, dup := seen[b.Line]; dup {
			return fmt.Errorf("inputs.gpio.buttons[%d]: line %d is already bound", i, b.Line)
		}
		seen[b.Line] = struct{}{}
		if !input.KnownKey(b.Key) {
			return fmt.Errorf("inputs.gpio.buttons[%d]: unknown key %q", i, b.Key)
		}
	}
	return nil
}

func validateWidget(w *WidgetConfig, where string) error {
	switch w.Kind {
	case "gauge", "uptime":
		if w.Sensor == "" {
			return fmt.Errorf("%s: sensor is required for %s widgets", where, w.Kind)
		}
		if w.Kind == "gauge" && w.Field == "" {
			return fmt.Errorf("%s: field is required for gauge widgets", where)
		}
		if len(w.Series) > 0 {
			return fmt.Errorf("%s: series is only valid for graph widgets", where)
		}
	case "graph":
		if w.Sensor == "" {
			return fmt.Errorf("%s: sensor is required for graph widgets", where)
		}
		if len(w.Series) == 0 {
			return fmt.Errorf("%s: at least one series is required for graph widgets", where)
		}
		if w.Field != "" {
			return fmt.Errorf("%s: field is not valid for graph widgets, use series", where)
		}
	case "logs", "cameras":
		if w.Sensor != "" || w.Field != "" || len(w.Series) > 0 {
			return fmt.Errorf("%s: %s widgets do not read a sensor", where, w.Kind)
		}
		if w.Shared {
			return fmt.Errorf("%s: %s widgets cannot be shared", where, w.Kind)
		}
	case "":
		return fmt.Errorf("%s: kind is required", where)
	default:
		return fmt.Errorf("%s: kind must be gauge, graph, uptime, logs or cameras, got %q", where, w.Kind)
	}

	if w.Round != nil {
		if w.Field == "" {
			return fmt.Errorf("%s: round requires a field", where)
		}
		if *w.Round < 0 || *w.Round > 6 {
			return fmt.Errorf("%s: round must be between 0 and 6, got %d", where, *w.Round)
		}
	}
	if err := validatePeriod(w.Period, where); err != nil {
		return err
	}
	return validateHistory(w.History, where)
}

func validateGrid(g *GridConfig, where string) error {
	switch g.Kind {
	case "":
		g.Kind = "gauge"
	case "gauge", "graph", "uptime":
	default:
		return fmt.Errorf("%s: kind must be gauge, graph or uptime, got %q", where, g.Kind)
	}

	if g.SensorTemplate == "" {
		return fmt.Errorf("%s: sensor_template is required", where)
	}
	expanded, err := expandEnvVars(g.SensorTemplate)
	if err != nil {
		return fmt.Errorf("%s: sensor_template: %w", where, err)
	}
	g.SensorTemplate = expanded

	if _, err := template.New("").Parse(g.SensorTemplate); err != nil {
		return fmt.Errorf("%s: invalid sensor_template: %w", where, err)
	}

	if len(g.Dimensions) == 0 {
		return fmt.Errorf("%s: at least one dimension is required", where)
	}
	for dimName, dimValues := range g.Dimensions {
		if len(dimValues) == 0 {
			return fmt.Errorf("%s: dimension %q has no values", where, dimName)
		}
		seen := make(map[string]struct{}, len(dimValues))
		for _, v := range dimValues {
			if _, exists := seen[v]; exists {
				return fmt.Errorf("%s: dimension %q has duplicate value %q", where, dimName, v)
			}
			seen[v] = struct{}{}
		}
	}

	switch g.Kind {
	case "gauge":
		if g.Field == "" {
			return fmt.Errorf("%s: field is required for gauge grids", where)
		}
	case "graph":
		if len(g.Series) == 0 {
			return fmt.Errorf("%s: at least one series is required for graph grids", where)
		}
	}

	if err := validatePeriod(g.Period, where); err != nil {
		return err
	}
	return validateHistory(g.History, where)
}

func validatePeriod(p Duration, where string) error {
	if p == 0 {
		return nil
	}
	if p.Duration() < minPeriod {
		return fmt.Errorf("%s: period must be at least %s, got %s", where, minPeriod, p.Duration())
	}
	if p.Duration() > maxPeriod {
		return fmt.Errorf("%s: period must not exceed %s, got %s", where, maxPeriod, p.Duration())
	}
	return nil
}

func validateHistory(h *int, where string) error {
	if h == nil {
		return nil
	}
	if *h < 0 || *h > maxHistory {
		return fmt.Errorf("%s: history must be between 0 and %d, got %d", where, maxHistory, *h)
	}
	return nil
}

// GridSize returns how many widgets a grid expands to.
func (g GridConfig) GridSize() int {
	if len(g.Dimensions) == 0 {
		return 0
	}
	size := 1
	for _, vals := range g.Dimensions {
		size *= len(vals)
	}
	return size
}
