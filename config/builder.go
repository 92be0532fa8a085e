package config

import (
	"fmt"
	"sort"
	"strings"

	console "github.com/sightsrobotics/console"
	"github.com/sightsrobotics/console/internal/command"
)

// newPublisher connects to an MQTT broker. Tests replace it.
var newPublisher = func(broker, clientID string, qos byte) (command.Publisher, error) {
	return command.NewPahoPublisher(broker, clientID, qos)
}

// Build converts a parsed configuration into console options.
//
// With transport type mqtt, Build connects to the broker; the returned
// options hand the connection to the console, which closes it when Start
// returns.
func Build(cfg *Config) ([]console.Option, error) {
	widgets, err := BuildWidgets(cfg)
	if err != nil {
		return nil, err
	}

	opts := []console.Option{
		console.WithRobot(cfg.Robot.URL, cfg.Robot.Timeout.Duration()),
		console.WithPort(cfg.Port),
		console.WithInitialSpeed(cfg.Speed),
		console.WithWidgets(widgets...),
	}
	if cfg.Title != "" {
		opts = append(opts, console.WithTitle(cfg.Title))
	}
	if cfg.PingInterval != 0 {
		opts = append(opts, console.WithPingInterval(cfg.PingInterval.Duration()))
	}
	if cfg.CommandTimeout != 0 {
		opts = append(opts, console.WithCommandTimeout(cfg.CommandTimeout.Duration()))
	}
	if cfg.Theme != "" {
		opts = append(opts, console.WithThemeMode(console.ThemeMode(strings.ToLower(cfg.Theme))))
	}
	if len(cfg.Inputs.Evdev) > 0 {
		opts = append(opts, console.WithEvdevDevices(cfg.Inputs.Evdev...))
	}
	if g := cfg.Inputs.GPIO; g != nil {
		buttons := make(map[int]string, len(g.Buttons))
		for _, b := range g.Buttons {
			buttons[b.Line] = b.Key
		}
		opts = append(opts, console.WithGPIOButtons(g.Chip, buttons, g.Debounce.Duration()))
	}

	if cfg.Transport.Type == TransportMQTT {
		transport, err := buildMQTTTransport(cfg.Transport.MQTT)
		if err != nil {
			return nil, err
		}
		opts = append(opts, console.WithTransport(transport))
	}

	return opts, nil
}

func buildMQTTTransport(mc MQTTConfig) (*command.MQTTTransport, error) {
	pub, err := newPublisher(mc.Broker, mc.ClientID, byte(mc.QoS))
	if err != nil {
		return nil, fmt.Errorf("transport.mqtt: %w", err)
	}
	transport, err := command.NewMQTTTransport(pub, mc.Topic)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("transport.mqtt: %w", err)
	}
	return transport, nil
}

// BuildWidgets converts the widgets and grids sections into SDK widgets.
// Grid dimensions are expanded via cartesian product.
func BuildWidgets(cfg *Config) ([]console.Widget, error) {
	var widgets []console.Widget

	for i, wc := range cfg.Widgets {
		w, err := buildWidget(wc)
		if err != nil {
			return nil, fmt.Errorf("widgets[%d] (%s): %w", i, wc.Name, err)
		}
		widgets = append(widgets, w)
	}

	for i, gc := range cfg.Grids {
		grid, err := buildGrid(gc)
		if err != nil {
			return nil, fmt.Errorf("grids[%d] (%s): %w", i, gc.Name, err)
		}
		widgets = append(widgets, grid...)
	}

	return widgets, nil
}

func buildWidget(wc WidgetConfig) (console.Widget, error) {
	var opts []console.WidgetOption

	if wc.Sensor != "" {
		opts = append(opts, console.WithSensor(wc.Sensor))
	}
	switch {
	case wc.Field != "" && wc.Round != nil:
		opts = append(opts, console.WithRoundedField(wc.Field, *wc.Round))
	case wc.Field != "":
		opts = append(opts, console.WithField(wc.Field))
	}
	if len(wc.Series) > 0 {
		opts = append(opts, console.WithSeries(wc.Series))
	}
	if wc.Period != 0 {
		opts = append(opts, console.WithPeriod(wc.Period.Duration()))
	}
	if wc.History != nil {
		opts = append(opts, console.WithHistory(*wc.History))
	}
	if len(wc.Labels) > 0 {
		opts = append(opts, console.WithLabels(mapToKeyValuePairs(wc.Labels)...))
	}
	if wc.Suffix != "" {
		opts = append(opts, console.WithSuffix(wc.Suffix))
	}
	if wc.Shared {
		opts = append(opts, console.WithShared())
	}
	if wc.AutoMount != nil {
		opts = append(opts, console.WithAutoMount(*wc.AutoMount))
	}

	return console.NewWidget(wc.Name, console.WidgetKind(wc.Kind), opts...)
}

func buildGrid(gc GridConfig) ([]console.Widget, error) {
	opts := []console.GridOption{
		console.WithSensorTemplate(gc.SensorTemplate),
		console.WithDimensions(gc.Dimensions),
	}
	if gc.Kind != "" {
		opts = append(opts, console.WithGridKind(console.WidgetKind(gc.Kind)))
	}
	if gc.Field != "" {
		opts = append(opts, console.WithGridField(gc.Field))
	}
	if len(gc.Series) > 0 {
		opts = append(opts, console.WithGridSeries(gc.Series))
	}
	if gc.Period != 0 {
		opts = append(opts, console.WithGridPeriod(gc.Period.Duration()))
	}
	if gc.History != nil {
		opts = append(opts, console.WithGridHistory(*gc.History))
	}
	if len(gc.Labels) > 0 {
		opts = append(opts, console.WithGridLabels(mapToKeyValuePairs(gc.Labels)...))
	}
	if gc.Suffix != "" {
		opts = append(opts, console.WithGridSuffix(gc.Suffix))
	}
	if gc.Shared {
		opts = append(opts, console.WithGridShared())
	}

	return console.NewWidgetGrid(gc.Name, opts...)
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
