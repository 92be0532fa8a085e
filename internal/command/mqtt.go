package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// DefaultTopic is the topic prefix commands are published under.
const DefaultTopic = "sights/commands"

// Publisher sends one MQTT message.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// MQTTTransport publishes commands to a broker for a robot-side bridge to
// execute. Each command goes to "{prefix}/{kind}" as JSON.
type MQTTTransport struct {
	pub    Publisher
	prefix string
}

// NewMQTTTransport wraps pub. An empty prefix uses [DefaultTopic].
func NewMQTTTransport(pub Publisher, prefix string) (*MQTTTransport, error) {
	if pub == nil {
		return nil, errors.New("mqtt publisher is required")
	}
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopic
	}
	return &MQTTTransport{pub: pub, prefix: prefix}, nil
}

// commandPayload is the JSON body of a published command.
type commandPayload struct {
	Kind      Kind   `json:"kind"`
	Speed     []int  `json:"speed,omitempty"`
	Servo     Servo  `json:"servo,omitempty"`
	Direction *bool  `json:"direction,omitempty"`
	Preset    string `json:"preset,omitempty"`
	SentAt    int64  `json:"sent_at_ms"`
}

// FormatPayload renders a command as the JSON published to the broker.
func FormatPayload(c Command, at time.Time) ([]byte, error) {
	p := commandPayload{Kind: c.Kind, SentAt: at.UnixMilli()}
	switch c.Kind {
	case KindDrive:
		p.Speed = []int{c.Left, c.Right}
	case KindArmServo:
		dir := c.Direction
		p.Servo = c.Servo
		p.Direction = &dir
	case KindArmPreset:
		p.Preset = c.Preset
	}
	return json.Marshal(p)
}

// Topic returns the topic a command of kind k is published to.
func (t *MQTTTransport) Topic(k Kind) string {
	return t.prefix + "/" + string(k)
}

func (t *MQTTTransport) publish(ctx context.Context, c Command) error {
	payload, err := FormatPayload(c, time.Now())
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	if err := t.pub.Publish(ctx, t.Topic(c.Kind), payload); err != nil {
		return fmt.Errorf("publish %s: %w", c.Kind, err)
	}
	return nil
}

func (t *MQTTTransport) Drive(ctx context.Context, left, right int) error {
	return t.publish(ctx, Drive(left, right))
}

func (t *MQTTTransport) DriveStop(ctx context.Context) error {
	return t.publish(ctx, DriveStop())
}

func (t *MQTTTransport) MoveArmServo(ctx context.Context, servo Servo, direction bool) error {
	return t.publish(ctx, MoveServo(servo, direction))
}

func (t *MQTTTransport) HomeArm(ctx context.Context) error {
	return t.publish(ctx, HomeArm())
}

func (t *MQTTTransport) HomeArmToPreset(ctx context.Context, preset string) error {
	return t.publish(ctx, HomeArmToPreset(preset))
}

func (t *MQTTTransport) PowerOff(ctx context.Context) error {
	return t.publish(ctx, PowerOff())
}

func (t *MQTTTransport) Reboot(ctx context.Context) error {
	return t.publish(ctx, Reboot())
}

// Close disconnects the underlying publisher.
func (t *MQTTTransport) Close() error {
	return t.pub.Close()
}

// PahoPublisher publishes to a real broker.
type PahoPublisher struct {
	client paho.Client
	qos    byte
}

// NewPahoPublisher connects to broker (e.g. "tcp://localhost:1883").
func NewPahoPublisher(broker, clientID string, qos byte) (*PahoPublisher, error) {
	if qos > 2 {
		return nil, fmt.Errorf("qos must be 0, 1 or 2, got %d", qos)
	}
	if clientID == "" {
		clientID = "sights-console"
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &PahoPublisher{client: client, qos: qos}, nil
}

// Publish sends payload, not retained, waiting for completion or ctx.
func (p *PahoPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects from the broker.
func (p *PahoPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second quiesce
	return nil
}
