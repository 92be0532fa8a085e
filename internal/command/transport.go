package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Transport sends single commands to the robot. Implementations do not
// retry; each call reports only success or failure.
type Transport interface {
	Drive(ctx context.Context, left, right int) error
	DriveStop(ctx context.Context) error
	MoveArmServo(ctx context.Context, servo Servo, direction bool) error
	HomeArm(ctx context.Context) error
	HomeArmToPreset(ctx context.Context, preset string) error
	PowerOff(ctx context.Context) error
	Reboot(ctx context.Context) error
}

const defaultHTTPTimeout = 2 * time.Second

// HTTPTransport posts commands to the robot's REST API.
type HTTPTransport struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewHTTPTransport creates a transport for the API rooted at baseURL.
// A zero timeout uses 2s.
func NewHTTPTransport(baseURL string, timeout time.Duration) (*HTTPTransport, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid robot url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("robot url scheme must be http or https, got %q", u.Scheme)
	}
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTPTransport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
	}, nil
}

// Drive sets both wheel speeds.
func (t *HTTPTransport) Drive(ctx context.Context, left, right int) error {
	return t.post(ctx, "/api/drive/", map[string]any{"speed": []int{left, right}})
}

// DriveStop stops both wheels.
func (t *HTTPTransport) DriveStop(ctx context.Context) error {
	return t.post(ctx, "/api/drive/stop", nil)
}

// MoveArmServo nudges one joint by the robot's configured increment.
func (t *HTTPTransport) MoveArmServo(ctx context.Context, servo Servo, direction bool) error {
	return t.post(ctx, "/api/arm/servo/"+url.PathEscape(string(servo)), map[string]any{"direction": direction})
}

// HomeArm returns the arm to its home pose.
func (t *HTTPTransport) HomeArm(ctx context.Context) error {
	return t.post(ctx, "/api/arm/home", nil)
}

// HomeArmToPreset moves the arm to a named preset.
func (t *HTTPTransport) HomeArmToPreset(ctx context.Context, preset string) error {
	return t.post(ctx, "/api/arm/preset/"+url.PathEscape(preset), nil)
}

// PowerOff shuts the robot down.
func (t *HTTPTransport) PowerOff(ctx context.Context) error {
	return t.post(ctx, "/api/poweroff", nil)
}

// Reboot restarts the robot.
func (t *HTTPTransport) Reboot(ctx context.Context) error {
	return t.post(ctx, "/api/reboot", nil)
}

// Close closes idle connections.
func (t *HTTPTransport) Close() error {
	t.httpClient.CloseIdleConnections()
	return nil
}

func (t *HTTPTransport) post(ctx context.Context, path string, payload any) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

var (
	_ Transport = (*HTTPTransport)(nil)
	_ Transport = (*MQTTTransport)(nil)
	_ Transport = (*FakeTransport)(nil)
	_ Publisher = (*PahoPublisher)(nil)
	_ Publisher = (*FakePublisher)(nil)
)
